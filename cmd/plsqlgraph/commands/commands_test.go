package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/config"
	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/store"
)

const functionsDir = "../../../testdata/functions"

func useConfig(t *testing.T) {
	t.Helper()
	appConfig = config.DefaultConfig()
	appConfig.StorePath = filepath.Join(t.TempDir(), "graphs.msgpack")
	logger = log.Discard()
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(io.Discard)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute(), "plsqlgraph %v", args)
	return out.String()
}

func TestFormatLineRanges(t *testing.T) {
	tests := []struct {
		lines []int
		want  string
	}{
		{nil, "none"},
		{[]int{4}, "4"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{1, 2, 5, 7, 8}, "1-2, 5, 7-8"},
	}
	for _, tt := range tests {
		if got := formatLineRanges(tt.lines); got != tt.want {
			t.Errorf("formatLineRanges(%v) = %q, want %q", tt.lines, got, tt.want)
		}
	}
}

func TestExpandSQLFiles(t *testing.T) {
	files, err := expandSQLFiles([]string{functionsDir})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	single := filepath.Join(functionsDir, "pick.sql")
	files, err = expandSQLFiles([]string{single})
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	_, err = expandSQLFiles([]string{t.TempDir()})
	assert.Error(t, err, "empty directory")
	_, err = expandSQLFiles([]string{filepath.Join(t.TempDir(), "missing.sql")})
	assert.Error(t, err)
}

func TestStatementAt(t *testing.T) {
	fn, err := readFunction(filepath.Join(functionsDir, "pick.sql"))
	require.NoError(t, err)

	s, err := statementAt(fn, "7")
	require.NoError(t, err)
	assert.Equal(t, plsql.KindIf, s.Kind())

	_, err = statementAt(fn, "3")
	assert.Error(t, err, "declarations are not statements")
	_, err = statementAt(fn, "x")
	assert.Error(t, err)

	_, err = readFunction(functionsDir)
	assert.Error(t, err, "directories are rejected")
}

func TestRunCalls(t *testing.T) {
	useConfig(t)
	st, err := store.New(store.Options{})
	require.NoError(t, err)
	p, err := newPlugin(st)
	require.NoError(t, err)

	bad := filepath.Join(t.TempDir(), "bad.sql")
	require.NoError(t, os.WriteFile(bad, []byte("BEGIN x := 1; END"), 0644))

	files, err := expandSQLFiles([]string{functionsDir})
	require.NoError(t, err)
	out := runCalls(p, append(files, bad), &plsql.ExecState{UserID: 3}, 2)

	assert.Equal(t, 6, out.Calls)
	require.Len(t, out.Stored, 4)
	for i, e := range out.Stored {
		assert.Equal(t, uint64(i+1), e.ID())
		assert.Equal(t, uint32(3), e.Key.UserID)
	}
	assert.Len(t, out.Failed, 2)
	assert.Equal(t, 4, st.Len())
}

func TestCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PLSQLGRAPH_STORE_PATH", filepath.Join(t.TempDir(), "graphs.msgpack"))
	pick := filepath.Join(functionsDir, "pick.sql")

	t.Run("conflict", func(t *testing.T) {
		var out ConflictOutput
		require.NoError(t, json.Unmarshal([]byte(execute(t, "conflict", pick, "6", "8", "--json")), &out))
		assert.True(t, out.Conflict)
		assert.Equal(t, "v1 := 10", out.StatementA)

		require.NoError(t, json.Unmarshal([]byte(execute(t, "conflict", pick, "8", "10", "--json", "--symmetric")), &out))
		assert.False(t, out.Conflict)
		assert.True(t, out.Symmetric)
	})

	t.Run("slice", func(t *testing.T) {
		var out struct {
			SliceLines []int    `json:"slice_lines"`
			Variables  []string `json:"variables"`
		}
		require.NoError(t, json.Unmarshal([]byte(execute(t, "slice", pick, "--line", "12", "--json")), &out))
		assert.Equal(t, []int{6, 8, 10, 12}, out.SliceLines)
		assert.Equal(t, []string{"v1", "v2"}, out.Variables)
	})

	t.Run("slice direction flags exclude each other", func(t *testing.T) {
		t.Cleanup(func() {
			for _, name := range []string{"backward", "forward"} {
				f := sliceCmd.Flags().Lookup(name)
				_ = f.Value.Set("false")
				f.Changed = false
			}
		})
		RootCmd.SetOut(io.Discard)
		RootCmd.SetErr(io.Discard)
		RootCmd.SetArgs([]string{"slice", pick, "--line", "12", "--backward", "--forward"})
		err := RootCmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backward forward")
	})

	t.Run("dot", func(t *testing.T) {
		out := execute(t, "dot", pick, "--kind", "pdg")
		assert.Contains(t, out, "splines=ortho;")
		assert.Contains(t, out, "[color=green];")
	})

	t.Run("run and graphs", func(t *testing.T) {
		var run RunOutput
		require.NoError(t, json.Unmarshal([]byte(execute(t, "run", functionsDir, "--json")), &run))
		assert.Len(t, run.Stored, 2)
		assert.Empty(t, run.Failed)

		var entries []store.Entry
		require.NoError(t, json.Unmarshal([]byte(execute(t, "graphs", "--json")), &entries))
		assert.Len(t, entries, 2, "result table is persisted between runs")
	})
}
