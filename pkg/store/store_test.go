package store

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func entry(fn string) Entry {
	return Entry{
		Key:         Key{UserID: 10, DatabaseID: 1, FunctionOID: 42},
		Function:    fn,
		FlowGraph:   "digraph g {\n}",
		PDG:         "digraph g {\n}",
		Dependences: pdg.Stats{WR: 1},
	}
}

func TestStore_PutGet(t *testing.T) {
	s := newStore(t, Options{})

	first, err := s.Put(entry("f()"))
	require.NoError(t, err)
	second, err := s.Put(entry("g()"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.ID())
	assert.Equal(t, uint64(2), second.ID())
	assert.Equal(t, 2, s.Len())

	got, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "g()", got.Function)
	assert.Equal(t, uint32(42), got.Key.FunctionOID)
	assert.Equal(t, 2024, got.CreatedAt.Year())

	_, err = s.Get(99)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_Eviction(t *testing.T) {
	s := newStore(t, Options{MaxTracked: 3})
	for i := range 5 {
		_, err := s.Put(entry(fmt.Sprintf("f%d()", i)))
		require.NoError(t, err)
	}

	assert.Equal(t, 3, s.Len())
	_, err := s.Get(1)
	assert.Error(t, err, "oldest entry evicted")

	var ids []uint64
	for _, e := range s.List() {
		ids = append(ids, e.ID())
	}
	assert.Equal(t, []uint64{3, 4, 5}, ids)
}

func TestStore_DiagramTooLarge(t *testing.T) {
	s := newStore(t, Options{MaxDOTBytes: 16})
	e := entry("f()")
	e.PDG = strings.Repeat("x", 17)

	_, err := s.Put(e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDiagramTooLarge))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ListFor(t *testing.T) {
	s := newStore(t, Options{})
	other := entry("g()")
	other.Key.UserID = 11
	_, _ = s.Put(entry("f()"))
	_, _ = s.Put(other)

	got := s.ListFor(11)
	require.Len(t, got, 1)
	assert.Equal(t, "g()", got[0].Function)
	assert.Empty(t, s.ListFor(12))
}

func TestStore_SaveLoad(t *testing.T) {
	s := newStore(t, Options{})
	_, _ = s.Put(entry("f()"))
	_, _ = s.Put(entry("g()"))

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	restored := newStore(t, Options{})
	require.NoError(t, restored.Load(&buf))
	assert.Equal(t, 2, restored.Len())

	got, err := restored.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "f()", got.Function)
	assert.Equal(t, pdg.Stats{WR: 1}, got.Dependences)

	// ids continue after the restored counter
	next, err := restored.Put(entry("h()"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next.ID())
}

func TestStore_LoadIntoSmallerStore(t *testing.T) {
	s := newStore(t, Options{})
	for range 4 {
		_, _ = s.Put(entry("f()"))
	}
	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	small := newStore(t, Options{MaxTracked: 2})
	require.NoError(t, small.Load(&buf))
	assert.Equal(t, 2, small.Len())
	_, err := small.Get(4)
	assert.NoError(t, err)
}

func TestStore_Files(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "graphs.msgpack")

	s := newStore(t, Options{})
	require.NoError(t, s.LoadFile(path), "missing file is not an error")
	_, _ = s.Put(entry("f()"))
	require.NoError(t, s.SaveFile(path))

	restored := newStore(t, Options{})
	require.NoError(t, restored.LoadFile(path))
	assert.Equal(t, 1, restored.Len())

	assert.Error(t, restored.Load(strings.NewReader("not msgpack")))
}

func TestStore_Concurrent(t *testing.T) {
	s := newStore(t, Options{MaxTracked: 1000})
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_, err := s.Put(entry("f()"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, s.Len())
	list := s.List()
	assert.Equal(t, uint64(200), list[len(list)-1].ID())
}
