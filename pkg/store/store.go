// Package store keeps the rendered graphs of recently analyzed function
// calls. It is the only state shared between analyses.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
)

var (
	// ErrDiagramTooLarge is returned when a rendered graph exceeds the
	// configured size limit.
	ErrDiagramTooLarge = errors.New("diagram exceeds max_dot_bytes")
	// ErrNotFound is returned for an id that is not tracked.
	ErrNotFound = errors.New("graph not found")
)

// Default limits.
const (
	DefaultMaxTracked  = 5000
	DefaultMaxDOTBytes = 1 << 20
)

// Key identifies one analyzed call.
type Key struct {
	UserID      uint32 `json:"user_id" msgpack:"user_id"`
	DatabaseID  uint32 `json:"database_id" msgpack:"database_id"`
	FunctionOID uint32 `json:"function_oid" msgpack:"function_oid"`
	UniqueID    uint64 `json:"unique_id" msgpack:"unique_id"`
}

// Entry is one row of the result table.
type Entry struct {
	Key         Key       `json:"key" msgpack:"key"`
	Function    string    `json:"function" msgpack:"function"`
	FlowGraph   string    `json:"flow_graph" msgpack:"flow_graph"`
	PDG         string    `json:"pdg" msgpack:"pdg"`
	Dependences pdg.Stats `json:"dependences" msgpack:"dependences"`
	Unsupported int       `json:"unsupported" msgpack:"unsupported"`
	CreatedAt   time.Time `json:"created_at" msgpack:"created_at"`
}

// ID returns the unique id of the entry.
func (e Entry) ID() uint64 { return e.Key.UniqueID }

// Options configures a Store.
type Options struct {
	MaxTracked  int // Entries kept before the oldest are evicted
	MaxDOTBytes int // Upper bound for each rendered graph
}

// Store is a bounded, concurrency-safe result table.
type Store struct {
	mu          sync.Mutex
	entries     *lru.Cache[uint64, Entry]
	counter     uint64
	maxDOTBytes int
	now         func() time.Time
}

// New returns an empty store. Zero options select the defaults.
func New(opts Options) (*Store, error) {
	if opts.MaxTracked <= 0 {
		opts.MaxTracked = DefaultMaxTracked
	}
	if opts.MaxDOTBytes <= 0 {
		opts.MaxDOTBytes = DefaultMaxDOTBytes
	}
	cache, err := lru.New[uint64, Entry](opts.MaxTracked)
	if err != nil {
		return nil, fmt.Errorf("creating result cache: %w", err)
	}
	return &Store{entries: cache, maxDOTBytes: opts.MaxDOTBytes, now: time.Now}, nil
}

// Put adds an entry and assigns it the next unique id. Key.UniqueID
// and CreatedAt of e are overwritten.
func (s *Store) Put(e Entry) (Entry, error) {
	if len(e.FlowGraph) > s.maxDOTBytes || len(e.PDG) > s.maxDOTBytes {
		return Entry{}, fmt.Errorf("%s: %w (%d bytes)", e.Function, ErrDiagramTooLarge,
			max(len(e.FlowGraph), len(e.PDG)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	e.Key.UniqueID = s.counter
	e.CreatedAt = s.now()
	s.entries.Add(e.Key.UniqueID, e)
	return e, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(id uint64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Peek(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return e, nil
}

// List returns all tracked entries in id order.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

// ListFor returns the entries recorded for a user.
func (s *Store) ListFor(userID uint32) []Entry {
	var res []Entry
	for _, e := range s.List() {
		if e.Key.UserID == userID {
			res = append(res, e)
		}
	}
	return res
}

// Len returns the number of tracked entries.
func (s *Store) Len() int {
	return s.entries.Len()
}

func (s *Store) sorted() []Entry {
	entries := s.entries.Values()
	slices.SortFunc(entries, func(a, b Entry) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return entries
}

type snapshot struct {
	Counter uint64  `msgpack:"counter"`
	Entries []Entry `msgpack:"entries"`
}

// Save persists the store to a writer using msgpack.
func (s *Store) Save(w io.Writer) error {
	s.mu.Lock()
	snap := snapshot{Counter: s.counter, Entries: s.sorted()}
	s.mu.Unlock()

	enc := msgpack.NewEncoder(w)
	return enc.Encode(snap)
}

// Load replaces the content of the store with a saved snapshot. When
// the snapshot holds more entries than fit, the oldest are dropped.
func (s *Store) Load(r io.Reader) error {
	var snap snapshot
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Purge()
	for _, e := range snap.Entries {
		s.entries.Add(e.ID(), e)
	}
	s.counter = snap.Counter
	return nil
}

// SaveFile saves the store to path, creating parent directories.
func (s *Store) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create store file: %w", err)
	}
	defer f.Close()
	return s.Save(f)
}

// LoadFile loads the store from path. A missing file leaves the store
// empty.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open store file: %w", err)
	}
	defer f.Close()
	return s.Load(f)
}
