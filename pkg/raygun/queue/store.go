// store.go provides durable storage for queued crash report payloads.

package queue

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Store holds queued payloads keyed by sequence number.
//
// Implementations need not be safe for concurrent mutation; the Queue
// serializes access.
type Store interface {
	// List returns the stored sequence numbers in ascending order.
	List(ctx context.Context) ([]int, error)
	Read(ctx context.Context, seq int) ([]byte, error)
	Write(ctx context.Context, seq int, payload []byte) error
	// Delete removes an item. Deleting a missing item is not an error.
	Delete(ctx context.Context, seq int) error
}

const (
	filePrefix = "crashreport-"
	fileSuffix = ".json"
)

// FileStore keeps one file per payload in a directory. File names encode the
// sequence number; listing sorts by the parsed number, not directory order.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store in dir. The directory is created on first
// write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(seq int) string {
	return filepath.Join(s.dir, filePrefix+strconv.Itoa(seq)+fileSuffix)
}

// List implements Store. Files that do not follow the naming scheme are
// ignored.
func (s *FileStore) List(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", s.dir)
	}

	var seqs []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		seq, ok := parseName(entry.Name())
		if ok {
			seqs = append(seqs, seq)
		}
	}
	sort.Ints(seqs)
	return seqs, nil
}

func parseName(name string) (int, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context, seq int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(seq))
	if err != nil {
		return nil, errors.Wrapf(err, "read item %d", seq)
	}
	return b, nil
}

// Write implements Store. The payload is written to a temporary file and
// renamed into place so readers never observe a partial item.
func (s *FileStore) Write(ctx context.Context, seq int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return errors.Wrapf(err, "create %s", s.dir)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+filePrefix)
	if err != nil {
		return errors.Wrapf(err, "write item %d", seq)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "write item %d", seq)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "write item %d", seq)
	}
	if err := os.Rename(tmpName, s.path(seq)); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "write item %d", seq)
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, seq int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(seq))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "delete item %d", seq)
	}
	return nil
}

// MemoryStore keeps payloads in memory. Used when no storage directory is
// configured, and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[int][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int][]byte)}
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seqs := make([]int, 0, len(s.items))
	for seq := range s.items {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	return seqs, nil
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, seq int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[seq]
	if !ok {
		return nil, errors.Wrapf(os.ErrNotExist, "read item %d", seq)
	}
	return append([]byte(nil), b...), nil
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, seq int, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = make(map[int][]byte)
	}
	s.items[seq] = append([]byte(nil), payload...)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, seq)
	return nil
}
