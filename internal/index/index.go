package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"photomosaic/internal/logging"
	"photomosaic/internal/media"
)

const (
	// FileName is the name of the persisted index inside a library directory.
	FileName = ".mosaic_index"

	// LockFileName guards FileName against concurrent refreshes.
	LockFileName = ".mosaic_index.lock"
)

// ErrCorruptIndex is returned when an index file exists but cannot be parsed.
var ErrCorruptIndex = errors.New("corrupt library index")

// Entry describes one library file that decoded successfully as an image.
type Entry struct {
	// Name is the file name relative to the library directory.
	Name        string
	Fingerprint string
	Average     media.RGB
}

// record is the persisted form of an Entry, keyed by Name in the document.
type record struct {
	Fingerprint string    `json:"fingerprint"`
	Average     media.RGB `json:"average"`
}

// Index maps library file names to their fingerprint and average color. It
// is safe for concurrent use.
type Index struct {
	dir string

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty index for the library directory dir.
func New(dir string) *Index {
	return &Index{
		dir:     dir,
		entries: make(map[string]Entry),
	}
}

// Load reads the persisted index of dir, or returns an empty index if there
// is none. Entries whose file no longer exists are dropped; the number of
// dropped entries is returned.
func Load(dir string) (*Index, int, error) {
	idx := New(dir)
	path := idx.FilePath()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Info("No index found in %s", dir)
		return idx, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	var doc map[string]record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, path, err)
	}
	logging.Info("Existing index found with %d entries", len(doc))

	evicted := 0
	for name, rec := range doc {
		if name == "" || rec.Fingerprint == "" {
			return nil, 0, fmt.Errorf("%w: %s: incomplete entry %q", ErrCorruptIndex, path, name)
		}
		if !idx.exists(name) {
			logging.Debug("Dropping index entry for missing file %s", name)
			evicted++
			continue
		}
		idx.entries[name] = Entry{Name: name, Fingerprint: rec.Fingerprint, Average: rec.Average}
	}

	return idx, evicted, nil
}

// exists reports whether name still refers to a regular file in the library.
func (idx *Index) exists(name string) bool {
	info, err := os.Stat(idx.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Dir returns the library directory.
func (idx *Index) Dir() string {
	return idx.dir
}

// FilePath returns the location of the persisted index.
func (idx *Index) FilePath() string {
	return filepath.Join(idx.dir, FileName)
}

// Path returns the on-disk path of the library file name.
func (idx *Index) Path(name string) string {
	return filepath.Join(idx.dir, name)
}

// Get returns the entry for name.
func (idx *Index) Get(name string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[name]
	return e, ok
}

// Put inserts or replaces the entry for e.Name.
func (idx *Index) Put(e Entry) {
	idx.mu.Lock()
	idx.entries[e.Name] = e
	idx.mu.Unlock()
}

// Delete removes the entry for name, if any.
func (idx *Index) Delete(name string) {
	idx.mu.Lock()
	delete(idx.entries, name)
	idx.mu.Unlock()
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Entries returns a snapshot of all entries sorted by name.
func (idx *Index) Entries() []Entry {
	idx.mu.RLock()
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	idx.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Save writes the index to FilePath, replacing the previous document.
func (idx *Index) Save() error {
	idx.mu.RLock()
	doc := make(map[string]record, len(idx.entries))
	for name, e := range idx.entries {
		doc[name] = record{Fingerprint: e.Fingerprint, Average: e.Average}
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(idx.dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to set index permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), idx.FilePath()); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace index: %w", err)
	}

	logging.Debug("Wrote index with %d entries to %s", len(doc), idx.FilePath())
	return nil
}
