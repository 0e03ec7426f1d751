package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"photomosaic/internal/media"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestLoadMissingIndex(t *testing.T) {
	idx, evicted, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if idx.Len() != 0 || evicted != 0 {
		t.Errorf("Load() = %d entries, %d evicted; want empty", idx.Len(), evicted)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "red.png", "r")
	writeFile(t, dir, "blue.png", "b")

	idx := New(dir)
	idx.Put(Entry{Name: "red.png", Fingerprint: "aa", Average: media.RGB{255, 0, 0}})
	idx.Put(Entry{Name: "blue.png", Fingerprint: "bb", Average: media.RGB{0, 0, 255}})
	if err := idx.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, evicted, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if evicted != 0 {
		t.Errorf("evicted = %d, want 0", evicted)
	}

	want := idx.Entries()
	got := loaded.Entries()
	if len(got) != len(want) {
		t.Fatalf("loaded %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSaveDocumentFormat(t *testing.T) {
	dir := t.TempDir()
	idx := New(dir)
	idx.Put(Entry{Name: "a.png", Fingerprint: "0123abcd", Average: media.RGB{1, 2, 3}})
	if err := idx.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := `{"a.png":{"fingerprint":"0123abcd","average":[1,2,3]}}`
	if string(data) != want {
		t.Errorf("document = %s, want %s", data, want)
	}

	info, err := os.Stat(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Errorf("index mode = %o, want 644", perm)
	}
}

func TestLoadEvictsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "kept.png", "k")
	if err := os.Mkdir(filepath.Join(dir, "now-a-dir.png"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeFile(t, dir, FileName, `{
		"kept.png": {"fingerprint": "11", "average": [1, 1, 1]},
		"gone.png": {"fingerprint": "22", "average": [2, 2, 2]},
		"now-a-dir.png": {"fingerprint": "33", "average": [3, 3, 3]}
	}`)

	idx, evicted, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}
	if _, ok := idx.Get("gone.png"); ok {
		t.Error("entry for deleted file should be dropped")
	}
	if _, ok := idx.Get("kept.png"); !ok {
		t.Error("entry for existing file should be kept")
	}
}

func TestLoadCorruptIndex(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "this is not json"},
		{name: "wrong shape", content: `["a", "b"]`},
		{name: "channel overflow", content: `{"a.png": {"fingerprint": "x", "average": [300, 0, 0]}}`},
		{name: "missing fingerprint", content: `{"a.png": {"average": [1, 2, 3]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "a.png", "a")
			writeFile(t, dir, FileName, tt.content)

			_, _, err := Load(dir)
			if !errors.Is(err, ErrCorruptIndex) {
				t.Errorf("Load() error = %v, want ErrCorruptIndex", err)
			}
		})
	}
}

func TestConcurrentPut(t *testing.T) {
	idx := New(t.TempDir())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				name := fmt.Sprintf("w%d-%d.png", w, i)
				idx.Put(Entry{Name: name, Fingerprint: name})
				if _, ok := idx.Get(name); !ok {
					t.Errorf("Get(%s) missing right after Put", name)
				}
			}
		}(w)
	}
	wg.Wait()

	if idx.Len() != 800 {
		t.Errorf("Len() = %d, want 800", idx.Len())
	}
}

func TestEntriesSortedAndDelete(t *testing.T) {
	idx := New(t.TempDir())
	for _, name := range []string{"c.png", "a.png", "b.png"} {
		idx.Put(Entry{Name: name, Fingerprint: name})
	}
	idx.Delete("b.png")
	idx.Delete("missing.png")

	entries := idx.Entries()
	if len(entries) != 2 || entries[0].Name != "a.png" || entries[1].Name != "c.png" {
		t.Errorf("Entries() = %+v, want [a.png c.png]", entries)
	}
}

func TestPath(t *testing.T) {
	idx := New("/lib")
	if got := idx.Path("x.png"); got != filepath.Join("/lib", "x.png") {
		t.Errorf("Path() = %q", got)
	}
	if !strings.HasSuffix(idx.FilePath(), FileName) {
		t.Errorf("FilePath() = %q", idx.FilePath())
	}
}

func TestLockExclusive(t *testing.T) {
	dir := t.TempDir()

	unlock, err := Lock(context.Background(), dir)
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Lock(ctx, dir); err == nil {
		t.Error("second Lock() with cancelled context should fail while held")
	}

	unlock()

	unlock2, err := Lock(context.Background(), dir)
	if err != nil {
		t.Fatalf("Lock() after unlock error: %v", err)
	}
	unlock2()
}

func TestIsReserved(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{FileName, true},
		{LockFileName, true},
		{FileName + ".12345.tmp", true},
		{"tile.png", false},
		{".hidden.png", false},
	}

	for _, tt := range tests {
		if got := IsReserved(tt.name); got != tt.expected {
			t.Errorf("IsReserved(%q) = %v, want %v", tt.name, got, tt.expected)
		}
	}
}
