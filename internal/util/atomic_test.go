package util

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	tests := []struct {
		name     string
		existing []byte
		data     []byte
		perm     os.FileMode
	}{
		{"new lookup", nil, []byte(`{"1":[50,100,0,50]}`), 0644},
		{"overwrite sheet", []byte("old sheet"), []byte("new sheet"), 0600},
		{"empty file", []byte("something"), nil, 0644},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "out")
			if tc.existing != nil {
				if err := os.WriteFile(path, tc.existing, 0644); err != nil {
					t.Fatal(err)
				}
			}

			if err := AtomicWriteFile(path, tc.data, tc.perm); err != nil {
				t.Fatalf("AtomicWriteFile: %v", err)
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tc.data) {
				t.Errorf("content = %q, want %q", got, tc.data)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != tc.perm {
				t.Errorf("perm = %v, want %v", info.Mode().Perm(), tc.perm)
			}
			assertNoTempFiles(t, dir)
		})
	}
}

func TestAtomicWriteFileMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "atlas.jpg")
	if err := AtomicWriteFile(path, []byte("x"), 0644); err == nil {
		t.Fatal("expected an error for a missing parent directory")
	}
}

func TestAtomicWriteFileConcurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte('a' + i)}, 4096)
			if err := AtomicWriteFile(path, data, 0644); err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// one writer wins whole
	if len(got) != 4096 || strings.Count(string(got), string(got[:1])) != 4096 {
		t.Errorf("file mixes writers: %d bytes", len(got))
	}
	assertNoTempFiles(t, dir)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "thumbgrid-atomic-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
