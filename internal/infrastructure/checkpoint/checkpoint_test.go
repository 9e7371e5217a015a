package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileCheckpoint(t *testing.T) {
	t.Run("missing file loads as empty set", func(t *testing.T) {
		ckpt := NewFile(filepath.Join(t.TempDir(), "missing.json"))

		processed, err := ckpt.Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if len(processed) != 0 {
			t.Errorf("len(processed) = %d, want 0", len(processed))
		}
	})

	t.Run("save and load round trip", func(t *testing.T) {
		ckpt := NewFile(filepath.Join(t.TempDir(), "progress.json"))

		want := map[int64]bool{3: true, 1: true, 7: true}
		if err := ckpt.Save(want); err != nil {
			t.Fatalf("Save() error = %v, want nil", err)
		}

		got, err := ckpt.Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if len(got) != len(want) {
			t.Fatalf("len(got) = %d, want %d", len(got), len(want))
		}
		for id := range want {
			if !got[id] {
				t.Errorf("id %d missing after round trip", id)
			}
		}
	})

	t.Run("save overwrites the previous set", func(t *testing.T) {
		ckpt := NewFile(filepath.Join(t.TempDir(), "progress.json"))

		if err := ckpt.Save(map[int64]bool{1: true}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := ckpt.Save(map[int64]bool{1: true, 2: true}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := ckpt.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len(got) = %d, want 2", len(got))
		}
	})

	t.Run("save creates missing parent directories", func(t *testing.T) {
		ckpt := NewFile(filepath.Join(t.TempDir(), "nested", "dir", "progress.json"))

		if err := ckpt.Save(map[int64]bool{1: true}); err != nil {
			t.Fatalf("Save() error = %v, want nil", err)
		}
	})

	t.Run("save leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		ckpt := NewFile(filepath.Join(dir, "progress.json"))

		if err := ckpt.Save(map[int64]bool{1: true}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != "progress.json" {
			t.Errorf("directory contents = %v, want only progress.json", entries)
		}
	})

	t.Run("corrupt file is an error, not silent restart", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "progress.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := NewFile(path).Load(); err == nil {
			t.Error("Load() error = nil, want parse error")
		}
	})

	t.Run("clear removes the file and tolerates absence", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "progress.json")
		ckpt := NewFile(path)

		if err := ckpt.Save(map[int64]bool{1: true}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := ckpt.Clear(); err != nil {
			t.Fatalf("Clear() error = %v, want nil", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("checkpoint still exists after Clear()")
		}

		// Clearing again must not fail.
		if err := ckpt.Clear(); err != nil {
			t.Errorf("second Clear() error = %v, want nil", err)
		}
	})
}
