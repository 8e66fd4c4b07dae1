package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		mode os.FileMode
		want Kind
	}{
		{"regular file", 0o644, KindFile},
		{"directory", os.ModeDir | 0o755, KindDirectory},
		{"symlink", os.ModeSymlink | 0o777, KindReparsePoint},
		{"device", os.ModeDevice, KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.mode); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestLooksLikeDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if !LooksLikeDirectory(sub) {
		t.Error("expected sub to look like a directory")
	}
	if LooksLikeDirectory(file) {
		t.Error("expected file to not look like a directory")
	}
	if LooksLikeDirectory(filepath.Join(dir, "missing")) {
		t.Error("expected missing path to not look like a directory")
	}
}
