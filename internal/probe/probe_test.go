package probe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProbeMeasuresLogicalSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.bin")
	if err := os.WriteFile(path, make([]byte, 4096), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	p, err := New(true, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Probe(path, info)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.LogicalSize != 4096 {
		t.Fatalf("LogicalSize = %d, want 4096", res.LogicalSize)
	}
	if res.AllocatedSize != res.LogicalSize {
		t.Fatalf("AllocatedSize should mirror LogicalSize when measureAllocated is false")
	}
}

func TestProbeCachesResults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	p, err := New(true, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Probe(path, info); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", p.Len())
	}
	if _, err := p.Probe(path, info); err != nil {
		t.Fatalf("Probe (cached): %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("Len() after repeat probe = %d, want 1", p.Len())
	}
}
