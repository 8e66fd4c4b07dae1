package scanopts

import (
	"errors"
	"os"
	"testing"
)

func TestValidateRejectsEmptyRoots(t *testing.T) {
	o := DefaultOptions()
	if err := o.Validate(); !errors.Is(err, ErrEmptyRoots) {
		t.Fatalf("got %v, want ErrEmptyRoots", err)
	}
}

func TestValidateRejectsMissingRoot(t *testing.T) {
	o := DefaultOptions()
	o.RootPaths = []string{"/this/path/should/not/exist/ever"}
	if err := o.Validate(); !errors.Is(err, ErrRootNotFound) {
		t.Fatalf("got %v, want ErrRootNotFound", err)
	}
}

func TestValidateRejectsFileRoot(t *testing.T) {
	dir := t.TempDir()
	f := dir + "/not_a_dir"
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	o := DefaultOptions()
	o.RootPaths = []string{f}
	if err := o.Validate(); !errors.Is(err, ErrRootNotDir) {
		t.Fatalf("got %v, want ErrRootNotDir", err)
	}
}

func TestValidateRejectsBadGlob(t *testing.T) {
	dir := t.TempDir()
	o := DefaultOptions()
	o.RootPaths = []string{dir}
	o.Excludes = []string{"["}
	if err := o.Validate(); !errors.Is(err, ErrInvalidGlob) {
		t.Fatalf("got %v, want ErrInvalidGlob", err)
	}
}

func TestValidateRejectsNegativeDepth(t *testing.T) {
	dir := t.TempDir()
	bad := -1
	o := DefaultOptions()
	o.RootPaths = []string{dir}
	o.MaxDepth = &bad
	if err := o.Validate(); !errors.Is(err, ErrBadDepth) {
		t.Fatalf("got %v, want ErrBadDepth", err)
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	dir := t.TempDir()
	o := DefaultOptions()
	o.RootPaths = []string{dir}
	if err := o.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEffectiveConcurrency(t *testing.T) {
	tun := Tunables{DirConcurrency: 8}
	tests := []struct {
		name        string
		concurrency *int
		handleLimit *int
		want        int
	}{
		{"uses ceiling by default", nil, nil, 8},
		{"request override below ceiling wins", ptr(3), nil, 3},
		{"request override above ceiling is clamped", ptr(20), nil, 8},
		{"handle limit below both wins", ptr(3), ptr(1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Options{Concurrency: tt.concurrency}
			localTun := tun
			localTun.HandleLimit = tt.handleLimit
			got := EffectiveConcurrency(o, localTun)
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRowsPerChunk(t *testing.T) {
	tun := Tunables{PlaceholderCeiling: 999}
	if got := RowsPerChunk(tun, 9); got != 111 {
		t.Fatalf("got %d, want 111", got)
	}
	if got := RowsPerChunk(tun, 5000); got != 1 {
		t.Fatalf("got %d, want 1 (floored)", got)
	}
}

func ptr(n int) *int { return &n }
