package exclude

import "testing"

func TestMatcherExcluded(t *testing.T) {
	m, err := New([]string{"**/node_modules", "*.tmp"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/home/user/project/node_modules", true},
		{"/home/user/project/node_modules/lib", false}, // pattern is a directory, not its children
		{"/home/user/file.tmp", true},
		{"/home/user/file.txt", false},
		{"/HOME/USER/FILE.TMP", true}, // case-insensitive
	}
	for _, tt := range tests {
		if got := m.Excluded(tt.path); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMatcherEmptyNeverExcludes(t *testing.T) {
	m, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Excluded("/anything/at/all") {
		t.Fatal("empty matcher excluded a path")
	}
}

func TestNewRejectsInvalidGlob(t *testing.T) {
	if _, err := New([]string{"["}); err == nil {
		t.Fatal("expected error for invalid glob")
	}
}
