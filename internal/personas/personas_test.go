package personas

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFallsBackToEmbeddedWhenDirUnset(t *testing.T) {
	l := NewLoader("")

	p, err := l.Load("fundamental")
	if err != nil {
		t.Fatalf("unexpected error loading embedded persona: %v", err)
	}
	if p.Name == "" {
		t.Fatal("expected embedded fundamental persona to have a name")
	}
}

func TestLoadPrefersOnDiskOverride(t *testing.T) {
	dir := t.TempDir()
	custom := "name: custom\ndisplay_name: Custom Analyst\ndescription: overridden for this test\n"
	if err := os.WriteFile(filepath.Join(dir, "fundamental.yaml"), []byte(custom), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	l := NewLoader(dir)
	p, err := l.Load("fundamental")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "custom" {
		t.Fatalf("expected on-disk override to win, got %q", p.Name)
	}
}

func TestLoadFallsBackToEmbeddedWhenDirMissingFile(t *testing.T) {
	dir := t.TempDir() // no persona files written here

	l := NewLoader(dir)
	p, err := l.Load("technical")
	if err != nil {
		t.Fatalf("expected fallback to embedded default, got error: %v", err)
	}
	if p.Name == "" {
		t.Fatal("expected embedded technical persona to have a name")
	}
}

func TestLoadUnknownAnalystTypeErrors(t *testing.T) {
	l := NewLoader("")

	if _, err := l.Load("nonexistent"); err == nil {
		t.Fatal("expected an error for an unknown analyst type")
	}
}
