package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"rematch.waiting", "rematch.declined", "rematch.started"} {
		got, err := c.Render(key, nil)
		if err != nil {
			t.Fatalf("Render %s: %v", key, err)
		}
		if got == "" {
			t.Fatalf("empty default message for %s", key)
		}
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "rematch:\n  waiting: \"Hang tight, {{.Name}}\"\n"
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("rematch.waiting", map[string]string{"Name": "Alice"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Hang tight, Alice" {
		t.Fatalf("override not applied: %q", got)
	}
	// untouched keys keep their embedded defaults
	if got := c.MustRender("rematch.declined", nil); got == "rematch.declined" {
		t.Fatalf("default key lost after override")
	}
}

func TestMustRenderFallsBackToKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.MustRender("missing.key", nil); got != "missing.key" {
		t.Fatalf("fallback = %q", got)
	}
}
