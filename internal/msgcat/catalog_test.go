package msgcat

import (
	"strings"
	"testing"
)

func TestRenderEmbeddedCatalog(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := c.Render("move.played", map[string]any{
		"Name": "Alice", "SAN": "e4", "TurnName": "Bob",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "e4") || !strings.Contains(out, "Alice") {
		t.Fatalf("unexpected render: %q", out)
	}

	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatal("unknown key must error")
	}

	// missing template data is an error, not silent <no value>
	if _, err := c.Render("move.played", map[string]any{"Name": "Alice"}); err == nil {
		t.Fatal("missing field must error")
	}
}
