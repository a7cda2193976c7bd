package shared

import (
	"testing"

	"github.com/charmbracelet/log"
)

func TestStripWhitespace(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{name: "spaces", input: "All Tracks", want: "AllTracks"},
		{name: "tabs and newlines", input: " a\tb\nc ", want: "abc"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripWhitespace(tt.input); got != tt.want {
				t.Errorf("StripWhitespace() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Run("empty defaults to info", func(t *testing.T) {
		level, err := ParseLevel("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if level != log.InfoLevel {
			t.Errorf("expected info, got %v", level)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		level, err := ParseLevel("DEBUG")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if level != log.DebugLevel {
			t.Errorf("expected debug, got %v", level)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseLevel("chatty"); err == nil {
			t.Error("expected error for unknown level")
		}
	})
}

func TestReadiness(t *testing.T) {
	var r Readiness
	if r.Ready() {
		t.Fatal("readiness should start closed")
	}

	r.MarkOpen(true)
	if !r.Ready() {
		t.Fatal("expected ready once open")
	}

	done := r.Begin()
	if r.Ready() {
		t.Error("expected not ready while an operation is in flight")
	}

	done()
	done()
	if !r.Ready() {
		t.Error("expected ready after the operation settles, even when settled twice")
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}
