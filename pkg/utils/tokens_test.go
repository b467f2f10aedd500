package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewTokenCounter(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{"known model", "gpt-4o"},
		{"older model", "gpt-3.5-turbo"},
		{"unknown model falls back to cl100k_base", "claude-sonnet-4-20250514"},
		{"empty model falls back", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := NewTokenCounter(tt.model)
			if err != nil {
				t.Fatalf("NewTokenCounter(%q) returned error: %v", tt.model, err)
			}
			if tc.Model() != tt.model {
				t.Errorf("Model() = %q, want %q", tc.Model(), tt.model)
			}
			if got := tc.Count("hello world"); got == 0 {
				t.Errorf("Count returned 0 for non-empty text")
			}
		})
	}
}

func TestTokenCounterCaching(t *testing.T) {
	a, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	if a.encoding != b.encoding {
		t.Error("expected cached encoding to be reused for the same model")
	}
}

func TestCountMessages(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatal(err)
	}

	empty := tc.CountMessages(nil)
	if empty != 3 {
		t.Errorf("CountMessages(nil) = %d, want the reply-priming 3", empty)
	}

	one := tc.CountMessages([]Message{{Role: "user", Content: "hello"}})
	if one <= empty {
		t.Errorf("one message counted %d tokens, want more than %d", one, empty)
	}

	two := tc.CountMessages([]Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	})
	if two <= one {
		t.Errorf("two messages counted %d tokens, want more than %d", two, one)
	}
}

func TestFitWithinLimit(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatal(err)
	}

	messages := []Message{
		{Role: "user", Content: "first message about booking a flight to Lisbon"},
		{Role: "assistant", Content: "sure, when would you like to travel?"},
		{Role: "user", Content: "next week, returning the week after"},
	}

	t.Run("generous budget keeps everything", func(t *testing.T) {
		fitted := tc.FitWithinLimit(messages, 10000)
		if len(fitted) != len(messages) {
			t.Errorf("got %d messages, want %d", len(fitted), len(messages))
		}
	})

	t.Run("tight budget keeps the most recent suffix", func(t *testing.T) {
		lastOnly := tc.CountMessages(messages[2:])
		fitted := tc.FitWithinLimit(messages, lastOnly)
		if len(fitted) == 0 {
			t.Fatal("expected at least the last message to fit")
		}
		if fitted[len(fitted)-1].Content != messages[2].Content {
			t.Errorf("suffix does not end with the most recent message")
		}
	})

	t.Run("zero budget keeps nothing", func(t *testing.T) {
		fitted := tc.FitWithinLimit(messages, 0)
		if len(fitted) != 0 {
			t.Errorf("got %d messages, want 0", len(fitted))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		fitted := tc.FitWithinLimit(nil, 100)
		if len(fitted) != 0 {
			t.Errorf("got %d messages, want 0", len(fitted))
		}
	})
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "functions.yaml")

	if err := AtomicWriteFile(path, []byte("enabled: []\n"), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "enabled: []\n" {
		t.Errorf("unexpected content %q", data)
	}

	// Overwrite must replace, not append.
	if err := AtomicWriteFile(path, []byte("enabled: [faq_search]\n"), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile overwrite: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "enabled: [faq_search]\n" {
		t.Errorf("unexpected content after overwrite %q", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}
