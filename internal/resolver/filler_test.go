package resolver

import (
	"testing"

	"pgregory.net/rapid"
)

func TestFillerNormalizer(t *testing.T) {
	f := NewFillerNormalizer()
	tests := []struct {
		in   string
		want string
	}{
		{"please show me my tasks", "my tasks"},
		{"Can you please show me my tasks?", "my tasks"},
		{"hey, could you list all Open Tickets!", "Open Tickets"},
		{"what are my priorities", "what are my priorities"},
		{"hire someone", "hire someone"},
		{"my tasks", "my tasks"},
		{"please", ""},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := f.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFillerNormalizer_ExtraPrefixes(t *testing.T) {
	f := NewFillerNormalizer("Yo  Bot")
	if got := f.Normalize("yo bot my tasks"); got != "my tasks" {
		t.Errorf("Normalize = %q, want %q", got, "my tasks")
	}
}

func TestFillerNormalizer_Idempotent(t *testing.T) {
	f := NewFillerNormalizer()
	if once := f.Normalize("please show me my tasks"); f.Normalize(once) != once {
		t.Errorf("Normalize not idempotent on %q", once)
	}

	rapid.Check(t, func(rt *rapid.T) {
		words := rapid.SliceOfN(rapid.SampledFrom([]string{
			"please", "show", "me", "can", "you", "my", "tasks", "hey,", "list", "all", "?", "now", "what", "are",
		}), 0, 8).Draw(rt, "words")
		s := ""
		for i, w := range words {
			if i > 0 {
				s += " "
			}
			s += w
		}
		once := f.Normalize(s)
		if twice := f.Normalize(once); twice != once {
			rt.Fatalf("Normalize(%q) = %q but Normalize(%q) = %q", s, once, once, twice)
		}
	})
}
