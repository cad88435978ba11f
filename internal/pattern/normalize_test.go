package pattern

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Ping {Name}", "ping {name}"},
		{"  my   priorities ", "my priorities"},
		{"schedule\t{title}\n", "schedule {title}"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			rt.Fatalf("Normalize not idempotent: %q -> %q -> %q", s, once, twice)
		}
	})
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"Work", " work ", "", "Travel"})
	if diff := cmp.Diff([]string{"travel", "work"}, got); diff != "" {
		t.Errorf("NormalizeTags mismatch (-want +got):\n%s", diff)
	}
	if NormalizeTags([]string{" "}) != nil {
		t.Error("all-blank tags should normalize to nil")
	}
}
