package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	got := tokenize("What's on my plate, today?")
	want := []string{"whats", "on", "my", "plate", "today"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestKeywords_StemsAndDropsStopwords(t *testing.T) {
	got := keywords("my priorities")
	if len(got) != 1 || got["my"] {
		t.Errorf("keywords = %v, want only the stem of priorities", got)
	}
	if cmp.Diff(got, keywords("priority")) != "" {
		t.Errorf("singular and plural should share a stem: %v vs %v", got, keywords("priority"))
	}

	// Stemming lets inflections meet
	if lexicalScore(keywords("schedule meetings"), keywords("scheduling a meeting")) != 1 {
		t.Error("stemmed forms should match")
	}
}

func TestKeywords_AllStopwords(t *testing.T) {
	if len(keywords("who am i")) == 0 {
		t.Error("a template made only of stopwords still needs keywords")
	}
}

func TestLexicalScore(t *testing.T) {
	tmpl := keywords("overdue tasks")
	if got := lexicalScore(tmpl, keywords("tasks")); got != 0.5 {
		t.Errorf("score = %v, want 0.5", got)
	}
	if got := lexicalScore(map[string]bool{}, keywords("tasks")); got != 0 {
		t.Errorf("empty template score = %v, want 0", got)
	}
}
