package resolver

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"github.com/strackan/cmdrouter/internal/pattern"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "at": true, "for": true, "with": true,
	"by": true, "from": true, "about": true, "is": true, "are": true, "am": true,
	"be": true, "was": true, "were": true, "do": true, "does": true, "did": true,
	"i": true, "me": true, "my": true, "mine": true, "we": true, "our": true,
	"you": true, "your": true, "it": true, "its": true, "this": true, "that": true,
	"these": true, "those": true, "what": true, "whats": true, "which": true,
	"who": true, "how": true, "can": true, "could": true, "would": true,
	"will": true, "please": true, "some": true, "any": true, "all": true,
	"up": true, "out": true, "s": true,
}

// tokenize lowercases s and splits it into words. Apostrophes are dropped
// so "what's" and "whats" agree.
func tokenize(s string) []string {
	s = strings.ReplaceAll(strings.ToLower(s), "'", "")
	s = strings.ReplaceAll(s, "’", "")
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// keywords returns the stemmed content words of s. When every word is a
// stopword the stemmed raw words are used instead, so templates such as
// "who am i" still have a vocabulary.
func keywords(s string) map[string]bool {
	words := tokenize(s)
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if stopwords[w] {
			continue
		}
		out[english.Stem(w, false)] = true
	}
	if len(out) == 0 {
		for _, w := range words {
			out[english.Stem(w, true)] = true
		}
	}
	return out
}

// lexicalScore is the fraction of the template's keywords present in the request.
func lexicalScore(template map[string]bool, request map[string]bool) float64 {
	if len(template) == 0 {
		return 0
	}
	hit := 0
	for k := range template {
		if request[k] {
			hit++
		}
	}
	return float64(hit) / float64(len(template))
}

// LexicalStage ranks eligible patterns by how much of each template's own
// vocabulary (placeholders removed) appears in the request. Ties go to the
// longer template text, then lower priority, then higher usage. Results carry
// no variables.
func LexicalStage(limit int) Stage {
	if limit <= 0 {
		limit = 3
	}
	return Stage{
		Name: "lexical",
		Run: func(req Request, eligible []*pattern.CommandPattern) []Match {
			request := keywords(req.Text)
			// Request words are also matched unfiltered, so a template made of
			// stopwords can still be found
			for _, w := range tokenize(req.Text) {
				request[english.Stem(w, true)] = true
			}

			type scored struct {
				m    Match
				text string
			}
			var hits []scored
			for _, p := range eligible {
				text := pattern.StripPlaceholders(p.Pattern)
				score := lexicalScore(keywords(text), request)
				if score <= 0 {
					continue
				}
				hits = append(hits, scored{
					m:    Match{Pattern: p, MatchType: MatchFuzzy, Confidence: score},
					text: text,
				})
			}

			sort.SliceStable(hits, func(i, j int) bool {
				a, b := hits[i], hits[j]
				if a.m.Confidence != b.m.Confidence {
					return a.m.Confidence > b.m.Confidence
				}
				if len(a.text) != len(b.text) {
					return len(a.text) > len(b.text)
				}
				if a.m.Pattern.Priority != b.m.Pattern.Priority {
					return a.m.Pattern.Priority < b.m.Pattern.Priority
				}
				if a.m.Pattern.UsageCount != b.m.Pattern.UsageCount {
					return a.m.Pattern.UsageCount > b.m.Pattern.UsageCount
				}
				return a.m.Pattern.ID < b.m.Pattern.ID
			})

			if len(hits) > limit {
				hits = hits[:limit]
			}
			out := make([]Match, len(hits))
			for i, h := range hits {
				out[i] = h.m
			}
			return out
		},
	}
}
