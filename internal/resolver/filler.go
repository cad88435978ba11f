package resolver

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultFillerPrefixes are politeness markers and generic lead-in verbs that
// carry no command content. "what are" is deliberately absent: it changes
// meaning ("what are my priorities" is not "my priorities").
var DefaultFillerPrefixes = []string{
	"can you please",
	"could you please",
	"would you please",
	"will you please",
	"can you",
	"could you",
	"would you",
	"will you",
	"please",
	"pls",
	"hey",
	"hi",
	"ok",
	"okay",
	"show me",
	"give me",
	"tell me",
	"get me",
	"find me",
	"list all",
	"list",
	"i want to",
	"i'd like to",
	"i would like to",
	"i need to",
	"i need you to",
	"go ahead and",
	"just",
}

// FillerNormalizer strips leading filler phrases and trailing ?!. from requests.
type FillerNormalizer struct {
	prefixes []string
}

// NewFillerNormalizer returns a normalizer over the default vocabulary plus extra.
func NewFillerNormalizer(extra ...string) *FillerNormalizer {
	seen := make(map[string]bool)
	var prefixes []string
	for _, p := range append(append([]string(nil), DefaultFillerPrefixes...), extra...) {
		p = strings.Join(strings.Fields(strings.ToLower(p)), " ")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		prefixes = append(prefixes, p)
	}
	// Longest first so "can you please" wins over "can you"
	sort.SliceStable(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})
	return &FillerNormalizer{prefixes: prefixes}
}

// Normalize removes every leading filler phrase, repeating until none is left,
// so Normalize(Normalize(s)) == Normalize(s). The rest of the text keeps its case.
func (f *FillerNormalizer) Normalize(s string) string {
	s = strings.TrimSpace(s)
	for {
		next := f.strip(s)
		if next == s {
			return s
		}
		s = next
	}
}

func (f *FillerNormalizer) strip(s string) string {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return r == '?' || r == '!' || r == '.' || unicode.IsSpace(r)
	})
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ':' || unicode.IsSpace(r)
	})

	for _, p := range f.prefixes {
		if len(s) < len(p) || !strings.EqualFold(s[:len(p)], p) {
			continue
		}
		rest := s[len(p):]
		// Whole words only: "hi" must not eat the start of "hire"
		if rest != "" && !startsWithSeparator(rest) {
			continue
		}
		return strings.TrimSpace(rest)
	}
	return s
}

func startsWithSeparator(s string) bool {
	for _, r := range s {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':'
	}
	return false
}
