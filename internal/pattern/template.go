package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/strackan/cmdrouter/internal/errors"
)

// placeholderRegex matches a {name} placeholder in a template.
var placeholderRegex = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Matcher is the anchored, case-insensitive matcher synthesized from a template.
type Matcher struct {
	template     string
	placeholders []string
	re           *regexp.Regexp
}

// Compile turns a template into a Matcher. Each placeholder becomes a capture
// group; literal text matches case-insensitively with any whitespace run
// matching one or more whitespace characters. The whole input must match.
func Compile(template string) (*Matcher, error) {
	if strings.TrimSpace(template) == "" {
		return nil, errors.NewInvalidRequest("pattern is required")
	}

	names, err := placeholderNames(template)
	if err != nil {
		return nil, err
	}

	src := strings.TrimSpace(template)
	var sb strings.Builder
	sb.WriteString(`(?is)^\s*`)
	last := 0
	for _, loc := range placeholderRegex.FindAllStringIndex(src, -1) {
		sb.WriteString(literal(src[last:loc[0]]))
		sb.WriteString(`(.+?)`)
		last = loc[1]
	}
	sb.WriteString(literal(src[last:]))
	sb.WriteString(`\s*$`)

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("pattern %q does not compile: %v", template, err))
	}
	return &Matcher{template: template, placeholders: names, re: re}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(template string) *Matcher {
	m, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return m
}

// literal quotes a run of template text, turning whitespace runs into \s+.
func literal(s string) string {
	parts := whitespaceRegex.Split(s, -1)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}

// Template returns the source template.
func (m *Matcher) Template() string {
	return m.template
}

// Placeholders returns the placeholder names in template order.
func (m *Matcher) Placeholders() []string {
	return append([]string(nil), m.placeholders...)
}

// Match tests input against the template. Captured groups bind positionally
// to the placeholders, in the order they appear in the template.
func (m *Matcher) Match(input string) (map[string]string, bool) {
	groups := m.re.FindStringSubmatch(input)
	if groups == nil {
		return nil, false
	}
	vars := make(map[string]string, len(m.placeholders))
	for i, name := range m.placeholders {
		vars[name] = strings.TrimSpace(groups[i+1])
	}
	return vars, true
}

// Placeholders returns the placeholder names of a template in order.
func Placeholders(template string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func placeholderNames(template string) ([]string, error) {
	names := Placeholders(template)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("placeholder {%s} appears more than once", n))
		}
		seen[n] = true
	}
	return names, nil
}

// StripPlaceholders removes every placeholder from a template and collapses
// the remaining whitespace, leaving only the template's own vocabulary.
func StripPlaceholders(template string) string {
	s := placeholderRegex.ReplaceAllString(template, " ")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
