package chain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/strackan/cmdrouter/internal/errors"
)

// tokenRegex matches {{name}} and {{output.path.0.field}} interpolation tokens.
var tokenRegex = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_\-]+)*)\s*\}\}`)

// Tokens returns the references of every interpolation token in s, in order.
func Tokens(s string) []string {
	matches := tokenRegex.FindAllStringSubmatch(s, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// wholeToken returns the reference when s consists of exactly one token.
func wholeToken(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	loc := tokenRegex.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 || loc[1] != len(trimmed) {
		return "", false
	}
	return trimmed[loc[2]:loc[3]], true
}

// Bindings holds the values interpolation tokens resolve against.
type Bindings struct {
	Variables map[string]string
	Outputs   map[string]any
}

// Lookup resolves a reference: the extracted variables are checked first, then
// the named outputs of prior steps. A dotted path drills into a structured output.
func (b Bindings) Lookup(ref string) (any, bool) {
	if v, ok := b.Variables[ref]; ok {
		return v, true
	}

	head, rest, hasRest := strings.Cut(ref, ".")
	out, ok := b.Outputs[head]
	if !ok {
		return nil, false
	}
	if !hasRest {
		return out, true
	}
	return drill(out, rest)
}

// drill walks path through a structured value.
func drill(v any, path string) (any, bool) {
	var data []byte
	switch t := v.(type) {
	case string:
		if !gjson.Valid(t) {
			return nil, false
		}
		data = []byte(t)
	case []byte:
		data = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		data = b
	}

	r := gjson.GetBytes(data, path)
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

// Interpolate resolves the tokens in one param value. A string that is exactly
// one token receives the raw bound value; tokens embedded in a longer string
// are stringified. Non-string values are literals.
func Interpolate(value any, b Bindings, step int) (any, error) {
	str, ok := value.(string)
	if !ok {
		return value, nil
	}

	if ref, whole := wholeToken(str); whole {
		v, found := b.Lookup(ref)
		if !found {
			return nil, errors.NewUnresolvedToken(ref, step)
		}
		return v, nil
	}

	var unresolved string
	out := tokenRegex.ReplaceAllStringFunc(str, func(tok string) string {
		ref := tokenRegex.FindStringSubmatch(tok)[1]
		v, found := b.Lookup(ref)
		if !found {
			if unresolved == "" {
				unresolved = ref
			}
			return tok
		}
		return stringify(v)
	})
	if unresolved != "" {
		return nil, errors.NewUnresolvedToken(unresolved, step)
	}
	return out, nil
}

// BindParams resolves every param of a step. An unresolved token is a hard
// error for that step.
func BindParams(s Step, b Bindings, step int) (map[string]any, error) {
	bound := make(map[string]any, len(s.Params))
	for name, value := range s.Params {
		v, err := Interpolate(value, b, step)
		if err != nil {
			return nil, err
		}
		bound[name] = v
	}
	return bound, nil
}

// Bind substitutes extracted variables into a chain ahead of execution.
// Tokens that reference an earlier step's output are left for the executor;
// any other unbound token is an UnresolvedTokenError.
func Bind(steps []Step, vars map[string]string) ([]Step, error) {
	outputs := make(map[string]bool)
	bound := make([]Step, len(steps))

	for i, s := range steps {
		params := make(map[string]any, len(s.Params))
		for name, value := range s.Params {
			str, ok := value.(string)
			if !ok {
				params[name] = value
				continue
			}

			var unresolved string
			replaced := tokenRegex.ReplaceAllStringFunc(str, func(tok string) string {
				ref := tokenRegex.FindStringSubmatch(tok)[1]
				if v, ok := vars[ref]; ok {
					return v
				}
				head, _, _ := strings.Cut(ref, ".")
				if !outputs[head] && unresolved == "" {
					unresolved = ref
				}
				return tok
			})
			if unresolved != "" {
				return nil, errors.NewUnresolvedToken(unresolved, i)
			}
			params[name] = replaced
		}

		bound[i] = Step{
			Capability: s.Capability,
			Params:     params,
			OutputName: s.OutputName,
			Condition:  s.Condition,
		}
		if s.OutputName != "" {
			outputs[s.OutputName] = true
		}
	}
	return bound, nil
}

// stringify renders a bound value for embedding inside a larger string.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool, int, int64, float64, float32:
		return fmt.Sprint(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
