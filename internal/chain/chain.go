// Package chain defines the action-chain contract a matched pattern expands
// into: ordered capability steps whose params carry interpolation tokens bound
// from extracted variables and the named outputs of earlier steps.
package chain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/strackan/cmdrouter/internal/errors"
)

// Step is one capability invocation in a pattern's action chain.
type Step struct {
	Capability string         `json:"capability" yaml:"capability"`
	Params     map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	OutputName string         `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	Condition  string         `json:"condition,omitempty" yaml:"condition,omitempty"`
}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a chain against the placeholder names of its template.
// Every step needs a capability, output names must be unique identifiers that
// do not shadow a variable, conditions must parse, and every param token must
// reference a variable or the output of an earlier step.
func Validate(steps []Step, variables []string) error {
	vars := make(map[string]bool, len(variables))
	for _, v := range variables {
		vars[v] = true
	}
	outputs := make(map[string]bool)

	for i, s := range steps {
		if strings.TrimSpace(s.Capability) == "" {
			return errors.NewInvalidRequest(fmt.Sprintf("step %d: capability is required", i))
		}

		for name, value := range s.Params {
			str, ok := value.(string)
			if !ok {
				continue
			}
			for _, ref := range Tokens(str) {
				head, _, _ := strings.Cut(ref, ".")
				if vars[ref] || outputs[head] {
					continue
				}
				return errors.NewInvalidRequest(fmt.Sprintf(
					"step %d: param %q references {{%s}}, which is neither a template variable nor an earlier output", i, name, ref))
			}
		}

		if s.Condition != "" {
			if _, err := ParseCondition(s.Condition); err != nil {
				return errors.NewInvalidRequest(fmt.Sprintf("step %d: %v", i, err))
			}
		}

		if s.OutputName != "" {
			if !identRegex.MatchString(s.OutputName) {
				return errors.NewInvalidRequest(fmt.Sprintf("step %d: output_name %q must be an identifier", i, s.OutputName))
			}
			if outputs[s.OutputName] {
				return errors.NewInvalidRequest(fmt.Sprintf("step %d: output_name %q is not unique in the chain", i, s.OutputName))
			}
			if vars[s.OutputName] {
				return errors.NewInvalidRequest(fmt.Sprintf("step %d: output_name %q shadows a template variable", i, s.OutputName))
			}
			outputs[s.OutputName] = true
		}
	}
	return nil
}

// Capabilities returns the distinct capability names of a chain in first-use order.
func Capabilities(steps []Step) []string {
	seen := make(map[string]bool, len(steps))
	caps := make([]string, 0, len(steps))
	for _, s := range steps {
		c := strings.TrimSpace(s.Capability)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		caps = append(caps, c)
	}
	return caps
}
