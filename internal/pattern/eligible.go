package pattern

// Visibility describes who is asking: the caller's scope, its context tags
// and the scope that every caller can see.
type Visibility struct {
	Scope     string
	Tags      []string
	Universal string
}

// Eligible reports whether p may be resolved by the caller described by v.
// The pattern must be enabled and not deleted, its scope must equal the
// caller's or be universal, and a non-empty tag set must intersect the
// caller's tags.
func Eligible(p *CommandPattern, v Visibility) bool {
	if p == nil || !p.Enabled || p.DeletedAt != nil {
		return false
	}
	if p.Scope != v.Scope && p.Scope != v.Universal {
		return false
	}
	if len(p.ContextTags) == 0 {
		return true
	}
	for _, want := range p.ContextTags {
		for _, have := range v.Tags {
			if Normalize(have) == Normalize(want) {
				return true
			}
		}
	}
	return false
}

// Filter returns the patterns of ps eligible for v, preserving order.
func Filter(ps []*CommandPattern, v Visibility) []*CommandPattern {
	out := make([]*CommandPattern, 0, len(ps))
	for _, p := range ps {
		if Eligible(p, v) {
			out = append(out, p)
		}
	}
	return out
}
