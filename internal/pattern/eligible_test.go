package pattern

import (
	"testing"

	"pgregory.net/rapid"
)

func TestEligible(t *testing.T) {
	deleted := int64(1)
	tests := []struct {
		name string
		p    CommandPattern
		v    Visibility
		want bool
	}{
		{"universal pattern, private caller", CommandPattern{Scope: "public", Enabled: true}, Visibility{Scope: "user-1", Universal: "public"}, true},
		{"own scope", CommandPattern{Scope: "user-1", Enabled: true}, Visibility{Scope: "user-1", Universal: "public"}, true},
		{"other scope", CommandPattern{Scope: "user-2", Enabled: true}, Visibility{Scope: "user-1", Universal: "public"}, false},
		{"private pattern, universal caller", CommandPattern{Scope: "user-1", Enabled: true}, Visibility{Scope: "public", Universal: "public"}, false},
		{"disabled", CommandPattern{Scope: "public"}, Visibility{Scope: "public", Universal: "public"}, false},
		{"deleted", CommandPattern{Scope: "public", Enabled: true, DeletedAt: &deleted}, Visibility{Scope: "public", Universal: "public"}, false},
		{"tags intersect", CommandPattern{Scope: "public", Enabled: true, ContextTags: []string{"work", "travel"}}, Visibility{Scope: "public", Tags: []string{"Travel"}, Universal: "public"}, true},
		{"tags disjoint", CommandPattern{Scope: "public", Enabled: true, ContextTags: []string{"work"}}, Visibility{Scope: "public", Tags: []string{"home"}, Universal: "public"}, false},
		{"tags required but none supplied", CommandPattern{Scope: "public", Enabled: true, ContextTags: []string{"work"}}, Visibility{Scope: "public", Universal: "public"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(&tt.p, tt.v); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEligible_ScopeIsolation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		own := rapid.StringMatching(`team-[0-9]{1,3}`).Draw(rt, "own")
		other := rapid.StringMatching(`team-[0-9]{1,3}`).Filter(func(s string) bool { return s != own }).Draw(rt, "other")

		p := &CommandPattern{Scope: own, Enabled: true}
		if Eligible(p, Visibility{Scope: other, Universal: "public"}) {
			rt.Fatalf("pattern in %q visible to %q", own, other)
		}
		if !Eligible(p, Visibility{Scope: own, Universal: "public"}) {
			rt.Fatalf("pattern in %q hidden from its own scope", own)
		}
		if Eligible(p, Visibility{Scope: "public", Universal: "public"}) {
			rt.Fatalf("pattern in %q visible to the universal listing", own)
		}
	})
}

func TestFilter_PreservesOrder(t *testing.T) {
	ps := []*CommandPattern{
		{ID: "a", Scope: "public", Enabled: true},
		{ID: "b", Scope: "user-2", Enabled: true},
		{ID: "c", Scope: "user-1", Enabled: true},
	}
	got := Filter(ps, Visibility{Scope: "user-1", Universal: "public"})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Filter returned %v", got)
	}
}
