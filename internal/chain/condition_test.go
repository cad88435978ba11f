package chain

import "testing"

func TestCondition_Eval(t *testing.T) {
	b := Bindings{
		Variables: map[string]string{"name": "Sam", "count": "3", "empty": ""},
		Outputs: map[string]any{
			"tasks":   []any{},
			"summary": map[string]any{"open": 2, "owner": "Sam", "done": false},
		},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"name", true},
		{"empty", false},
		{"missing", false},
		{"!missing", true},
		{"tasks", false},
		{"{{summary.open}}", true},
		{"summary.done", false},
		{"name == 'Sam'", true},
		{`name == "Alex"`, false},
		{"name != 'Alex'", true},
		{"count == 3", true},
		{"summary.open == 2.0", true},
		{"summary.owner == name", true},
		{"summary.done == false", true},
		{"missing == null", true},
		{"name && empty", false},
		{"name || empty", true},
		{"empty || missing || count", true},
		{"name == 'Alex' || count == 3 && summary.open == 2", true},
		{"(name == 'Alex' || count == 3) && tasks", false},
		{"!(name && empty)", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCondition(tt.expr)
			if err != nil {
				t.Fatalf("ParseCondition(%q) failed: %v", tt.expr, err)
			}
			if got := c.Eval(b); got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParseCondition_Errors(t *testing.T) {
	bad := []string{
		"a ==",
		"(a",
		"a b",
		"'open",
		"{{a",
		"a = b",
		"a & b",
		"&& a",
	}
	for _, expr := range bad {
		if _, err := ParseCondition(expr); err == nil {
			t.Errorf("ParseCondition(%q) should fail", expr)
		}
	}
}

func TestCondition_NilAlwaysTrue(t *testing.T) {
	var c *Condition
	if !c.Eval(Bindings{}) {
		t.Error("nil condition should hold")
	}
}
