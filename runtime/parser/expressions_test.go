package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lokascript/hyperfixi/core/ast"
)

// parseExpr parses input as a single complete expression.
func parseExpr(t *testing.T, input string) ast.Expr {
	t.Helper()
	p := New(input)
	expr, err := p.parseExpression()
	if err != nil {
		t.Fatalf("parseExpression(%q) failed: %v", input, err)
	}
	if !p.atEnd() {
		t.Fatalf("parseExpression(%q) stopped at %s", input, p.current())
	}
	return expr
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"multiplication binds tighter than addition", "2 + 3 * 4", "(2 + (3 * 4))"},
		{"division groups left", "8 / 4 / 2", "((8 / 4) / 2)"},
		{"subtraction groups left", "10 - 4 - 3", "((10 - 4) - 3)"},
		{"modulo with addition", "10 % 3 + 1", "((10 % 3) + 1)"},
		{"exponent is right associative", "2 ** 2 ** 3", "(2 ** (2 ** 3))"},
		{"exponent binds tighter than multiplication", "2 * 3 ** 2", "(2 * (3 ** 2))"},
		{"arithmetic binds tighter than comparison", "1 + 2 < 3 + 4", "((1 + 2) < (3 + 4))"},
		{"comparison binds tighter than and", "1 < 2 and 3 < 4", "((1 < 2) and (3 < 4))"},
		{"and binds tighter than or", "true or false and false", "(true or (false and false))"},
		{"parens override precedence", "(2 + 3) * 4", "((2 + 3) * 4)"},
		{"symbolic logical operators", "true && false || true", "((true && false) || true)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := parseExpr(t, tt.input)
			if diff := cmp.Diff(tt.want, expr.String()); diff != "" {
				t.Errorf("expression shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEqualityAndMembership(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"x is null", "(x is null)"},
		{"x is not null", "(x is not null)"},
		{"it is empty", "(it is empty)"},
		{`:name matches "^a"`, `(:name matches "^a")`},
		{`"abcdef" contains "cd"`, `("abcdef" contains "cd")`},
		{":list includes 3", "(:list includes 3)"},
		{"#form has .error", "(#form has .error)"},
		{"1 == 1", "(1 == 1)"},
		{"x != y", "(x != y)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := parseExpr(t, tt.input)
			if diff := cmp.Diff(tt.want, expr.String()); diff != "" {
				t.Errorf("expression shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnary(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"not true", "(not true)"},
		{"not x and y", "((not x) and y)"},
		{"!x", "(! x)"},
		{"- x", "(- x)"},
		{"no .error", "(no .error)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := parseExpr(t, tt.input)
			if diff := cmp.Diff(tt.want, expr.String()); diff != "" {
				t.Errorf("expression shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// A minus fused with a following digit is a negative literal, not a unary
// expression.
func TestNegativeLiteralFusion(t *testing.T) {
	expr := parseExpr(t, "-5")
	lit, ok := expr.(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", expr)
	}
	if n, _ := lit.NumberValue(); n != -5 {
		t.Errorf("value = %v, want -5", n)
	}
}

func TestPostfix(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"possessive", "me's innerHTML", "me's innerHTML"},
		{"possessive chain", "event's target's value", "event's target's value"},
		{"dot member", "event.target", "event's target"},
		{"dot member chain", "event.target.value", "event's target's value"},
		{"my sugar", "my textContent", "me's textContent"},
		{"its sugar", "its length", "it's length"},
		{"style via possessive", "#hero's *opacity", "*opacity of #hero"},
		{"my style sugar", "my *opacity", "*opacity of me"},
		{"computed index", ":items[0]", ":items's [0]"},
		{"call", "foo(1, 2)", "foo(1, 2)"},
		{"call no args", "refresh()", "refresh()"},
		{"call then member", "getForm().elements", "getForm()'s elements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := parseExpr(t, tt.input)
			if diff := cmp.Diff(tt.want, expr.String()); diff != "" {
				t.Errorf("expression shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrimary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"positional with selector", "first .item", "first .item"},
		{"positional of target", "parent of me", "parent me"},
		{"positional in collection", "first in :rows", "first :rows"},
		{"bare positional", "last", "last"},
		{"closest", "closest .card", "closest .card"},
		{"style of element", "*opacity of #hero", "*opacity of #hero"},
		{"bare style", "*display", "*display"},
		{"array literal", "[1, 2, 3]", "[1, 2, 3]"},
		{"nested array", "[[1], []]", "[[1], []]"},
		{"object literal", `{name: "x", n: 2}`, `{name: "x", n: 2}`},
		{"object with fused variable", "{count: :n}", "{count: :n}"},
		{"article is transparent", "the #modal", "#modal"},
		{"angle selector", "<input.field/>", "input.field"},
		{"global variable", "$theme", "$theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := parseExpr(t, tt.input)
			if diff := cmp.Diff(tt.want, expr.String()); diff != "" {
				t.Errorf("expression shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectorKinds(t *testing.T) {
	tests := []struct {
		input string
		kind  ast.SelectorKind
	}{
		{"#menu", ast.SelectorID},
		{".active", ast.SelectorClass},
		{`[data-state="open"]`, ast.SelectorAttribute},
		{"<div/>", ast.SelectorTag},
		{"<my-widget/>", ast.SelectorTag},
		{"<input.field/>", ast.SelectorCompound},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := parseExpr(t, tt.input)
			sel, ok := expr.(*ast.Selector)
			if !ok {
				t.Fatalf("expected *ast.Selector, got %T", expr)
			}
			if sel.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", sel.Kind, tt.kind)
			}
		})
	}
}

// Byte-adjacent selector tokens merge into one compound selector; a space
// keeps them separate operands.
func TestCompoundSelectorMerge(t *testing.T) {
	expr := parseExpr(t, "#tabs.active")
	sel, ok := expr.(*ast.Selector)
	if !ok {
		t.Fatalf("expected *ast.Selector, got %T", expr)
	}
	if sel.Value != "#tabs.active" {
		t.Errorf("value = %q, want %q", sel.Value, "#tabs.active")
	}
	if sel.Kind != ast.SelectorCompound {
		t.Errorf("kind = %v, want compound", sel.Kind)
	}

	p := New(".item .nested")
	first, err := p.parseExpression()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if first.String() != ".item" {
		t.Errorf("spaced selectors merged: got %s", first)
	}
}

func TestNumberUnits(t *testing.T) {
	tests := []struct {
		input string
		value float64
		unit  string
	}{
		{"500ms", 500, "ms"},
		{"2s", 2, "s"},
		{"1.5s", 1.5, "s"},
		{"10px", 10, "px"},
		{"42", 42, ""},
		{".5", 0.5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := parseExpr(t, tt.input)
			lit, ok := expr.(*ast.Literal)
			if !ok {
				t.Fatalf("expected *ast.Literal, got %T", expr)
			}
			if n, _ := lit.NumberValue(); n != tt.value {
				t.Errorf("value = %v, want %v", n, tt.value)
			}
			if lit.Unit != tt.unit {
				t.Errorf("unit = %q, want %q", lit.Unit, tt.unit)
			}
		})
	}
}

func TestStringEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"plain"`, "plain"},
		{`"line1\nline2"`, "line1\nline2"},
		{`"tab\there"`, "tab\there"},
		{`"quote \" inside"`, `quote " inside`},
		{`"back\\slash"`, `back\slash`},
		{`'single'`, "single"},
		{`"it's fine"`, "it's fine"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := parseExpr(t, tt.input)
			lit, ok := expr.(*ast.Literal)
			if !ok {
				t.Fatalf("expected *ast.Literal, got %T", expr)
			}
			if lit.Value != tt.want {
				t.Errorf("value = %q, want %q", lit.Value, tt.want)
			}
		})
	}
}

// and/or stop before a command word so command chains keep their meaning.
func TestLogicalGuardStopsBeforeCommand(t *testing.T) {
	p := New("x and remove .b")
	expr, err := p.parseExpression()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if expr.String() != "x" {
		t.Errorf("expression = %s, want bare x", expr)
	}
	if !p.current().IsWord("and") {
		t.Errorf("parser should stop at 'and', stopped at %s", p.current())
	}

	// A non-command right operand still binds.
	expr = parseExpr(t, "x and y")
	if expr.String() != "(x and y)" {
		t.Errorf("expression = %s, want (x and y)", expr)
	}
}

func TestExpressionErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"dangling operator", "5 +"},
		{"unmatched paren", "(1 + 2"},
		{"leading binary operator", "* 3"},
		{"double operator", "1 + * 2"},
		{"unmatched bracket", "[1, 2"},
		{"unmatched brace", `{a: 1`},
		{"empty input", ""},
		{"bare structural keyword", "into"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.input)
			_, err := p.parseExpression()
			if err == nil {
				t.Fatalf("parseExpression(%q) should fail", tt.input)
			}
			if err.Pos.Line == 0 {
				t.Errorf("error carries no position: %v", err)
			}
		})
	}
}
