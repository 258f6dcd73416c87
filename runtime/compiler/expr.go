package compiler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lokascript/hyperfixi/core/ast"
)

// caps records what the generated code needs from its surroundings: the
// runtime context object, a locals scope, or the shared globals object.
type caps struct {
	NeedsEvaluator bool
	NeedsLocals    bool
	NeedsGlobals   bool
}

func (c caps) union(other caps) caps {
	return caps{
		NeedsEvaluator: c.NeedsEvaluator || other.NeedsEvaluator,
		NeedsLocals:    c.NeedsLocals || other.NeedsLocals,
		NeedsGlobals:   c.NeedsGlobals || other.NeedsGlobals,
	}
}

// jsExpr is a lowered expression fragment.
type jsExpr struct {
	code string
	caps caps
}

var (
	// classNameRe is the strict CSS identifier accepted for class
	// interpolation. Anything else refuses to compile; there is no
	// sanitization path.
	classNameRe = regexp.MustCompile(`^-?[a-zA-Z_][a-zA-Z0-9_-]*$`)

	// jsIdentRe gates names that become JS property or variable accesses.
	jsIdentRe = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*$`)

	// eventNameRe covers DOM event types including dashed and namespaced
	// custom events.
	eventNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_:-]*$`)

	cssPropRe = regexp.MustCompile(`^-?[a-zA-Z][a-zA-Z-]*$`)
)

// jsStringEscaper rewrites a string for embedding between single quotes in
// generated source. Backslash, both quote kinds, newlines, CR and NUL are
// escaped; the replacer works in one pass so escapes are never doubled.
var jsStringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\x00", `\x00`,
)

func escapeJS(s string) string {
	return jsStringEscaper.Replace(s)
}

func jsNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// jsBinaryOp maps a source operator to its JS spelling. Word operators
// beyond is/is not/and/or (matches, contains, includes, has) have no
// static lowering and refuse.
func jsBinaryOp(op string) (string, bool) {
	switch op {
	case "+", "-", "*", "/", "**", "<", "<=", ">", ">=":
		return op, true
	case "mod":
		return "%", true
	case "and":
		return "&&", true
	case "or":
		return "||", true
	case "==", "is":
		return "===", true
	case "!=", "is not":
		return "!==", true
	}
	return "", false
}

// styleProp validates a CSS property name and converts it to the camelCase
// form used for .style access ("background-color" -> "backgroundColor").
func styleProp(name string) (string, bool) {
	if !cssPropRe.MatchString(name) {
		return "", false
	}
	parts := strings.Split(name, "-")
	var b strings.Builder
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// lowerExpr lowers an expression to a JS fragment. false means the
// expression is outside the static subset and the handler must fall back.
func lowerExpr(expr ast.Expr) (jsExpr, bool) {
	switch e := expr.(type) {
	case *ast.Literal:
		return lowerLiteral(e)

	case *ast.Identifier:
		switch e.Name {
		case "me":
			return jsExpr{code: "me"}, true
		case "event":
			return jsExpr{code: "event"}, true
		case "it", "you", "result":
			// Context chain values exist only when the runtime is present.
			return jsExpr{code: "ctx." + e.Name, caps: caps{NeedsEvaluator: true}}, true
		case "document":
			return jsExpr{code: "document"}, true
		case "window":
			return jsExpr{code: "window"}, true
		case "body":
			return jsExpr{code: "document.body"}, true
		}
		if !jsIdentRe.MatchString(e.Name) {
			return jsExpr{}, false
		}
		return jsExpr{code: "locals." + e.Name, caps: caps{NeedsLocals: true}}, true

	case *ast.Variable:
		if !jsIdentRe.MatchString(e.Name) {
			return jsExpr{}, false
		}
		if e.Scope == ast.ScopeGlobal {
			return jsExpr{code: "globals." + e.Name, caps: caps{NeedsGlobals: true}}, true
		}
		return jsExpr{code: "locals." + e.Name, caps: caps{NeedsLocals: true}}, true

	case *ast.Selector:
		return jsExpr{code: "document.querySelector('" + escapeJS(e.Value) + "')"}, true

	case *ast.Possessive:
		if e.Computed != nil || !jsIdentRe.MatchString(e.Property) {
			return jsExpr{}, false
		}
		obj, ok := lowerExpr(e.Object)
		if !ok {
			return jsExpr{}, false
		}
		return jsExpr{code: obj.code + "." + e.Property, caps: obj.caps}, true

	case *ast.StyleRef:
		prop, ok := styleProp(e.Property)
		if !ok {
			return jsExpr{}, false
		}
		base := jsExpr{code: "me"}
		if e.Of != nil {
			base, ok = lowerExpr(e.Of)
			if !ok {
				return jsExpr{}, false
			}
		}
		return jsExpr{code: base.code + ".style." + prop, caps: base.caps}, true

	case *ast.Binary:
		op, ok := jsBinaryOp(e.Op)
		if !ok {
			return jsExpr{}, false
		}
		left, ok := lowerExpr(e.Left)
		if !ok {
			return jsExpr{}, false
		}
		right, ok := lowerExpr(e.Right)
		if !ok {
			return jsExpr{}, false
		}
		return jsExpr{
			code: "(" + left.code + " " + op + " " + right.code + ")",
			caps: left.caps.union(right.caps),
		}, true

	case *ast.Unary:
		operand, ok := lowerExpr(e.Operand)
		if !ok {
			return jsExpr{}, false
		}
		switch e.Op {
		case "not", "!":
			return jsExpr{code: "(!" + operand.code + ")", caps: operand.caps}, true
		case "-":
			return jsExpr{code: "(-" + operand.code + ")", caps: operand.caps}, true
		case "no":
			return jsExpr{code: "(" + operand.code + " == null)", caps: operand.caps}, true
		}
		return jsExpr{}, false
	}

	// Calls, array and object literals, computed access: runtime only.
	return jsExpr{}, false
}

func lowerLiteral(lit *ast.Literal) (jsExpr, bool) {
	switch v := lit.Value.(type) {
	case float64:
		switch lit.Unit {
		case "s":
			return jsExpr{code: jsNumber(v * 1000)}, true
		case "px":
			// Pixel literals read as CSS values.
			return jsExpr{code: "'" + jsNumber(v) + "px'"}, true
		default:
			return jsExpr{code: jsNumber(v)}, true
		}
	case string:
		return jsExpr{code: "'" + escapeJS(v) + "'"}, true
	case bool:
		if v {
			return jsExpr{code: "true"}, true
		}
		return jsExpr{code: "false"}, true
	case nil:
		return jsExpr{code: "null"}, true
	}
	return jsExpr{}, false
}

// lowerLValue lowers an assignment destination. Only variables, bare
// names, property accesses and style references are writable.
func lowerLValue(target ast.Expr) (jsExpr, bool) {
	switch t := target.(type) {
	case *ast.Variable, *ast.Possessive, *ast.StyleRef:
		return lowerExpr(target)
	case *ast.Identifier:
		if ast.IsContextRef(t.Name) {
			return jsExpr{}, false
		}
		switch t.Name {
		case "document", "window", "body":
			return jsExpr{}, false
		}
		return lowerExpr(target)
	}
	return jsExpr{}, false
}
