package compiler

import (
	"fmt"
	"strings"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
)

// jsStmt is one lowered body statement.
type jsStmt struct {
	code  string
	caps  caps
	async bool
}

// lowerBody lowers every statement of a handler body. Compilation is
// all-or-nothing: a single statement outside the safe subset fails the
// whole body. Blocks are never lowered.
func lowerBody(body []ast.Node) ([]jsStmt, bool) {
	if len(body) == 0 {
		return nil, false
	}
	out := make([]jsStmt, 0, len(body))
	for _, stmt := range body {
		cmd, ok := stmt.(*ast.Command)
		if !ok {
			return nil, false
		}
		s, ok := lowerCommand(cmd)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func lowerCommand(cmd *ast.Command) (jsStmt, bool) {
	if !commands.Compilable(cmd.Name) {
		return jsStmt{}, false
	}
	switch cmd.Name {
	case commands.Toggle:
		return lowerClassOp(cmd, "toggle")
	case commands.Add:
		return lowerClassOp(cmd, "add")
	case commands.Remove:
		return lowerRemove(cmd)
	case commands.Show:
		return lowerDisplay(cmd, "")
	case commands.Hide:
		return lowerDisplay(cmd, "none")
	case commands.Focus:
		return lowerElementCall(cmd, "focus")
	case commands.Blur:
		return lowerElementCall(cmd, "blur")
	case commands.Log:
		return lowerLog(cmd)
	case commands.Set:
		return lowerSet(cmd)
	case commands.Put:
		return lowerPut(cmd)
	case commands.Send, commands.Trigger:
		return lowerSend(cmd)
	case commands.Wait:
		return lowerWait(cmd)
	}
	return jsStmt{}, false
}

// eachTarget renders body once per target element. A nil target means me;
// a selector target becomes a querySelectorAll loop, which is naturally
// null-safe. Anything else is outside the static subset.
func eachTarget(target ast.Expr, body func(recv string) string) (string, bool) {
	switch t := target.(type) {
	case nil:
		return body("me"), true
	case *ast.Identifier:
		switch t.Name {
		case "me":
			return body("me"), true
		case "body":
			return body("document.body"), true
		}
		return "", false
	case *ast.Selector:
		sel := escapeJS(t.Value)
		return "document.querySelectorAll('" + sel + "').forEach(function (el) { " + body("el") + " });", true
	}
	return "", false
}

// classArg extracts the class-name argument of a class-list command and
// validates it against the strict CSS identifier form. Invalid names
// refuse to compile; nothing is sanitized.
func classArg(arg ast.Expr) (string, bool) {
	var name string
	switch a := arg.(type) {
	case *ast.Selector:
		if a.Kind != ast.SelectorClass {
			return "", false
		}
		name = strings.TrimPrefix(a.Value, ".")
	case *ast.Literal:
		s, ok := a.Value.(string)
		if !ok {
			return "", false
		}
		name = s
	default:
		return "", false
	}
	if !classNameRe.MatchString(name) {
		return "", false
	}
	return name, true
}

func lowerClassOp(cmd *ast.Command, method string) (jsStmt, bool) {
	if len(cmd.Args) != 1 {
		return jsStmt{}, false
	}
	name, ok := classArg(cmd.Args[0])
	if !ok {
		return jsStmt{}, false
	}
	code, ok := eachTarget(cmd.Target, func(recv string) string {
		return recv + ".classList." + method + "('" + name + "');"
	})
	if !ok {
		return jsStmt{}, false
	}
	return jsStmt{code: code}, true
}

// lowerRemove handles the three remove forms: bare "remove" removes me,
// a class argument strips the class, any other selector removes the
// matched elements.
func lowerRemove(cmd *ast.Command) (jsStmt, bool) {
	if len(cmd.Args) == 0 {
		code, ok := eachTarget(cmd.Target, func(recv string) string {
			return recv + ".remove();"
		})
		if !ok {
			return jsStmt{}, false
		}
		return jsStmt{code: code}, true
	}
	if len(cmd.Args) != 1 {
		return jsStmt{}, false
	}
	if sel, ok := cmd.Args[0].(*ast.Selector); ok && sel.Kind != ast.SelectorClass {
		if cmd.Target != nil {
			return jsStmt{}, false
		}
		code, ok := eachTarget(sel, func(recv string) string {
			return recv + ".remove();"
		})
		if !ok {
			return jsStmt{}, false
		}
		return jsStmt{code: code}, true
	}
	return lowerClassOp(cmd, "remove")
}

func lowerDisplay(cmd *ast.Command, value string) (jsStmt, bool) {
	code, ok := eachTarget(cmd.Target, func(recv string) string {
		return recv + ".style.display = '" + value + "';"
	})
	if !ok {
		return jsStmt{}, false
	}
	return jsStmt{code: code}, true
}

func lowerElementCall(cmd *ast.Command, method string) (jsStmt, bool) {
	code, ok := eachTarget(cmd.Target, func(recv string) string {
		return recv + "." + method + "();"
	})
	if !ok {
		return jsStmt{}, false
	}
	return jsStmt{code: code}, true
}

func lowerLog(cmd *ast.Command) (jsStmt, bool) {
	parts := make([]string, 0, len(cmd.Args))
	var c caps
	for _, arg := range cmd.Args {
		e, ok := lowerExpr(arg)
		if !ok {
			return jsStmt{}, false
		}
		parts = append(parts, e.code)
		c = c.union(e.caps)
	}
	return jsStmt{code: "console.log(" + strings.Join(parts, ", ") + ");", caps: c}, true
}

func lowerSet(cmd *ast.Command) (jsStmt, bool) {
	if len(cmd.Args) != 1 || cmd.Target == nil {
		return jsStmt{}, false
	}
	lhs, ok := lowerLValue(cmd.Target)
	if !ok {
		return jsStmt{}, false
	}

	// Desugared increment/decrement keeps its spelled name; the lowering
	// treats an unset slot as zero so the first step starts the counter.
	if cmd.OriginalCommand == commands.Increment || cmd.OriginalCommand == commands.Decrement {
		bin, ok := cmd.Args[0].(*ast.Binary)
		if !ok {
			return jsStmt{}, false
		}
		amount, ok := lowerExpr(bin.Right)
		if !ok {
			return jsStmt{}, false
		}
		op := "+"
		if cmd.OriginalCommand == commands.Decrement {
			op = "-"
		}
		code := lhs.code + " = (" + lhs.code + " || 0) " + op + " " + amount.code + ";"
		return jsStmt{code: code, caps: lhs.caps.union(amount.caps)}, true
	}

	rhs, ok := lowerExpr(cmd.Args[0])
	if !ok {
		return jsStmt{}, false
	}
	return jsStmt{code: lhs.code + " = " + rhs.code + ";", caps: lhs.caps.union(rhs.caps)}, true
}

var insertPositions = map[string]string{
	"before":      "beforebegin",
	"after":       "afterend",
	"at start of": "afterbegin",
	"at end of":   "beforeend",
}

func lowerPut(cmd *ast.Command) (jsStmt, bool) {
	if len(cmd.Args) != 1 || cmd.Target == nil {
		return jsStmt{}, false
	}
	value, ok := lowerExpr(cmd.Args[0])
	if !ok {
		return jsStmt{}, false
	}

	// "put x into :v" and property destinations assign like set does.
	switch cmd.Target.(type) {
	case *ast.Variable, *ast.Possessive, *ast.StyleRef:
		if cmd.Modifier != "into" {
			return jsStmt{}, false
		}
		lhs, ok := lowerLValue(cmd.Target)
		if !ok {
			return jsStmt{}, false
		}
		return jsStmt{code: lhs.code + " = " + value.code + ";", caps: lhs.caps.union(value.caps)}, true
	}

	var render func(recv string) string
	if cmd.Modifier == "into" {
		render = func(recv string) string {
			return recv + ".innerHTML = " + value.code + ";"
		}
	} else {
		pos, ok := insertPositions[cmd.Modifier]
		if !ok {
			return jsStmt{}, false
		}
		render = func(recv string) string {
			return recv + ".insertAdjacentHTML('" + pos + "', " + value.code + ");"
		}
	}
	code, ok := eachTarget(cmd.Target, render)
	if !ok {
		return jsStmt{}, false
	}
	return jsStmt{code: code, caps: value.caps}, true
}

func lowerSend(cmd *ast.Command) (jsStmt, bool) {
	if len(cmd.Args) == 0 || len(cmd.Args) > 2 {
		return jsStmt{}, false
	}
	lit, ok := cmd.Args[0].(*ast.Literal)
	if !ok {
		return jsStmt{}, false
	}
	name, ok := lit.Value.(string)
	if !ok || !eventNameRe.MatchString(name) {
		return jsStmt{}, false
	}

	options := "{ bubbles: true }"
	var c caps
	if len(cmd.Args) == 2 {
		obj, ok := cmd.Args[1].(*ast.ObjectLit)
		if !ok {
			return jsStmt{}, false
		}
		fields := make([]string, 0, len(obj.Fields))
		for _, f := range obj.Fields {
			if !jsIdentRe.MatchString(f.Key) {
				return jsStmt{}, false
			}
			v, ok := lowerExpr(f.Value)
			if !ok {
				return jsStmt{}, false
			}
			fields = append(fields, f.Key+": "+v.code)
			c = c.union(v.caps)
		}
		options = "{ bubbles: true, detail: { " + strings.Join(fields, ", ") + " } }"
	}

	code, ok := eachTarget(cmd.Target, func(recv string) string {
		return recv + ".dispatchEvent(new CustomEvent('" + name + "', " + options + "));"
	})
	if !ok {
		return jsStmt{}, false
	}
	return jsStmt{code: code, caps: c}, true
}

// lowerWait compiles the duration form only; "wait for <event>" needs the
// runtime's listener machinery.
func lowerWait(cmd *ast.Command) (jsStmt, bool) {
	if cmd.Modifier == "for" || len(cmd.Args) != 1 {
		return jsStmt{}, false
	}
	lit, ok := cmd.Args[0].(*ast.Literal)
	if !ok {
		return jsStmt{}, false
	}
	ms, ok := lit.Millis()
	if !ok {
		return jsStmt{}, false
	}
	code := fmt.Sprintf("await new Promise(function (resolve) { setTimeout(resolve, %d); });", ms)
	return jsStmt{code: code, async: true}, true
}
