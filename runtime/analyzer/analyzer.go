// Package analyzer derives static metadata from a parsed script: which
// commands run, which variables and selectors they touch, what control flow
// they contain, and which runtime helpers the script will need. The pass is
// pure and total: it never mutates the tree and never fails. Foreign or
// malformed nodes are skipped, because analysis informs decisions and must
// not be the reason a build breaks.
package analyzer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
)

// Result is the accumulated classification of one tree. Set-valued fields
// are sorted slices so results compare stably.
type Result struct {
	CommandsUsed []string
	Variables    Variables
	Expressions  Expressions
	ControlFlow  ControlFlow
	Dependencies Dependencies
}

// Variables partitions every variable reference by scope.
type Variables struct {
	Locals      []string
	Globals     []string
	ContextVars []string
}

// Expressions classifies the expression trees hanging off commands and
// blocks. Pure trees contain only literals and operators; dynamic trees
// contain calls or selectors with dynamic pseudo-classes. Trees that are
// neither (say, a bare variable read) appear in neither list.
type Expressions struct {
	Selectors []SelectorUsage
	Pure      []ast.Expr
	Dynamic   []ast.Expr
}

// SelectorUsage aggregates every appearance of one selector string.
// CanCache reports that the resolved element set is stable enough to memoize:
// a plain id/class/tag selector with no dynamic pseudo-class.
type SelectorUsage struct {
	Selector string
	IsID     bool
	CanCache bool
	Usages   []Usage
}

// Usage is one appearance of a selector: the construct it appeared in and
// where.
type Usage struct {
	Context string
	Pos     ast.Position
}

// ControlFlow carries the flags the compiler and tooling branch on.
type ControlFlow struct {
	HasAsync        bool
	HasLoops        bool
	HasConditionals bool
	CanThrow        bool
	MaxNestingDepth int
}

// Dependencies lists what the script needs from its environment.
type Dependencies struct {
	DOMQueries     []string
	RuntimeHelpers []string
	EventTypes     []string
	Behaviors      []string
}

// behaviorExclusions are globals that look like behavior references but
// never are.
var behaviorExclusions = map[string]bool{
	"document": true,
	"window":   true,
	"body":     true,
}

// Analyze classifies node in a single depth-first traversal. A nil node
// yields an empty Result.
func Analyze(node ast.Node) Result {
	a := newAnalysis()
	a.visit(node)
	return a.finish()
}

// HasAsyncOperations reports whether the tree contains any suspending
// command or fetch block.
func HasAsyncOperations(node ast.Node) bool {
	return Analyze(node).ControlFlow.HasAsync
}

// CommandsUsed returns the sorted command names the tree uses.
func CommandsUsed(node ast.Node) []string {
	return Analyze(node).CommandsUsed
}

// RequiredHelpers returns the sorted runtime helper names the tree needs.
func RequiredHelpers(node ast.Node) []string {
	return Analyze(node).Dependencies.RuntimeHelpers
}

type analysis struct {
	commands  map[string]struct{}
	locals    map[string]struct{}
	globals   map[string]struct{}
	ctxVars   map[string]struct{}
	helpers   map[string]struct{}
	events    map[string]struct{}
	behaviors map[string]struct{}

	selectors map[string]*SelectorUsage
	selOrder  []string
	domSeen   map[string]struct{}
	dom       []string

	pure    []ast.Expr
	dynamic []ast.Expr

	flow    ControlFlow
	depth   int
	context string
}

func newAnalysis() *analysis {
	return &analysis{
		commands:  map[string]struct{}{},
		locals:    map[string]struct{}{},
		globals:   map[string]struct{}{},
		ctxVars:   map[string]struct{}{},
		helpers:   map[string]struct{}{},
		events:    map[string]struct{}{},
		behaviors: map[string]struct{}{},
		selectors: map[string]*SelectorUsage{},
		domSeen:   map[string]struct{}{},
	}
}

func (a *analysis) finish() Result {
	selectors := make([]SelectorUsage, 0, len(a.selOrder))
	for _, s := range a.selOrder {
		selectors = append(selectors, *a.selectors[s])
	}
	return Result{
		CommandsUsed: sortedKeys(a.commands),
		Variables: Variables{
			Locals:      sortedKeys(a.locals),
			Globals:     sortedKeys(a.globals),
			ContextVars: sortedKeys(a.ctxVars),
		},
		Expressions: Expressions{
			Selectors: selectors,
			Pure:      a.pure,
			Dynamic:   a.dynamic,
		},
		ControlFlow: a.flow,
		Dependencies: Dependencies{
			DOMQueries:     a.dom,
			RuntimeHelpers: sortedKeys(a.helpers),
			EventTypes:     sortedKeys(a.events),
			Behaviors:      sortedKeys(a.behaviors),
		},
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// visit dispatches one node. Unknown or nil nodes are skipped, never fatal.
func (a *analysis) visit(node ast.Node) {
	if node == nil {
		return
	}

	switch n := node.(type) {
	case *ast.CommandSequence:
		for _, c := range n.Commands {
			a.visit(c)
		}

	case *ast.EventHandler:
		a.events[n.Event] = struct{}{}
		if n.Modifiers.Debounce > 0 {
			a.helpers["debounce"] = struct{}{}
		}
		if n.Modifiers.Throttle > 0 {
			a.helpers["throttle"] = struct{}{}
		}
		a.inContext("filter", func() {
			a.classify(n.Filter)
			a.visitExpr(n.Filter)
		})
		a.visitExpr(n.From)
		a.visitBody(n.Body)

	case *ast.Init:
		a.visitBody(n.Body)

	case *ast.Every:
		a.visitExpr(n.Interval)
		a.visitBody(n.Body)

	case *ast.Behavior:
		a.behaviors[n.Name] = struct{}{}
		a.visitBody(n.Body)

	case *ast.Command:
		a.visitCommand(n)

	case *ast.If:
		a.flow.HasConditionals = true
		a.nested(func() {
			a.inContext("condition", func() {
				a.classify(n.Condition)
				a.visitExpr(n.Condition)
			})
			a.visitBody(n.Then)
			for _, arm := range n.ElseIfs {
				a.inContext("condition", func() {
					a.classify(arm.Condition)
					a.visitExpr(arm.Condition)
				})
				a.visitBody(arm.Body)
			}
			a.visitBody(n.Else)
		})

	case *ast.Repeat:
		a.flow.HasLoops = true
		a.nested(func() {
			a.visitExpr(n.Count)
			a.visitExpr(n.While)
			a.visitExpr(n.Until)
			a.visitBody(n.Body)
		})

	case *ast.ForEach:
		a.flow.HasLoops = true
		a.nested(func() {
			a.visitExpr(n.Collection)
			a.visitBody(n.Body)
		})

	case *ast.While:
		a.flow.HasLoops = true
		a.nested(func() {
			a.inContext("condition", func() {
				a.classify(n.Condition)
				a.visitExpr(n.Condition)
			})
			a.visitBody(n.Body)
		})

	case *ast.FetchBlock:
		a.flow.HasAsync = true
		a.helpers["fetchJSON"] = struct{}{}
		a.helpers["fetchText"] = struct{}{}
		a.inContext("fetch", func() {
			a.visitExpr(n.URL)
		})
		a.visitBody(n.Body)

	default:
		// Expression at statement position, or a foreign node: look at the
		// expression side only.
		if expr, ok := node.(ast.Expr); ok {
			a.visitExpr(expr)
		}
	}
}

func (a *analysis) visitBody(body []ast.Node) {
	for _, n := range body {
		a.visit(n)
	}
}

func (a *analysis) visitCommand(cmd *ast.Command) {
	a.commands[string(cmd.Name)] = struct{}{}
	if cmd.OriginalCommand != "" {
		a.commands[string(cmd.OriginalCommand)] = struct{}{}
	}
	for _, h := range commands.Helpers(cmd.Name) {
		a.helpers[h] = struct{}{}
	}
	if commands.IsAsync(cmd.Name) {
		a.flow.HasAsync = true
	}
	if commands.Throws(cmd.Name) {
		a.flow.CanThrow = true
	}

	// send/trigger and wait-for carry an event name as their first argument.
	if cmd.Name == commands.Send || cmd.Name == commands.Trigger ||
		(cmd.Name == commands.Wait && cmd.Modifier == "for") {
		if len(cmd.Args) > 0 {
			if lit, ok := cmd.Args[0].(*ast.Literal); ok {
				if event, ok := lit.Value.(string); ok {
					a.events[event] = struct{}{}
				}
			}
		}
	}

	a.inContext(string(cmd.Name), func() {
		for _, arg := range cmd.Args {
			a.classify(arg)
			a.visitExpr(arg)
		}
		a.classify(cmd.Target)
		a.visitExpr(cmd.Target)
	})
}

// visitExpr records variable, selector, context and behavior references in
// an expression subtree.
func (a *analysis) visitExpr(expr ast.Expr) {
	if expr == nil {
		return
	}

	switch e := expr.(type) {
	case *ast.Literal:
		// nothing to record

	case *ast.Identifier:
		if e.IsContextRef() {
			a.ctxVars[e.Name] = struct{}{}
		} else if isBehaviorRef(e.Name) {
			a.behaviors[e.Name] = struct{}{}
		}

	case *ast.Variable:
		if e.Scope == ast.ScopeGlobal {
			a.globals[e.Name] = struct{}{}
		} else {
			a.locals[e.Name] = struct{}{}
		}

	case *ast.Selector:
		a.recordSelector(e)

	case *ast.Possessive:
		a.visitExpr(e.Object)
		a.visitExpr(e.Computed)

	case *ast.Binary:
		a.visitExpr(e.Left)
		a.visitExpr(e.Right)

	case *ast.Unary:
		a.visitExpr(e.Operand)

	case *ast.Call:
		a.visitExpr(e.Callee)
		for _, arg := range e.Args {
			a.visitExpr(arg)
		}

	case *ast.Positional:
		a.visitExpr(e.Target)

	case *ast.ArrayLit:
		for _, item := range e.Items {
			a.visitExpr(item)
		}

	case *ast.ObjectLit:
		for _, f := range e.Fields {
			a.visitExpr(f.Value)
		}

	case *ast.StyleRef:
		a.visitExpr(e.Of)
	}
}

func (a *analysis) recordSelector(sel *ast.Selector) {
	usage, seen := a.selectors[sel.Value]
	if !seen {
		usage = &SelectorUsage{
			Selector: sel.Value,
			IsID:     sel.Kind == ast.SelectorID,
			CanCache: cacheableSelector(sel),
		}
		a.selectors[sel.Value] = usage
		a.selOrder = append(a.selOrder, sel.Value)
	}
	usage.Usages = append(usage.Usages, Usage{Context: a.context, Pos: sel.Pos})

	if _, ok := a.domSeen[sel.Value]; !ok {
		a.domSeen[sel.Value] = struct{}{}
		a.dom = append(a.dom, sel.Value)
	}
}

// cacheableSelector: plain id/class/tag with no pseudo-class. Compound and
// attribute selectors, and anything carrying a ':', resolve to element sets
// that can change out from under a cache.
func cacheableSelector(sel *ast.Selector) bool {
	switch sel.Kind {
	case ast.SelectorID, ast.SelectorClass, ast.SelectorTag:
		return !strings.Contains(sel.Value, ":")
	default:
		return false
	}
}

// classify buckets an expression root as pure or dynamic. Trees that read
// state without calling anything land in neither bucket.
func (a *analysis) classify(expr ast.Expr) {
	if expr == nil {
		return
	}
	switch {
	case isDynamicExpr(expr):
		a.dynamic = append(a.dynamic, expr)
	case isPureExpr(expr):
		a.pure = append(a.pure, expr)
	}
}

// isDynamicExpr reports whether the tree contains a call or a selector with
// a dynamic pseudo-class.
func isDynamicExpr(expr ast.Expr) bool {
	dynamic := false
	ast.Walk(expr, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.Call:
			dynamic = true
		case *ast.Selector:
			if strings.Contains(s.Value, ":") {
				dynamic = true
			}
		}
		return !dynamic
	})
	return dynamic
}

// isPureExpr reports whether the tree is built from literals and operators
// alone.
func isPureExpr(expr ast.Expr) bool {
	pure := true
	ast.Walk(expr, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.Literal, *ast.Binary, *ast.Unary, *ast.ArrayLit, *ast.ObjectLit:
		default:
			pure = false
		}
		return pure
	})
	return pure
}

// isBehaviorRef: PascalCase words name behaviors; DOM globals are excluded
// regardless of capitalization.
func isBehaviorRef(name string) bool {
	if behaviorExclusions[strings.ToLower(name)] {
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return false
	}
	for _, r := range name {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

func (a *analysis) nested(fn func()) {
	a.depth++
	if a.depth > a.flow.MaxNestingDepth {
		a.flow.MaxNestingDepth = a.depth
	}
	fn()
	a.depth--
}

func (a *analysis) inContext(context string, fn func()) {
	prev := a.context
	a.context = context
	fn()
	a.context = prev
}
