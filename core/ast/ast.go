// Package ast defines the HyperFixi syntax tree. Node families form closed
// unions (expression, command, block) so the analyzer and compiler can switch
// exhaustively; the parser is the only producer and the tree is never mutated
// after it returns.
package ast

import (
	"fmt"
	"strings"

	"github.com/lokascript/hyperfixi/core/commands"
)

// Position represents source location information.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // byte offset in source, 0-based
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node represents any node in the AST.
type Node interface {
	String() string
	Position() Position
	node()
}

// Expr represents any expression node.
type Expr interface {
	Node
	exprNode()
}

// Scope distinguishes local (:name) from element-scoped global ($name)
// variables.
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "local"
}

// SelectorKind classifies a selector literal by its leading sigil.
type SelectorKind int

const (
	SelectorID SelectorKind = iota
	SelectorClass
	SelectorTag
	SelectorAttribute
	SelectorCompound
)

func (k SelectorKind) String() string {
	switch k {
	case SelectorID:
		return "id"
	case SelectorClass:
		return "class"
	case SelectorTag:
		return "tag"
	case SelectorAttribute:
		return "attribute"
	default:
		return "compound"
	}
}

// PositionalKind names the DOM navigation keywords.
type PositionalKind int

const (
	PositionalFirst PositionalKind = iota
	PositionalLast
	PositionalNext
	PositionalPrevious
	PositionalClosest
	PositionalParent
)

var positionalNames = [...]string{"first", "last", "next", "previous", "closest", "parent"}

func (k PositionalKind) String() string {
	if int(k) < len(positionalNames) {
		return positionalNames[k]
	}
	return "positional"
}

// PositionalKindFromWord maps a surface keyword to its PositionalKind.
func PositionalKindFromWord(word string) (PositionalKind, bool) {
	for i, name := range positionalNames {
		if name == word {
			return PositionalKind(i), true
		}
	}
	return 0, false
}

// contextRefs are the identifiers the runtime binds at dispatch time.
var contextRefs = map[string]bool{
	"me":     true,
	"it":     true,
	"you":    true,
	"event":  true,
	"result": true,
}

// IsContextRef reports whether name is a runtime context binding
// (me, it, you, event, result).
func IsContextRef(name string) bool {
	return contextRefs[name]
}

// Literal represents a number, string, boolean, or null constant.
// Value holds float64, string, bool, or nil. Unit keeps a fused time or
// pixel suffix ("ms", "s", "px") when the source attached one.
type Literal struct {
	Value any
	Unit  string
	Pos   Position
}

func (l *Literal) String() string {
	if l.Value == nil {
		return "null"
	}
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v%s", l.Value, l.Unit)
}

func (l *Literal) Position() Position {
	return l.Pos
}

// NumberValue returns the numeric value and whether the literal is numeric.
func (l *Literal) NumberValue() (float64, bool) {
	n, ok := l.Value.(float64)
	return n, ok
}

// Millis converts a time-suffixed numeric literal to milliseconds.
// A bare number is taken as milliseconds already.
func (l *Literal) Millis() (int, bool) {
	n, ok := l.Value.(float64)
	if !ok {
		return 0, false
	}
	switch l.Unit {
	case "s":
		return int(n * 1000), true
	case "", "ms":
		return int(n), true
	default:
		return 0, false
	}
}

// Identifier represents a bare name: a context reference (me, it, you,
// event, result) or any word the grammar passed through unresolved.
type Identifier struct {
	Name string
	Pos  Position
}

func (i *Identifier) String() string {
	return i.Name
}

func (i *Identifier) Position() Position {
	return i.Pos
}

// IsContextRef reports whether the identifier names a runtime context binding.
func (i *Identifier) IsContextRef() bool {
	return contextRefs[i.Name]
}

// Variable represents a scoped scripting variable: :local or $global.
type Variable struct {
	Name  string
	Scope Scope
	Pos   Position
}

func (v *Variable) String() string {
	if v.Scope == ScopeGlobal {
		return "$" + v.Name
	}
	return ":" + v.Name
}

func (v *Variable) Position() Position {
	return v.Pos
}

// Selector represents a CSS selector literal with its sigil preserved:
// "#id", ".class", a <tag.cls/> body, or an [attr=value] span.
type Selector struct {
	Value string
	Kind  SelectorKind
	Pos   Position
}

func (s *Selector) String() string {
	return s.Value
}

func (s *Selector) Position() Position {
	return s.Pos
}

// Possessive represents property access: "obj's prop", "my prop",
// "its prop". Computed is non-nil for bracketed access where the property
// is itself an expression; Property is empty then.
type Possessive struct {
	Object   Expr
	Property string
	Computed Expr
	Pos      Position
}

func (p *Possessive) String() string {
	if p.Computed != nil {
		return fmt.Sprintf("%s's [%s]", p.Object, p.Computed)
	}
	return fmt.Sprintf("%s's %s", p.Object, p.Property)
}

func (p *Possessive) Position() Position {
	return p.Pos
}

// Binary represents a two-operand expression. Op keeps the surface spelling:
// "+", "**", "is", "is not", "matches", "contains", "and", "or".
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
	Pos   Position
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

func (b *Binary) Position() Position {
	return b.Pos
}

// Unary represents a prefix operator expression: "not", "!", "-".
type Unary struct {
	Op      string
	Operand Expr
	Pos     Position
}

func (u *Unary) String() string {
	return fmt.Sprintf("(%s %s)", u.Op, u.Operand)
}

func (u *Unary) Position() Position {
	return u.Pos
}

// Call represents callee(args...).
type Call struct {
	Callee Expr
	Args   []Expr
	Pos    Position
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Callee, strings.Join(args, ", "))
}

func (c *Call) Position() Position {
	return c.Pos
}

// Positional represents DOM navigation: "first .item", "closest <form/>",
// "next <li/> from me". Target is nil for the bare relative form.
type Positional struct {
	Keyword PositionalKind
	Target  Expr
	Pos     Position
}

func (p *Positional) String() string {
	if p.Target == nil {
		return p.Keyword.String()
	}
	return fmt.Sprintf("%s %s", p.Keyword, p.Target)
}

func (p *Positional) Position() Position {
	return p.Pos
}

// ArrayLit represents [e1, e2, ...].
type ArrayLit struct {
	Items []Expr
	Pos   Position
}

func (a *ArrayLit) String() string {
	items := make([]string, len(a.Items))
	for i, it := range a.Items {
		items[i] = it.String()
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func (a *ArrayLit) Position() Position {
	return a.Pos
}

// ObjectField is one key/value pair of an object literal.
type ObjectField struct {
	Key   string
	Value Expr
}

// ObjectLit represents {k1: v1, k2: v2}.
type ObjectLit struct {
	Fields []ObjectField
	Pos    Position
}

func (o *ObjectLit) String() string {
	fields := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		fields[i] = fmt.Sprintf("%s: %s", f.Key, f.Value)
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

func (o *ObjectLit) Position() Position {
	return o.Pos
}

// StyleRef represents "*property" or "*property of target". A nil Of means
// the implicit me.
type StyleRef struct {
	Property string
	Of       Expr
	Pos      Position
}

func (s *StyleRef) String() string {
	if s.Of == nil {
		return "*" + s.Property
	}
	return fmt.Sprintf("*%s of %s", s.Property, s.Of)
}

func (s *StyleRef) Position() Position {
	return s.Pos
}

// Command represents one imperative step. Modifier disambiguates command
// variants (put's into/before/after, wait's for). OriginalCommand survives
// desugaring: increment and decrement parse into set commands that remember
// their surface verb.
type Command struct {
	Name            commands.Name
	Args            []Expr
	Target          Expr
	Modifier        string
	OriginalCommand commands.Name
	Pos             Position
}

func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(string(c.Name))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	if c.Modifier != "" {
		b.WriteByte(' ')
		b.WriteString(c.Modifier)
	}
	if c.Target != nil {
		b.WriteByte(' ')
		b.WriteString(c.Target.String())
	}
	return b.String()
}

func (c *Command) Position() Position {
	return c.Pos
}

// CommandSequence is an ordered run of commands and blocks chained by
// then/and. It is also the wrapper for bare scripts with no feature prefix.
type CommandSequence struct {
	Commands []Node
	Pos      Position
}

func (s *CommandSequence) String() string {
	parts := make([]string, len(s.Commands))
	for i, c := range s.Commands {
		parts[i] = c.String()
	}
	return strings.Join(parts, " then ")
}

func (s *CommandSequence) Position() Position {
	return s.Pos
}

// ElseIf is one "else if" arm of an If block.
type ElseIf struct {
	Condition Expr
	Body      []Node
}

// If represents if/unless ... [else if]* [else] end. Unless is true when the
// block was spelled "unless"; the condition is stored unnegated.
type If struct {
	Condition Expr
	Unless    bool
	Then      []Node
	ElseIfs   []ElseIf
	Else      []Node
	Pos       Position
}

func (n *If) String() string {
	kw := "if"
	if n.Unless {
		kw = "unless"
	}
	return fmt.Sprintf("%s %s [%d stmts]", kw, n.Condition, len(n.Then))
}

func (n *If) Position() Position {
	return n.Pos
}

// Repeat represents the repeat loop family: "repeat N times",
// "repeat while cond", "repeat until cond", "repeat forever". Exactly one of
// Count/While/Until/Forever is set.
type Repeat struct {
	Count   Expr
	While   Expr
	Until   Expr
	Forever bool
	Body    []Node
	Pos     Position
}

func (n *Repeat) String() string {
	switch {
	case n.Count != nil:
		return fmt.Sprintf("repeat %s times [%d stmts]", n.Count, len(n.Body))
	case n.While != nil:
		return fmt.Sprintf("repeat while %s [%d stmts]", n.While, len(n.Body))
	case n.Until != nil:
		return fmt.Sprintf("repeat until %s [%d stmts]", n.Until, len(n.Body))
	default:
		return fmt.Sprintf("repeat forever [%d stmts]", len(n.Body))
	}
}

func (n *Repeat) Position() Position {
	return n.Pos
}

// ForEach represents "for each item [, index] in collection ... end".
// Index is empty when no index binding was written.
type ForEach struct {
	Item       string
	Index      string
	Collection Expr
	Body       []Node
	Pos        Position
}

func (n *ForEach) String() string {
	return fmt.Sprintf("for each %s in %s [%d stmts]", n.Item, n.Collection, len(n.Body))
}

func (n *ForEach) Position() Position {
	return n.Pos
}

// While represents "while cond ... end".
type While struct {
	Condition Expr
	Body      []Node
	Pos       Position
}

func (n *While) String() string {
	return fmt.Sprintf("while %s [%d stmts]", n.Condition, len(n.Body))
}

func (n *While) Position() Position {
	return n.Pos
}

// FetchBlock represents "fetch url [as json|text|html] then body".
// An empty ResponseAs defaults to text.
type FetchBlock struct {
	URL        Expr
	ResponseAs string
	Body       []Node
	Pos        Position
}

func (n *FetchBlock) String() string {
	if n.ResponseAs != "" {
		return fmt.Sprintf("fetch %s as %s [%d stmts]", n.URL, n.ResponseAs, len(n.Body))
	}
	return fmt.Sprintf("fetch %s [%d stmts]", n.URL, len(n.Body))
}

func (n *FetchBlock) Position() Position {
	return n.Pos
}

// EventModifiers carries an event handler's .once.prevent.stop.debounce(ms)
// .throttle(ms) chain. Debounce and Throttle are milliseconds, zero when
// absent.
type EventModifiers struct {
	Once     bool
	Prevent  bool
	Stop     bool
	Debounce int
	Throttle int
}

// Empty reports whether no modifier was written.
func (m EventModifiers) Empty() bool {
	return !m.Once && !m.Prevent && !m.Stop && m.Debounce == 0 && m.Throttle == 0
}

func (m EventModifiers) String() string {
	var b strings.Builder
	if m.Once {
		b.WriteString(".once")
	}
	if m.Prevent {
		b.WriteString(".prevent")
	}
	if m.Stop {
		b.WriteString(".stop")
	}
	if m.Debounce > 0 {
		fmt.Fprintf(&b, ".debounce(%dms)", m.Debounce)
	}
	if m.Throttle > 0 {
		fmt.Fprintf(&b, ".throttle(%dms)", m.Throttle)
	}
	return b.String()
}

// EventHandler represents "on event[.modifiers] [[filter]] [from source]
// body". Handlers are the unit the analyzer and compiler operate on.
type EventHandler struct {
	Event     string
	Modifiers EventModifiers
	Filter    Expr
	From      Expr
	Body      []Node
	Pos       Position
}

func (n *EventHandler) String() string {
	return fmt.Sprintf("on %s%s [%d stmts]", n.Event, n.Modifiers, len(n.Body))
}

func (n *EventHandler) Position() Position {
	return n.Pos
}

// Init represents "init body", run once at element initialization.
type Init struct {
	Body []Node
	Pos  Position
}

func (n *Init) String() string {
	return fmt.Sprintf("init [%d stmts]", len(n.Body))
}

func (n *Init) Position() Position {
	return n.Pos
}

// Every represents "every interval body", a repeating timer.
type Every struct {
	Interval Expr
	Body     []Node
	Pos      Position
}

func (n *Every) String() string {
	return fmt.Sprintf("every %s [%d stmts]", n.Interval, len(n.Body))
}

func (n *Every) Position() Position {
	return n.Pos
}

// Behavior represents a named reusable bundle of handlers:
// "behavior Name(params) body end".
type Behavior struct {
	Name   string
	Params []string
	Body   []Node
	Pos    Position
}

func (n *Behavior) String() string {
	if len(n.Params) > 0 {
		return fmt.Sprintf("behavior %s(%s) [%d stmts]", n.Name, strings.Join(n.Params, ", "), len(n.Body))
	}
	return fmt.Sprintf("behavior %s [%d stmts]", n.Name, len(n.Body))
}

func (n *Behavior) Position() Position {
	return n.Pos
}

func (*Literal) node()         {}
func (*Identifier) node()      {}
func (*Variable) node()        {}
func (*Selector) node()        {}
func (*Possessive) node()      {}
func (*Binary) node()          {}
func (*Unary) node()           {}
func (*Call) node()            {}
func (*Positional) node()      {}
func (*ArrayLit) node()        {}
func (*ObjectLit) node()       {}
func (*StyleRef) node()        {}
func (*Command) node()         {}
func (*CommandSequence) node() {}
func (*If) node()              {}
func (*Repeat) node()          {}
func (*ForEach) node()         {}
func (*While) node()           {}
func (*FetchBlock) node()      {}
func (*EventHandler) node()    {}
func (*Init) node()            {}
func (*Every) node()           {}
func (*Behavior) node()        {}

func (*Literal) exprNode()    {}
func (*Identifier) exprNode() {}
func (*Variable) exprNode()   {}
func (*Selector) exprNode()   {}
func (*Possessive) exprNode() {}
func (*Binary) exprNode()     {}
func (*Unary) exprNode()      {}
func (*Call) exprNode()       {}
func (*Positional) exprNode() {}
func (*ArrayLit) exprNode()   {}
func (*ObjectLit) exprNode()  {}
func (*StyleRef) exprNode()   {}
