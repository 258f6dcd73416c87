// Package standard implements the Standard-tier grammar: event handlers
// and plain command sequences over a sixteen-command vocabulary, with a
// reduced expression surface. It owns its scanner and parser instead of
// borrowing the full tier's, which keeps the tier independently shippable;
// both tiers produce the same AST vocabulary, so the analyzer and compiler
// downstream cannot tell them apart.
package standard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
	"github.com/lokascript/hyperfixi/runtime/parser"
)

// supported is the Standard-tier command set: the compiler's known-safe
// subset plus get. Blocks, behaviors and the remaining full-tier commands
// are deliberately absent.
var supported = map[commands.Name]bool{
	commands.Toggle:    true,
	commands.Add:       true,
	commands.Remove:    true,
	commands.Show:      true,
	commands.Hide:      true,
	commands.Focus:     true,
	commands.Blur:      true,
	commands.Log:       true,
	commands.Set:       true,
	commands.Get:       true,
	commands.Increment: true,
	commands.Decrement: true,
	commands.Put:       true,
	commands.Send:      true,
	commands.Trigger:   true,
	commands.Wait:      true,
}

// SupportsCommand reports whether the tier's grammar accepts the command.
func SupportsCommand(name string) bool {
	return supported[commands.Name(name)]
}

// SupportedCommands lists the tier's vocabulary in sorted order.
func SupportedCommands() []string {
	out := make([]string, 0, len(supported))
	for name := range supported {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

type sparser struct {
	input string
	toks  []token
	pos   int
}

// Parse runs the Standard-tier grammar over source. The result shape is
// shared with the full tier so callers can swap parsers freely.
func Parse(source string) parser.Result {
	toks, serr := scan(source)
	if serr != nil {
		return parser.Result{Success: false, Error: serr}
	}

	p := &sparser{input: source, toks: toks}
	if p.atEnd() {
		return parser.Result{
			Success: false,
			Error: &parser.ParseError{
				Kind:    parser.ErrorEmpty,
				Message: "empty script: nothing to parse",
				Pos:     p.current().pos,
				Input:   source,
			},
		}
	}

	node, perr := p.parseScript()
	if perr != nil {
		return parser.Result{Success: false, Error: perr}
	}
	return parser.Result{Success: true, Node: node}
}

// ---------------------------------------------------------------------------
// Token navigation
// ---------------------------------------------------------------------------

func (p *sparser) current() token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *sparser) peek(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *sparser) advance() token {
	t := p.current()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *sparser) atEnd() bool {
	return p.current().kind == tokEOF
}

func (p *sparser) atWord(words ...string) bool {
	tok := p.current()
	if tok.kind != tokWord {
		return false
	}
	for _, w := range words {
		if tok.text == w {
			return true
		}
	}
	return false
}

func (p *sparser) matchWord(s string) bool {
	if p.current().isWord(s) {
		p.advance()
		return true
	}
	return false
}

func (p *sparser) matchSymbol(s string) bool {
	if p.current().isSymbol(s) {
		p.advance()
		return true
	}
	return false
}

func (p *sparser) matchOperator(s string) bool {
	if t := p.current(); t.kind == tokOperator && t.text == s {
		p.advance()
		return true
	}
	return false
}

func (p *sparser) expectWord(s string) *parser.ParseError {
	if p.matchWord(s) {
		return nil
	}
	return p.missingError(fmt.Sprintf("%q", s))
}

func (p *sparser) expectSymbol(s string) *parser.ParseError {
	if p.matchSymbol(s) {
		return nil
	}
	return p.missingError(fmt.Sprintf("%q", s))
}

func (p *sparser) skipSeparators() {
	for p.matchWord("then") || p.matchWord("and") {
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func (p *sparser) syntaxError(format string, args ...interface{}) *parser.ParseError {
	return &parser.ParseError{
		Kind:    parser.ErrorSyntax,
		Message: fmt.Sprintf(format, args...),
		Pos:     p.current().pos,
		Input:   p.input,
	}
}

func (p *sparser) unexpectedError(expected string) *parser.ParseError {
	got := p.current()
	desc := "end of input"
	if got.kind != tokEOF {
		desc = fmt.Sprintf("%q", got.text)
	}
	return &parser.ParseError{
		Kind:    parser.ErrorUnexpected,
		Message: fmt.Sprintf("expected %s, got %s", expected, desc),
		Pos:     got.pos,
		Input:   p.input,
	}
}

func (p *sparser) missingError(expected string) *parser.ParseError {
	return &parser.ParseError{
		Kind:    parser.ErrorMissing,
		Message: fmt.Sprintf("expected %s", expected),
		Pos:     p.current().pos,
		Input:   p.input,
	}
}

// tierSuggestions ranks the tier's own vocabulary by similarity for
// unknown-command errors.
func tierSuggestions(word string) []string {
	ranked := fuzzy.RankFindFold(word, SupportedCommands())
	if len(ranked) == 0 {
		return nil
	}
	sort.Sort(ranked)
	max := 3
	if len(ranked) < max {
		max = len(ranked)
	}
	out := make([]string, 0, max)
	for _, r := range ranked[:max] {
		out = append(out, r.Target)
	}
	return out
}

// ---------------------------------------------------------------------------
// Grammar
// ---------------------------------------------------------------------------

func (p *sparser) parseScript() (ast.Node, *parser.ParseError) {
	start := p.current().pos

	if !p.current().isWord("on") {
		body, err := p.parseCommands()
		if err != nil {
			return nil, err
		}
		if !p.atEnd() {
			return nil, p.unexpectedError("a command or end of script")
		}
		return &ast.CommandSequence{Commands: body, Pos: start}, nil
	}

	var handlers []ast.Node
	for p.current().isWord("on") {
		h, err := p.parseHandler()
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	if !p.atEnd() {
		return nil, p.unexpectedError("another handler or end of script")
	}

	if len(handlers) == 1 {
		return handlers[0], nil
	}
	return &ast.CommandSequence{Commands: handlers, Pos: start}, nil
}

// parseHandler parses "on event[.modifiers] body". The body runs to "end"
// (consumed), the next "on", or end of input.
func (p *sparser) parseHandler() (ast.Node, *parser.ParseError) {
	start := p.current().pos
	p.advance() // on

	event, err := p.parseEventName()
	if err != nil {
		return nil, err
	}
	mods, err := p.parseModifiers()
	if err != nil {
		return nil, err
	}
	body, err := p.parseCommands("on", "end")
	if err != nil {
		return nil, err
	}
	p.matchWord("end")

	return &ast.EventHandler{Event: event, Modifiers: mods, Body: body, Pos: start}, nil
}

// parseEventName reads the event word plus any byte-adjacent ":suffix"
// pieces, so namespaced names like htmx:afterSwap stay whole. Dashed names
// are already single word tokens.
func (p *sparser) parseEventName() (string, *parser.ParseError) {
	tok := p.current()
	if tok.kind != tokWord {
		return "", p.unexpectedError("an event name")
	}
	p.advance()
	name := tok.text
	end := tok.pos.Offset + tok.width()
	for p.current().kind == tokLocalVar && p.current().pos.Offset == end {
		part := p.advance()
		name += ":" + part.text
		end = part.pos.Offset + part.width()
	}
	return name, nil
}

var modifierWords = map[string]bool{
	"once": true, "prevent": true, "stop": true,
	"debounce": true, "throttle": true,
}

// parseModifiers consumes the ".once"-style suffixes after an event name.
// The scanner reads each as a class selector token; here they are modifier
// words.
func (p *sparser) parseModifiers() (ast.EventModifiers, *parser.ParseError) {
	var mods ast.EventModifiers
	for {
		tok := p.current()
		if tok.kind != tokSelector || !strings.HasPrefix(tok.text, ".") {
			return mods, nil
		}
		word := strings.TrimPrefix(tok.text, ".")
		if !modifierWords[word] {
			return mods, p.syntaxError("unknown event modifier %q", word)
		}
		p.advance()

		switch word {
		case "once":
			mods.Once = true
		case "prevent":
			mods.Prevent = true
		case "stop":
			mods.Stop = true
		case "debounce", "throttle":
			ms, err := p.parseMillisArg(word)
			if err != nil {
				return mods, err
			}
			if word == "debounce" {
				mods.Debounce = ms
			} else {
				mods.Throttle = ms
			}
		}
	}
}

func (p *sparser) parseMillisArg(name string) (int, *parser.ParseError) {
	if err := p.expectSymbol("("); err != nil {
		return 0, err
	}
	tok := p.current()
	if tok.kind != tokNumber {
		return 0, p.unexpectedError("a duration for " + name)
	}
	p.advance()
	value, unit := splitNumber(tok.text)
	if err := p.expectSymbol(")"); err != nil {
		return 0, err
	}
	ms := int(value)
	if unit == "s" {
		ms = int(value * 1000)
	}
	if ms <= 0 {
		return 0, p.syntaxError("%s duration must be positive", name)
	}
	return ms, nil
}

// parseCommands accumulates commands until a stop word, end of input, or a
// parse error. "then" and "and" between commands are separators; stop words
// are left for the caller.
func (p *sparser) parseCommands(stops ...string) ([]ast.Node, *parser.ParseError) {
	body := []ast.Node{}
	for {
		p.skipSeparators()
		if p.atEnd() || p.atWord(stops...) {
			return body, nil
		}
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		body = append(body, cmd)
	}
}

func (p *sparser) parseCommand() (ast.Node, *parser.ParseError) {
	tok := p.current()
	if tok.kind != tokWord {
		return nil, p.unexpectedError("a command")
	}
	name := commands.Name(tok.text)
	if !supported[name] {
		if commands.IsCommand(tok.text) {
			return nil, &parser.ParseError{
				Kind:    parser.ErrorUnknownCommand,
				Message: fmt.Sprintf("command %q is not available in the standard tier", tok.text),
				Pos:     tok.pos,
				Input:   p.input,
			}
		}
		return nil, &parser.ParseError{
			Kind:        parser.ErrorUnknownCommand,
			Message:     fmt.Sprintf("unknown command %q", tok.text),
			Pos:         tok.pos,
			Input:       p.input,
			Suggestions: tierSuggestions(tok.text),
		}
	}
	p.advance()

	cmd := &ast.Command{Name: name, Pos: tok.pos}
	var err *parser.ParseError
	switch name {
	case commands.Toggle:
		err = p.parseToggle(cmd)
	case commands.Add:
		err = p.parseAddRemove(cmd, "to")
	case commands.Remove:
		err = p.parseAddRemove(cmd, "from")
	case commands.Show, commands.Hide, commands.Focus, commands.Blur:
		err = p.parseOptionalTarget(cmd)
	case commands.Log:
		err = p.parseLog(cmd)
	case commands.Set:
		err = p.parseSet(cmd)
	case commands.Get:
		err = p.parseSingleExpr(cmd)
	case commands.Increment:
		err = p.parseStep(cmd, "+", commands.Increment)
	case commands.Decrement:
		err = p.parseStep(cmd, "-", commands.Decrement)
	case commands.Put:
		err = p.parsePut(cmd)
	case commands.Send, commands.Trigger:
		err = p.parseSend(cmd)
	case commands.Wait:
		err = p.parseWait(cmd)
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// parseToggle parses "toggle <class> [on <target>]". The "on" clause is
// taken only when the following token cannot be an event name, so a handler
// starting right after a toggle is not swallowed as its target.
func (p *sparser) parseToggle(cmd *ast.Command) *parser.ParseError {
	arg, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, arg)

	if p.current().isWord("on") && p.startsTargetAfterOn() {
		p.advance()
		target, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Target = target
	}
	return nil
}

func (p *sparser) startsTargetAfterOn() bool {
	next := p.peek(1)
	switch next.kind {
	case tokSelector, tokLocalVar, tokGlobalVar:
		return true
	case tokSymbol:
		return next.text == "("
	case tokWord:
		switch next.text {
		case "me", "it", "you", "my", "its", "body", "document", "window":
			return true
		}
	}
	return false
}

// parseAddRemove parses "add <class> [to <target>]" and "remove <class>
// [from <target>]". A bare "remove" removes me.
func (p *sparser) parseAddRemove(cmd *ast.Command, joiner string) *parser.ParseError {
	if p.startsExpression() {
		arg, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Args = append(cmd.Args, arg)
	}
	if p.matchWord(joiner) {
		target, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Target = target
	}
	return nil
}

func (p *sparser) parseOptionalTarget(cmd *ast.Command) *parser.ParseError {
	if !p.startsExpression() {
		return nil
	}
	target, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Target = target
	return nil
}

func (p *sparser) parseLog(cmd *ast.Command) *parser.ParseError {
	if !p.startsExpression() {
		return nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Args = append(cmd.Args, arg)
		if !p.matchSymbol(",") {
			return nil
		}
	}
}

// parseSet parses "set <target> to <value>".
func (p *sparser) parseSet(cmd *ast.Command) *parser.ParseError {
	target, err := p.parseUnary()
	if err != nil {
		return err
	}
	cmd.Target = target

	if err := p.expectWord("to"); err != nil {
		return err
	}
	value, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, value)
	return nil
}

func (p *sparser) parseSingleExpr(cmd *ast.Command) *parser.ParseError {
	arg, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, arg)
	return nil
}

// parseStep desugars increment/decrement into a set command whose value is
// target +/- amount. OriginalCommand keeps the spelled verb for consumers
// that need it.
func (p *sparser) parseStep(cmd *ast.Command, op string, original commands.Name) *parser.ParseError {
	target, err := p.parseUnary()
	if err != nil {
		return err
	}

	var amount ast.Expr = &ast.Literal{Value: float64(1), Pos: cmd.Pos}
	if p.matchWord("by") {
		amount, err = p.parseExpression()
		if err != nil {
			return err
		}
	}

	cmd.Name = commands.Set
	cmd.OriginalCommand = original
	cmd.Target = target
	cmd.Args = append(cmd.Args, &ast.Binary{Op: op, Left: target, Right: amount, Pos: cmd.Pos})
	return nil
}

// parsePut parses "put <expr> into|before|after|at start of|at end of
// <target>". The placement keyword is recorded as the command modifier.
func (p *sparser) parsePut(cmd *ast.Command) *parser.ParseError {
	value, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, value)

	switch {
	case p.matchWord("into"):
		cmd.Modifier = "into"
	case p.matchWord("before"):
		cmd.Modifier = "before"
	case p.matchWord("after"):
		cmd.Modifier = "after"
	case p.matchWord("at"):
		switch {
		case p.matchWord("start"):
			cmd.Modifier = "at start of"
		case p.matchWord("end"):
			cmd.Modifier = "at end of"
		default:
			return p.unexpectedError("'start' or 'end'")
		}
		if err := p.expectWord("of"); err != nil {
			return err
		}
	default:
		return p.unexpectedError("'into', 'before', 'after', or 'at'")
	}

	target, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Target = target
	return nil
}

// parseSend parses "send <event>[(key: value, ...)] [to <target>]" and its
// trigger alias.
func (p *sparser) parseSend(cmd *ast.Command) *parser.ParseError {
	namePos := p.current().pos
	name, err := p.parseEventName()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, &ast.Literal{Value: name, Pos: namePos})

	if p.current().isSymbol("(") {
		detail, err := p.parseSendDetail()
		if err != nil {
			return err
		}
		cmd.Args = append(cmd.Args, detail)
	}

	if p.matchWord("to") {
		target, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Target = target
	}
	return nil
}

func (p *sparser) parseSendDetail() (ast.Expr, *parser.ParseError) {
	start := p.current().pos
	p.advance() // (
	var fields []ast.ObjectField
	for !p.current().isSymbol(")") && !p.atEnd() {
		keyTok := p.current()
		if keyTok.kind != tokWord {
			return nil, p.unexpectedError("an event detail key")
		}
		p.advance()

		var value ast.Expr
		if p.current().kind == tokLocalVar {
			varTok := p.current()
			p.advance()
			value = &ast.Variable{Name: varTok.text, Scope: ast.ScopeLocal, Pos: varTok.pos}
		} else {
			if err := p.expectSymbol(":"); err != nil {
				return nil, err
			}
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			value = expr
		}
		fields = append(fields, ast.ObjectField{Key: keyTok.text, Value: value})
		if !p.matchSymbol(",") {
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &ast.ObjectLit{Fields: fields, Pos: start}, nil
}

// parseWait parses "wait <duration>" or "wait for <event> [from <source>]".
func (p *sparser) parseWait(cmd *ast.Command) *parser.ParseError {
	if p.matchWord("for") {
		cmd.Modifier = "for"
		namePos := p.current().pos
		name, err := p.parseEventName()
		if err != nil {
			return err
		}
		cmd.Args = append(cmd.Args, &ast.Literal{Value: name, Pos: namePos})

		if p.matchWord("from") {
			target, err := p.parseUnary()
			if err != nil {
				return err
			}
			cmd.Target = target
		}
		return nil
	}

	if !p.startsExpression() {
		return p.unexpectedError("a duration or 'for'")
	}
	dur, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, dur)
	return nil
}
