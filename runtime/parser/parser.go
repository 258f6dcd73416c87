// Package parser implements the full-tier HyperFixi grammar: feature
// dispatch (on/init/every/behavior), the command and block micro-grammars,
// and the operator-precedence expression parser.
//
// Error policy is deliberately dual. Structurally broken input (dangling
// operators, unmatched parens, unknown commands) fails with a ParseError
// carrying position information. A small enumerated set of recovery cases,
// chiefly a missing block "end" at end of input, is accepted with a warning
// instead; RecoveryPolicy makes the choice explicit at each block site.
package parser

import (
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
	"github.com/lokascript/hyperfixi/core/invariant"
	"github.com/lokascript/hyperfixi/runtime/lexer"
)

// RecoveryPolicy states what happens when a block body reaches end of input
// without its terminator.
type RecoveryPolicy int

const (
	// RecoverAtEOF accepts the missing terminator and records a warning.
	// Control blocks (if, repeat, for, while, fetch) use this.
	RecoverAtEOF RecoveryPolicy = iota
	// RequireTerminator fails the parse. Behavior definitions use this.
	RequireTerminator
	// EndOptional treats end of input as a normal terminator with no
	// warning. Handler and init bodies use this.
	EndOptional
)

func (r RecoveryPolicy) String() string {
	switch r {
	case RecoverAtEOF:
		return "recover-at-eof"
	case RequireTerminator:
		return "require-terminator"
	default:
		return "end-optional"
	}
}

// Result is the outcome of one parse call.
type Result struct {
	Success  bool
	Node     ast.Node
	Error    *ParseError
	Warnings []Warning
}

// Parser consumes a token stream left to right with arbitrary lookahead.
type Parser struct {
	input    string
	tokens   []lexer.Token
	pos      int
	warnings []Warning
	logger   *slog.Logger
}

// New creates a Parser over source.
func New(source string) *Parser {
	logLevel := slog.LevelInfo
	if os.Getenv("HYPERFIXI_DEBUG_PARSER") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	return &Parser{
		input:  source,
		tokens: lexer.Tokenize(source),
		logger: logger,
	}
}

// Parse tokenizes and parses source in one call.
func Parse(source string) Result {
	return New(source).Parse()
}

// Parse runs the grammar over the token stream.
//
// Top-level dispatch: "on" starts an event handler, "init"/"every"/
// "behavior" their features; anything else is a bare command sequence
// wrapped in a CommandSequence node. A script with several features also
// becomes a CommandSequence so downstream passes see a single root.
func (p *Parser) Parse() Result {
	invariant.Invariant(len(p.tokens) > 0, "token stream ends with EOF")

	if p.atEnd() {
		return Result{
			Success: false,
			Error: &ParseError{
				Kind:    ErrorEmpty,
				Message: "empty script: nothing to parse",
				Pos:     p.current().Pos,
				Input:   p.input,
			},
		}
	}

	node, err := p.parseScript()
	if err != nil {
		p.logger.Debug("parse failed", "error", err.Message, "line", err.Pos.Line)
		return Result{Success: false, Error: err, Warnings: p.warnings}
	}
	return Result{Success: true, Node: node, Warnings: p.warnings}
}

func (p *Parser) parseScript() (ast.Node, *ParseError) {
	start := p.current().Pos

	if !p.atFeatureStart() {
		body, err := p.parseBody(nil, EndOptional)
		if err != nil {
			return nil, err
		}
		return &ast.CommandSequence{Commands: body, Pos: start}, nil
	}

	var features []ast.Node
	for p.atFeatureStart() {
		before := p.pos
		feature, err := p.parseFeature()
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
		invariant.Advanced(before, p.pos, "feature parse")
	}
	if !p.atEnd() {
		return nil, p.unexpectedError("another feature or end of script")
	}

	if len(features) == 1 {
		return features[0], nil
	}
	return &ast.CommandSequence{Commands: features, Pos: start}, nil
}

func (p *Parser) atFeatureStart() bool {
	tok := p.current()
	return tok.IsWord("on") || tok.IsWord("init") || tok.IsWord("every") || tok.IsWord("behavior")
}

func (p *Parser) parseFeature() (ast.Node, *ParseError) {
	switch {
	case p.current().IsWord("on"):
		return p.parseEventHandler()
	case p.current().IsWord("init"):
		return p.parseInit()
	case p.current().IsWord("every"):
		return p.parseEvery()
	default:
		return p.parseBehavior()
	}
}

// parseEventHandler parses "on event[.modifiers] [[filter]] [from source]
// body". The body runs to "end" (consumed), the next feature, or end of
// input; handlers never require an explicit end.
func (p *Parser) parseEventHandler() (ast.Node, *ParseError) {
	start := p.current().Pos
	p.advance() // on

	event, err := p.parseEventName()
	if err != nil {
		return nil, err
	}

	mods, err := p.parseEventModifiers()
	if err != nil {
		return nil, err
	}

	var filter ast.Expr
	if tok := p.current(); tok.Kind == lexer.Selector && strings.HasPrefix(tok.Value, "[") {
		filter, err = p.parseBracketFilter(tok)
		if err != nil {
			return nil, err
		}
		p.advance()
	}

	var from ast.Expr
	if p.matchWord("from") {
		from, err = p.parseUnary()
		if err != nil {
			return nil, err
		}
	}

	body, err := p.parseBody(featureStops, EndOptional)
	if err != nil {
		return nil, err
	}
	p.matchWord("end")

	return &ast.EventHandler{
		Event:     event,
		Modifiers: mods,
		Filter:    filter,
		From:      from,
		Body:      body,
		Pos:       start,
	}, nil
}

// parseEventName reads the event name, stitching dashed (my-event) and
// namespaced (htmx:afterSwap) names back together using byte adjacency,
// since the lexer splits them around the minus operator and the :var rule.
func (p *Parser) parseEventName() (string, *ParseError) {
	tok := p.current()
	if tok.Kind != lexer.Identifier && tok.Kind != lexer.Keyword {
		return "", p.unexpectedError("an event name")
	}
	name := tok.Value
	end := tok.Pos.Offset + len(tok.Value)
	p.advance()

	for {
		tok := p.current()
		if tok.Pos.Offset != end {
			return name, nil
		}
		switch {
		case tok.Is(lexer.Operator, "-"):
			next := p.peek(1)
			if (next.Kind != lexer.Identifier && next.Kind != lexer.Keyword) ||
				next.Pos.Offset != tok.Pos.Offset+1 {
				return name, nil
			}
			name += "-" + next.Value
			end = next.Pos.Offset + len(next.Value)
			p.advance()
			p.advance()
		case tok.Kind == lexer.LocalVar:
			// ":suffix" token: the sigil byte plus the word.
			name += ":" + tok.Value
			end = tok.Pos.Offset + 1 + len(tok.Value)
			p.advance()
		default:
			return name, nil
		}
	}
}

func (p *Parser) parseEventModifiers() (ast.EventModifiers, *ParseError) {
	var mods ast.EventModifiers
	for p.current().Is(lexer.Symbol, ".") {
		word := p.peek(1)
		if word.Kind != lexer.Identifier {
			return mods, p.unexpectedError("an event modifier after '.'")
		}
		p.advance() // .
		p.advance() // word

		switch word.Value {
		case "once":
			mods.Once = true
		case "prevent":
			mods.Prevent = true
		case "stop":
			mods.Stop = true
		case "debounce", "throttle":
			ms, err := p.parseModifierMillis(word.Value)
			if err != nil {
				return mods, err
			}
			if word.Value == "debounce" {
				mods.Debounce = ms
			} else {
				mods.Throttle = ms
			}
		default:
			return mods, p.syntaxError("unknown event modifier %q", word.Value)
		}
	}
	return mods, nil
}

func (p *Parser) parseModifierMillis(name string) (int, *ParseError) {
	if err := p.expectSymbol("("); err != nil {
		return 0, err
	}
	tok := p.current()
	if tok.Kind != lexer.Number {
		return 0, p.unexpectedError("a duration for " + name)
	}
	value, unit := splitNumber(tok.Value)
	p.advance()
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

// parseBracketFilter re-tokenizes the captured [condition] span as an
// expression. The lexer scans filters as attribute selectors because they
// share their surface shape.
func (p *Parser) parseBracketFilter(tok lexer.Token) (ast.Expr, *ParseError) {
	inner := strings.TrimSuffix(strings.TrimPrefix(tok.Value, "["), "]")
	sub := New(inner)
	expr, err := sub.parseExpression()
	if err != nil {
		return nil, &ParseError{
			Kind:    ErrorSyntax,
			Message: "invalid event filter: " + err.Message,
			Pos:     tok.Pos,
			Input:   p.input,
		}
	}
	if !sub.atEnd() {
		return nil, &ParseError{
			Kind:    ErrorSyntax,
			Message: "invalid event filter: trailing input",
			Pos:     tok.Pos,
			Input:   p.input,
		}
	}
	return expr, nil
}

func (p *Parser) parseInit() (ast.Node, *ParseError) {
	start := p.current().Pos
	p.advance() // init
	body, err := p.parseBody(featureStops, EndOptional)
	if err != nil {
		return nil, err
	}
	p.matchWord("end")
	return &ast.Init{Body: body, Pos: start}, nil
}

func (p *Parser) parseEvery() (ast.Node, *ParseError) {
	start := p.current().Pos
	p.advance() // every
	interval, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(featureStops, EndOptional)
	if err != nil {
		return nil, err
	}
	p.matchWord("end")
	return &ast.Every{Interval: interval, Body: body, Pos: start}, nil
}

// parseBehavior parses "behavior Name(params) body end". Unlike control
// blocks, a behavior is a named definition and its end is mandatory.
func (p *Parser) parseBehavior() (ast.Node, *ParseError) {
	start := p.current().Pos
	p.advance() // behavior

	nameTok := p.current()
	if nameTok.Kind != lexer.Identifier {
		return nil, p.unexpectedError("a behavior name")
	}
	p.advance()

	var params []string
	if p.current().Is(lexer.Symbol, "(") {
		p.advance()
		for !p.current().Is(lexer.Symbol, ")") && !p.atEnd() {
			paramTok := p.current()
			if paramTok.Kind != lexer.Identifier && paramTok.Kind != lexer.Keyword {
				return nil, p.unexpectedError("a parameter name")
			}
			params = append(params, paramTok.Value)
			p.advance()
			if !p.matchSymbol(",") {
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}

	var body []ast.Node
	for !p.current().IsWord("end") {
		if p.atEnd() {
			return nil, p.missingError("'end' to close behavior "+nameTok.Value, start)
		}
		var node ast.Node
		var err *ParseError
		if p.atFeatureStart() {
			node, err = p.parseFeature()
		} else {
			node, err = p.parseStatement()
		}
		if err != nil {
			return nil, err
		}
		body = append(body, node)
		p.skipSeparators()
	}
	p.advance() // end

	return &ast.Behavior{Name: nameTok.Value, Params: params, Body: body, Pos: start}, nil
}

// featureStops are the words that close an open feature body by starting
// the next one.
var featureStops = []string{"on", "init", "every", "behavior", "end"}

// parseBody accumulates statements until a stop word, end of input, or a
// parse error. Stop words are left for the caller except via matchWord; the
// policy governs what a missing terminator at end of input means.
func (p *Parser) parseBody(stops []string, policy RecoveryPolicy) ([]ast.Node, *ParseError) {
	body := []ast.Node{}
	for {
		p.skipSeparators()

		if p.atEnd() {
			switch policy {
			case RequireTerminator:
				return nil, p.missingError("block terminator", p.current().Pos)
			case RecoverAtEOF:
				p.warnings = append(p.warnings, Warning{
					Message: "missing 'end' inferred at end of input",
					Pos:     p.current().Pos,
				})
			}
			return body, nil
		}
		if p.atWord(stops...) {
			return body, nil
		}

		before := p.pos
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
		invariant.Advanced(before, p.pos, "statement parse")
	}
}

// parseStatement parses one command or block.
func (p *Parser) parseStatement() (ast.Node, *ParseError) {
	tok := p.current()
	switch {
	case tok.IsWord("if") || tok.IsWord("unless"):
		return p.parseIf()
	case tok.IsWord("repeat"):
		return p.parseRepeat()
	case tok.IsWord("for"):
		return p.parseForEach()
	case tok.IsWord("while"):
		return p.parseWhile()
	case tok.IsWord("fetch"):
		return p.parseFetchBlock()
	default:
		return p.parseCommand()
	}
}

func (p *Parser) skipSeparators() {
	for p.matchWord("then") || p.matchWord("and") {
	}
}

// ---------------------------------------------------------------------------
// Token navigation
// ---------------------------------------------------------------------------

func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) atEnd() bool {
	return p.current().Kind == lexer.EOF
}

// atWord reports whether the current token is any of the given words.
func (p *Parser) atWord(words ...string) bool {
	tok := p.current()
	for _, w := range words {
		if tok.IsWord(w) {
			return true
		}
	}
	return false
}

// matchWord consumes the current token if it is the given word.
func (p *Parser) matchWord(word string) bool {
	if p.current().IsWord(word) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matchSymbol(sym string) bool {
	if p.current().Is(lexer.Symbol, sym) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matchOperator(op string) bool {
	if p.current().Is(lexer.Operator, op) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectSymbol(sym string) *ParseError {
	if !p.matchSymbol(sym) {
		return p.unexpectedError("'" + sym + "'")
	}
	return nil
}

func (p *Parser) expectWord(word string) *ParseError {
	if !p.matchWord(word) {
		return p.unexpectedError("'" + word + "'")
	}
	return nil
}

// commandSuggestions ranks command names by similarity for unknown-command
// errors.
func commandSuggestions(word string) []string {
	all := commands.All()
	names := make([]string, len(all))
	for i, n := range all {
		names[i] = string(n)
	}
	ranked := fuzzy.RankFindFold(word, names)
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
