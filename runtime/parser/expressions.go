package parser

import (
	"strconv"
	"strings"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
	"github.com/lokascript/hyperfixi/runtime/lexer"
)

// parseExpression parses with the full precedence ladder, lowest binding
// first: or, and, equality/membership, comparison, additive,
// multiplicative, exponentiation (right-associative), unary, postfix,
// primary.
func (p *Parser) parseExpression() (ast.Expr, *ParseError) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, *ParseError) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.current().IsWord("or") && !p.nextStartsCommand():
			op = "or"
		case p.current().Is(lexer.Operator, "||"):
			op = "||"
		default:
			return left, nil
		}
		pos := p.current().Pos
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: pos}
	}
}

func (p *Parser) parseAnd() (ast.Expr, *ParseError) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.current().IsWord("and") && !p.nextStartsCommand():
			op = "and"
		case p.current().Is(lexer.Operator, "&&"):
			op = "&&"
		default:
			return left, nil
		}
		pos := p.current().Pos
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: pos}
	}
}

// nextStartsCommand reports whether the token after the current one begins
// a command. "and"/"or" never consume a command starter as a right operand,
// so "add .a and remove .b" stays a command chain.
func (p *Parser) nextStartsCommand() bool {
	next := p.peek(1)
	return next.Kind == lexer.Identifier && commands.IsCommand(next.Value)
}

func (p *Parser) parseEquality() (ast.Expr, *ParseError) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.current().Pos
		var op string
		switch {
		case p.matchOperator("=="):
			op = "=="
		case p.matchOperator("!="):
			op = "!="
		case p.current().IsWord("is"):
			p.advance()
			if p.matchWord("not") {
				op = "is not"
			} else {
				op = "is"
			}
		case p.current().IsWord("matches"), p.current().IsWord("contains"),
			p.current().IsWord("includes"), p.current().IsWord("has"):
			op = p.current().Value
			p.advance()
		default:
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: pos}
	}
}

func (p *Parser) parseComparison() (ast.Expr, *ParseError) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.Kind != lexer.Operator {
			return left, nil
		}
		switch tok.Value {
		case "<", "<=", ">", ">=":
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: tok.Value, Left: left, Right: right, Pos: tok.Pos}
	}
}

func (p *Parser) parseAdditive() (ast.Expr, *ParseError) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.Kind != lexer.Operator || (tok.Value != "+" && tok.Value != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: tok.Value, Left: left, Right: right, Pos: tok.Pos}
	}
}

func (p *Parser) parseMultiplicative() (ast.Expr, *ParseError) {
	left, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.Kind != lexer.Operator || (tok.Value != "*" && tok.Value != "/" && tok.Value != "%") {
			return left, nil
		}
		p.advance()
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: tok.Value, Left: left, Right: right, Pos: tok.Pos}
	}
}

// parseExponent is right-associative: 2**2**3 groups as 2**(2**3).
func (p *Parser) parseExponent() (ast.Expr, *ParseError) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	tok := p.current()
	if !tok.Is(lexer.Operator, "**") {
		return left, nil
	}
	p.advance()
	right, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	return &ast.Binary{Op: "**", Left: left, Right: right, Pos: tok.Pos}, nil
}

func (p *Parser) parseUnary() (ast.Expr, *ParseError) {
	tok := p.current()
	var op string
	switch {
	case tok.IsWord("not"):
		op = "not"
	case tok.IsWord("no"):
		op = "no"
	case tok.Is(lexer.Operator, "!"):
		op = "!"
	case tok.Is(lexer.Operator, "-"):
		op = "-"
	default:
		return p.parsePostfix()
	}
	p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.Unary{Op: op, Operand: operand, Pos: tok.Pos}, nil
}

// parsePostfix handles the chainable suffixes: possessive 's, dot member
// access, computed index, and call application.
func (p *Parser) parsePostfix() (ast.Expr, *ParseError) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		switch {
		case tok.Is(lexer.Operator, "'s"):
			p.advance()
			prop := p.current()
			switch {
			case prop.Kind == lexer.StyleProperty:
				p.advance()
				expr = &ast.StyleRef{Property: prop.Value, Of: expr, Pos: tok.Pos}
			case prop.Kind == lexer.Identifier || prop.Kind == lexer.Keyword:
				p.advance()
				expr = &ast.Possessive{Object: expr, Property: prop.Value, Pos: tok.Pos}
			default:
				return nil, p.unexpectedError("a property name after 's")
			}

		case tok.Is(lexer.Symbol, "."):
			word := p.peek(1)
			if word.Kind != lexer.Identifier && word.Kind != lexer.Keyword {
				return expr, nil
			}
			p.advance()
			p.advance()
			expr = &ast.Possessive{Object: expr, Property: word.Value, Pos: tok.Pos}

		case tok.Kind == lexer.Selector && strings.HasPrefix(tok.Value, "."):
			// The lexer reads ".target" in "event.target" as a class
			// selector; after an operand it is member access.
			p.advance()
			expr = &ast.Possessive{Object: expr, Property: tok.Value[1:], Pos: tok.Pos}

		case tok.Is(lexer.Symbol, "["):
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol("]"); err != nil {
				return nil, err
			}
			expr = &ast.Possessive{Object: expr, Computed: idx, Pos: tok.Pos}

		case tok.Is(lexer.Symbol, "("):
			p.advance()
			var args []ast.Expr
			for !p.current().Is(lexer.Symbol, ")") && !p.atEnd() {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.matchSymbol(",") {
					break
				}
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			expr = &ast.Call{Callee: expr, Args: args, Pos: tok.Pos}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, *ParseError) {
	tok := p.current()
	switch {
	case tok.Is(lexer.Symbol, "("):
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case tok.Is(lexer.Symbol, "["):
		return p.parseArrayLiteral()

	case tok.Is(lexer.Symbol, "{"):
		return p.parseObjectLiteral()

	case tok.Kind == lexer.Number:
		p.advance()
		value, unit := splitNumber(tok.Value)
		return &ast.Literal{Value: value, Unit: unit, Pos: tok.Pos}, nil

	case tok.Kind == lexer.String:
		p.advance()
		return &ast.Literal{Value: unquote(tok.Value), Pos: tok.Pos}, nil

	case tok.Kind == lexer.LocalVar:
		p.advance()
		return &ast.Variable{Name: tok.Value, Scope: ast.ScopeLocal, Pos: tok.Pos}, nil

	case tok.Kind == lexer.GlobalVar:
		p.advance()
		return &ast.Variable{Name: tok.Value, Scope: ast.ScopeGlobal, Pos: tok.Pos}, nil

	case tok.Kind == lexer.Selector:
		return p.parseSelector(tok), nil

	case tok.Kind == lexer.StyleProperty:
		p.advance()
		ref := &ast.StyleRef{Property: tok.Value, Pos: tok.Pos}
		if p.matchWord("of") {
			of, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			ref.Of = of
		}
		return ref, nil

	case tok.IsWord("true"), tok.IsWord("false"):
		p.advance()
		return &ast.Literal{Value: tok.Value == "true", Pos: tok.Pos}, nil

	case tok.IsWord("null"), tok.IsWord("undefined"):
		p.advance()
		return &ast.Literal{Value: nil, Pos: tok.Pos}, nil

	case tok.IsWord("me"), tok.IsWord("it"), tok.IsWord("you"),
		tok.IsWord("event"), tok.IsWord("result"), tok.IsWord("empty"):
		p.advance()
		return &ast.Identifier{Name: tok.Value, Pos: tok.Pos}, nil

	case tok.IsWord("my"), tok.IsWord("its"):
		return p.parsePossessiveSugar(tok)

	case tok.IsWord("the"), tok.IsWord("a"), tok.IsWord("an"):
		p.advance()
		return p.parsePrimary()

	case tok.Kind == lexer.Keyword:
		if kind, ok := ast.PositionalKindFromWord(tok.Value); ok {
			return p.parsePositional(kind, tok)
		}
		return nil, p.unexpectedError("an expression")

	case tok.Kind == lexer.Identifier:
		p.advance()
		return &ast.Identifier{Name: tok.Value, Pos: tok.Pos}, nil

	case tok.Kind == lexer.EOF:
		return nil, p.syntaxError("unexpected end of input in expression")

	default:
		return nil, p.unexpectedError("an expression")
	}
}

// parsePossessiveSugar desugars "my prop" to me's prop and "its prop" to
// it's prop.
func (p *Parser) parsePossessiveSugar(tok lexer.Token) (ast.Expr, *ParseError) {
	object := "me"
	if tok.Value == "its" {
		object = "it"
	}
	p.advance()

	prop := p.current()
	switch {
	case prop.Kind == lexer.StyleProperty:
		p.advance()
		return &ast.StyleRef{
			Property: prop.Value,
			Of:       &ast.Identifier{Name: object, Pos: tok.Pos},
			Pos:      tok.Pos,
		}, nil
	case prop.Kind == lexer.Identifier || prop.Kind == lexer.Keyword:
		p.advance()
		return &ast.Possessive{
			Object:   &ast.Identifier{Name: object, Pos: tok.Pos},
			Property: prop.Value,
			Pos:      tok.Pos,
		}, nil
	default:
		return nil, p.unexpectedError("a property name after '" + tok.Value + "'")
	}
}

// parsePositional parses "first .item", "closest <form/>", "next of me".
// The target is optional; a bare positional is relative to me.
func (p *Parser) parsePositional(kind ast.PositionalKind, tok lexer.Token) (ast.Expr, *ParseError) {
	p.advance()
	if p.current().IsWord("of") || p.current().IsWord("in") {
		p.advance()
	}
	node := &ast.Positional{Keyword: kind, Pos: tok.Pos}
	if p.startsExpression() {
		target, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		node.Target = target
	}
	return node, nil
}

// parseSelector consumes a selector operand, merging byte-adjacent
// selector tokens so compounds like .a.b and #x[data-open] read as one
// selector. Adjacency is checked on offsets; tokens separated by any
// space stay separate.
func (p *Parser) parseSelector(tok lexer.Token) *ast.Selector {
	p.advance()
	value := tok.Value
	end := tok.Pos.Offset + len(tok.Value)
	merged := false
	for p.current().Kind == lexer.Selector && p.current().Pos.Offset == end {
		value += p.current().Value
		end += len(p.current().Value)
		merged = true
		p.advance()
	}

	kind := classifySelector(value)
	if merged {
		kind = ast.SelectorCompound
	}
	return &ast.Selector{Value: value, Kind: kind, Pos: tok.Pos}
}

func (p *Parser) parseArrayLiteral() (ast.Expr, *ParseError) {
	start := p.current().Pos
	p.advance() // [
	var items []ast.Expr
	for !p.current().Is(lexer.Symbol, "]") && !p.atEnd() {
		item, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.matchSymbol(",") {
			break
		}
	}
	if err := p.expectSymbol("]"); err != nil {
		return nil, err
	}
	return &ast.ArrayLit{Items: items, Pos: start}, nil
}

func (p *Parser) parseObjectLiteral() (ast.Expr, *ParseError) {
	start := p.current().Pos
	p.advance() // {
	var fields []ast.ObjectField
	for !p.current().Is(lexer.Symbol, "}") && !p.atEnd() {
		keyTok := p.current()
		var key string
		switch keyTok.Kind {
		case lexer.Identifier, lexer.Keyword:
			key = keyTok.Value
		case lexer.String:
			key = unquote(keyTok.Value)
		default:
			return nil, p.unexpectedError("an object key")
		}
		p.advance()

		var value ast.Expr
		if p.current().Kind == lexer.LocalVar {
			// {count: :n} lexes the colon into the variable token.
			varTok := p.current()
			p.advance()
			value = &ast.Variable{Name: varTok.Value, Scope: ast.ScopeLocal, Pos: varTok.Pos}
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
		fields = append(fields, ast.ObjectField{Key: key, Value: value})
		if !p.matchSymbol(",") {
			break
		}
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return &ast.ObjectLit{Fields: fields, Pos: start}, nil
}

// startsExpression reports whether the current token can begin an
// expression. Command-name identifiers do not, so optional targets stop
// before the next chained command.
func (p *Parser) startsExpression() bool {
	tok := p.current()
	switch tok.Kind {
	case lexer.Number, lexer.String, lexer.LocalVar, lexer.GlobalVar,
		lexer.Selector, lexer.StyleProperty:
		return true
	case lexer.Symbol:
		return tok.Value == "(" || tok.Value == "[" || tok.Value == "{"
	case lexer.Operator:
		return tok.Value == "!" || tok.Value == "-"
	case lexer.Identifier:
		return !commands.IsCommand(tok.Value)
	case lexer.Keyword:
		switch tok.Value {
		case "true", "false", "null", "undefined", "me", "it", "you",
			"event", "result", "my", "its", "the", "a", "an", "not", "no",
			"empty", "first", "last", "next", "previous", "closest", "parent":
			return true
		}
	}
	return false
}

func classifySelector(value string) ast.SelectorKind {
	switch {
	case strings.HasPrefix(value, "#"):
		return ast.SelectorID
	case strings.HasPrefix(value, "."):
		return ast.SelectorClass
	case strings.HasPrefix(value, "["):
		return ast.SelectorAttribute
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		isTagChar := ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') ||
			('0' <= c && c <= '9') || c == '-'
		if !isTagChar {
			return ast.SelectorCompound
		}
	}
	return ast.SelectorTag
}

// splitNumber separates a fused unit suffix from the numeric text.
func splitNumber(text string) (float64, string) {
	unit := ""
	switch {
	case strings.HasSuffix(text, "ms"):
		unit = "ms"
	case strings.HasSuffix(text, "px"):
		unit = "px"
	case strings.HasSuffix(text, "s"):
		unit = "s"
	}
	num := strings.TrimSuffix(text, unit)
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, unit
	}
	return value, unit
}

// unquote strips the surrounding quotes and resolves backslash escapes.
func unquote(text string) string {
	if len(text) < 2 {
		return strings.TrimPrefix(text, `"`)
	}
	quote := text[0]
	body := text[1:]
	if body[len(body)-1] == quote {
		body = body[:len(body)-1]
	}

	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
