package standard

import (
	"strconv"
	"strings"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
	"github.com/lokascript/hyperfixi/runtime/parser"
)

// parseExpression parses with the same precedence ladder as the full tier,
// minus the structural forms the standard tier leaves out: no array or
// object literals, no call application, no computed index, no positional
// keywords.
func (p *sparser) parseExpression() (ast.Expr, *parser.ParseError) {
	return p.parseOr()
}

func (p *sparser) parseOr() (ast.Expr, *parser.ParseError) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().isWord("or") && !p.nextStartsCommand() {
		pos := p.current().pos
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "or", Left: left, Right: right, Pos: pos}
	}
	return left, nil
}

func (p *sparser) parseAnd() (ast.Expr, *parser.ParseError) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.current().isWord("and") && !p.nextStartsCommand() {
		pos := p.current().pos
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "and", Left: left, Right: right, Pos: pos}
	}
	return left, nil
}

// nextStartsCommand reports whether the token after the current one begins
// a command. "and"/"or" never consume a command starter as a right operand,
// so "add .a and remove .b" stays a command chain.
func (p *sparser) nextStartsCommand() bool {
	next := p.peek(1)
	return next.kind == tokWord && commands.IsCommand(next.text)
}

func (p *sparser) parseEquality() (ast.Expr, *parser.ParseError) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.current().pos
		var op string
		switch {
		case p.matchOperator("=="):
			op = "=="
		case p.matchOperator("!="):
			op = "!="
		case p.current().isWord("is"):
			p.advance()
			if p.matchWord("not") {
				op = "is not"
			} else {
				op = "is"
			}
		case p.current().isWord("matches"), p.current().isWord("contains"),
			p.current().isWord("includes"), p.current().isWord("has"):
			op = p.current().text
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

func (p *sparser) parseComparison() (ast.Expr, *parser.ParseError) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.kind != tokOperator {
			return left, nil
		}
		switch tok.text {
		case "<", "<=", ">", ">=":
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: tok.text, Left: left, Right: right, Pos: tok.pos}
	}
}

func (p *sparser) parseAdditive() (ast.Expr, *parser.ParseError) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.kind != tokOperator || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: tok.text, Left: left, Right: right, Pos: tok.pos}
	}
}

func (p *sparser) parseMultiplicative() (ast.Expr, *parser.ParseError) {
	left, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.kind != tokOperator || (tok.text != "*" && tok.text != "/" && tok.text != "%") {
			return left, nil
		}
		// A star that glues onto a word is a style reference, not
		// multiplication.
		if tok.text == "*" && p.startsStyleRef() {
			return left, nil
		}
		p.advance()
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: tok.text, Left: left, Right: right, Pos: tok.pos}
	}
}

// parseExponent is right-associative: 2**2**3 groups as 2**(2**3).
func (p *sparser) parseExponent() (ast.Expr, *parser.ParseError) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	tok := p.current()
	if tok.kind != tokOperator || tok.text != "**" {
		return left, nil
	}
	p.advance()
	right, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	return &ast.Binary{Op: "**", Left: left, Right: right, Pos: tok.pos}, nil
}

func (p *sparser) parseUnary() (ast.Expr, *parser.ParseError) {
	tok := p.current()
	var op string
	switch {
	case tok.isWord("not"):
		op = "not"
	case tok.isWord("no"):
		op = "no"
	case tok.kind == tokOperator && tok.text == "!":
		op = "!"
	case tok.kind == tokOperator && tok.text == "-":
		op = "-"
	default:
		return p.parsePostfix()
	}
	p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.Unary{Op: op, Operand: operand, Pos: tok.pos}, nil
}

// parsePostfix handles the chainable suffixes: possessive 's and dot member
// access. The scanner reads ".target" in "event.target" as a class selector
// token; after an operand it is member access.
func (p *sparser) parsePostfix() (ast.Expr, *parser.ParseError) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		switch {
		case tok.kind == tokOperator && tok.text == "'s":
			p.advance()
			prop := p.current()
			switch {
			case prop.kind == tokOperator && prop.text == "*":
				ref, err := p.parseStyleRef()
				if err != nil {
					return nil, err
				}
				ref.Of = expr
				ref.Pos = tok.pos
				expr = ref
			case prop.kind == tokWord:
				p.advance()
				expr = &ast.Possessive{Object: expr, Property: prop.text, Pos: tok.pos}
			default:
				return nil, p.unexpectedError("a property name after 's")
			}

		case tok.kind == tokSelector && strings.HasPrefix(tok.text, "."):
			p.advance()
			expr = &ast.Possessive{Object: expr, Property: tok.text[1:], Pos: tok.pos}

		default:
			return expr, nil
		}
	}
}

func (p *sparser) parsePrimary() (ast.Expr, *parser.ParseError) {
	tok := p.current()
	switch tok.kind {
	case tokSymbol:
		if tok.text != "(" {
			return nil, p.unexpectedError("an expression")
		}
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case tokNumber:
		p.advance()
		value, unit := splitNumber(tok.text)
		return &ast.Literal{Value: value, Unit: unit, Pos: tok.pos}, nil

	case tokString:
		p.advance()
		return &ast.Literal{Value: tok.text, Pos: tok.pos}, nil

	case tokLocalVar:
		p.advance()
		return &ast.Variable{Name: tok.text, Scope: ast.ScopeLocal, Pos: tok.pos}, nil

	case tokGlobalVar:
		p.advance()
		return &ast.Variable{Name: tok.text, Scope: ast.ScopeGlobal, Pos: tok.pos}, nil

	case tokSelector:
		return p.parseSelector(tok), nil

	case tokOperator:
		if tok.text == "*" && p.startsStyleRef() {
			ref, err := p.parseStyleRef()
			if err != nil {
				return nil, err
			}
			if p.matchWord("of") {
				of, err := p.parseUnary()
				if err != nil {
					return nil, err
				}
				ref.Of = of
			}
			return ref, nil
		}
		return nil, p.unexpectedError("an expression")

	case tokWord:
		switch tok.text {
		case "true", "false":
			p.advance()
			return &ast.Literal{Value: tok.text == "true", Pos: tok.pos}, nil
		case "null", "undefined":
			p.advance()
			return &ast.Literal{Value: nil, Pos: tok.pos}, nil
		case "my", "its":
			return p.parsePossessiveSugar(tok)
		case "the", "a", "an":
			p.advance()
			return p.parsePrimary()
		}
		p.advance()
		return &ast.Identifier{Name: tok.text, Pos: tok.pos}, nil

	case tokEOF:
		return nil, p.syntaxError("unexpected end of input in expression")

	default:
		return nil, p.unexpectedError("an expression")
	}
}

// parsePossessiveSugar desugars "my prop" to me's prop and "its prop" to
// it's prop.
func (p *sparser) parsePossessiveSugar(tok token) (ast.Expr, *parser.ParseError) {
	object := "me"
	if tok.text == "its" {
		object = "it"
	}
	p.advance()

	prop := p.current()
	switch {
	case prop.kind == tokOperator && prop.text == "*":
		ref, err := p.parseStyleRef()
		if err != nil {
			return nil, err
		}
		ref.Of = &ast.Identifier{Name: object, Pos: tok.pos}
		ref.Pos = tok.pos
		return ref, nil
	case prop.kind == tokWord:
		p.advance()
		return &ast.Possessive{
			Object:   &ast.Identifier{Name: object, Pos: tok.pos},
			Property: prop.text,
			Pos:      tok.pos,
		}, nil
	default:
		return nil, p.unexpectedError("a property name after '" + tok.text + "'")
	}
}

// startsStyleRef reports whether the current "*" operator glues onto a
// following word, as in *background-color.
func (p *sparser) startsStyleRef() bool {
	star := p.current()
	next := p.peek(1)
	return next.kind == tokWord && next.pos.Offset == star.pos.Offset+1
}

// parseStyleRef consumes "*property". The property word must glue onto the
// star; the caller fills in Of.
func (p *sparser) parseStyleRef() (*ast.StyleRef, *parser.ParseError) {
	star := p.current()
	p.advance()
	word := p.current()
	if word.kind != tokWord || word.pos.Offset != star.pos.Offset+1 {
		return nil, p.unexpectedError("a style property name")
	}
	p.advance()
	return &ast.StyleRef{Property: word.text, Pos: star.pos}, nil
}

// parseSelector consumes a selector operand, merging byte-adjacent selector
// tokens so compounds like .a.b and #x.open read as one selector.
func (p *sparser) parseSelector(tok token) *ast.Selector {
	p.advance()
	value := tok.text
	end := tok.pos.Offset + tok.width()
	merged := false
	for p.current().kind == tokSelector && p.current().pos.Offset == end {
		value += p.current().text
		end += p.current().width()
		merged = true
		p.advance()
	}

	kind := ast.SelectorClass
	switch {
	case merged:
		kind = ast.SelectorCompound
	case strings.HasPrefix(value, "#"):
		kind = ast.SelectorID
	}
	return &ast.Selector{Value: value, Kind: kind, Pos: tok.pos}
}

// startsExpression reports whether the current token can begin an
// expression. Structural words and command-name identifiers do not, so
// optional arguments stop before joiners and the next chained command.
func (p *sparser) startsExpression() bool {
	tok := p.current()
	switch tok.kind {
	case tokNumber, tokString, tokLocalVar, tokGlobalVar, tokSelector:
		return true
	case tokSymbol:
		return tok.text == "("
	case tokOperator:
		if tok.text == "!" || tok.text == "-" {
			return true
		}
		return tok.text == "*" && p.startsStyleRef()
	case tokWord:
		switch tok.text {
		case "then", "and", "or", "on", "end", "to", "from", "into",
			"before", "after", "at", "of", "by", "for",
			"is", "matches", "contains", "includes", "has":
			return false
		}
		return !commands.IsCommand(tok.text)
	}
	return false
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
