package parser

import (
	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/runtime/lexer"
)

// ifStops closes an if arm: its own else/end, or a new feature starting
// where the end was forgotten.
var ifStops = []string{"else", "on", "init", "every", "behavior", "end"}

// parseIf parses if/unless with any number of "else if" arms and an
// optional final else. A missing end at end of input recovers with a
// warning.
func (p *Parser) parseIf() (ast.Node, *ParseError) {
	start := p.current().Pos
	unless := p.current().IsWord("unless")
	p.advance() // if | unless

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.matchWord("then")

	then, err := p.parseBody(ifStops, RecoverAtEOF)
	if err != nil {
		return nil, err
	}

	node := &ast.If{Condition: cond, Unless: unless, Then: then, Pos: start}

	for p.current().IsWord("else") {
		if p.peek(1).IsWord("if") {
			p.advance() // else
			p.advance() // if
			armCond, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			p.matchWord("then")
			armBody, err := p.parseBody(ifStops, RecoverAtEOF)
			if err != nil {
				return nil, err
			}
			node.ElseIfs = append(node.ElseIfs, ast.ElseIf{Condition: armCond, Body: armBody})
			continue
		}

		p.advance() // else
		elseBody, err := p.parseBody(ifStops, RecoverAtEOF)
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
		break
	}

	p.matchWord("end")
	return node, nil
}

// parseRepeat parses the repeat variants: "repeat N times", "repeat while
// cond", "repeat until cond", "repeat forever", and bare "repeat" which
// also loops forever.
func (p *Parser) parseRepeat() (ast.Node, *ParseError) {
	start := p.current().Pos
	p.advance() // repeat

	node := &ast.Repeat{Pos: start}
	switch {
	case p.matchWord("while"):
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.While = cond
	case p.matchWord("until"):
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.Until = cond
	case p.matchWord("forever"):
		node.Forever = true
	case p.startsExpression():
		count, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectWord("times"); err != nil {
			return nil, err
		}
		node.Count = count
	default:
		node.Forever = true
	}

	body, err := p.parseBody(featureStops, RecoverAtEOF)
	if err != nil {
		return nil, err
	}
	node.Body = body
	p.matchWord("end")
	return node, nil
}

// parseForEach parses "for [each] item[, index] in collection body end".
func (p *Parser) parseForEach() (ast.Node, *ParseError) {
	start := p.current().Pos
	p.advance() // for
	p.matchWord("each")

	itemTok := p.current()
	if itemTok.Kind != lexer.Identifier {
		return nil, p.unexpectedError("a loop variable name")
	}
	p.advance()

	node := &ast.ForEach{Item: itemTok.Value, Pos: start}
	if p.matchSymbol(",") {
		idxTok := p.current()
		if idxTok.Kind != lexer.Identifier {
			return nil, p.unexpectedError("an index variable name")
		}
		node.Index = idxTok.Value
		p.advance()
	}

	if err := p.expectWord("in"); err != nil {
		return nil, err
	}
	collection, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	node.Collection = collection

	body, err := p.parseBody(featureStops, RecoverAtEOF)
	if err != nil {
		return nil, err
	}
	node.Body = body
	p.matchWord("end")
	return node, nil
}

func (p *Parser) parseWhile() (ast.Node, *ParseError) {
	start := p.current().Pos
	p.advance() // while

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(featureStops, RecoverAtEOF)
	if err != nil {
		return nil, err
	}
	p.matchWord("end")
	return &ast.While{Condition: cond, Body: body, Pos: start}, nil
}

// parseFetchBlock parses "fetch url [as json|text|html] body end". The
// body sees the response as it/result.
func (p *Parser) parseFetchBlock() (ast.Node, *ParseError) {
	start := p.current().Pos
	p.advance() // fetch

	url, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	node := &ast.FetchBlock{URL: url, Pos: start}
	if p.matchWord("as") {
		formatTok := p.current()
		switch {
		case formatTok.IsWord("json"), formatTok.IsWord("text"), formatTok.IsWord("html"):
			node.ResponseAs = formatTok.Value
			p.advance()
		default:
			return nil, p.syntaxError("invalid response type %q: expected json, text, or html", formatTok.Value)
		}
	}

	body, err := p.parseBody(featureStops, RecoverAtEOF)
	if err != nil {
		return nil, err
	}
	node.Body = body
	p.matchWord("end")
	return node, nil
}
