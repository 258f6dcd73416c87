package parser

import (
	"strings"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
	"github.com/lokascript/hyperfixi/runtime/lexer"
)

// parseCommand dispatches to the micro-grammar for the current command
// word. Unknown words fail with ranked did-you-mean suggestions.
func (p *Parser) parseCommand() (ast.Node, *ParseError) {
	tok := p.current()
	if tok.Kind != lexer.Identifier {
		return nil, p.unexpectedError("a command")
	}
	if !commands.IsCommand(tok.Value) {
		return nil, p.unknownCommandError(tok.Value, tok.Pos, commandSuggestions(tok.Value))
	}
	name := commands.Name(tok.Value)
	p.advance()

	cmd := &ast.Command{Name: name, Pos: tok.Pos}
	var err *ParseError
	switch name {
	case commands.Toggle:
		err = p.parseToggle(cmd)
	case commands.Add:
		err = p.parseAddRemove(cmd, "to")
	case commands.Remove:
		err = p.parseAddRemove(cmd, "from")
	case commands.Show, commands.Hide, commands.Focus, commands.Blur, commands.Settle:
		err = p.parseOptionalTarget(cmd)
	case commands.Log:
		err = p.parseLog(cmd)
	case commands.Set:
		err = p.parseSet(cmd)
	case commands.Get, commands.Call, commands.Throw:
		err = p.parseSingleExpr(cmd)
	case commands.Put:
		err = p.parsePut(cmd)
	case commands.Append:
		err = p.parseAppend(cmd)
	case commands.Send, commands.Trigger:
		err = p.parseSend(cmd)
	case commands.Wait:
		err = p.parseWait(cmd)
	case commands.Take:
		err = p.parseTake(cmd)
	case commands.Increment:
		err = p.parseStep(cmd, "+", commands.Increment)
	case commands.Decrement:
		err = p.parseStep(cmd, "-", commands.Decrement)
	case commands.Go:
		err = p.parseGo(cmd)
	case commands.Return:
		err = p.parseReturn(cmd)
	case commands.Transition:
		err = p.parseTransition(cmd)
	case commands.Swap, commands.Morph:
		err = p.parseSwap(cmd)
	case commands.Tell:
		err = p.parseTell(cmd)
	case commands.JS:
		err = p.parseJS(cmd)
	case commands.Halt:
		err = p.parseHalt(cmd)
	case commands.Exit:
		// bare
	case commands.Fetch:
		// "fetch" is routed to parseFetchBlock by parseStatement; reaching
		// it here means a caller bypassed statement dispatch.
		return p.parseFetchBlock()
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// parseToggle parses "toggle <class> [on <target>]". The "on" clause is
// taken only when the following token cannot be an event name, so a
// handler starting right after a toggle is not swallowed as its target.
func (p *Parser) parseToggle(cmd *ast.Command) *ParseError {
	arg, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, arg)

	if p.current().IsWord("on") && p.startsTargetAfterOn() {
		p.advance()
		target, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Target = target
	}
	return nil
}

// startsTargetAfterOn reports whether the token after "on" reads as an
// element target rather than an event name. Bare identifiers after "on"
// always mean a new handler.
func (p *Parser) startsTargetAfterOn() bool {
	next := p.peek(1)
	switch next.Kind {
	case lexer.Selector, lexer.LocalVar, lexer.GlobalVar, lexer.StyleProperty:
		return true
	case lexer.Symbol:
		return next.Value == "("
	case lexer.Keyword:
		switch next.Value {
		case "me", "it", "you", "my", "its", "the", "a", "an",
			"first", "last", "next", "previous", "closest", "parent":
			return true
		}
	}
	return false
}

// parseAddRemove parses "add <class> [to <target>]" and "remove <class>
// [from <target>]". A bare "remove" removes me.
func (p *Parser) parseAddRemove(cmd *ast.Command, joiner string) *ParseError {
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

func (p *Parser) parseOptionalTarget(cmd *ast.Command) *ParseError {
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

func (p *Parser) parseLog(cmd *ast.Command) *ParseError {
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
func (p *Parser) parseSet(cmd *ast.Command) *ParseError {
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

func (p *Parser) parseSingleExpr(cmd *ast.Command) *ParseError {
	arg, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, arg)
	return nil
}

// parsePut parses "put <expr> into|before|after|at start of|at end of
// <target>". The placement keyword is recorded as the command modifier.
func (p *Parser) parsePut(cmd *ast.Command) *ParseError {
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

func (p *Parser) parseAppend(cmd *ast.Command) *ParseError {
	value, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, value)

	if p.matchWord("to") {
		target, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Target = target
	}
	return nil
}

// parseSend parses "send <event>[(key: value, ...)] [to <target>]" and its
// trigger alias. Detail fields become an object literal in Args[1].
func (p *Parser) parseSend(cmd *ast.Command) *ParseError {
	namePos := p.current().Pos
	name, err := p.parseEventName()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, &ast.Literal{Value: name, Pos: namePos})

	if p.current().Is(lexer.Symbol, "(") {
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

func (p *Parser) parseSendDetail() (ast.Expr, *ParseError) {
	start := p.current().Pos
	p.advance() // (
	var fields []ast.ObjectField
	for !p.current().Is(lexer.Symbol, ")") && !p.atEnd() {
		keyTok := p.current()
		if keyTok.Kind != lexer.Identifier && keyTok.Kind != lexer.Keyword {
			return nil, p.unexpectedError("an event detail key")
		}
		p.advance()

		var value ast.Expr
		if p.current().Kind == lexer.LocalVar {
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
		fields = append(fields, ast.ObjectField{Key: keyTok.Value, Value: value})
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
func (p *Parser) parseWait(cmd *ast.Command) *ParseError {
	if p.matchWord("for") {
		cmd.Modifier = "for"
		namePos := p.current().Pos
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

// parseTake parses "take <class> [from <source>] [for <target>]". Args[0]
// is the class; Args[1], when present, the source group.
func (p *Parser) parseTake(cmd *ast.Command) *ParseError {
	class, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, class)

	if p.matchWord("from") {
		source, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Args = append(cmd.Args, source)
	}
	if p.matchWord("for") {
		target, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Target = target
	}
	return nil
}

// parseStep desugars increment/decrement into a set command whose value is
// target +/- amount. OriginalCommand keeps the spelled verb for consumers
// that need it.
func (p *Parser) parseStep(cmd *ast.Command, op string, original commands.Name) *ParseError {
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

// parseGo parses "go back" or "go to [url] <expr>".
func (p *Parser) parseGo(cmd *ast.Command) *ParseError {
	if p.matchWord("back") {
		cmd.Modifier = "back"
		return nil
	}
	if err := p.expectWord("to"); err != nil {
		return err
	}
	p.matchWord("url")
	dest, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, dest)
	return nil
}

func (p *Parser) parseReturn(cmd *ast.Command) *ParseError {
	if !p.startsExpression() {
		return nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, value)
	return nil
}

// parseTransition parses "transition [<target>] <property> to <value>
// [over <duration>]". The property is Args[0] and usually carries its own
// element (a style reference or possessive); an explicit leading target
// lands in Target.
func (p *Parser) parseTransition(cmd *ast.Command) *ParseError {
	first, err := p.parseUnary()
	if err != nil {
		return err
	}

	property := first
	if !p.current().IsWord("to") && p.startsExpression() {
		cmd.Target = first
		property, err = p.parseUnary()
		if err != nil {
			return err
		}
	}
	cmd.Args = append(cmd.Args, property)

	if err := p.expectWord("to"); err != nil {
		return err
	}
	value, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, value)

	if p.matchWord("over") {
		dur, err := p.parseExpression()
		if err != nil {
			return err
		}
		cmd.Args = append(cmd.Args, dur)
	}
	return nil
}

// parseSwap parses "swap <target> with <content>" and its morph alias.
func (p *Parser) parseSwap(cmd *ast.Command) *ParseError {
	target, err := p.parseUnary()
	if err != nil {
		return err
	}
	cmd.Target = target

	if err := p.expectWord("with"); err != nil {
		return err
	}
	content, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args, content)
	return nil
}

// parseTell parses "tell <target>". Subsequent chained commands run with
// the target bound as you.
func (p *Parser) parseTell(cmd *ast.Command) *ParseError {
	target, err := p.parseExpression()
	if err != nil {
		return err
	}
	cmd.Target = target
	return nil
}

// parseJS captures the raw source span between "js" and its "end" without
// interpreting it; the lexer's token positions recover the exact bytes.
func (p *Parser) parseJS(cmd *ast.Command) *ParseError {
	start := p.current().Pos.Offset
	for !p.current().IsWord("end") && !p.atEnd() {
		p.advance()
	}

	end := p.current().Pos.Offset
	if p.atEnd() {
		end = len(p.input)
		p.warnings = append(p.warnings, Warning{
			Message: "missing 'end' inferred at end of input",
			Pos:     p.current().Pos,
		})
	}
	if start > end {
		start = end
	}
	raw := strings.TrimSpace(p.input[start:end])
	p.matchWord("end")

	cmd.Args = append(cmd.Args, &ast.Literal{Value: raw, Pos: cmd.Pos})
	return nil
}

func (p *Parser) parseHalt(cmd *ast.Command) *ParseError {
	if p.matchWord("the") {
		if err := p.expectWord("event"); err != nil {
			return err
		}
		cmd.Modifier = "the event"
	}
	return nil
}
