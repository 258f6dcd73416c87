package parser

import (
	"fmt"
	"strings"

	"github.com/lokascript/hyperfixi/core/ast"
)

// ErrorKind categorizes parse errors.
type ErrorKind int

const (
	ErrorSyntax ErrorKind = iota
	ErrorUnexpected
	ErrorMissing
	ErrorEmpty
	ErrorUnknownCommand
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorSyntax:
		return "syntax error"
	case ErrorUnexpected:
		return "unexpected token"
	case ErrorMissing:
		return "missing"
	case ErrorEmpty:
		return "empty input"
	case ErrorUnknownCommand:
		return "unknown command"
	default:
		return "error"
	}
}

// ParseError is a caller-visible parse failure with location and context.
// Structurally broken input always surfaces as one of these; lenient
// recovery cases produce warnings instead.
type ParseError struct {
	Kind        ErrorKind
	Message     string
	Pos         ast.Position
	Input       string
	Suggestions []string
}

// Error formats the message with a caret snippet pointing at the offending
// location.
func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	if snippet := e.codeSnippet(); snippet != "" {
		b.WriteByte('\n')
		b.WriteString(snippet)
	}
	return b.String()
}

// codeSnippet renders the offending line with a caret under the error column.
func (e *ParseError) codeSnippet() string {
	if e.Input == "" || e.Pos.Line == 0 {
		return ""
	}
	lines := strings.Split(e.Input, "\n")
	if e.Pos.Line > len(lines) {
		return ""
	}
	lineContent := lines[e.Pos.Line-1]

	var b strings.Builder
	fmt.Fprintf(&b, "  --> %d:%d\n", e.Pos.Line, e.Pos.Column)
	b.WriteString("   |\n")
	fmt.Fprintf(&b, "%2d | %s\n", e.Pos.Line, lineContent)
	b.WriteString("   | ")
	if e.Pos.Column > 0 && e.Pos.Column <= len(lineContent)+1 {
		b.WriteString(strings.Repeat(" ", e.Pos.Column-1) + "^")
	}
	return b.String()
}

// Warning records a lenient recovery the parser applied instead of failing,
// such as inferring a missing end at end of input.
type Warning struct {
	Message string
	Pos     ast.Position
}

func (p *Parser) syntaxError(format string, args ...interface{}) *ParseError {
	return &ParseError{
		Kind:    ErrorSyntax,
		Message: fmt.Sprintf(format, args...),
		Pos:     p.current().Pos,
		Input:   p.input,
	}
}

func (p *Parser) unexpectedError(expected string) *ParseError {
	got := p.current()
	desc := got.Kind.String()
	if got.Value != "" {
		desc = fmt.Sprintf("%q", got.Value)
	}
	return &ParseError{
		Kind:    ErrorUnexpected,
		Message: fmt.Sprintf("expected %s, got %s", expected, desc),
		Pos:     got.Pos,
		Input:   p.input,
	}
}

func (p *Parser) missingError(expected string, pos ast.Position) *ParseError {
	return &ParseError{
		Kind:    ErrorMissing,
		Message: fmt.Sprintf("expected %s", expected),
		Pos:     pos,
		Input:   p.input,
	}
}

func (p *Parser) unknownCommandError(word string, pos ast.Position, suggestions []string) *ParseError {
	return &ParseError{
		Kind:        ErrorUnknownCommand,
		Message:     fmt.Sprintf("unknown command %q", word),
		Pos:         pos,
		Input:       p.input,
		Suggestions: suggestions,
	}
}
