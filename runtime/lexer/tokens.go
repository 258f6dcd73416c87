package lexer

import "github.com/lokascript/hyperfixi/core/ast"

// TokenKind classifies lexical tokens.
type TokenKind int

const (
	// EOF terminates every token stream.
	EOF TokenKind = iota

	Identifier    // command names, behavior names, bare words
	Keyword       // closed vocabulary: grammar and context words
	Number        // 42, 3.14, -5, 500ms, 2s, 10px (unit fused)
	String        // "text" or 'text', quotes included, escapes raw
	Operator      // + - * / % ** == != < <= > >= && || ! = 's
	Selector      // #id .class <tag.cls/> [attr="value"]
	LocalVar      // :name
	GlobalVar     // $name
	Symbol        // ( ) [ ] { } , . ; :
	StyleProperty // *opacity, *background-color
)

func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Identifier:
		return "IDENTIFIER"
	case Keyword:
		return "KEYWORD"
	case Number:
		return "NUMBER"
	case String:
		return "STRING"
	case Operator:
		return "OPERATOR"
	case Selector:
		return "SELECTOR"
	case LocalVar:
		return "LOCAL_VAR"
	case GlobalVar:
		return "GLOBAL_VAR"
	case Symbol:
		return "SYMBOL"
	case StyleProperty:
		return "STYLE_PROPERTY"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexical unit. Value holds the surface text: selectors keep
// their sigils, strings keep their quotes, numbers keep a fused unit suffix.
// Tokens are immutable once produced.
type Token struct {
	Kind  TokenKind
	Value string
	Pos   ast.Position
}

func (t Token) String() string {
	return t.Kind.String() + "(" + t.Value + ")"
}

// Is reports whether the token is an exact kind/value pair.
func (t Token) Is(kind TokenKind, value string) bool {
	return t.Kind == kind && t.Value == value
}

// IsWord reports whether the token is a keyword or identifier with the given
// spelling. Grammar words live in the keyword table but command names do
// not, so parsers match words through this instead of on Kind.
func (t Token) IsWord(value string) bool {
	return (t.Kind == Keyword || t.Kind == Identifier) && t.Value == value
}

// Keywords is the closed grammar vocabulary. Command names (toggle, add,
// put, ...) are deliberately absent: they lex as identifiers and resolve
// against the command registry during parsing.
var Keywords = map[string]bool{
	// feature openers and block structure
	"on": true, "init": true, "every": true, "behavior": true, "end": true,
	"if": true, "unless": true, "else": true,
	"repeat": true, "while": true, "until": true, "times": true, "forever": true,
	"for": true, "each": true, "in": true,

	// sequencing and logic
	"then": true, "and": true, "or": true, "not": true,

	// comparison and membership
	"is": true, "matches": true, "contains": true, "includes": true, "has": true,
	"empty": true, "no": true,

	// clause markers
	"from": true, "to": true, "into": true, "with": true, "as": true,
	"of": true, "by": true, "at": true, "before": true, "after": true,

	// articles and possessive sugar
	"the": true, "a": true, "an": true, "my": true, "its": true,

	// context references
	"me": true, "it": true, "you": true, "event": true, "result": true,

	// positional navigation
	"first": true, "last": true, "next": true, "previous": true,
	"closest": true, "parent": true,

	// literals
	"true": true, "false": true, "null": true, "undefined": true,
}

// ModifierWords are the event-modifier names that keep a following "."
// from being read as a class selector (click.once.debounce(300)).
var ModifierWords = map[string]bool{
	"once": true, "prevent": true, "stop": true,
	"debounce": true, "throttle": true,
}

// twoCharOps are matched before single-character operators.
var twoCharOps = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true,
	"&&": true, "||": true, "**": true,
}

// LookupWord classifies a scanned word as Keyword or Identifier.
func LookupWord(word string) TokenKind {
	if Keywords[word] {
		return Keyword
	}
	return Identifier
}
