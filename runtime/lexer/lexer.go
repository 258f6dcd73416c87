// Package lexer converts HyperFixi source text into a flat token stream.
//
// Tokenization is total: unrecognized input is absorbed into the nearest
// matching token class or skipped, never raised, and every stream terminates
// with an EOF token. All disambiguation (selectors vs. operators, possessive
// 's vs. strings, array vs. attribute brackets) happens here so the parser
// sees an unambiguous stream.
package lexer

import (
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/invariant"
)

// ASCII character lookup tables for fast classification
var (
	isSpace      [128]bool
	isLetter     [128]bool
	isDigit      [128]bool
	isIdentStart [128]bool
	isIdentPart  [128]bool
	isSelPart    [128]bool // selector body chars after # or .
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isSpace[i] = ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f'
		isLetter[i] = ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
		isDigit[i] = '0' <= ch && ch <= '9'
		isIdentStart[i] = isLetter[i] || ch == '_'
		isIdentPart[i] = isIdentStart[i] || isDigit[i]
		isSelPart[i] = isIdentPart[i] || ch == '-'
	}
}

// Lexer scans one source string. The zero value is not usable; construct
// with New.
type Lexer struct {
	input   string
	pos     int  // offset of current byte
	readPos int  // offset of next byte
	ch      byte // current byte, 0 at end of input
	line    int
	column  int

	logger *slog.Logger
}

// New creates a Lexer over source.
func New(source string) *Lexer {
	logLevel := slog.LevelInfo
	if os.Getenv("HYPERFIXI_DEBUG_LEXER") != "" {
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

	l := &Lexer{
		input:  source,
		line:   1,
		column: 0,
		logger: logger,
	}
	l.advance()
	return l
}

// Tokenize converts source into a token stream ending with EOF.
func Tokenize(source string) []Token {
	l := New(source)
	var tokens []Token
	for {
		before := l.pos
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			break
		}
		invariant.Advanced(before, l.pos, "lexer position")
	}
	return tokens
}

func (l *Lexer) advance() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	l.pos = l.readPos
	if l.readPos < len(l.input) {
		l.ch = l.input[l.readPos]
	} else {
		l.ch = 0
	}
	l.readPos++
	l.column++
}

func (l *Lexer) peek() byte {
	if l.readPos < len(l.input) {
		return l.input[l.readPos]
	}
	return 0
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

func (l *Lexer) here() ast.Position {
	return ast.Position{Line: l.line, Column: l.column, Offset: l.pos}
}

func (l *Lexer) token(kind TokenKind, value string, pos ast.Position) Token {
	tok := Token{Kind: kind, Value: value, Pos: pos}
	l.logger.Debug("token", "kind", kind.String(), "value", value, "line", pos.Line, "col", pos.Column)
	return tok
}

// Next scans and returns the next token.
func (l *Lexer) Next() Token {
	l.skipSpaceAndComments()

	pos := l.here()

	if l.ch == 0 {
		return l.token(EOF, "", pos)
	}

	switch {
	case l.ch == '<':
		if tok, ok := l.tryAngleSelector(pos); ok {
			return tok
		}
		return l.scanOperator(pos)

	case l.ch == '\'':
		// Possessive 's applies unless a letter follows the s, which would
		// make it look like a quoted word instead.
		if l.peek() == 's' && !isLetterByte(l.peekAt(2)) {
			l.advance()
			l.advance()
			return l.token(Operator, "'s", pos)
		}
		return l.scanString(pos)

	case l.ch == '"':
		return l.scanString(pos)

	case isDigitByte(l.ch):
		return l.scanNumber(pos)

	case l.ch == '-':
		if isDigitByte(l.peek()) {
			return l.scanNumber(pos)
		}
		l.advance()
		return l.token(Operator, "-", pos)

	case l.ch == ':':
		if isIdentStartByte(l.peek()) {
			l.advance()
			return l.token(LocalVar, l.scanWord(), pos)
		}
		l.advance()
		return l.token(Symbol, ":", pos)

	case l.ch == '$':
		if isIdentStartByte(l.peek()) {
			l.advance()
			return l.token(GlobalVar, l.scanWord(), pos)
		}
		l.advance()
		return l.token(Symbol, "$", pos)

	case l.ch == '#':
		if isSelPartByte(l.peek()) {
			l.advance()
			return l.token(Selector, "#"+l.scanSelectorBody(), pos)
		}
		l.advance()
		return l.token(Symbol, "#", pos)

	case l.ch == '.':
		return l.scanDot(pos)

	case l.ch == '[':
		return l.scanBracket(pos)

	case l.ch == '*':
		if isLetterByte(l.peek()) {
			l.advance()
			return l.token(StyleProperty, l.scanSelectorBody(), pos)
		}
		return l.scanOperator(pos)

	case isIdentStartByte(l.ch):
		word := l.scanWord()
		return l.token(LookupWord(word), word, pos)

	case strings.IndexByte("+/%>=!&|", l.ch) >= 0:
		return l.scanOperator(pos)

	case strings.IndexByte("(){}],;", l.ch) >= 0:
		ch := l.ch
		l.advance()
		return l.token(Symbol, string(ch), pos)

	default:
		// Unrecognized byte: skip it and keep scanning.
		l.logger.Debug("skipping byte", "byte", l.ch, "line", pos.Line, "col", pos.Column)
		l.advance()
		return l.Next()
	}
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		for l.ch != 0 && l.ch < 128 && isSpace[l.ch] {
			l.advance()
		}
		// -- line comment
		if l.ch == '-' && l.peek() == '-' {
			for l.ch != 0 && l.ch != '\n' {
				l.advance()
			}
			continue
		}
		return
	}
}

// tryAngleSelector captures <tag.class/> element selectors. The content
// between the angle brackets becomes the token value with any trailing /
// stripped. Returns false when < is a comparison operator.
func (l *Lexer) tryAngleSelector(pos ast.Position) (Token, bool) {
	next := l.peek()
	if !isLetterByte(next) && next != '.' && next != '#' {
		return Token{}, false
	}

	// Find > before the line ends; without one this is a comparison.
	end := -1
	for i := l.readPos; i < len(l.input); i++ {
		c := l.input[i]
		if c == '>' {
			end = i
			break
		}
		if c == '\n' || c == '<' {
			break
		}
	}
	if end < 0 {
		return Token{}, false
	}

	content := l.input[l.readPos:end]
	content = strings.TrimSuffix(content, "/")
	for l.pos <= end {
		l.advance()
	}
	return l.token(Selector, content, pos), true
}

func (l *Lexer) scanString(pos ast.Position) Token {
	quote := l.ch
	var b strings.Builder
	b.WriteByte(quote)
	l.advance()
	for l.ch != 0 && l.ch != quote {
		if l.ch == '\\' {
			b.WriteByte(l.ch)
			l.advance()
			if l.ch == 0 {
				break
			}
		}
		b.WriteByte(l.ch)
		l.advance()
	}
	if l.ch == quote {
		b.WriteByte(quote)
		l.advance()
	}
	// Unterminated strings consume to end of input.
	return l.token(String, b.String(), pos)
}

func (l *Lexer) scanNumber(pos ast.Position) Token {
	start := l.pos
	if l.ch == '-' {
		l.advance()
	}
	for isDigitByte(l.ch) {
		l.advance()
	}
	if l.ch == '.' && isDigitByte(l.peek()) {
		l.advance()
		for isDigitByte(l.ch) {
			l.advance()
		}
	}
	// Fuse a trailing time or pixel unit into the number token.
	switch {
	case l.ch == 'm' && l.peek() == 's' && !isIdentPartByte(l.peekAt(2)):
		l.advance()
		l.advance()
	case l.ch == 's' && !isIdentPartByte(l.peek()):
		l.advance()
	case l.ch == 'p' && l.peek() == 'x' && !isIdentPartByte(l.peekAt(2)):
		l.advance()
		l.advance()
	}
	return l.token(Number, l.input[start:l.pos], pos)
}

// scanDot handles the three readings of ".": a class selector (.active),
// a bare member/modifier dot (click.once, event.target handled in the
// parser), or a leading-dot float (.5).
func (l *Lexer) scanDot(pos ast.Position) Token {
	if isDigitByte(l.peek()) {
		start := l.pos
		l.advance()
		for isDigitByte(l.ch) {
			l.advance()
		}
		return l.token(Number, l.input[start:l.pos], pos)
	}

	if !isSelPartByte(l.peek()) {
		l.advance()
		return l.token(Symbol, ".", pos)
	}

	// Event-modifier words after a dot stay a bare dot so chains like
	// click.once.debounce(300) keep their structure.
	word := l.wordAhead(l.readPos)
	if ModifierWords[word] {
		l.advance()
		return l.token(Symbol, ".", pos)
	}

	l.advance()
	return l.token(Selector, "."+l.scanSelectorBody(), pos)
}

// scanBracket distinguishes array literals from attribute selectors.
// A literal-looking character after [ means array syntax; anything else
// captures the whole bracketed span as a selector.
func (l *Lexer) scanBracket(pos ast.Position) Token {
	j := l.readPos
	for j < len(l.input) && (l.input[j] == ' ' || l.input[j] == '\t') {
		j++
	}
	if j >= len(l.input) {
		l.advance()
		return l.token(Symbol, "[", pos)
	}
	c := l.input[j]
	if c == '\'' || c == '"' || c == '[' || c == ']' || c == ':' || c == '$' || c == '-' || isDigitByte(c) {
		l.advance()
		return l.token(Symbol, "[", pos)
	}

	// Attribute selector: capture to the matching ] with depth tracking.
	start := l.pos
	depth := 0
	for l.ch != 0 {
		if l.ch == '[' {
			depth++
		} else if l.ch == ']' {
			depth--
			if depth == 0 {
				l.advance()
				break
			}
		}
		l.advance()
	}
	return l.token(Selector, l.input[start:l.pos], pos)
}

func (l *Lexer) scanOperator(pos ast.Position) Token {
	if l.pos+1 < len(l.input) {
		two := l.input[l.pos : l.pos+2]
		if twoCharOps[two] {
			l.advance()
			l.advance()
			return l.token(Operator, two, pos)
		}
	}
	ch := l.ch
	l.advance()
	return l.token(Operator, string(ch), pos)
}

func (l *Lexer) scanWord() string {
	start := l.pos
	for isIdentPartByte(l.ch) {
		l.advance()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) scanSelectorBody() string {
	start := l.pos
	for isSelPartByte(l.ch) {
		l.advance()
	}
	return l.input[start:l.pos]
}

// wordAhead reads the identifier starting at offset without consuming.
func (l *Lexer) wordAhead(offset int) string {
	end := offset
	for end < len(l.input) && isIdentPartByte(l.input[end]) {
		end++
	}
	return l.input[offset:end]
}

func isLetterByte(ch byte) bool {
	return ch < 128 && isLetter[ch]
}

func isDigitByte(ch byte) bool {
	return ch < 128 && isDigit[ch]
}

func isIdentStartByte(ch byte) bool {
	return (ch < 128 && isIdentStart[ch]) || ch >= utf8.RuneSelf
}

func isIdentPartByte(ch byte) bool {
	return (ch < 128 && isIdentPart[ch]) || ch >= utf8.RuneSelf
}

func isSelPartByte(ch byte) bool {
	return (ch < 128 && isSelPart[ch]) || ch >= utf8.RuneSelf
}
