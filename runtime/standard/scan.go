package standard

import (
	"fmt"
	"strings"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/runtime/parser"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokWord
	tokNumber
	tokString
	tokSelector
	tokLocalVar
	tokGlobalVar
	tokSymbol
	tokOperator
)

// token is one lexeme. text holds the processed form: selector values keep
// their sigil, variables drop theirs, strings are already unescaped.
type token struct {
	kind tokKind
	text string
	pos  ast.Position
}

// width is the source length of the token, used for adjacency checks.
func (t token) width() int {
	switch t.kind {
	case tokLocalVar, tokGlobalVar:
		return 1 + len(t.text)
	default:
		return len(t.text)
	}
}

func (t token) isWord(s string) bool {
	return t.kind == tokWord && t.text == s
}

func (t token) isSymbol(s string) bool {
	return t.kind == tokSymbol && t.text == s
}

type scanner struct {
	input string
	pos   int
	line  int
	col   int
}

// scan tokenizes the whole input up front. The standard tier keeps its own
// scanner: a handful of byte-dispatch cases instead of the full tier's
// priority rules.
func scan(input string) ([]token, *parser.ParseError) {
	s := &scanner{input: input, line: 1, col: 1}
	var toks []token
	for {
		t, err := s.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func (s *scanner) next() (token, *parser.ParseError) {
	s.skipSpace()
	pos := ast.Position{Line: s.line, Column: s.col, Offset: s.pos}
	if s.pos >= len(s.input) {
		return token{kind: tokEOF, pos: pos}, nil
	}

	ch := s.input[s.pos]
	switch {
	case isWordStart(ch):
		return token{kind: tokWord, text: s.word(), pos: pos}, nil

	case ch >= '0' && ch <= '9':
		return token{kind: tokNumber, text: s.number(), pos: pos}, nil

	case ch == '"':
		return s.str(pos)

	case ch == '\'':
		// Possessive 's outranks a single-quoted string when it reads as
		// one: apostrophe, s, then a word boundary.
		if s.pos+1 < len(s.input) && s.input[s.pos+1] == 's' &&
			(s.pos+2 >= len(s.input) || !isWordPart(s.input[s.pos+2])) {
			s.advance(2)
			return token{kind: tokOperator, text: "'s", pos: pos}, nil
		}
		return s.str(pos)

	case ch == '#':
		if s.pos+1 < len(s.input) && isSelPart(s.input[s.pos+1]) {
			s.advance(1)
			return token{kind: tokSelector, text: "#" + s.selBody(), pos: pos}, nil
		}
		s.advance(1)
		return token{kind: tokSymbol, text: "#", pos: pos}, nil

	case ch == '.':
		if s.pos+1 < len(s.input) && s.input[s.pos+1] >= '0' && s.input[s.pos+1] <= '9' {
			return token{kind: tokNumber, text: s.number(), pos: pos}, nil
		}
		if s.pos+1 < len(s.input) && isSelPart(s.input[s.pos+1]) {
			s.advance(1)
			return token{kind: tokSelector, text: "." + s.selBody(), pos: pos}, nil
		}
		s.advance(1)
		return token{kind: tokSymbol, text: ".", pos: pos}, nil

	case ch == ':':
		if s.pos+1 < len(s.input) && isWordStart(s.input[s.pos+1]) {
			s.advance(1)
			return token{kind: tokLocalVar, text: s.bareWord(), pos: pos}, nil
		}
		s.advance(1)
		return token{kind: tokSymbol, text: ":", pos: pos}, nil

	case ch == '$':
		if s.pos+1 < len(s.input) && isWordStart(s.input[s.pos+1]) {
			s.advance(1)
			return token{kind: tokGlobalVar, text: s.bareWord(), pos: pos}, nil
		}
		s.advance(1)
		return token{kind: tokSymbol, text: "$", pos: pos}, nil

	case ch == '(' || ch == ')' || ch == ',':
		s.advance(1)
		return token{kind: tokSymbol, text: string(ch), pos: pos}, nil

	case strings.IndexByte("+-*/<>=!", ch) >= 0:
		return token{kind: tokOperator, text: s.operator(), pos: pos}, nil
	}

	return token{}, &parser.ParseError{
		Kind:    parser.ErrorSyntax,
		Message: fmt.Sprintf("unexpected character %q", string(ch)),
		Pos:     pos,
		Input:   s.input,
	}
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.input) {
		switch s.input[s.pos] {
		case ' ', '\t', '\r':
			s.advance(1)
		case '\n':
			s.pos++
			s.line++
			s.col = 1
		case '-':
			// "--" starts a comment to end of line.
			if s.pos+1 < len(s.input) && s.input[s.pos+1] == '-' {
				for s.pos < len(s.input) && s.input[s.pos] != '\n' {
					s.advance(1)
				}
				continue
			}
			return
		default:
			return
		}
	}
}

func (s *scanner) advance(n int) {
	s.pos += n
	s.col += n
}

// word scans an identifier; interior dashes stay in, so "cart-item-added"
// is a single token.
func (s *scanner) word() string {
	start := s.pos
	for s.pos < len(s.input) && isWordPart(s.input[s.pos]) {
		s.advance(1)
	}
	return s.input[start:s.pos]
}

// bareWord scans an identifier without dashes, for variable names.
func (s *scanner) bareWord() string {
	start := s.pos
	for s.pos < len(s.input) && isIdentPart(s.input[s.pos]) {
		s.advance(1)
	}
	return s.input[start:s.pos]
}

func (s *scanner) selBody() string {
	start := s.pos
	for s.pos < len(s.input) && isSelPart(s.input[s.pos]) {
		s.advance(1)
	}
	return s.input[start:s.pos]
}

// number scans digits with an optional fraction and an optional fused
// ms/s/px suffix.
func (s *scanner) number() string {
	start := s.pos
	for s.pos < len(s.input) && s.input[s.pos] >= '0' && s.input[s.pos] <= '9' {
		s.advance(1)
	}
	if s.pos < len(s.input) && s.input[s.pos] == '.' &&
		s.pos+1 < len(s.input) && s.input[s.pos+1] >= '0' && s.input[s.pos+1] <= '9' {
		s.advance(1)
		for s.pos < len(s.input) && s.input[s.pos] >= '0' && s.input[s.pos] <= '9' {
			s.advance(1)
		}
	}
	for _, suffix := range []string{"ms", "px", "s"} {
		if strings.HasPrefix(s.input[s.pos:], suffix) {
			after := s.pos + len(suffix)
			if after >= len(s.input) || !isWordPart(s.input[after]) {
				s.advance(len(suffix))
				break
			}
		}
	}
	return s.input[start:s.pos]
}

func (s *scanner) str(pos ast.Position) (token, *parser.ParseError) {
	quote := s.input[s.pos]
	s.advance(1)
	var b strings.Builder
	for s.pos < len(s.input) {
		ch := s.input[s.pos]
		switch ch {
		case quote:
			s.advance(1)
			return token{kind: tokString, text: b.String(), pos: pos}, nil
		case '\\':
			s.advance(1)
			if s.pos >= len(s.input) {
				continue
			}
			switch s.input[s.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s.input[s.pos])
			}
			s.advance(1)
		case '\n':
			s.pos++
			s.line++
			s.col = 1
			b.WriteByte('\n')
		default:
			b.WriteByte(ch)
			s.advance(1)
		}
	}
	return token{}, &parser.ParseError{
		Kind:    parser.ErrorSyntax,
		Message: "unterminated string",
		Pos:     pos,
		Input:   s.input,
	}
}

func (s *scanner) operator() string {
	two := ""
	if s.pos+1 < len(s.input) {
		two = s.input[s.pos : s.pos+2]
	}
	switch two {
	case "**", "==", "!=", "<=", ">=":
		s.advance(2)
		return two
	}
	op := string(s.input[s.pos])
	s.advance(1)
	return op
}

func isWordStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentPart(ch byte) bool {
	return isWordStart(ch) || ch >= '0' && ch <= '9'
}

func isWordPart(ch byte) bool {
	return isIdentPart(ch) || ch == '-'
}

func isSelPart(ch byte) bool {
	return isWordPart(ch)
}
