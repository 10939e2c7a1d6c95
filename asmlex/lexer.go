package asmlex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kaelstrom/gvm64/isa"
)

// Lexer tokenizes a single line of assembly source, one Token at a time.
// Comment stripping happens inline: a ';' token consumes through the next
// newline (or end of input) and is reported back as TokComment.
type Lexer struct {
	runes []rune
	pos   int
}

// New returns a Lexer over input.
func New(input string) *Lexer {
	return &Lexer{runes: []rune(input)}
}

func (l *Lexer) peek() (rune, bool) {
	if l.pos >= len(l.runes) {
		return 0, false
	}
	return l.runes[l.pos], true
}

func (l *Lexer) advance() (rune, bool) {
	r, ok := l.peek()
	if ok {
		l.pos++
	}
	return r, ok
}

// Next returns the next token, or a TokEOF token once the input is
// exhausted.
func (l *Lexer) Next() (Token, error) {
	for {
		ch, ok := l.peek()
		if !ok {
			return Token{Kind: TokEOF}, nil
		}
		if !isSpace(ch) {
			break
		}
		l.advance()
	}

	start := l.pos
	ch, ok := l.advance()
	if !ok {
		return Token{Kind: TokEOF}, nil
	}

	switch {
	case ch == '[':
		return Token{Kind: TokLParen}, nil
	case ch == ']':
		return Token{Kind: TokRParen}, nil
	case ch == ',':
		return Token{Kind: TokComma}, nil
	case ch == ';':
		for {
			c, ok := l.advance()
			if !ok || c == '\n' {
				break
			}
		}
		return Token{Kind: TokComment}, nil
	case ch >= '0' && ch <= '9':
		isHex := false
		for {
			c, ok := l.peek()
			if !ok {
				break
			}
			if c == 'h' || !isHexDigit(c) {
				if c == 'h' {
					isHex = true
				}
				break
			}
			l.advance()
		}
		text := string(l.runes[start:l.pos])
		var value uint64
		var err error
		if isHex {
			l.advance() // consume trailing 'h'
			value, err = strconv.ParseUint(strings.TrimSuffix(text, "h"), 16, 64)
		} else {
			value, err = strconv.ParseUint(text, 10, 64)
		}
		if err != nil {
			return Token{}, fmt.Errorf("%w: %s", err, text)
		}
		return Token{Kind: TokNumber, Num: value}, nil
	case isIdentStart(ch):
		for {
			c, ok := l.peek()
			if !ok {
				break
			}
			if c != '_' && c != ':' && !isAlnum(c) {
				break
			}
			l.advance()
		}
		ident := string(l.runes[start:l.pos])
		switch {
		case strings.HasSuffix(ident, ":"):
			return Token{Kind: TokLabel, Ident: ident}, nil
		default:
			if size, ok := isa.ParseOperandSize(ident); ok {
				return Token{Kind: TokSizeClass, Size: size}, nil
			}
			if ident == "offsetof" {
				return Token{Kind: TokOffsetOf}, nil
			}
			return Token{Kind: TokIdent, Ident: ident}, nil
		}
	default:
		return Token{Kind: TokOp, Op: byte(ch)}, nil
	}
}

// Tokenize drains the lexer into a slice, stopping before the terminal EOF
// token (matching the Rust Iterator impl, which yields None on EOF).
func Tokenize(input string) ([]Token, error) {
	lex := New(input)
	var toks []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokEOF {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == ':'
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
