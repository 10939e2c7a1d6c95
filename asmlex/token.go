// Package asmlex tokenizes one line of gvm64 assembly source at a time.
package asmlex

import (
	"fmt"

	"github.com/kaelstrom/gvm64/isa"
)

// TokenKind classifies a Token.
type TokenKind uint8

const (
	TokIdent TokenKind = iota
	TokLabel
	TokSizeClass
	TokOffsetOf
	TokNumber
	TokComma
	TokComment
	TokLParen
	TokRParen
	TokEOF
	TokOp
)

// Token is one lexical unit produced by Next.
type Token struct {
	Kind  TokenKind
	Ident string      // TokIdent, TokLabel (includes trailing ':')
	Size  isa.OperandSize // TokSizeClass
	Num   uint64      // TokNumber
	Op    byte        // TokOp
}

func (t Token) String() string {
	switch t.Kind {
	case TokIdent:
		return fmt.Sprintf("Ident(%s)", t.Ident)
	case TokLabel:
		return fmt.Sprintf("Label(%s)", t.Ident)
	case TokSizeClass:
		return fmt.Sprintf("SizeClass(%s)", t.Size)
	case TokOffsetOf:
		return "OffsetOf"
	case TokNumber:
		return fmt.Sprintf("Number(%d)", t.Num)
	case TokComma:
		return "Comma"
	case TokComment:
		return "Comment"
	case TokLParen:
		return "LParen"
	case TokRParen:
		return "RParen"
	case TokEOF:
		return "EOF"
	case TokOp:
		return fmt.Sprintf("Op(%c)", t.Op)
	default:
		return "Unknown"
	}
}
