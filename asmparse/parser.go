// Package asmparse turns a line's tokens into a label definition or a
// LexInstruction — an intermediate form the asmbuild package compiles into
// bytecode.
package asmparse

import (
	"fmt"
	"strings"

	"github.com/kaelstrom/gvm64/asmlex"
	"github.com/kaelstrom/gvm64/isa"
)

// ExprKind tags which field of Expr holds meaningful data.
type ExprKind uint8

const (
	ExprRegisterOp ExprKind = iota
	ExprMemoryOp
	ExprImmediate
	ExprLabel
	ExprLabelRef
)

// Expr is one parsed operand or label.
type Expr struct {
	Kind ExprKind

	Reg isa.Register // ExprRegisterOp

	Size         isa.OperandSize // ExprMemoryOp
	Displacement uint64
	Scale        uint8
	IndexReg     isa.Register
	HasIndexReg  bool
	BaseReg      isa.Register
	HasBaseReg   bool

	Imm uint64 // ExprImmediate

	Label string // ExprLabel, ExprLabelRef
}

// LexInstruction is the intermediate representation of an isa.Instruction
// before operand encoding: a mnemonic plus its parsed operand expressions.
type LexInstruction struct {
	Mnemonic isa.Mnemonic
	Operands []Expr
}

// branchMnemonics treats a bare identifier operand as a label reference
// rather than a register name.
var branchMnemonics = map[isa.Mnemonic]bool{
	isa.MnemJmp: true, isa.MnemJz: true, isa.MnemJnz: true,
	isa.MnemJle: true, isa.MnemJg: true, isa.MnemJge: true, isa.MnemJb: true,
}

// Parser consumes one line's worth of tokens.
type Parser struct {
	tokens []asmlex.Token
}

// New lexes input and returns a Parser over its tokens.
func New(input string) (*Parser, error) {
	toks, err := asmlex.Tokenize(input)
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: toks}, nil
}

// ParseLabel returns the label name (including its trailing colon) if the
// line is a bare label definition, or "" if it isn't.
func (p *Parser) ParseLabel() (string, bool, error) {
	if len(p.tokens) == 0 {
		return "", false, nil
	}
	if p.tokens[0].Kind == asmlex.TokLabel {
		return p.tokens[0].Ident, true, nil
	}
	return "", false, nil
}

// Parse returns the line's instruction, or (nil, nil) if the line holds no
// instruction (blank, comment-only, or a label definition).
func (p *Parser) Parse() (*LexInstruction, error) {
	if len(p.tokens) == 0 || p.tokens[0].Kind != asmlex.TokIdent {
		return nil, nil
	}

	mnemonic, ok := isa.ParseMnemonic(p.tokens[0].Ident)
	if !ok {
		return nil, fmt.Errorf("unrecognized mnemonic: %s", p.tokens[0].Ident)
	}

	if len(p.tokens) == 1 {
		return &LexInstruction{Mnemonic: mnemonic}, nil
	}

	op0, err := p.parseOperand(1, mnemonic)
	if err != nil {
		return nil, err
	}
	operands := []Expr{op0}

	commaPos := -1
	for i := 1; i < len(p.tokens); i++ {
		if p.tokens[i].Kind == asmlex.TokComma {
			commaPos = i
			break
		}
	}
	if commaPos >= 0 {
		if commaPos+1 >= len(p.tokens) {
			return nil, fmt.Errorf("expected an operand after ','")
		}
		op1, err := p.parseOperand(commaPos+1, mnemonic)
		if err != nil {
			return nil, err
		}
		operands = append(operands, op1)
	}

	return &LexInstruction{Mnemonic: mnemonic, Operands: operands}, nil
}

// parseOperand parses the operand expression starting at token index i.
// Trailing tokens beyond the first two operands are never inspected.
func (p *Parser) parseOperand(i int, mnemonic isa.Mnemonic) (Expr, error) {
	tok := p.tokens[i]

	switch tok.Kind {
	case asmlex.TokOffsetOf:
		if i+1 >= len(p.tokens) || p.tokens[i+1].Kind != asmlex.TokIdent {
			return Expr{}, fmt.Errorf("expected an identifier after 'offsetof'")
		}
		return Expr{Kind: ExprLabelRef, Label: p.tokens[i+1].Ident}, nil

	case asmlex.TokSizeClass:
		return p.parseMemoryOperand(i)

	case asmlex.TokIdent:
		if branchMnemonics[mnemonic] {
			return Expr{Kind: ExprLabelRef, Label: tok.Ident}, nil
		}
		reg, ok := isa.ParseRegister(tok.Ident)
		if !ok {
			return Expr{}, fmt.Errorf("unrecognized register: %s", tok.Ident)
		}
		return Expr{Kind: ExprRegisterOp, Reg: reg}, nil

	case asmlex.TokLabel:
		return Expr{Kind: ExprLabel, Label: strings.TrimSuffix(tok.Ident, ":")}, nil

	case asmlex.TokNumber:
		return Expr{Kind: ExprImmediate, Imm: tok.Num}, nil

	default:
		return Expr{}, fmt.Errorf("unexpected token: %v", tok)
	}
}

// parseMemoryOperand parses `size [base]`, `size [base+index]`, or
// `size [base+index*scale]` starting at the TokSizeClass token index i.
func (p *Parser) parseMemoryOperand(i int) (Expr, error) {
	size := p.tokens[i].Size

	if i+1 >= len(p.tokens) || p.tokens[i+1].Kind != asmlex.TokLParen {
		return Expr{}, fmt.Errorf("expected '[' after size class")
	}

	end := -1
	for j := i; j < len(p.tokens); j++ {
		if p.tokens[j].Kind == asmlex.TokRParen {
			end = j
			break
		}
	}
	if end == -1 {
		return Expr{}, fmt.Errorf("expected ']'")
	}

	inner := p.tokens[i : end+1] // [SizeClass, LParen, ..., RParen]
	if len(inner) < 4 {
		return Expr{}, fmt.Errorf("expected an identifier after '['")
	}

	var baseReg isa.Register
	hasBase := false
	if inner[2].Kind == asmlex.TokIdent {
		reg, ok := isa.ParseRegister(inner[2].Ident)
		if !ok {
			return Expr{}, fmt.Errorf("unrecognized register: %s", inner[2].Ident)
		}
		baseReg, hasBase = reg, true
	} else {
		return Expr{}, fmt.Errorf("expected identifier")
	}

	var indexReg isa.Register
	hasIndex := false
	if len(inner) > 5 {
		if inner[4].Kind != asmlex.TokIdent {
			return Expr{}, fmt.Errorf("expected register: %v", inner[4])
		}
		reg, ok := isa.ParseRegister(inner[4].Ident)
		if !ok {
			return Expr{}, fmt.Errorf("unrecognized register: %s", inner[4].Ident)
		}
		indexReg, hasIndex = reg, true
	}

	scale := uint8(1)
	if len(inner) > 7 {
		if inner[6].Kind != asmlex.TokNumber {
			return Expr{}, fmt.Errorf("expected scale number 1 | 2 | 4 | 8: %v", inner[6])
		}
		switch inner[6].Num {
		case 1, 2, 4, 8:
			scale = uint8(inner[6].Num)
		default:
			return Expr{}, fmt.Errorf("unrecognized scale: %d", inner[6].Num)
		}
	}

	return Expr{
		Kind:        ExprMemoryOp,
		Size:        size,
		Scale:       scale,
		IndexReg:    indexReg,
		HasIndexReg: hasIndex,
		BaseReg:     baseReg,
		HasBaseReg:  hasBase,
	}, nil
}
