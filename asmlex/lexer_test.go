package asmlex

import (
	"testing"

	"github.com/kaelstrom/gvm64/isa"
)

func TestTokenizeInstructionLine(t *testing.T) {
	toks, err := Tokenize("mov r0, 10h")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 4 {
		t.Fatalf("got %d tokens, want 4: %v", len(toks), toks)
	}
	if toks[0].Kind != TokIdent || toks[0].Ident != "mov" {
		t.Fatalf("unexpected first token: %v", toks[0])
	}
	if toks[1].Kind != TokIdent || toks[1].Ident != "r0" {
		t.Fatalf("unexpected second token: %v", toks[1])
	}
	if toks[2].Kind != TokComma {
		t.Fatalf("unexpected third token: %v", toks[2])
	}
	if toks[3].Kind != TokNumber || toks[3].Num != 0x10 {
		t.Fatalf("unexpected fourth token: %v", toks[3])
	}
}

func TestTokenizeDecimalNumber(t *testing.T) {
	toks, err := Tokenize("42")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0].Num != 42 {
		t.Fatalf("got %v", toks)
	}
}

func TestTokenizeLabel(t *testing.T) {
	toks, err := Tokenize("loop_top:")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0].Kind != TokLabel || toks[0].Ident != "loop_top:" {
		t.Fatalf("got %v", toks)
	}
}

func TestTokenizeSizeClassAndOffsetOf(t *testing.T) {
	toks, err := Tokenize("mov r0, qword [offsetof buf]")
	if err != nil {
		t.Fatal(err)
	}
	var sawSizeClass, sawOffsetOf bool
	for _, tok := range toks {
		if tok.Kind == TokSizeClass && tok.Size == isa.QWord {
			sawSizeClass = true
		}
		if tok.Kind == TokOffsetOf {
			sawOffsetOf = true
		}
	}
	if !sawSizeClass || !sawOffsetOf {
		t.Fatalf("expected a qword size class and an offsetof token, got %v", toks)
	}
}

func TestTokenizeCommentConsumesRestOfLine(t *testing.T) {
	toks, err := Tokenize("mov r0, 1 ; trailing comment")
	if err != nil {
		t.Fatal(err)
	}
	last := toks[len(toks)-1]
	if last.Kind != TokComment {
		t.Fatalf("expected the line to end in a comment token, got %v", last)
	}
}

func TestTokenizeMemoryOperandPunctuation(t *testing.T) {
	toks, err := Tokenize("qword [r1+r2*8]")
	if err != nil {
		t.Fatal(err)
	}
	kinds := []TokenKind{TokSizeClass, TokLParen, TokIdent, TokOp, TokIdent, TokOp, TokNumber, TokRParen}
	if len(toks) != len(kinds) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(kinds), toks)
	}
	for i, k := range kinds {
		if toks[i].Kind != k {
			t.Fatalf("token %d: got %v want %v", i, toks[i].Kind, k)
		}
	}
}
