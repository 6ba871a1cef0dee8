package ramgen

import (
	"strings"
	"testing"

	"algo/internal/lexer"
	"algo/internal/parser"
)

func compileRAM(t *testing.T, src string) string {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	fns, err := parser.New(toks, "test.algo").Program()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := Program(fns, "test.algo")
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	return out
}

const sampleProgram = `
FONCTION main()
	x : ENTIER;
	LIRE x;
	SI x > 0 ALORS
		AFFICHER x;
	SINON
		AFFICHER 0;
	FSI
FIN`

func TestProgramEmitsWithoutInternalError(t *testing.T) {
	out := compileRAM(t, sampleProgram)
	if !strings.Contains(out, "READ") {
		t.Error("expected a READ instruction for LIRE x")
	}
	if !strings.Contains(out, "WRITE") {
		t.Error("expected a WRITE instruction for AFFICHER")
	}
}

func TestProgramIsDeterministic(t *testing.T) {
	a := compileRAM(t, sampleProgram)
	b := compileRAM(t, sampleProgram)
	if a != b {
		t.Error("compiling the same source twice should produce identical RAM assembly")
	}
}

func TestProgramRequiresMain(t *testing.T) {
	toks := lexer.NewScanner(`FONCTION autre() FIN`).ScanTokens()
	fns, err := parser.New(toks, "test.algo").Program()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := Program(fns, "test.algo"); err == nil {
		t.Error("a program with no main function should fail to compile")
	}
}

func TestProgramRejectsDuplicateFunctions(t *testing.T) {
	toks := lexer.NewScanner(`
FONCTION main() FIN
FONCTION main() FIN`).ScanTokens()
	fns, err := parser.New(toks, "test.algo").Program()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := Program(fns, "test.algo"); err == nil {
		t.Error("duplicate function names should fail with DuplicateFunction")
	}
}

func TestProgramWithFunctionCall(t *testing.T) {
	out := compileRAM(t, `
FONCTION carre(n)
	RENVOYER n * n;
FIN

FONCTION main()
	x : ENTIER;
	x := carre(5);
	AFFICHER x;
FIN`)
	if !strings.Contains(out, "BUILTIN JUMP @0") {
		t.Error("expected the dynamic-return dispatcher to be emitted")
	}
}

func TestProgramWithWhileLoopAndArray(t *testing.T) {
	out := compileRAM(t, `
FONCTION main()
	tab : TABLEAU[3];
	i : ENTIER;
	tab := {1, 2, 3};
	i := 0;
	TQ i < 3 FAIRE
		AFFICHER tab[i];
		i := i + 1;
	FTQ
FIN`)
	if out == "" {
		t.Fatal("expected non-empty output")
	}
}
