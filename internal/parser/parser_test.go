package parser

import (
	"testing"

	"algo/internal/ast"
	"algo/internal/lexer"
)

func parseSource(t *testing.T, src string) []*ast.Node {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	fns, err := New(toks, "test.algo").Program()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return fns
}

func TestParseEmptyFunction(t *testing.T) {
	fns := parseSource(t, `FONCTION main() FIN`)
	if len(fns) != 1 {
		t.Fatalf("expected 1 function, got %d", len(fns))
	}
	if fns[0].Id != "main" {
		t.Errorf("Id = %q, want main", fns[0].Id)
	}
}

func TestParseScalarDeclarationAndAssignment(t *testing.T) {
	fns := parseSource(t, `
FONCTION main()
	x : ENTIER;
	x := 1 + 2;
	AFFICHER x;
FIN`)
	fn := fns[0]
	if fn.Body == nil {
		t.Fatal("expected a non-empty body")
	}
}

func TestParseArrayDeclarationAndIntList(t *testing.T) {
	fns := parseSource(t, `
FONCTION main()
	tab : TABLEAU[3];
	tab := {1, 2, 3};
FIN`)
	fn := fns[0]
	if fn.Body == nil || fn.Body.Stmt == nil {
		t.Fatal("expected a statement inside the body")
	}
	if fn.Body.Stmt.Tag != ast.TagAssignIntList {
		t.Errorf("Tag = %v, want TagAssignIntList", fn.Body.Stmt.Tag)
	}
}

func TestParseIfWhileReadPrint(t *testing.T) {
	fns := parseSource(t, `
FONCTION main()
	x : ENTIER;
	LIRE x;
	SI x > 0 ALORS
		AFFICHER x;
	SINON
		AFFICHER 0;
	FSI
	TQ x > 0 FAIRE
		x := x - 1;
	FTQ
FIN`)
	if len(fns) != 1 {
		t.Fatalf("expected 1 function, got %d", len(fns))
	}
}

func TestParseFunctionWithParamsAndReturn(t *testing.T) {
	fns := parseSource(t, `
FONCTION carre(n)
	RENVOYER n * n;
FIN

FONCTION main()
	x : ENTIER;
	x := carre(5);
	AFFICHER x;
FIN`)
	if len(fns) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(fns))
	}
	if len(fns[0].Params) != 1 {
		t.Errorf("expected 1 param for carre, got %d", len(fns[0].Params))
	}
}

func TestParseUnknownIdentifierFails(t *testing.T) {
	toks := lexer.NewScanner(`
FONCTION main()
	x := 1;
FIN`).ScanTokens()
	_, err := New(toks, "test.algo").Program()
	if err == nil {
		t.Error("assigning to an undeclared scalar should fail")
	}
}

func TestParseMissingFinFails(t *testing.T) {
	toks := lexer.NewScanner(`FONCTION main()`).ScanTokens()
	_, err := New(toks, "test.algo").Program()
	if err == nil {
		t.Error("a function missing FIN should fail to parse")
	}
}
