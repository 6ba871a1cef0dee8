package ast

import (
	"algo/internal/symtab"
	"testing"
)

func TestNewIntNinst(t *testing.T) {
	n := NewInt(42, 1)
	if n.Ninst != 1 {
		t.Errorf("NewInt.Ninst = %d, want 1", n.Ninst)
	}
}

func TestNewVarRequiresScalar(t *testing.T) {
	st := symtab.Empty()
	if _, err := symtab.CreateArray(st, "tab", 3, loc("f", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := NewVar(st, "tab", "f", 1); err == nil {
		t.Error("NewVar on an array identifier should fail with KindMismatch")
	}
}

func TestNewVarNinst(t *testing.T) {
	st := symtab.Empty()
	if _, err := symtab.CreateScalar(st, "x", loc("f", 1)); err != nil {
		t.Fatal(err)
	}
	n, err := NewVar(st, "x", "f", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n.Ninst != 3 {
		t.Errorf("NewVar.Ninst = %d, want 3", n.Ninst)
	}
}

func TestNewBinaryOpNinstByKind(t *testing.T) {
	lhs, rhs := NewInt(1, 1), NewInt(2, 1)
	cases := []struct {
		op    BinOp
		extra int
	}{
		{OpAdd, 4}, {OpSub, 4}, {OpMul, 4}, {OpDiv, 4}, {OpMod, 4},
		{OpGe, 8}, {OpGt, 8}, {OpLe, 8}, {OpLt, 8}, {OpEq, 8}, {OpNe, 8},
		{OpAnd, 3}, {OpOr, 4}, {OpXor, 10},
	}
	for _, c := range cases {
		n := NewBinaryOp(c.op, lhs, rhs, 1)
		want := lhs.Ninst + rhs.Ninst + c.extra
		if n.Ninst != want {
			t.Errorf("op %v: Ninst = %d, want %d", c.op, n.Ninst, want)
		}
	}
}

func TestNewBinaryOpNoOpPropagation(t *testing.T) {
	if NewBinaryOp(OpAdd, NoOp, NewInt(1, 1), 1) != NoOp {
		t.Error("NoOp lhs should propagate")
	}
	if NewBinaryOp(OpAdd, NewInt(1, 1), NoOp, 1) != NoOp {
		t.Error("NoOp rhs should propagate")
	}
}

func TestNewUnaryOpNinst(t *testing.T) {
	expr := NewInt(5, 1)
	if n := NewUnaryOp(OpNeg, expr, 1); n.Ninst != expr.Ninst+3 {
		t.Errorf("Neg.Ninst = %d, want %d", n.Ninst, expr.Ninst+3)
	}
	if n := NewUnaryOp(OpNot, expr, 1); n.Ninst != expr.Ninst+4 {
		t.Errorf("Not.Ninst = %d, want %d", n.Ninst, expr.Ninst+4)
	}
}

func TestNewAssignIndexedZeroSizeArrayIsNoOp(t *testing.T) {
	st := symtab.Empty()
	if _, err := symtab.CreateArray(st, "tab", 0, loc("f", 1)); err != nil {
		t.Fatal(err)
	}
	n, err := NewAssignIndexed(st, "tab", NewInt(0, 1), NewInt(1, 1), "f", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != NoOp {
		t.Error("assignment into a size-zero array should collapse to NoOp")
	}
}

func TestNewAssignIntListSizeMismatch(t *testing.T) {
	st := symtab.Empty()
	if _, err := symtab.CreateArray(st, "tab", 3, loc("f", 1)); err != nil {
		t.Fatal(err)
	}
	values := []*Node{NewInt(1, 1), NewInt(2, 1)}
	if _, err := NewAssignIntList(st, "tab", values, "f", 1); err == nil {
		t.Error("wrong-length int list should fail with SizeMismatch")
	}
}

func TestNewTestNinstWithAndWithoutElse(t *testing.T) {
	cond := NewInt(1, 1)
	then := &Node{Tag: TagBlock, Ninst: 5}
	withoutElse := NewTest(cond, then, nil, 1)
	if want := cond.Ninst + 1 + then.Ninst + 2; withoutElse.Ninst != want {
		t.Errorf("Test without else: Ninst = %d, want %d", withoutElse.Ninst, want)
	}

	els := &Node{Tag: TagBlock, Ninst: 3}
	withElse := NewTest(cond, then, els, 1)
	if want := cond.Ninst + 1 + then.Ninst + 4 + els.Ninst; withElse.Ninst != want {
		t.Errorf("Test with else: Ninst = %d, want %d", withElse.Ninst, want)
	}
}

func TestNewTestNoBranchesIsNoOp(t *testing.T) {
	if NewTest(NewInt(1, 1), nil, nil, 1) != NoOp {
		t.Error("Test with no branches should collapse to NoOp")
	}
}

func TestNewWhileNinst(t *testing.T) {
	cond := NewInt(1, 1)
	body := &Node{Tag: TagBlock, Ninst: 4}
	n := NewWhile(cond, body, 1)
	if want := cond.Ninst + body.Ninst + 2; n.Ninst != want {
		t.Errorf("While.Ninst = %d, want %d", n.Ninst, want)
	}
}

func TestNewReadCreatesScalarWhenAbsent(t *testing.T) {
	st := symtab.Empty()
	n, err := NewRead(st, "x", "f", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n.Ninst != 5 {
		t.Errorf("Read.Ninst = %d, want 5", n.Ninst)
	}
	if _, ok := st.Find("x"); !ok {
		t.Error("LIRE on an unknown identifier should create a scalar")
	}
}

func TestNewFnNinst(t *testing.T) {
	st := symtab.Empty()
	body := &Node{Tag: TagBlock, Ninst: 10}
	fn := NewFn("f", nil, body, st, 1)
	if fn.Ninst != 7+10 {
		t.Errorf("Fn.Ninst = %d, want %d", fn.Ninst, 17)
	}
}

func TestNewFnCallNinst(t *testing.T) {
	args := []*Node{NewInt(1, 1), NewInt(2, 1)}
	n := NewFnCall("f", args, 1)
	want := 17 + (1+6)*2
	if n.Ninst != want {
		t.Errorf("FnCall.Ninst = %d, want %d", n.Ninst, want)
	}
}

func TestNewReturnFallsBackToLiteralZero(t *testing.T) {
	n := NewReturn(nil, 1)
	if n.Ninst != 4+1 {
		t.Errorf("Return().Ninst = %d, want 5", n.Ninst)
	}
}

func TestMakeBlockFlattensRightLeaning(t *testing.T) {
	a := NewInt(1, 1)
	b := NewInt(2, 1)
	c := NewInt(3, 1)

	// Built tail-first: MakeBlock's convention is p-fresh, q-already-built
	// tail, so the last statement is folded in first.
	cBlock, err := MakeBlock(c, nil, "f", 1)
	if err != nil {
		t.Fatal(err)
	}
	bc, err := MakeBlock(b, cBlock, "f", 1)
	if err != nil {
		t.Fatal(err)
	}
	abc, err := MakeBlock(a, bc, "f", 1)
	if err != nil {
		t.Fatal(err)
	}
	if abc.Tag != TagBlock {
		t.Fatalf("expected TagBlock, got %v", abc.Tag)
	}
	count := 0
	for n := abc; n != nil; n = n.Next {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 chained Block nodes, got %d", count)
	}
}

func TestMakeBlockRejectsBareEquality(t *testing.T) {
	st := symtab.Empty()
	if _, err := symtab.CreateScalar(st, "x", loc("f", 1)); err != nil {
		t.Fatal(err)
	}
	v, err := NewVar(st, "x", "f", 1)
	if err != nil {
		t.Fatal(err)
	}
	eq := NewBinaryOp(OpEq, v, NewInt(1, 1), 1)
	if _, err := MakeBlock(eq, nil, "f", 1); err == nil {
		t.Error("a bare top-level '=' should fail with BareEquality")
	}
}

func TestIsNoOp(t *testing.T) {
	if !IsNoOp(nil) || !IsNoOp(NoOp) || !IsNoOp(&Node{Tag: TagNoOp}) {
		t.Error("IsNoOp should hold for nil, the NoOp sentinel, and any TagNoOp node")
	}
	if IsNoOp(NewInt(1, 1)) {
		t.Error("IsNoOp should not hold for a real node")
	}
}
