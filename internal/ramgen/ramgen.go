// Package ramgen implements ALGO's RAM back-end (§4.D): it walks an AST
// and emits a numbered sequence of RAM machine instructions with
// correct forward/backward jump targets, computed without patching
// because every node's offset is the sum of the ninst of everything
// emitted before it (§5's core ordering invariant).
//
// Unlike the original implementation, there is no process-wide "current
// symbol table", return-point set, or output stream (spec.md §5, §9):
// all of that lives on the *Emitter value threaded through one Program
// call, so two programs could in principle be emitted by two goroutines
// without interference.
package ramgen

import (
	"fmt"
	"sort"
	"strings"

	"algo/internal/ast"
	"algo/internal/diag"
	"algo/internal/printer"
	"algo/internal/symtab"
)

// fnInfo is what the placement pass records about one function: its
// code address and the AST node itself (for arity checks at call
// sites).
type fnInfo struct {
	node *ast.Node
	addr int
}

// Emitter accumulates RAM assembly lines and the bookkeeping the
// back-end needs while it does: the current instruction pointer
// (derived from len(lines), never tracked separately so it can't drift
// out of sync with what was actually written), the sorted set of
// dynamic return points, and the function address table.
type Emitter struct {
	lines        []string
	returnPoints []int
	fns          map[string]*fnInfo
	dynJumpAddr  int
	file         string
}

func newEmitter(file string) *Emitter {
	return &Emitter{fns: make(map[string]*fnInfo), file: file}
}

func (e *Emitter) ip() int { return len(e.lines) }

// line appends one fully-formatted instruction line and implicitly
// advances ip by exactly one.
func (e *Emitter) line(format string, args ...interface{}) {
	e.lines = append(e.lines, fmt.Sprintf(format, args...))
}

// recordReturnPoint performs sorted insertion into the set of known
// dynamic return addresses (property 7: return-point closure).
func (e *Emitter) recordReturnPoint(adr int) {
	i := sort.SearchInts(e.returnPoints, adr)
	e.returnPoints = append(e.returnPoints, 0)
	copy(e.returnPoints[i+1:], e.returnPoints[i:])
	e.returnPoints[i] = adr
}

// Program compiles fns (in declaration order) into RAM assembly text.
// main is placed first, duplicate function names fail with
// DuplicateFunction, and a missing main function fails as a NameError
// naming "main".
func Program(fns []*ast.Node, file string) (string, error) {
	e := newEmitter(file)

	ordered, err := e.placeFunctions(fns, file)
	if err != nil {
		return "", err
	}

	e.line("LOAD #4")
	e.line("STORE 1")

	for _, fn := range ordered {
		if err := e.codegenFn(fn); err != nil {
			return "", err
		}
	}

	e.codegenDynJump()

	return strings.Join(e.lines, "\n") + "\n", nil
}

// placeFunctions determines each function's code address (§4.D
// "Function placement"): main goes first at the lowest offset, the
// rest follow in declaration order, and it rejects duplicate names
// (filtering main out of the scan first, per the Design Notes' flagged
// bug about a draft that failed to do this and let duplicates slip
// through).
func (e *Emitter) placeFunctions(fns []*ast.Node, file string) ([]*ast.Node, error) {
	var main *ast.Node
	for _, fn := range fns {
		if fn.Id == "main" {
			if main != nil {
				return nil, diag.New(diag.DuplicateFunction, "main", diag.Location{File: file, Line: fn.Line})
			}
			main = fn
		}
	}
	if main == nil {
		return nil, diag.New(diag.NameError, "main", diag.Location{File: file})
	}

	ordered := []*ast.Node{main}
	seen := map[string]bool{"main": true}
	for _, fn := range fns {
		if fn.Id == "main" {
			continue
		}
		if seen[fn.Id] {
			return nil, diag.New(diag.DuplicateFunction, fn.Id, diag.Location{File: file, Line: fn.Line})
		}
		seen[fn.Id] = true
		ordered = append(ordered, fn)
	}

	ip := 2 // preamble: LOAD #4 / STORE 1
	for _, fn := range ordered {
		e.fns[fn.Id] = &fnInfo{node: fn, addr: ip}
		ip += fn.Ninst
	}
	e.dynJumpAddr = ip
	return ordered, nil
}

// checkNinst is the per-node invariant from §4.B: after emitting n, the
// instruction pointer must have advanced by exactly n.Ninst.
func (e *Emitter) checkNinst(n *ast.Node, before int) error {
	after := e.ip()
	if after-before != n.Ninst {
		return diag.Internal("generated %d instructions for node (tag=%d), but ninst is %d", after-before, n.Tag, n.Ninst)
	}
	return nil
}

func (e *Emitter) codegen(n *ast.Node) error {
	if ast.IsNoOp(n) || n == nil {
		return nil
	}
	before := e.ip()

	switch n.Tag {
	case ast.TagInt:
		e.line("LOAD #%d", n.IntValue)

	case ast.TagVar:
		e.line("LOAD 1")
		e.line("ADD #%d", n.Symbol.BaseAddr)
		e.line("LOAD @0 ; %s", n.Id)

	case ast.TagIndex:
		if n.Index.Tag == ast.TagInt {
			e.line("LOAD 1")
			e.line("ADD #%d", n.Symbol.BaseAddr+n.Index.IntValue)
			e.line("LOAD @0 ; %s[%d]", n.Id, n.Index.IntValue)
		} else {
			if err := e.codegen(n.Index); err != nil {
				return err
			}
			e.line("ADD 1")
			e.line("ADD #%d", n.Symbol.BaseAddr)
			e.line("LOAD @0 ; %s[%s]", n.Id, printer.String(n.Index))
		}

	case ast.TagBinaryOp:
		if err := e.codegenBinaryOp(n); err != nil {
			return err
		}

	case ast.TagUnaryOp:
		if err := e.codegen(n.Expr); err != nil {
			return err
		}
		switch n.UOp {
		case ast.OpNeg:
			e.line("STORE @2")
			e.line("LOAD #0")
			e.line("SUB @2")
		case ast.OpNot:
			ipBase := e.ip()
			e.line("JUMZ %d", ipBase+3)
			e.line("LOAD #0")
			e.line("JUMP %d", ipBase+4)
			e.line("LOAD #1")
		}

	case ast.TagAssignScalar:
		if err := e.codegen(n.Expr); err != nil {
			return err
		}
		e.line("STORE @2")
		e.line("LOAD 1")
		e.line("ADD #%d", n.Symbol.BaseAddr)
		e.line("STORE 3")
		e.line("LOAD @2")
		e.line("STORE @3 ; %s := %s", n.Id, printer.String(n.Expr))

	case ast.TagAssignIndexed:
		if err := e.codegen(n.Expr); err != nil {
			return err
		}
		e.line("STORE @2")
		e.line("INC 2")
		if err := e.codegen(n.Index); err != nil {
			return err
		}
		e.line("DEC 2")
		e.line("ADD 1")
		e.line("ADD #%d", n.Symbol.BaseAddr)
		e.line("STORE 3")
		e.line("LOAD @2")
		e.line("STORE @3 ; %s[%s] := %s", n.Id, printer.String(n.Index), printer.String(n.Expr))

	case ast.TagAssignIntList:
		e.line("LOAD 1")
		e.line("ADD #%d", n.Symbol.BaseAddr)
		e.line("STORE 3")
		for i, v := range n.IntList {
			if err := e.codegen(v); err != nil {
				return err
			}
			e.line("STORE @3 ; %s[%d] = %s", n.Id, i, printer.String(v))
			e.line("INC 3")
		}

	case ast.TagAssignArray:
		e.line("LOAD 1")
		e.line("ADD #%d", n.DstSym.BaseAddr)
		e.line("STORE 3 ; &%s[0]", n.DstId)
		for i := 0; i < n.DstSym.Size; i++ {
			e.line("LOAD 1")
			e.line("ADD #%d", n.SrcSym.BaseAddr+i)
			e.line("LOAD @0 ; %s[%d]", n.SrcId, i)
			e.line("STORE @3 ; %s[%d] = %s[%d]", n.DstId, i, n.SrcId, i)
			e.line("INC 3")
		}

	case ast.TagTest:
		if err := e.codegen(n.Expr); err != nil {
			return err
		}
		ipBase1 := e.ip()
		thenNinst := 0
		if n.Then != nil {
			thenNinst = n.Then.Ninst
		}
		target1 := ipBase1 + thenNinst + 2
		if n.Else != nil {
			target1++
		}
		e.line("JUMZ %d", target1)
		e.line("NOP ; ALORS")
		if err := e.codegen(n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			ipBase2 := e.ip()
			e.line("JUMP %d", ipBase2+n.Else.Ninst+2)
			e.line("NOP ; SINON")
			if err := e.codegen(n.Else); err != nil {
				return err
			}
		}
		e.line("NOP ; FSI")

	case ast.TagWhile:
		ipBase0 := before
		if err := e.codegen(n.Expr); err != nil {
			return err
		}
		ipBase := e.ip()
		e.line("JUMZ %d", ipBase+n.Body.Ninst+2)
		if err := e.codegen(n.Body); err != nil {
			return err
		}
		e.line("JUMP %d", ipBase0)

	case ast.TagRead:
		e.line("LOAD 1")
		e.line("ADD #%d", n.Symbol.BaseAddr)
		e.line("STORE 3")
		e.line("READ")
		e.line("STORE @3 ; %s", n.Id)

	case ast.TagReadIndexed:
		if err := e.codegen(n.Index); err != nil {
			return err
		}
		e.line("STORE @2")
		e.line("LOAD 1")
		e.line("ADD #%d", n.Symbol.BaseAddr)
		e.line("ADD @2")
		e.line("STORE 3 ; &%s[%s]", n.Id, printer.String(n.Index))
		e.line("READ")
		e.line("STORE @3 ; %s[%s]", n.Id, printer.String(n.Index))

	case ast.TagReadArray:
		e.line("LOAD 1")
		e.line("ADD #%d", n.Symbol.BaseAddr)
		e.line("STORE 3 ; &%s[0]", n.Id)
		for i := 0; i < n.Symbol.Size; i++ {
			e.line("READ")
			e.line("STORE @3 ; %s[%d]", n.Id, i)
			e.line("INC 3")
		}

	case ast.TagPrint:
		if err := e.codegen(n.Expr); err != nil {
			return err
		}
		e.line("WRITE")

	case ast.TagPrintArray:
		e.line("LOAD 1")
		e.line("ADD #%d", n.Symbol.BaseAddr)
		e.line("STORE 3 ; &%s[0]", n.Id)
		for i := 0; i < n.Symbol.Size; i++ {
			e.line("LOAD @3 ; %s[%d]", n.Id, i)
			e.line("WRITE")
			e.line("INC 3")
		}

	case ast.TagBlock:
		e.line("NOP ; %s", printer.String(n.Stmt))
		if err := e.codegen(n.Stmt); err != nil {
			return err
		}
		if err := e.codegen(n.Next); err != nil {
			return err
		}

	case ast.TagFnCall:
		if err := e.codegenFnCall(n); err != nil {
			return err
		}

	case ast.TagReturn:
		if n.Expr != nil {
			if err := e.codegen(n.Expr); err != nil {
				return err
			}
		} else {
			e.line("LOAD #0")
		}
		e.line("STORE @2")
		e.line("DEC 1")
		e.line("LOAD @1")
		e.line("JUMP %d", e.dynJumpAddr)

	default:
		return diag.Internal("codegen: unexpected top-level tag %d", n.Tag)
	}

	return e.checkNinst(n, before)
}

func (e *Emitter) codegenBinaryOp(n *ast.Node) error {
	switch n.Op.Kind() {
	case ast.Arithmetic, ast.Comparative:
		if err := e.codegen(n.Rhs); err != nil {
			return err
		}
		e.line("STORE @2")
		e.line("INC 2")
		if err := e.codegen(n.Lhs); err != nil {
			return err
		}
		e.line("DEC 2")

		if n.Op.Kind() == ast.Arithmetic {
			e.line("%s @2", arithMnemonic(n.Op))
			return nil
		}

		e.line("SUB @2")
		ipBase := e.ip()
		switch n.Op {
		case ast.OpGe:
			e.line("JUML %d", ipBase+3)
			e.line("LOAD #1")
			e.line("JUMP %d", ipBase+4)
			e.line("LOAD #0")
		case ast.OpGt:
			e.line("JUMG %d", ipBase+3)
			e.line("LOAD #0")
			e.line("JUMP %d", ipBase+4)
			e.line("LOAD #1")
		case ast.OpLe:
			e.line("JUMG %d", ipBase+3)
			e.line("LOAD #1")
			e.line("JUMP %d", ipBase+4)
			e.line("LOAD #0")
		case ast.OpLt:
			e.line("JUML %d", ipBase+3)
			e.line("LOAD #0")
			e.line("JUMP %d", ipBase+4)
			e.line("LOAD #1")
		case ast.OpEq:
			e.line("JUMZ %d", ipBase+3)
			e.line("LOAD #0")
			e.line("JUMP %d", ipBase+4)
			e.line("LOAD #1")
		case ast.OpNe:
			e.line("JUMZ %d", ipBase+3)
			e.line("LOAD #1")
			e.line("JUMP %d", ipBase+4)
			e.line("LOAD #0")
		}
		return nil

	case ast.Logic:
		switch n.Op {
		case ast.OpAnd:
			e.line("NOP ; TEST (%s)", printer.String(n.Lhs))
			if err := e.codegen(n.Lhs); err != nil {
				return err
			}
			e.line("JUMZ %d", e.ip()+n.Rhs.Ninst+2)
			e.line("NOP ; TEST (%s)", printer.String(n.Rhs))
			return e.codegen(n.Rhs)

		case ast.OpOr:
			e.line("NOP ; TEST (%s)", printer.String(n.Lhs))
			if err := e.codegen(n.Lhs); err != nil {
				return err
			}
			e.line("JUMZ %d", e.ip()+2)
			e.line("JUMP %d", e.ip()+n.Rhs.Ninst+2)
			e.line("NOP ; TEST (%s)", printer.String(n.Rhs))
			return e.codegen(n.Rhs)

		case ast.OpXor:
			e.line("NOP ; TEST (%s)", printer.String(n.Lhs))
			if err := e.codegen(n.Lhs); err != nil {
				return err
			}
			e.line("STORE @2")
			e.line("INC 2")
			e.line("NOP ; TEST (%s)", printer.String(n.Rhs))
			if err := e.codegen(n.Rhs); err != nil {
				return err
			}
			e.line("NOP ; OU EXCLUSIF")
			e.line("DEC 2")
			ipBase := e.ip()
			e.line("JUMZ %d", ipBase+3)
			e.line("SUB @2")
			e.line("JUMP %d", ipBase+4)
			e.line("LOAD @2")
			return nil
		}
	}
	return diag.Internal("codegenBinaryOp: unhandled op %v", n.Op)
}

func arithMnemonic(op ast.BinOp) string {
	switch op {
	case ast.OpAdd:
		return "ADD"
	case ast.OpSub:
		return "SUB"
	case ast.OpMul:
		return "MUL"
	case ast.OpDiv:
		return "DIV"
	case ast.OpMod:
		return "MOD"
	}
	return "?"
}

func (e *Emitter) codegenFn(n *ast.Node) error {
	before := e.ip()

	sig := "FONCTION " + n.Id + "("
	for i, p := range n.Params {
		if i > 0 {
			sig += ", "
		}
		sig += p.Identifier
	}
	sig += ")"

	e.line("NOP ; %s", sig)
	e.line("NOP ; STACK %s", stackDump(n.ST))
	e.line("LOAD 1")
	e.line("ADD #%d", n.TempOffset)
	e.line("STORE 2")
	e.line("NOP ; DEBUT")

	if n.Body != nil {
		if err := e.codegen(n.Body); err != nil {
			return err
		}
	}
	e.line("STOP ; FIN")

	return e.checkNinst(n, before)
}

// stackDump renders a compact "{id@addr, ...}" summary of a function's
// symbol table for the NOP comment emitted at entry, mirroring the
// original's st_fprint_current.
func stackDump(st *symtab.Table) string {
	syms := st.Symbols()
	parts := make([]string, len(syms))
	for i, s := range syms {
		if s.IsScalar() {
			parts[i] = fmt.Sprintf("%s@%d", s.Identifier, s.BaseAddr)
		} else {
			parts[i] = fmt.Sprintf("%s@%d[%d]", s.Identifier, s.BaseAddr, s.Size)
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (e *Emitter) codegenFnCall(n *ast.Node) error {
	before := e.ip()

	target, ok := e.fns[n.Id]
	if !ok {
		return diag.New(diag.NameError, n.Id, diag.Location{File: e.file, Line: n.Line})
	}
	if len(target.node.Params) != len(n.Args) {
		return diag.New(diag.ArityMismatch, n.Id, diag.Location{File: e.file, Line: n.Line})
	}

	argsNinst := 0
	for _, a := range n.Args {
		argsNinst += a.Ninst
	}
	nargs := len(n.Args)

	ipCallBase := e.ip()
	e.line("LOAD 1")
	e.line("STORE @2")
	e.line("INC 2")

	jmp := ipCallBase + 9 + argsNinst + 6*nargs
	e.recordReturnPoint(jmp)
	e.line("LOAD #%d", jmp)
	e.line("STORE @2")
	e.line("INC 2")

	for i, a := range n.Args {
		if err := e.codegen(a); err != nil {
			return err
		}
		e.line("STORE @2")
		e.line("LOAD 2")
		e.line("ADD #%d", i)
		e.line("STORE 3")
		e.line("LOAD @2")
		e.line("STORE @3")
	}

	if jmp != e.ip()+3 {
		return diag.Internal("bad dynamic-return jump target for call to %q: expected %d, got %d", n.Id, jmp, e.ip()+3)
	}

	e.line("LOAD 2")
	e.line("STORE 1")
	e.line("JUMP %d", target.addr)
	e.line("LOAD 2")
	e.line("SUB #3")
	e.line("STORE 2")
	e.line("LOAD @0")
	e.line("STORE 1")
	e.line("LOAD 2")
	e.line("ADD #3")
	e.line("LOAD @0")

	return e.checkNinst(n, before)
}

// codegenDynJump emits the synthetic dispatcher that stands in for an
// indirect jump (§4.D "Dynamic return dispatch"): each known return
// point is compared against in ascending order via a differential SUB,
// so each entry costs exactly "SUB #delta; JUMZ target". The delta
// reset (sum becomes the point's own value after each step, rather than
// accumulating onto itself) is the correct form the Design Notes call
// out; the other draft's "sum += n->value" never resets and breaks the
// subtraction chain after the first entry.
func (e *Emitter) codegenDynJump() {
	e.line("NOP ; BUILTIN JUMP @0")

	sum := 0
	for _, point := range e.returnPoints {
		e.line("SUB #%d", point-sum)
		e.line("JUMZ %d", point)
		sum = point
	}

	e.line("STOP ; UNREACHABLE")
}
