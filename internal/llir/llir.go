// Package llir implements ALGO's SSA-style native back-end (§4.F): it
// walks the lowered HIR and builds an *ir.Module via
// github.com/llir/llvm, one basic block at a time, then hands the
// finished module's textual form to an external LLVM toolchain for
// object-file emission.
//
// §4.F requires every lowered function be enumerated before any
// function body is translated (so forward calls resolve), and each
// function verified before the next one starts — mirroring the RAM
// back-end's per-node ninst check with an SSA-appropriate one: every
// block must end in exactly one terminator.
package llir

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"algo/internal/ast"
	"algo/internal/diag"
)

const intrinsicRead = "__algo_lire"
const intrinsicPrint = "__algo_afficher"

// translator holds the state for one module translation: the module
// under construction, a lookup from ALGO function identifier to its
// declared *ir.Func (populated before any body is translated), and the
// two runtime intrinsics every program may call.
type translator struct {
	module  *ir.Module
	fns     map[string]*ir.Func
	readFn  *ir.Func
	printFn *ir.Func
}

// fnScope is per-function translation state: the current basic block
// being appended to, and each local identifier's stack slot.
type fnScope struct {
	fn         *ir.Func
	block      *ir.Block
	locals     map[string]value.Value // scalar -> *ir.InstAlloca
	arrays     map[string]value.Value // array -> *ir.InstAlloca of [n x i64]
	arrayTypes map[string]types.Type  // array -> its [n x i64] element type, for GEP
}

// Module translates fns (already run through lowering.Program) into an
// LLVM IR module named moduleName. Every function is declared first,
// so a call to a function declared later in the source resolves.
func Module(fns []*ast.Node, moduleName string) (*ir.Module, error) {
	t := &translator{module: ir.NewModule(), fns: make(map[string]*ir.Func)}
	t.module.SourceFilename = moduleName

	t.readFn = t.module.NewFunc(intrinsicRead, types.I64)
	t.readFn.Linkage = enum.LinkageExternal

	t.printFn = t.module.NewFunc(intrinsicPrint, types.Void, ir.NewParam("v", types.I64))
	t.printFn.Linkage = enum.LinkageExternal

	for _, fn := range fns {
		params := make([]*ir.Param, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = ir.NewParam(p.Identifier, types.I64)
		}
		irFn := t.module.NewFunc(fn.Id, types.I64, params...)
		t.fns[fn.Id] = irFn
	}

	for _, fn := range fns {
		if err := t.translateFn(fn); err != nil {
			return nil, err
		}
		if err := verifyFn(t.fns[fn.Id]); err != nil {
			return nil, err
		}
	}

	return t.module, nil
}

// verifyFn is the SSA-appropriate counterpart of the RAM back-end's
// ninst check: every block llir/llvm produced must end in exactly one
// terminator instruction, or something upstream built a malformed CFG.
func verifyFn(fn *ir.Func) error {
	for _, block := range fn.Blocks {
		if block.Term == nil {
			return diag.Internal("function %q: basic block %q has no terminator", fn.Name(), block.Name())
		}
	}
	return nil
}

func (t *translator) translateFn(fn *ast.Node) error {
	irFn := t.fns[fn.Id]
	entry := irFn.NewBlock("entry")

	scope := &fnScope{
		fn: irFn, block: entry,
		locals:     make(map[string]value.Value),
		arrays:     make(map[string]value.Value),
		arrayTypes: make(map[string]types.Type),
	}

	for _, sym := range fn.ST.Symbols() {
		if sym.IsScalar() {
			scope.locals[sym.Identifier] = entry.NewAlloca(types.I64)
		} else {
			arrTy := types.NewArray(uint64(sym.Size), types.I64)
			scope.arrays[sym.Identifier] = entry.NewAlloca(arrTy)
			scope.arrayTypes[sym.Identifier] = arrTy
		}
	}
	for i, p := range fn.Params {
		entry.NewStore(irFn.Params[i], scope.locals[p.Identifier])
	}

	if fn.Body != nil {
		if err := t.translateStmt(scope, fn.Body); err != nil {
			return err
		}
	}

	// §4.D's implicit trailing `RENVOYER 0` is an emission-time concern
	// for this back-end too: any block lowering left without a
	// terminator falls off the end of the function and must return 0.
	if scope.block.Term == nil {
		scope.block.NewRet(constant.NewInt(types.I64, 0))
	}
	return nil
}

func (t *translator) translateStmt(scope *fnScope, n *ast.Node) error {
	if ast.IsNoOp(n) || n == nil {
		return nil
	}

	switch n.Tag {
	case ast.TagBlock:
		if err := t.translateStmt(scope, n.Stmt); err != nil {
			return err
		}
		return t.translateStmt(scope, n.Next)

	case ast.TagAssignScalar:
		v, err := t.translateExpr(scope, n.Expr)
		if err != nil {
			return err
		}
		scope.block.NewStore(v, scope.locals[n.Id])
		return nil

	case ast.TagAssignIndexed:
		v, err := t.translateExpr(scope, n.Expr)
		if err != nil {
			return err
		}
		idx, err := t.translateExpr(scope, n.Index)
		if err != nil {
			return err
		}
		ptr := scope.block.NewGetElementPtr(scope.arrayTypes[n.Id], scope.arrays[n.Id],
			constant.NewInt(types.I64, 0), idx)
		scope.block.NewStore(v, ptr)
		return nil

	case ast.TagRead:
		v := scope.block.NewCall(t.readFn)
		scope.block.NewStore(v, scope.locals[n.Id])
		return nil

	case ast.TagReadIndexed:
		idx, err := t.translateExpr(scope, n.Index)
		if err != nil {
			return err
		}
		v := scope.block.NewCall(t.readFn)
		ptr := scope.block.NewGetElementPtr(scope.arrayTypes[n.Id], scope.arrays[n.Id],
			constant.NewInt(types.I64, 0), idx)
		scope.block.NewStore(v, ptr)
		return nil

	case ast.TagPrint:
		v, err := t.translateExpr(scope, n.Expr)
		if err != nil {
			return err
		}
		scope.block.NewCall(t.printFn, v)
		return nil

	case ast.TagTest:
		return t.translateTest(scope, n)

	case ast.TagWhile:
		return t.translateWhile(scope, n)

	case ast.TagReturn:
		if n.Expr != nil {
			v, err := t.translateExpr(scope, n.Expr)
			if err != nil {
				return err
			}
			scope.block.NewRet(v)
		} else {
			scope.block.NewRet(constant.NewInt(types.I64, 0))
		}
		return nil

	case ast.TagFnCall:
		_, err := t.translateExpr(scope, n)
		return err

	default:
		return diag.Internal("llir: unexpected statement tag %d", n.Tag)
	}
}

func (t *translator) translateTest(scope *fnScope, n *ast.Node) error {
	cond, err := t.translateExpr(scope, n.Expr)
	if err != nil {
		return err
	}
	condBool := scope.block.NewICmp(enum.IPredNE, cond, constant.NewInt(types.I64, 0))

	thenBlock := scope.fn.NewBlock("")
	joinBlock := scope.fn.NewBlock("")

	var elseBlock *ir.Block
	if n.Else != nil {
		elseBlock = scope.fn.NewBlock("")
		scope.block.NewCondBr(condBool, thenBlock, elseBlock)
	} else {
		scope.block.NewCondBr(condBool, thenBlock, joinBlock)
	}

	scope.block = thenBlock
	if err := t.translateStmt(scope, n.Then); err != nil {
		return err
	}
	if scope.block.Term == nil {
		scope.block.NewBr(joinBlock)
	}

	if n.Else != nil {
		scope.block = elseBlock
		if err := t.translateStmt(scope, n.Else); err != nil {
			return err
		}
		if scope.block.Term == nil {
			scope.block.NewBr(joinBlock)
		}
	}

	scope.block = joinBlock
	return nil
}

func (t *translator) translateWhile(scope *fnScope, n *ast.Node) error {
	condBlock := scope.fn.NewBlock("")
	bodyBlock := scope.fn.NewBlock("")
	joinBlock := scope.fn.NewBlock("")

	scope.block.NewBr(condBlock)

	scope.block = condBlock
	cond, err := t.translateExpr(scope, n.Expr)
	if err != nil {
		return err
	}
	condBool := scope.block.NewICmp(enum.IPredNE, cond, constant.NewInt(types.I64, 0))
	scope.block.NewCondBr(condBool, bodyBlock, joinBlock)

	scope.block = bodyBlock
	if err := t.translateStmt(scope, n.Body); err != nil {
		return err
	}
	if scope.block.Term == nil {
		scope.block.NewBr(condBlock)
	}

	scope.block = joinBlock
	return nil
}

func (t *translator) translateExpr(scope *fnScope, n *ast.Node) (value.Value, error) {
	if ast.IsNoOp(n) {
		return constant.NewInt(types.I64, 0), nil
	}

	switch n.Tag {
	case ast.TagInt:
		return constant.NewInt(types.I64, int64(n.IntValue)), nil

	case ast.TagVar:
		return scope.block.NewLoad(types.I64, scope.locals[n.Id]), nil

	case ast.TagIndex:
		idx, err := t.translateExpr(scope, n.Index)
		if err != nil {
			return nil, err
		}
		arr := scope.arrays[n.Id]
		ptr := scope.block.NewGetElementPtr(scope.arrayTypes[n.Id], arr, constant.NewInt(types.I64, 0), idx)
		return scope.block.NewLoad(types.I64, ptr), nil

	case ast.TagBinaryOp:
		return t.translateBinaryOp(scope, n)

	case ast.TagUnaryOp:
		v, err := t.translateExpr(scope, n.Expr)
		if err != nil {
			return nil, err
		}
		switch n.UOp {
		case ast.OpNeg:
			return scope.block.NewSub(constant.NewInt(types.I64, 0), v), nil
		case ast.OpNot:
			isZero := scope.block.NewICmp(enum.IPredEQ, v, constant.NewInt(types.I64, 0))
			return scope.block.NewZExt(isZero, types.I64), nil
		}

	case ast.TagFnCall:
		target, ok := t.fns[n.Id]
		if !ok {
			return nil, diag.New(diag.NameError, n.Id, diag.Location{Line: n.Line})
		}
		if len(target.Params) != len(n.Args) {
			return nil, diag.New(diag.ArityMismatch, n.Id, diag.Location{Line: n.Line})
		}
		args := make([]value.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := t.translateExpr(scope, a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return scope.block.NewCall(target, args...), nil
	}

	return nil, diag.Internal("llir: unexpected expression tag %d", n.Tag)
}

func (t *translator) translateBinaryOp(scope *fnScope, n *ast.Node) (value.Value, error) {
	lhs, err := t.translateExpr(scope, n.Lhs)
	if err != nil {
		return nil, err
	}
	rhs, err := t.translateExpr(scope, n.Rhs)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case ast.OpAdd:
		return scope.block.NewAdd(lhs, rhs), nil
	case ast.OpSub:
		return scope.block.NewSub(lhs, rhs), nil
	case ast.OpMul:
		return scope.block.NewMul(lhs, rhs), nil
	case ast.OpDiv:
		return scope.block.NewSDiv(lhs, rhs), nil
	case ast.OpMod:
		return scope.block.NewSRem(lhs, rhs), nil
	case ast.OpGe:
		return boolToInt(scope, scope.block.NewICmp(enum.IPredSGE, lhs, rhs)), nil
	case ast.OpGt:
		return boolToInt(scope, scope.block.NewICmp(enum.IPredSGT, lhs, rhs)), nil
	case ast.OpLe:
		return boolToInt(scope, scope.block.NewICmp(enum.IPredSLE, lhs, rhs)), nil
	case ast.OpLt:
		return boolToInt(scope, scope.block.NewICmp(enum.IPredSLT, lhs, rhs)), nil
	case ast.OpEq:
		return boolToInt(scope, scope.block.NewICmp(enum.IPredEQ, lhs, rhs)), nil
	case ast.OpNe:
		return boolToInt(scope, scope.block.NewICmp(enum.IPredNE, lhs, rhs)), nil
	case ast.OpAnd:
		return scope.block.NewAnd(lhs, rhs), nil
	case ast.OpOr:
		return scope.block.NewOr(lhs, rhs), nil
	case ast.OpXor:
		return scope.block.NewXor(lhs, rhs), nil
	}
	return nil, diag.Internal("llir: unhandled binary op %v", n.Op)
}

func boolToInt(scope *fnScope, b value.Value) value.Value {
	return scope.block.NewZExt(b, types.I64)
}

// EmitObject writes mod's textual IR to a temporary .ll file and
// invokes an external `llc`+assembler pipeline (via clang, the same
// toolchain llir/llvm's own examples assume is on PATH) to produce a
// native object file at objPath.
func EmitObject(mod *ir.Module, objPath string) error {
	llText := mod.String()
	llPath := objPath + ".ll"
	if err := writeFile(llPath, llText); err != nil {
		return err
	}
	cmd := exec.Command("clang", "-c", llPath, "-o", objPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("clang failed: %w: %s", err, out)
	}
	return nil
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
