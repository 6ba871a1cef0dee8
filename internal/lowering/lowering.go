// Package lowering implements ALGO's HIR normalization pass (§4.E): it
// rewrites the surface AST into a smaller set of node shapes the LLIR
// back-end consumes, so that back-end does not have to special-case the
// sugar this package expands away. The RAM back-end does not use this
// pass; it emits whole-array operations directly.
//
// Concretely: AssignArray and AssignIntList become a flat sequence of
// per-cell AssignIndexed statements; ReadArray/PrintArray expand to one
// Read/Print statement per cell; and a function body is always
// represented as a single Block (possibly empty), never a bare
// statement or nil, so the back-ends can assume a uniform shape.
//
// Lowering must run with the owning function's symbol table current,
// since rebuilding per-cell statements re-resolves identifiers through
// the same constructors AST construction used originally.
package lowering

import (
	"algo/internal/ast"
	"algo/internal/symtab"
)

// Program lowers every function in fns in place and returns the
// lowered list; fn.ST must already be fn's own symbol table (set by
// ast.NewFn).
func Program(fns []*ast.Node) ([]*ast.Node, error) {
	out := make([]*ast.Node, len(fns))
	for i, fn := range fns {
		lowered, err := Fn(fn)
		if err != nil {
			return nil, err
		}
		out[i] = lowered
	}
	return out, nil
}

// Fn lowers one function's body. The original's implicit "falls off the
// end without RENVOYER" case is left alone here: the back-end, not
// lowering, is responsible for synthesizing the trailing `RENVOYER 0`
// (§4.D), since that is an emission-time concern, not a tree shape one.
func Fn(fn *ast.Node) (*ast.Node, error) {
	body, err := stmt(fn.ST, fn.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case body == nil:
		body = &ast.Node{Tag: ast.TagBlock, Ninst: 1}
	case body.Tag != ast.TagBlock:
		body = single(body)
	}
	fn.Body = body
	return fn, nil
}

// stmt lowers one statement node (and, for Block, its whole Next
// chain), returning the replacement to splice in its place.
func stmt(st *symtab.Table, n *ast.Node) (*ast.Node, error) {
	if ast.IsNoOp(n) || n == nil {
		return nil, nil
	}

	switch n.Tag {
	case ast.TagAssignArray:
		return expandAssignArray(st, n)

	case ast.TagAssignIntList:
		return expandAssignIntList(st, n)

	case ast.TagReadArray:
		return expandReadArray(st, n)

	case ast.TagPrintArray:
		return expandPrintArray(st, n)

	case ast.TagTest:
		then, err := stmt(st, n.Then)
		if err != nil {
			return nil, err
		}
		els, err := stmt(st, n.Else)
		if err != nil {
			return nil, err
		}
		c := *n
		c.Then, c.Else = then, els
		return &c, nil

	case ast.TagWhile:
		body, err := stmt(st, n.Body)
		if err != nil {
			return nil, err
		}
		c := *n
		c.Body = body
		return &c, nil

	case ast.TagBlock:
		s, err := stmt(st, n.Stmt)
		if err != nil {
			return nil, err
		}
		next, err := stmt(st, n.Next)
		if err != nil {
			return nil, err
		}
		return chain(s, next), nil

	default:
		return n, nil
	}
}

// chain splices two already-lowered statements (each possibly a Block
// chain, possibly nil) into one right-leaning Block chain, recomputing
// Ninst along the way since a/b may themselves now be multi-statement
// expansions of what was originally a single node.
func chain(a, b *ast.Node) *ast.Node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Tag != ast.TagBlock {
		a = &ast.Node{Tag: ast.TagBlock, Stmt: a, Ninst: a.Ninst + 1}
	}
	tail := a
	for tail.Next != nil {
		tail = tail.Next
		tail.Ninst += b.Ninst
	}
	tail.Next = b
	a.Ninst += b.Ninst
	return a
}

// single wraps one non-Block statement into a one-element Block, the
// uniform shape every expansion below produces per generated cell.
func single(s *ast.Node) *ast.Node {
	return &ast.Node{Tag: ast.TagBlock, Stmt: s, Ninst: s.Ninst + 1}
}

func expandAssignArray(st *symtab.Table, n *ast.Node) (*ast.Node, error) {
	var out *ast.Node
	for i := 0; i < n.DstSym.Size; i++ {
		src, err := ast.NewIndex(st, n.SrcId, ast.NewInt(i, n.Line), "", n.Line)
		if err != nil {
			return nil, err
		}
		cell, err := ast.NewAssignIndexed(st, n.DstId, ast.NewInt(i, n.Line), src, "", n.Line)
		if err != nil {
			return nil, err
		}
		out = chain(out, single(cell))
	}
	return out, nil
}

func expandAssignIntList(st *symtab.Table, n *ast.Node) (*ast.Node, error) {
	var out *ast.Node
	for i, v := range n.IntList {
		cell, err := ast.NewAssignIndexed(st, n.Id, ast.NewInt(i, n.Line), v, "", n.Line)
		if err != nil {
			return nil, err
		}
		out = chain(out, single(cell))
	}
	return out, nil
}

func expandReadArray(st *symtab.Table, n *ast.Node) (*ast.Node, error) {
	var out *ast.Node
	for i := 0; i < n.Symbol.Size; i++ {
		cell, err := ast.NewReadIndexed(st, n.Id, ast.NewInt(i, n.Line), "", n.Line)
		if err != nil {
			return nil, err
		}
		out = chain(out, single(cell))
	}
	return out, nil
}

func expandPrintArray(st *symtab.Table, n *ast.Node) (*ast.Node, error) {
	var out *ast.Node
	for i := 0; i < n.Symbol.Size; i++ {
		idx, err := ast.NewIndex(st, n.Id, ast.NewInt(i, n.Line), "", n.Line)
		if err != nil {
			return nil, err
		}
		out = chain(out, single(ast.NewPrint(idx, n.Line)))
	}
	return out, nil
}
