// Package printer implements ALGO's pretty-printer (§4.C): a
// deterministic, source-faithful rendering of any AST node, used both
// as a standalone formatter and inline inside RAM back-end comments.
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"algo/internal/ast"
)

// Printer accumulates rendered text, mirroring the teacher's
// strings.Builder-based Formatter.
type Printer struct {
	out strings.Builder
}

func New() *Printer { return &Printer{} }

// String renders n and returns the accumulated text.
func String(n *ast.Node) string {
	p := New()
	p.Print(n)
	return p.out.String()
}

func (p *Printer) String() string { return p.out.String() }

// Print writes n's source-like rendering. A NoOp node always renders as
// the literal text "NoOp".
func (p *Printer) Print(n *ast.Node) {
	if ast.IsNoOp(n) {
		p.out.WriteString("NoOp")
		return
	}

	switch n.Tag {
	case ast.TagInt:
		p.out.WriteString(strconv.Itoa(n.IntValue))

	case ast.TagVar:
		p.out.WriteString(n.Id)

	case ast.TagIndex:
		p.out.WriteString(n.Id)
		p.out.WriteString("[")
		p.printOperand(n.Index, n)
		p.out.WriteString("]")

	case ast.TagBinaryOp:
		p.printOperand(n.Lhs, n)
		p.out.WriteString(" ")
		p.out.WriteString(n.Op.Symbol())
		p.out.WriteString(" ")
		p.printOperand(n.Rhs, n)

	case ast.TagUnaryOp:
		p.out.WriteString(n.UOp.Symbol())
		p.out.WriteString(" ")
		p.printOperand(n.Expr, n)

	case ast.TagAssignScalar:
		p.out.WriteString(n.Id)
		p.out.WriteString(" := ")
		p.Print(n.Expr)

	case ast.TagAssignIndexed:
		p.out.WriteString(n.Id)
		p.out.WriteString("[")
		p.Print(n.Index)
		p.out.WriteString("] := ")
		p.Print(n.Expr)

	case ast.TagAssignIntList:
		p.out.WriteString(n.Id)
		p.out.WriteString(" := { ")
		for i, v := range n.IntList {
			if i > 0 {
				p.out.WriteString(", ")
			}
			p.Print(v)
		}
		p.out.WriteString(" }")

	case ast.TagAssignArray:
		p.out.WriteString(n.DstId)
		p.out.WriteString(" := ")
		p.out.WriteString(n.SrcId)

	case ast.TagTest:
		p.out.WriteString("SI ")
		p.Print(n.Expr)
		p.out.WriteString(" ALORS\n")
		p.Print(n.Then)
		if n.Else != nil {
			p.out.WriteString("\nSINON\n")
			p.Print(n.Else)
		}
		p.out.WriteString("\nFSI")

	case ast.TagWhile:
		p.out.WriteString("TQ ")
		p.Print(n.Expr)
		p.out.WriteString(" FAIRE\n")
		p.Print(n.Body)
		p.out.WriteString("\nFTQ")

	case ast.TagRead:
		p.out.WriteString("LIRE ")
		p.out.WriteString(n.Id)

	case ast.TagReadIndexed:
		p.out.WriteString("LIRE ")
		p.out.WriteString(n.Id)
		p.out.WriteString("[")
		p.Print(n.Index)
		p.out.WriteString("]")

	case ast.TagReadArray:
		p.out.WriteString("LIRE [")
		p.out.WriteString(n.Id)
		p.out.WriteString("]")

	case ast.TagPrint:
		p.out.WriteString("AFFICHER ")
		p.Print(n.Expr)

	case ast.TagPrintArray:
		p.out.WriteString("AFFICHER [")
		p.out.WriteString(n.Id)
		p.out.WriteString("]")

	case ast.TagBlock:
		p.Print(n.Stmt)
		if n.Next != nil {
			p.out.WriteString("\n")
			p.Print(n.Next)
		}

	case ast.TagFn:
		p.out.WriteString("FONCTION ")
		p.out.WriteString(n.Id)
		p.out.WriteString("(")
		for i, param := range n.Params {
			if i > 0 {
				p.out.WriteString(", ")
			}
			p.out.WriteString(param.Identifier)
		}
		p.out.WriteString(")\n")
		if n.Body != nil {
			p.Print(n.Body)
			p.out.WriteString("\n")
		}
		p.out.WriteString("FIN")

	case ast.TagFnCall:
		p.out.WriteString(n.Id)
		p.out.WriteString("(")
		for i, a := range n.Args {
			if i > 0 {
				p.out.WriteString(", ")
			}
			p.Print(a)
		}
		p.out.WriteString(")")

	case ast.TagReturn:
		p.out.WriteString("RENVOYER")
		if n.Expr != nil {
			p.out.WriteString(" ")
			p.Print(n.Expr)
		}

	default:
		p.out.WriteString(fmt.Sprintf("<?tag=%d?>", n.Tag))
	}
}

// printOperand parenthesizes child only when it is not a leaf, matching
// spec.md §4.C's "parenthesized only when an operand is not a leaf".
func (p *Printer) printOperand(child, parent *ast.Node) {
	if isLeaf(child) {
		p.Print(child)
		return
	}
	p.out.WriteString("(")
	p.Print(child)
	p.out.WriteString(")")
}

func isLeaf(n *ast.Node) bool {
	if ast.IsNoOp(n) {
		return true
	}
	return n.Tag == ast.TagInt || n.Tag == ast.TagVar
}
