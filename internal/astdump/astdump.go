// Package astdump renders ast.Node trees for algoc's `dump`
// subcommand, using kr/pretty the way the rest of the corpus
// reaches for it for structural Go-value dumps rather than hand-rolling
// an indentation-tracking printer for debug output.
package astdump

import (
	"fmt"
	"io"

	"github.com/kr/pretty"

	"algo/internal/ast"
)

// Fprint writes a pretty-printed dump of every top-level function node
// in fns to w, one function per section.
func Fprint(w io.Writer, fns []*ast.Node) {
	for _, fn := range fns {
		fmt.Fprintf(w, "FONCTION %s (ninst=%d):\n", fn.Id, fn.Ninst)
		fmt.Fprintln(w, pretty.Sprint(fn))
	}
}
