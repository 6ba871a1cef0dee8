// Package symtab implements the per-function symbol table (§4.A):
// an ordered sequence of symbols plus the memory-offset cursor used to
// place the next declared variable and, ultimately, the first temp cell
// of the function's activation record.
package symtab

import "algo/internal/diag"

// Scalar is the sentinel Size value marking a scalar symbol, matching
// the original SCALAR_SIZE.
const Scalar = -1

// Symbol is one entry of a symbol table: an identifier bound to a base
// memory address and a size (Scalar for a scalar, >=0 for an array of
// that many cells).
type Symbol struct {
	Identifier string
	BaseAddr   int
	Size       int
}

func (s Symbol) IsScalar() bool { return s.Size == Scalar }
func (s Symbol) IsArray() bool  { return s.Size != Scalar }

// Table is one symbol table. Unlike the original's process-wide "current
// ST" pointer, callers thread a *Table explicitly (spec.md §5/§9): every
// symtab operation below takes the table it operates on rather than
// reading ambient state.
type Table struct {
	symbols   []Symbol
	byName    map[string]int // identifier -> index into symbols
	MemOffset int
}

// Empty creates a new, empty symbol table starting at memory offset 0.
func Empty() *Table {
	return &Table{byName: make(map[string]int)}
}

// Symbols returns the table's symbols in declaration order.
func (t *Table) Symbols() []Symbol { return t.symbols }

// Find returns the symbol with the given identifier and true, or the
// zero Symbol and false if absent.
func (t *Table) Find(id string) (Symbol, bool) {
	i, ok := t.byName[id]
	if !ok {
		return Symbol{}, false
	}
	return t.symbols[i], true
}

func (t *Table) append(sym Symbol, size int) {
	t.byName[sym.Identifier] = len(t.symbols)
	t.symbols = append(t.symbols, sym)
	if size == Scalar {
		t.MemOffset++
	} else {
		t.MemOffset += size
	}
}

// CreateScalar appends a new scalar symbol, advancing MemOffset by one.
// Fails with DuplicateIdentifier if id is already bound in this table.
func CreateScalar(t *Table, id string, loc diag.Location) (Symbol, error) {
	if _, ok := t.byName[id]; ok {
		return Symbol{}, diag.New(diag.DuplicateIdentifier, id, loc)
	}
	sym := Symbol{Identifier: id, BaseAddr: t.MemOffset, Size: Scalar}
	t.append(sym, Scalar)
	return sym, nil
}

// CreateArray appends a new array symbol of the given size, advancing
// MemOffset by size. Fails with DuplicateIdentifier if id is already
// bound, or NegativeSize if size<0.
func CreateArray(t *Table, id string, size int, loc diag.Location) (Symbol, error) {
	if _, ok := t.byName[id]; ok {
		return Symbol{}, diag.New(diag.DuplicateIdentifier, id, loc)
	}
	if size < 0 {
		return Symbol{}, diag.New(diag.NegativeSize, id, loc)
	}
	sym := Symbol{Identifier: id, BaseAddr: t.MemOffset, Size: size}
	t.append(sym, size)
	return sym, nil
}

// FindOrCreateScalar is used by the LIRE constructor: if id already
// exists it must be a scalar (else KindMismatch), otherwise a new scalar
// is created.
func FindOrCreateScalar(t *Table, id string, loc diag.Location) (Symbol, error) {
	if sym, ok := t.Find(id); ok {
		if !sym.IsScalar() {
			return Symbol{}, diag.New(diag.KindMismatch, id, loc)
		}
		return sym, nil
	}
	return CreateScalar(t, id, loc)
}

// FindOrCreateArray mirrors FindOrCreateScalar for arrays: if present,
// sizes must match (else SizeMismatch).
func FindOrCreateArray(t *Table, id string, size int, loc diag.Location) (Symbol, error) {
	if sym, ok := t.Find(id); ok {
		if sym.IsScalar() || sym.Size != size {
			return Symbol{}, diag.New(diag.SizeMismatch, id, loc)
		}
		return sym, nil
	}
	return CreateArray(t, id, size, loc)
}

// FindOrUserError returns the symbol for id, or a NameError diagnostic at
// loc if absent. Called during AST construction when resolving a use of
// an identifier that must already be declared.
func FindOrUserError(t *Table, id string, loc diag.Location) (Symbol, error) {
	if sym, ok := t.Find(id); ok {
		return sym, nil
	}
	return Symbol{}, diag.New(diag.NameError, id, loc)
}

// FindOrInternalError is the back-end-time counterpart of
// FindOrUserError: by the time emission runs, every identifier the AST
// references must already resolve, so a miss here is a compiler bug.
func FindOrInternalError(t *Table, id string) (Symbol, error) {
	if sym, ok := t.Find(id); ok {
		return sym, nil
	}
	return Symbol{}, diag.Internal("symbol not found at emission time: %q", id)
}

// TempOffset returns the current MemOffset: the address of the first
// scratch cell above the frame, used by the RAM back-end to initialize
// the callee's temp pointer. Invariant: equals the sum of the sizes of
// every declared variable in this table.
func (t *Table) TempOffset() int { return t.MemOffset }
