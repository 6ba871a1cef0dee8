// Package diag implements ALGO's diagnostic taxonomy: the user-facing
// error kinds from a compile, and the internal assertions that indicate
// a compiler bug rather than a bad source program.
package diag

import "fmt"

// Kind identifies one of the user-facing error categories a compile can
// fail with. Lexical/syntactic errors are out of scope here; they belong
// to the external lexer/parser collaborator.
type Kind string

const (
	NameError           Kind = "NameError"
	KindMismatch        Kind = "KindMismatch"
	SizeMismatch        Kind = "SizeMismatch"
	ArityMismatch       Kind = "ArityMismatch"
	DuplicateIdentifier Kind = "DuplicateIdentifier"
	DuplicateFunction   Kind = "DuplicateFunction"
	NegativeSize        Kind = "NegativeSize"
	BareEquality        Kind = "BareEquality"
	UnsupportedIntrinsic Kind = "UnsupportedIntrinsic"
)

// messages holds the French rendering for each Kind, keyed by Kind so a
// caller only ever has to supply the offending identifier/value.
var messages = map[Kind]string{
	NameError:            "identifiant inconnu: '%s'",
	KindMismatch:         "type incompatible pour '%s'",
	SizeMismatch:         "taille incompatible pour '%s'",
	ArityMismatch:        "nombre d'arguments incorrect pour '%s'",
	DuplicateIdentifier:  "identifiant dupliqué: '%s'",
	DuplicateFunction:    "fonction dupliquée: '%s'",
	NegativeSize:         "taille négative pour '%s'",
	BareEquality:         "utilisation de '=' au lieu de ':=' pour '%s'",
	UnsupportedIntrinsic: "méthode non supportée: '%s'",
}

// Location is the source position a diagnostic is attached to.
type Location struct {
	File string
	Line int
}

// Error is a single user-facing diagnostic: a Kind, the offending name,
// and the source location. Formatting follows "<file>:<line>: <message>".
type Error struct {
	Kind     Kind
	Subject  string
	Location Location
}

func New(kind Kind, subject string, loc Location) *Error {
	return &Error{Kind: kind, Subject: subject, Location: loc}
}

func (e *Error) Error() string {
	msg := messages[e.Kind]
	if msg == "" {
		msg = string(e.Kind) + ": '%s'"
	}
	return fmt.Sprintf("%s:%d: %s", e.Location.File, e.Location.Line, fmt.Sprintf(msg, e.Subject))
}

// InternalError represents InternalAssertion failures: ninst mismatch,
// a bad dynamic-return jump target, an unexpected node tag during
// emission, a symbol that no longer resolves at emission time. (A
// missing main is reported as a NameError.) These indicate a bug in the compiler itself, never in the
// source program, so they render in English and are a distinct type so
// a driver can tell "your program is wrong" from "we are broken" without
// string-matching Error().
type InternalError struct {
	Message string
}

func Internal(format string, args ...interface{}) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

func (e *InternalError) Error() string {
	return "internal assertion failed: " + e.Message
}
