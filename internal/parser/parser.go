// Package parser is ALGO's recursive-descent collaborator: it turns a
// lexer.Token stream into ast.Node trees by calling straight into the
// ast package's constructors, so every semantic check (NoOp contagion,
// symbol resolution, ninst bookkeeping) happens exactly once, at
// construction time, the same way for the parser and for any other
// future producer of ast.Node values.
package parser

import (
	"algo/internal/ast"
	"algo/internal/diag"
	"algo/internal/lexer"
	"algo/internal/symtab"
)

type Parser struct {
	tokens  []lexer.Token
	current int
	file    string
}

func New(tokens []lexer.Token, file string) *Parser {
	return &Parser{tokens: tokens, file: file}
}

// Program parses a whole source file: a sequence of FONCTION
// definitions, each owning its own symbol table.
func (p *Parser) Program() ([]*ast.Node, error) {
	var fns []*ast.Node
	for !p.check(lexer.TokenEOF) {
		fn, err := p.function()
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

func (p *Parser) function() (*ast.Node, error) {
	line := p.peek().Line
	if _, err := p.consume(lexer.TokenFonction, "'FONCTION' attendu"); err != nil {
		return nil, err
	}
	name, err := p.consume(lexer.TokenIdent, "nom de fonction attendu")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenLParen, "'(' attendu"); err != nil {
		return nil, err
	}

	st := symtab.Empty()
	var params []symtab.Symbol
	if !p.check(lexer.TokenRParen) {
		for {
			pname, err := p.consume(lexer.TokenIdent, "nom de paramètre attendu")
			if err != nil {
				return nil, err
			}
			sym, err := symtab.CreateScalar(st, pname.Lexeme, p.loc())
			if err != nil {
				return nil, err
			}
			params = append(params, sym)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	if _, err := p.consume(lexer.TokenRParen, "')' attendu"); err != nil {
		return nil, err
	}

	body, err := p.blockUntil(st, lexer.TokenFin)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenFin, "'FIN' attendu"); err != nil {
		return nil, err
	}

	return ast.NewFn(name.Lexeme, params, body, st, line), nil
}

// blockUntil parses statements until a token of the given type is
// next, canonicalizing them via ast.MakeBlock as it goes (property 5's
// right-leaning Block list).
func (p *Parser) blockUntil(st *symtab.Table, end lexer.TokenType) (*ast.Node, error) {
	var stmts []*ast.Node
	var lines []int
	for {
		for p.match(lexer.TokenSemi) {
		}
		if p.check(end) || p.check(lexer.TokenEOF) {
			break
		}
		s, err := p.statement(st)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		lines = append(lines, p.previous().Line)
	}

	// Fold from the tail so each MakeBlock call builds a fresh head node
	// on top of an already-canonical (and never-again-mutated) tail,
	// per MakeBlock's own "p fresh, q already-built tail" convention.
	var block *ast.Node
	for i := len(stmts) - 1; i >= 0; i-- {
		var err error
		block, err = ast.MakeBlock(stmts[i], block, p.file, lines[i])
		if err != nil {
			return nil, err
		}
	}
	return block, nil
}

func (p *Parser) statement(st *symtab.Table) (*ast.Node, error) {
	line := p.peek().Line

	switch {
	case p.match(lexer.TokenSi):
		return p.testStatement(st, line)
	case p.match(lexer.TokenTq):
		return p.whileStatement(st, line)
	case p.match(lexer.TokenLire):
		return p.readStatement(st, line)
	case p.match(lexer.TokenAfficher):
		return p.printStatement(st, line)
	case p.match(lexer.TokenRenvoyer):
		return p.returnStatement(st, line)
	}

	if p.check(lexer.TokenIdent) {
		return p.identStatement(st, line)
	}

	return nil, &SyntaxError{File: p.file, Line: line, Message: "instruction attendue, trouvé '" + p.peek().Lexeme + "'"}
}

func (p *Parser) testStatement(st *symtab.Table, line int) (*ast.Node, error) {
	cond, err := p.expression(st)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenAlors, "'ALORS' attendu"); err != nil {
		return nil, err
	}
	then, err := p.blockUntil(st, lexer.TokenSinon)
	if err != nil {
		return nil, err
	}
	var els *ast.Node
	if p.match(lexer.TokenSinon) {
		els, err = p.blockUntil(st, lexer.TokenFsi)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(lexer.TokenFsi, "'FSI' attendu"); err != nil {
		return nil, err
	}
	return ast.NewTest(cond, then, els, line), nil
}

func (p *Parser) whileStatement(st *symtab.Table, line int) (*ast.Node, error) {
	cond, err := p.expression(st)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenFaire, "'FAIRE' attendu"); err != nil {
		return nil, err
	}
	body, err := p.blockUntil(st, lexer.TokenFtq)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenFtq, "'FTQ' attendu"); err != nil {
		return nil, err
	}
	return ast.NewWhile(cond, body, line), nil
}

func (p *Parser) readStatement(st *symtab.Table, line int) (*ast.Node, error) {
	if p.match(lexer.TokenLBracket) {
		name, err := p.consume(lexer.TokenIdent, "identifiant attendu")
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRBracket, "']' attendu"); err != nil {
			return nil, err
		}
		return ast.NewReadArray(st, name.Lexeme, p.file, line)
	}
	name, err := p.consume(lexer.TokenIdent, "identifiant attendu")
	if err != nil {
		return nil, err
	}
	if p.match(lexer.TokenLBracket) {
		idx, err := p.expression(st)
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRBracket, "']' attendu"); err != nil {
			return nil, err
		}
		return ast.NewReadIndexed(st, name.Lexeme, idx, p.file, line)
	}
	return ast.NewRead(st, name.Lexeme, p.file, line)
}

func (p *Parser) printStatement(st *symtab.Table, line int) (*ast.Node, error) {
	if p.match(lexer.TokenLBracket) {
		name, err := p.consume(lexer.TokenIdent, "identifiant attendu")
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRBracket, "']' attendu"); err != nil {
			return nil, err
		}
		return ast.NewPrintArray(st, name.Lexeme, p.file, line)
	}
	expr, err := p.expression(st)
	if err != nil {
		return nil, err
	}
	return ast.NewPrint(expr, line), nil
}

func (p *Parser) returnStatement(st *symtab.Table, line int) (*ast.Node, error) {
	if p.atStatementEnd() {
		return ast.NewReturn(nil, line), nil
	}
	expr, err := p.expression(st)
	if err != nil {
		return nil, err
	}
	return ast.NewReturn(expr, line), nil
}

// identStatement disambiguates the declaration, assignment, and
// bare-expression forms that can all start with an identifier.
func (p *Parser) identStatement(st *symtab.Table, line int) (*ast.Node, error) {
	name, _ := p.consume(lexer.TokenIdent, "identifiant attendu")

	if p.match(lexer.TokenColon) {
		return p.declaration(st, name.Lexeme, line)
	}

	if p.check(lexer.TokenLParen) {
		return p.identPrimary(st, name)
	}

	if p.match(lexer.TokenLBracket) {
		idx, err := p.expression(st)
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRBracket, "']' attendu"); err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenAssign, "':=' attendu"); err != nil {
			return nil, err
		}
		expr, err := p.expression(st)
		if err != nil {
			return nil, err
		}
		return ast.NewAssignIndexed(st, name.Lexeme, idx, expr, p.file, line)
	}

	if _, err := p.consume(lexer.TokenAssign, "':=' attendu"); err != nil {
		return nil, err
	}

	if p.match(lexer.TokenLBrace) {
		return p.intListOrArrayCopy(st, name.Lexeme, line)
	}

	expr, err := p.expression(st)
	if err != nil {
		return nil, err
	}
	return ast.NewAssignScalar(st, name.Lexeme, expr, p.file, line)
}

// declaration parses `id : ENTIER ;` or `id : TABLEAU [ size ] ;`. A
// declaration has no runtime effect, so it returns nil (nothing to
// splice into the enclosing block) rather than an ast.Node.
func (p *Parser) declaration(st *symtab.Table, name string, line int) (*ast.Node, error) {
	if p.match(lexer.TokenEntier) {
		if _, err := p.consume(lexer.TokenSemi, "';' attendu"); err != nil {
			return nil, err
		}
		_, err := symtab.CreateScalar(st, name, p.loc())
		return nil, err
	}
	if _, err := p.consume(lexer.TokenTableau, "'ENTIER' ou 'TABLEAU' attendu"); err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenLBracket, "'[' attendu"); err != nil {
		return nil, err
	}
	sizeTok, err := p.consume(lexer.TokenNumber, "taille attendue")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenRBracket, "']' attendu"); err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenSemi, "';' attendu"); err != nil {
		return nil, err
	}
	size := parseInt(sizeTok.Lexeme)
	_, err = symtab.CreateArray(st, name, size, diag.Location{File: p.file, Line: line})
	return nil, err
}

// intListOrArrayCopy parses the right side of `id := { … }` or an
// array-copy `dst := src` once the `{` has already been consumed as a
// lookahead miss: since `{` only introduces the int-list form, this is
// always the int-list form here.
func (p *Parser) intListOrArrayCopy(st *symtab.Table, id string, line int) (*ast.Node, error) {
	var values []*ast.Node
	if !p.check(lexer.TokenRBrace) {
		for {
			tok, err := p.consume(lexer.TokenNumber, "entier attendu")
			if err != nil {
				return nil, err
			}
			values = append(values, ast.NewInt(parseInt(tok.Lexeme), tok.Line))
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	if _, err := p.consume(lexer.TokenRBrace, "'}' attendu"); err != nil {
		return nil, err
	}
	return ast.NewAssignIntList(st, id, values, p.file, line)
}

func parseInt(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func (p *Parser) atStatementEnd() bool {
	switch p.peek().Type {
	case lexer.TokenFsi, lexer.TokenSinon, lexer.TokenFtq, lexer.TokenFin, lexer.TokenEOF, lexer.TokenSemi:
		return true
	}
	return false
}
