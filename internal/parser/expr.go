package parser

import (
	"algo/internal/ast"
	"algo/internal/diag"
	"algo/internal/lexer"
	"algo/internal/symtab"
)

// expression parses at the lowest precedence level: OU / OU EXCLUSIF.
func (p *Parser) expression(st *symtab.Table) (*ast.Node, error) {
	return p.orExpr(st)
}

func (p *Parser) orExpr(st *symtab.Table) (*ast.Node, error) {
	left, err := p.andExpr(st)
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenOu) {
		line := p.peek().Line
		p.advance()
		op := ast.OpOr
		if p.check(lexer.TokenIdent) && p.peek().Lexeme == "EXCLUSIF" {
			p.advance()
			op = ast.OpXor
		}
		right, err := p.andExpr(st)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(op, left, right, line)
	}
	return left, nil
}

func (p *Parser) andExpr(st *symtab.Table) (*ast.Node, error) {
	left, err := p.comparison(st)
	if err != nil {
		return nil, err
	}
	for p.match(lexer.TokenEt) {
		line := p.previous().Line
		right, err := p.comparison(st)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(ast.OpAnd, left, right, line)
	}
	return left, nil
}

var comparisonOps = map[lexer.TokenType]ast.BinOp{
	lexer.TokenGE:    ast.OpGe,
	lexer.TokenGT:    ast.OpGt,
	lexer.TokenLE:    ast.OpLe,
	lexer.TokenLT:    ast.OpLt,
	lexer.TokenEqual: ast.OpEq,
	lexer.TokenHash:  ast.OpNe,
}

func (p *Parser) comparison(st *symtab.Table) (*ast.Node, error) {
	left, err := p.additive(st)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.peek().Type]
		if !ok {
			break
		}
		line := p.peek().Line
		p.advance()
		right, err := p.additive(st)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(op, left, right, line)
	}
	return left, nil
}

func (p *Parser) additive(st *symtab.Table) (*ast.Node, error) {
	left, err := p.multiplicative(st)
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		op := ast.OpAdd
		if p.peek().Type == lexer.TokenMinus {
			op = ast.OpSub
		}
		line := p.peek().Line
		p.advance()
		right, err := p.multiplicative(st)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(op, left, right, line)
	}
	return left, nil
}

func (p *Parser) multiplicative(st *symtab.Table) (*ast.Node, error) {
	left, err := p.unary(st)
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOp
		switch p.peek().Type {
		case lexer.TokenStar:
			op = ast.OpMul
		case lexer.TokenSlash:
			op = ast.OpDiv
		case lexer.TokenPercent:
			op = ast.OpMod
		default:
			return left, nil
		}
		line := p.peek().Line
		p.advance()
		right, err := p.unary(st)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(op, left, right, line)
	}
}

func (p *Parser) unary(st *symtab.Table) (*ast.Node, error) {
	if p.match(lexer.TokenMinus) {
		line := p.previous().Line
		expr, err := p.unary(st)
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(ast.OpNeg, expr, line), nil
	}
	if p.match(lexer.TokenNon) {
		line := p.previous().Line
		expr, err := p.unary(st)
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(ast.OpNot, expr, line), nil
	}
	return p.primary(st)
}

func (p *Parser) primary(st *symtab.Table) (*ast.Node, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		return ast.NewInt(parseInt(tok.Lexeme), tok.Line), nil

	case lexer.TokenLParen:
		p.advance()
		expr, err := p.expression(st)
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRParen, "')' attendu"); err != nil {
			return nil, err
		}
		return expr, nil

	case lexer.TokenIdent:
		p.advance()
		return p.identPrimary(st, tok)
	}

	return nil, diag.New(diag.NameError, tok.Lexeme, diag.Location{File: p.file, Line: tok.Line})
}

// identPrimary parses everything that can follow a bare identifier
// inside an expression: a function call, an array index, a `.len()`
// method call, or a plain scalar variable reference.
func (p *Parser) identPrimary(st *symtab.Table, tok lexer.Token) (*ast.Node, error) {
	if p.match(lexer.TokenLParen) {
		var args []*ast.Node
		if !p.check(lexer.TokenRParen) {
			for {
				arg, err := p.expression(st)
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.match(lexer.TokenComma) {
					break
				}
			}
		}
		if _, err := p.consume(lexer.TokenRParen, "')' attendu"); err != nil {
			return nil, err
		}
		return ast.NewFnCall(tok.Lexeme, args, tok.Line), nil
	}

	if p.match(lexer.TokenLBracket) {
		idx, err := p.expression(st)
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRBracket, "']' attendu"); err != nil {
			return nil, err
		}
		return ast.NewIndex(st, tok.Lexeme, idx, p.file, tok.Line)
	}

	if p.match(lexer.TokenDot) {
		method, err := p.consume(lexer.TokenIdent, "nom de méthode attendu")
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenLParen, "'(' attendu"); err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRParen, "')' attendu"); err != nil {
			return nil, err
		}
		return ast.NewMethodCall(st, tok.Lexeme, method.Lexeme, p.file, tok.Line)
	}

	return ast.NewVar(st, tok.Lexeme, p.file, tok.Line)
}
