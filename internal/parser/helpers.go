package parser

import (
	"fmt"

	"algo/internal/diag"
	"algo/internal/lexer"
)

// SyntaxError reports a parse-time failure: an unexpected or missing
// token. diag.Kind deliberately has no syntactic category (package
// diag's doc comment: that's the parser's own concern), so this type
// carries it instead, formatted the same "<file>:<line>: <message>"
// way as a diag.Error.
type SyntaxError struct {
	File    string
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.check(lexer.TokenEOF) {
		p.current++
	}
	return p.previous()
}

func (p *Parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t lexer.TokenType, message string) (lexer.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return lexer.Token{}, &SyntaxError{File: p.file, Line: p.peek().Line, Message: message + ", trouvé '" + p.peek().Lexeme + "'"}
}

func (p *Parser) loc() diag.Location {
	return diag.Location{File: p.file, Line: p.peek().Line}
}
