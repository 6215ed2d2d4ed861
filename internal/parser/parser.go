// Package parser is a recursive-descent parser producing the AST
// shape spec.md §4.4 describes. The scanner and the parser are
// external collaborators relative to the compiler/VM core (spec.md
// §1), but this repo still implements them because the compiler has
// nothing to consume otherwise.
package parser

import (
	"fmt"

	"noxy-vm/internal/ast"
	"noxy-vm/internal/lexer"
	"noxy-vm/internal/token"
)

type precedence int

const (
	_ precedence = iota
	PREC_ASSIGNMENT
	PREC_OR
	PREC_AND
	PREC_EQUALITY
	PREC_COMPARISON
	PREC_TERM
	PREC_FACTOR
	PREC_UNARY
	PREC_CALL
)

var precedences = map[token.TokenType]precedence{
	token.OR:            PREC_OR,
	token.AND:           PREC_AND,
	token.EQUAL_EQUAL:   PREC_EQUALITY,
	token.BANG_EQUAL:    PREC_EQUALITY,
	token.LESS:          PREC_COMPARISON,
	token.LESS_EQUAL:    PREC_COMPARISON,
	token.GREATER:       PREC_COMPARISON,
	token.GREATER_EQUAL: PREC_COMPARISON,
	token.PLUS:          PREC_TERM,
	token.MINUS:         PREC_TERM,
	token.STAR:          PREC_FACTOR,
	token.SLASH:         PREC_FACTOR,
	token.LPAREN:        PREC_CALL,
}

const maxCallArgs = 255

type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]func() ast.Expression
	infixParseFns  map[token.TokenType]func(ast.Expression) ast.Expression

	errors []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.nextToken()
	p.nextToken()

	p.prefixParseFns = map[token.TokenType]func() ast.Expression{
		token.IDENTIFIER: p.parseIdentifier,
		token.NUMBER:     p.parseNumberLiteral,
		token.STRING:     p.parseStringLiteral,
		token.TRUE:        p.parseBoolLiteral,
		token.FALSE:       p.parseBoolLiteral,
		token.MINUS:       p.parseUnaryExpr,
		token.BANG:        p.parseUnaryExpr,
		token.NOT:         p.parseUnaryExpr,
		token.LPAREN:       p.parseGroupingExpr,
	}

	p.infixParseFns = map[token.TokenType]func(ast.Expression) ast.Expression{
		token.PLUS:          p.parseBinaryExpr,
		token.MINUS:         p.parseBinaryExpr,
		token.STAR:          p.parseBinaryExpr,
		token.SLASH:         p.parseBinaryExpr,
		token.EQUAL_EQUAL:   p.parseBinaryExpr,
		token.BANG_EQUAL:    p.parseBinaryExpr,
		token.LESS:          p.parseBinaryExpr,
		token.LESS_EQUAL:    p.parseBinaryExpr,
		token.GREATER:       p.parseBinaryExpr,
		token.GREATER_EQUAL: p.parseBinaryExpr,
		token.AND:           p.parseLogicalExpr,
		token.OR:            p.parseLogicalExpr,
		token.LPAREN:        p.parseCallExpr,
	}

	return p
}

func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) errorf(line int, format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("[line %d] SyntaxError: %s", line, fmt.Sprintf(format, args...)))
}

func (p *Parser) peekPrecedence() precedence {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return PREC_ASSIGNMENT
}

func (p *Parser) expect(t token.TokenType, what string) bool {
	if p.peekToken.Type == t {
		p.nextToken()
		return true
	}
	p.errorf(p.peekToken.Line, "expected %s, found %q", what, p.peekToken.Lexeme)
	return false
}

// ParseProgram parses the whole token stream into a Program.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Statements: []ast.Statement{}}

	for p.curToken.Type != token.EOF {
		stmt := p.parseDeclaration()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) parseDeclaration() ast.Statement {
	switch p.curToken.Type {
	case token.LET:
		return p.parseLetStmt()
	case token.FUN:
		return p.parseFunStmt()
	case token.STRUCT, token.SUPER, token.SELF:
		p.errorf(p.curToken.Line, "%q is reserved and not supported", p.curToken.Lexeme)
		return nil
	default:
		return p.parseStatement()
	}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.PRINT:
		return p.parsePrintStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.LBRACE:
		return p.parseBlockStmt()
	default:
		return p.parseExpressionStmt()
	}
}

func (p *Parser) parseLetStmt() *ast.LetStmt {
	tok := p.curToken
	if !p.expect(token.IDENTIFIER, "identifier") {
		return nil
	}
	name := p.curToken.Lexeme

	if !p.expect(token.EQUAL, "'=' (let without an initializer is not supported)") {
		return nil
	}
	p.nextToken()
	value := p.parseExpression(PREC_ASSIGNMENT)

	p.expectSemi()
	return &ast.LetStmt{Token: tok, Name: name, Value: value}
}

func (p *Parser) parseFunStmt() *ast.FunStmt {
	tok := p.curToken
	if !p.expect(token.IDENTIFIER, "function name") {
		return nil
	}
	name := p.curToken.Lexeme

	if !p.expect(token.LPAREN, "'('") {
		return nil
	}
	params := []string{}
	if p.peekToken.Type != token.RPAREN {
		p.nextToken()
		params = append(params, p.curToken.Lexeme)
		for p.peekToken.Type == token.COMMA {
			p.nextToken()
			p.nextToken()
			if len(params) >= maxCallArgs {
				p.errorf(p.curToken.Line, "cannot have more than %d parameters", maxCallArgs)
			}
			params = append(params, p.curToken.Lexeme)
		}
	}
	if !p.expect(token.RPAREN, "')'") {
		return nil
	}
	if !p.expect(token.LBRACE, "'{'") {
		return nil
	}
	body := p.parseBlockStmt()
	return &ast.FunStmt{Token: tok, Name: name, Params: params, Body: body.Statements}
}

func (p *Parser) parsePrintStmt() *ast.PrintStmt {
	tok := p.curToken
	p.nextToken()
	value := p.parseExpression(PREC_ASSIGNMENT)
	p.expectSemi()
	return &ast.PrintStmt{Token: tok, Value: value}
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	tok := p.curToken
	stmt := &ast.ReturnStmt{Token: tok}
	if p.peekToken.Type != token.SEMI {
		p.nextToken()
		stmt.Value = p.parseExpression(PREC_ASSIGNMENT)
	}
	p.expectSemi()
	return stmt
}

func (p *Parser) parseExpressionStmt() *ast.ExpressionStmt {
	tok := p.curToken
	expr := p.parseExpression(PREC_ASSIGNMENT)
	p.expectSemi()
	return &ast.ExpressionStmt{Token: tok, Expression: expr}
}

// expectSemi consumes a trailing ';' if present. spec.md does not
// dwell on statement terminators; this rewrite requires one, the way
// the teacher's own statement-based constructs are newline/semicolon
// delimited.
func (p *Parser) expectSemi() {
	if p.peekToken.Type == token.SEMI {
		p.nextToken()
		return
	}
	p.errorf(p.peekToken.Line, "expected ';' after statement, found %q", p.peekToken.Lexeme)
}

func (p *Parser) parseBlockStmt() *ast.BlockStmt {
	tok := p.curToken // '{'
	block := &ast.BlockStmt{Token: tok, Statements: []ast.Statement{}}

	p.nextToken()
	for p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF {
		stmt := p.parseDeclaration()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	if p.curToken.Type != token.RBRACE {
		p.errorf(p.curToken.Line, "expected '}' to close block, found end of file")
	}
	return block
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	tok := p.curToken
	if !p.expect(token.LPAREN, "'(' after 'if'") {
		return nil
	}
	p.nextToken()
	condition := p.parseExpression(PREC_ASSIGNMENT)
	if !p.expect(token.RPAREN, "')' after condition") {
		return nil
	}
	if !p.expect(token.LBRACE, "'{' to start if-body") {
		return nil
	}
	then := p.parseBlockStmt()

	stmt := &ast.IfStmt{Token: tok, Condition: condition, Then: then}
	if p.peekToken.Type == token.ELSE {
		p.nextToken()
		if p.peekToken.Type == token.IF {
			p.nextToken()
			stmt.Else = p.parseIfStmt()
		} else if p.expect(token.LBRACE, "'{' to start else-body") {
			stmt.Else = p.parseBlockStmt()
		}
	}
	return stmt
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	tok := p.curToken
	if !p.expect(token.LPAREN, "'(' after 'while'") {
		return nil
	}
	p.nextToken()
	condition := p.parseExpression(PREC_ASSIGNMENT)
	if !p.expect(token.RPAREN, "')' after condition") {
		return nil
	}
	if !p.expect(token.LBRACE, "'{' to start while-body") {
		return nil
	}
	body := p.parseBlockStmt()
	return &ast.WhileStmt{Token: tok, Condition: condition, Body: body}
}

// parseForStmt desugars `for (init; cond; incr) { body }` into
// `{ init; while (cond) { body; incr; } }`, exactly as spec.md §4.2
// says the parser must, so the compiler needs no ForStmt case at all.
func (p *Parser) parseForStmt() *ast.BlockStmt {
	tok := p.curToken
	if !p.expect(token.LPAREN, "'(' after 'for'") {
		return nil
	}

	outer := &ast.BlockStmt{Token: tok, Statements: []ast.Statement{}}

	p.nextToken()
	if p.curToken.Type != token.SEMI {
		init := p.parseDeclaration()
		if init != nil {
			outer.Statements = append(outer.Statements, init)
		}
	}
	if p.curToken.Type != token.SEMI {
		p.nextToken()
	}

	var condition ast.Expression
	p.nextToken()
	if p.curToken.Type != token.SEMI {
		condition = p.parseExpression(PREC_ASSIGNMENT)
		p.nextToken()
	}
	if p.curToken.Type != token.SEMI {
		p.errorf(p.curToken.Line, "expected ';' after for-loop condition")
	}

	var increment ast.Expression
	p.nextToken()
	if p.curToken.Type != token.RPAREN {
		increment = p.parseExpression(PREC_ASSIGNMENT)
		p.nextToken()
	}
	if p.curToken.Type != token.RPAREN {
		p.errorf(p.curToken.Line, "expected ')' after for-loop clauses")
	}

	if !p.expect(token.LBRACE, "'{' to start for-body") {
		return outer
	}
	body := p.parseBlockStmt()

	if increment != nil {
		body.Statements = append(body.Statements, &ast.ExpressionStmt{
			Token:      body.Token,
			Expression: increment,
		})
	}
	if condition == nil {
		condition = &ast.BoolLiteral{Token: tok, Value: true}
	}
	outer.Statements = append(outer.Statements, &ast.WhileStmt{
		Token:     tok,
		Condition: condition,
		Body:      body,
	})
	return outer
}

// parseExpression implements assignment-expression on top of Pratt
// precedence climbing: assignment is recognized here rather than via
// an infix handler because its LHS must be an identifier, checked
// before descending into ordinary operator precedence.
func (p *Parser) parseExpression(prec precedence) ast.Expression {
	if p.curToken.Type == token.IDENTIFIER && p.peekToken.Type == token.EQUAL {
		name := p.curToken.Lexeme
		tok := p.curToken
		p.nextToken() // consume identifier, cur = '='
		p.nextToken() // consume '=', cur = start of rhs
		value := p.parseExpression(PREC_ASSIGNMENT)
		return &ast.AssignExpr{Token: tok, Name: name, Value: value}
	}

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorf(p.curToken.Line, "unexpected token %q", p.curToken.Lexeme)
		return nil
	}
	left := prefix()

	for prec < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Name: p.curToken.Lexeme}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	return &ast.NumberLiteral{Token: p.curToken, Value: p.curToken.Number}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Lexeme}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.BoolLiteral{Token: p.curToken, Value: p.curToken.Type == token.TRUE}
}

func (p *Parser) parseUnaryExpr() ast.Expression {
	tok := p.curToken
	operator := tok.Lexeme
	if tok.Type == token.NOT {
		operator = "!"
	}
	p.nextToken()
	right := p.parseExpression(PREC_UNARY)
	return &ast.UnaryExpr{Token: tok, Operator: operator, Right: right}
}

func (p *Parser) parseGroupingExpr() ast.Expression {
	tok := p.curToken
	p.nextToken()
	expr := p.parseExpression(PREC_ASSIGNMENT)
	if !p.expect(token.RPAREN, "')' after expression") {
		return nil
	}
	return &ast.GroupingExpr{Token: tok, Expression: expr}
}

func (p *Parser) parseBinaryExpr(left ast.Expression) ast.Expression {
	tok := p.curToken
	prec := precedences[tok.Type]
	p.nextToken()
	right := p.parseExpression(prec)
	return &ast.BinaryExpr{Token: tok, Operator: tok.Lexeme, Left: left, Right: right}
}

func (p *Parser) parseLogicalExpr(left ast.Expression) ast.Expression {
	tok := p.curToken
	prec := precedences[tok.Type]
	p.nextToken()
	right := p.parseExpression(prec)
	return &ast.LogicalExpr{Token: tok, Operator: tok.Lexeme, Left: left, Right: right}
}

func (p *Parser) parseCallExpr(callee ast.Expression) ast.Expression {
	tok := p.curToken // '('
	args := []ast.Expression{}
	if p.peekToken.Type != token.RPAREN {
		p.nextToken()
		args = append(args, p.parseExpression(PREC_ASSIGNMENT))
		for p.peekToken.Type == token.COMMA {
			p.nextToken()
			p.nextToken()
			if len(args) >= maxCallArgs {
				p.errorf(p.curToken.Line, "cannot have more than %d arguments", maxCallArgs)
			}
			args = append(args, p.parseExpression(PREC_ASSIGNMENT))
		}
	}
	if !p.expect(token.RPAREN, "')' after arguments") {
		return nil
	}
	return &ast.CallExpr{Token: tok, Callee: callee, Args: args}
}
