// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser
//
// A recursive descent parser is a top-down parser: it starts from the top
// grammar rule and works its way down into nested sub-expressions before
// reaching the leaves of the syntax tree (terminal rules).
//
// Grammar:
//
//	Expr      := Quote? (List | Atom)
//	List      := '(' Expr (Cons Expr | Elements) ')'
//	Elements  := ε | Expr Elements
//	Atom      := Nil | Number | String | Symbol | Plus | Minus | Star | Slash | Print | Set | Fun | Defun
package parser

import (
	"strconv"

	"parens/arena"
	"parens/ast"
	"parens/token"
	"parens/value"
)

// Parser confines its state — the token cursor and the allocator every AST
// node is built from — to a single parse invocation.
type Parser struct {
	tokens   []token.Token
	position int
	alloc    arena.Allocator
}

// Make initializes a Parser over tokens, allocating AST nodes out of alloc.
func Make(tokens []token.Token, alloc arena.Allocator) *Parser {
	return &Parser{tokens: tokens, alloc: alloc}
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.position]
}

func (p *Parser) previous() token.Token {
	return p.tokens[p.position-1]
}

func (p *Parser) advance() token.Token {
	if !p.isFinished() {
		p.position++
	}
	return p.previous()
}

func (p *Parser) isFinished() bool {
	return p.peek().Kind == token.Eof
}

func (p *Parser) check(kind token.Kind) bool {
	if p.position >= len(p.tokens) {
		return false
	}
	return p.peek().Kind == kind
}

func (p *Parser) consume(kind token.Kind, errorMessage string) (token.Token, error) {
	if p.check(kind) {
		return p.advance(), nil
	}
	current := p.peek()
	return token.Token{}, CreateSyntaxError(current.Line, current.Column, errorMessage)
}

// Parse parses one expression from the start of the token stream and returns
// its root AST node, or the first error encountered. Tokens after that
// expression are not examined.
func (p *Parser) Parse() (*ast.Ast, error) {
	if len(p.tokens) == 0 || p.peek().Kind == token.Eof {
		return nil, SyntaxError{Message: "Nothing to parse."}
	}
	return p.expr()
}

// expr parses Quote? (List | Atom). The quote flag applies only to the
// expression immediately following it — quoting does not recurse.
func (p *Parser) expr() (*ast.Ast, error) {
	quoted := false
	if p.check(token.Quote) {
		p.advance()
		quoted = true
	}

	if p.check(token.ParenStart) {
		node, err := p.list()
		if err != nil {
			return nil, err
		}
		node.Quoted = quoted
		return node, nil
	}

	return p.atom(quoted)
}

// list parses '(' Expr (Cons Expr | Elements) ')', handling the three shapes:
// an empty list (=> Atom(Nil)), a dotted pair (=> Cons(a, b) verbatim), and a
// proper list (=> right-nested Cons chain terminated by a synthesized Nil).
func (p *Parser) list() (*ast.Ast, error) {
	open := p.advance() // consume '('

	if p.check(token.ParenEnd) {
		closeTok := p.advance()
		return ast.NewAtom(p.alloc, &closeTok, value.Nil(), false), nil
	}

	first, err := p.expr()
	if err != nil {
		return nil, err
	}

	if p.check(token.Cons) {
		p.advance()
		second, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.ParenEnd, "Unterminated list parentheses"); err != nil {
			return nil, err
		}
		return ast.NewCons(p.alloc, &open, first, second, false), nil
	}

	elements := []*ast.Ast{first}
	for !p.check(token.ParenEnd) {
		if p.isFinished() {
			current := p.peek()
			return nil, CreateSyntaxError(current.Line, current.Column, "Unterminated list parentheses")
		}
		el, err := p.expr()
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	closeTok := p.advance()

	tail := ast.NewAtom(p.alloc, &closeTok, value.Nil(), false)
	for i := len(elements) - 1; i >= 0; i-- {
		tail = ast.NewCons(p.alloc, &open, elements[i], tail, false)
	}
	return tail, nil
}

// atom parses Nil | Number | String | Symbol | Plus | Minus | Star | Slash |
// Print | Set | Fun | Defun.
func (p *Parser) atom(quoted bool) (*ast.Ast, error) {
	tok := p.peek()

	switch tok.Kind {
	case token.Nil:
		p.advance()
		return ast.NewAtom(p.alloc, &tok, value.Nil(), quoted), nil
	case token.Number:
		p.advance()
		f, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, CreateSyntaxError(tok.Line, tok.Column, "Invalid number literal: "+tok.Lexeme)
		}
		return ast.NewAtom(p.alloc, &tok, value.F64(f), quoted), nil
	case token.String:
		p.advance()
		obj := value.NewStringIn(p.alloc, tok.Lexeme)
		return ast.NewAtom(p.alloc, &tok, value.Obj(obj), quoted), nil
	case token.Symbol, token.Set, token.Fun, token.Defun:
		p.advance()
		obj := value.NewSymbolIn(p.alloc, tok.Lexeme)
		return ast.NewAtom(p.alloc, &tok, value.Obj(obj), quoted), nil
	case token.Plus:
		p.advance()
		return ast.NewAtom(p.alloc, &tok, value.Op(value.OpAdd), quoted), nil
	case token.Minus:
		p.advance()
		return ast.NewAtom(p.alloc, &tok, value.Op(value.OpSub), quoted), nil
	case token.Star:
		p.advance()
		return ast.NewAtom(p.alloc, &tok, value.Op(value.OpMul), quoted), nil
	case token.Slash:
		p.advance()
		return ast.NewAtom(p.alloc, &tok, value.Op(value.OpDiv), quoted), nil
	case token.Print:
		p.advance()
		return ast.NewAtom(p.alloc, &tok, value.Op(value.OpPrint), quoted), nil
	}

	return nil, CreateSyntaxError(tok.Line, tok.Column, "Unrecognised expression.")
}
