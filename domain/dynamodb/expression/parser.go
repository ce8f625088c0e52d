package expression

import (
	"fmt"
	"strconv"
	"strings"
)

// booleanFunctions are callable inside condition expressions.
var booleanFunctions = map[string]int{
	"attribute_exists":     1,
	"attribute_not_exists": 1,
	"attribute_type":       2,
	"begins_with":          2,
	"contains":             2,
}

type parser struct {
	tokens []token
	pos    int
}

// ParseCondition parses a condition, filter or key-condition expression.
func ParseCondition(input string) (Expr, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := p.expectEOF(); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return expr, nil
}

// ParseProjection parses a comma-separated list of document paths.
func ParseProjection(input string) ([]Path, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	var paths []Path
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		paths = append(paths, path)
		if p.peek().kind != tokenComma {
			break
		}
		p.next()
	}
	if err := p.expectEOF(); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return paths, nil
}

// ParseUpdate parses an update expression: SET/REMOVE/ADD/DELETE clauses in
// any order, each at most once.
func ParseUpdate(input string) (*UpdateExpression, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	update := &UpdateExpression{}
	seen := map[string]bool{}

	for p.peek().kind != tokenEOF {
		clause := p.peek()
		if clause.kind != tokenIdent {
			return nil, fmt.Errorf("parse: expected update clause at position %d", clause.pos)
		}
		keyword := strings.ToUpper(clause.text)
		if seen[keyword] {
			return nil, fmt.Errorf("parse: duplicate %s clause", keyword)
		}
		seen[keyword] = true
		p.next()

		var err error
		switch keyword {
		case "SET":
			err = p.parseSetClause(update)
		case "REMOVE":
			err = p.parseRemoveClause(update)
		case "ADD":
			err = p.parseAddClause(update)
		case "DELETE":
			err = p.parseDeleteClause(update)
		default:
			return nil, fmt.Errorf("parse: unknown update clause %q", clause.text)
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	if len(update.Set) == 0 && len(update.Remove) == 0 && len(update.Add) == 0 && len(update.Delete) == 0 {
		return nil, fmt.Errorf("parse: update expression has no actions")
	}
	return update, nil
}

func (p *parser) parseSetClause(update *UpdateExpression) error {
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		if p.peek().kind != tokenEq {
			return fmt.Errorf("expected '=' in SET action at position %d", p.peek().pos)
		}
		p.next()
		value, err := p.parseSetValue()
		if err != nil {
			return err
		}
		update.Set = append(update.Set, SetAction{Path: path, Value: value})
		if !p.acceptActionComma() {
			return nil
		}
	}
}

func (p *parser) parseRemoveClause(update *UpdateExpression) error {
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		update.Remove = append(update.Remove, path)
		if !p.acceptActionComma() {
			return nil
		}
	}
}

func (p *parser) parseAddClause(update *UpdateExpression) error {
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		ref, err := p.expectValueRef()
		if err != nil {
			return err
		}
		update.Add = append(update.Add, AddAction{Path: path, Ref: ref})
		if !p.acceptActionComma() {
			return nil
		}
	}
}

func (p *parser) parseDeleteClause(update *UpdateExpression) error {
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		ref, err := p.expectValueRef()
		if err != nil {
			return err
		}
		update.Delete = append(update.Delete, DeleteAction{Path: path, Ref: ref})
		if !p.acceptActionComma() {
			return nil
		}
	}
}

// acceptActionComma consumes a comma separating actions within a clause.
// Clause keywords terminate the loop without a comma; the caller dispatches
// on the next identifier.
func (p *parser) acceptActionComma() bool {
	if p.peek().kind != tokenComma {
		return false
	}
	p.next()
	return true
}

// parseSetValue parses `operand (('+'|'-') operand)?`.
func (p *parser) parseSetValue() (SetOperand, error) {
	left, err := p.parseSetOperand()
	if err != nil {
		return nil, err
	}
	switch p.peek().kind {
	case tokenPlus:
		p.next()
		right, err := p.parseSetOperand()
		if err != nil {
			return nil, err
		}
		return &SetArithmetic{Op: "+", Left: left, Right: right}, nil
	case tokenMinus:
		p.next()
		right, err := p.parseSetOperand()
		if err != nil {
			return nil, err
		}
		return &SetArithmetic{Op: "-", Left: left, Right: right}, nil
	default:
		return left, nil
	}
}

func (p *parser) parseSetOperand() (SetOperand, error) {
	tok := p.peek()
	switch tok.kind {
	case tokenValueRef:
		p.next()
		return &SetValueRef{Ref: tok.text}, nil
	case tokenIdent:
		if p.peekAt(1).kind == tokenLParen {
			switch strings.ToLower(tok.text) {
			case "if_not_exists":
				p.next()
				p.next() // (
				path, err := p.parsePath()
				if err != nil {
					return nil, err
				}
				if err := p.expect(tokenComma); err != nil {
					return nil, err
				}
				fallback, err := p.parseSetValue()
				if err != nil {
					return nil, err
				}
				if err := p.expect(tokenRParen); err != nil {
					return nil, err
				}
				return &SetIfNotExists{Path: path, Default: fallback}, nil
			case "list_append":
				p.next()
				p.next() // (
				first, err := p.parseSetValue()
				if err != nil {
					return nil, err
				}
				if err := p.expect(tokenComma); err != nil {
					return nil, err
				}
				second, err := p.parseSetValue()
				if err != nil {
					return nil, err
				}
				if err := p.expect(tokenRParen); err != nil {
					return nil, err
				}
				return &SetListAppend{A: first, B: second}, nil
			default:
				return nil, fmt.Errorf("unknown function %q in SET value", tok.text)
			}
		}
		fallthrough
	case tokenNameRef:
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &SetPath{Path: path}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q in SET value at position %d", tok.text, tok.pos)
	}
}

// parseOr implements or_expr := and_expr (OR and_expr)*
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

// parseAnd implements and_expr := not_expr (AND not_expr)*
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

// parseNot implements not_expr := NOT not_expr | atom
func (p *parser) parseNot() (Expr, error) {
	if p.peekKeyword("NOT") {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Inner: inner}, nil
	}
	return p.parseAtom()
}

// parseAtom implements atom := '(' expr ')' | function_call | comparison
func (p *parser) parseAtom() (Expr, error) {
	tok := p.peek()

	if tok.kind == tokenLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	}

	if tok.kind == tokenIdent && p.peekAt(1).kind == tokenLParen {
		name := strings.ToLower(tok.text)
		if arity, ok := booleanFunctions[name]; ok {
			p.next()
			p.next() // (
			var args []Operand
			for {
				arg, err := p.parseOperand()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind != tokenComma {
					break
				}
				p.next()
			}
			if err := p.expect(tokenRParen); err != nil {
				return nil, err
			}
			if len(args) != arity {
				return nil, fmt.Errorf("function %s takes %d arguments, got %d", name, arity, len(args))
			}
			return &FunctionExpr{Name: name, Args: args}, nil
		}
	}

	return p.parseComparison()
}

// parseComparison implements
//
//	comparison := operand (cmp_op operand | BETWEEN operand AND operand | IN '(' list ')')
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	switch {
	case tok.kind == tokenEq, tok.kind == tokenNe, tok.kind == tokenLt,
		tok.kind == tokenLe, tok.kind == tokenGt, tok.kind == tokenGe:
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &CompareExpr{Op: tok.text, Left: left, Right: right}, nil

	case p.peekKeyword("BETWEEN"):
		p.next()
		lower, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.peekKeyword("AND") {
			return nil, fmt.Errorf("expected AND in BETWEEN at position %d", p.peek().pos)
		}
		p.next()
		upper, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{Value: left, Lower: lower, Upper: upper}, nil

	case p.peekKeyword("IN"):
		p.next()
		if err := p.expect(tokenLParen); err != nil {
			return nil, err
		}
		var list []Operand
		for {
			operand, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			list = append(list, operand)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return &InExpr{Value: left, List: list}, nil

	default:
		return nil, fmt.Errorf("expected comparison operator at position %d", tok.pos)
	}
}

// parseOperand implements operand := path | :value | size '(' operand ')'
func (p *parser) parseOperand() (Operand, error) {
	tok := p.peek()
	switch tok.kind {
	case tokenValueRef:
		p.next()
		return &ValueOperand{Ref: tok.text}, nil
	case tokenIdent:
		if strings.ToLower(tok.text) == "size" && p.peekAt(1).kind == tokenLParen {
			p.next()
			p.next() // (
			inner, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokenRParen); err != nil {
				return nil, err
			}
			return &SizeOperand{Arg: inner}, nil
		}
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &PathOperand{Path: path}, nil
	case tokenNameRef:
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &PathOperand{Path: path}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", tok.text, tok.pos)
	}
}

// parsePath implements path := element ('.' element | '[' integer ']')*
func (p *parser) parsePath() (Path, error) {
	element, err := p.parsePathElement()
	if err != nil {
		return nil, err
	}
	path := Path{element}
	for {
		switch p.peek().kind {
		case tokenDot:
			p.next()
			element, err := p.parsePathElement()
			if err != nil {
				return nil, err
			}
			path = append(path, element)
		case tokenLBracket:
			p.next()
			indexTok := p.peek()
			if indexTok.kind != tokenNumber {
				return nil, fmt.Errorf("expected list index at position %d", indexTok.pos)
			}
			p.next()
			index, err := strconv.Atoi(indexTok.text)
			if err != nil {
				return nil, fmt.Errorf("invalid list index %q", indexTok.text)
			}
			if err := p.expect(tokenRBracket); err != nil {
				return nil, err
			}
			path = append(path, PathElement{Index: index, IsIndex: true})
		default:
			return path, nil
		}
	}
}

func (p *parser) parsePathElement() (PathElement, error) {
	tok := p.peek()
	switch tok.kind {
	case tokenIdent:
		p.next()
		return PathElement{Ident: tok.text}, nil
	case tokenNameRef:
		p.next()
		return PathElement{NameRef: tok.text}, nil
	default:
		return PathElement{}, fmt.Errorf("expected attribute name at position %d", tok.pos)
	}
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *parser) peekKeyword(keyword string) bool {
	tok := p.peek()
	return tok.kind == tokenIdent && strings.EqualFold(tok.text, keyword)
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) error {
	tok := p.peek()
	if tok.kind != kind {
		return fmt.Errorf("unexpected token %q at position %d", tok.text, tok.pos)
	}
	p.next()
	return nil
}

func (p *parser) expectEOF() error {
	tok := p.peek()
	if tok.kind != tokenEOF {
		return fmt.Errorf("trailing input at position %d", tok.pos)
	}
	return nil
}

func (p *parser) expectValueRef() (string, error) {
	tok := p.peek()
	if tok.kind != tokenValueRef {
		return "", fmt.Errorf("expected value placeholder at position %d", tok.pos)
	}
	p.next()
	return tok.text, nil
}
