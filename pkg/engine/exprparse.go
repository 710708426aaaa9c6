/*
Copyright The Helm Authors.
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package engine

// exprParser is a small Pratt parser over the flat token stream produced by
// tokenize. Precedence (low to high): ternary, or, and, not, comparison
// (including in / not in), is-test, concat (~), additive, multiplicative,
// filter (|), unary, postfix (call/attr/index), atom.
type exprParser struct {
	toks []token
	pos  int
	line int
}

func newExprParser(toks []token, line int) *exprParser {
	return &exprParser{toks: toks, line: line}
}

func (p *exprParser) cur() token { return p.toks[p.pos] }
func (p *exprParser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *exprParser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *exprParser) isOp(s string) bool {
	return p.cur().kind == tokOp && p.cur().text == s
}
func (p *exprParser) isKeyword(s string) bool {
	return p.cur().kind == tokKeyword && p.cur().text == s
}

func (p *exprParser) expectOp(s string) error {
	if !p.isOp(s) {
		return &RenderError{Line: p.line, Kind: KindSyntaxError, Message: "expected '" + s + "'"}
	}
	p.advance()
	return nil
}

// ParseExpr parses a full expression and ensures the token stream is fully
// consumed.
func (p *exprParser) ParseExpr() (Expr, error) {
	e, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, &RenderError{Line: p.line, Kind: KindSyntaxError, Message: "unexpected trailing tokens near '" + p.cur().text + "'"}
	}
	return e, nil
}

func (p *exprParser) parseTernary() (Expr, error) {
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("if") {
		p.advance()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var elseExpr Expr
		if p.isKeyword("else") {
			p.advance()
			elseExpr, err = p.parseTernary()
			if err != nil {
				return nil, err
			}
		}
		return &TernaryExpr{Cond: cond, Then: e, Else: elseExpr}, nil
	}
	return e, nil
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseNot() (Expr, error) {
	if p.isKeyword("not") {
		p.advance()
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "not", Expr: e}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true}

func (p *exprParser) parseComparison() (Expr, error) {
	left, err := p.parseIsTest()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur().kind == tokOp && compareOps[p.cur().text] {
			op := p.advance().text
			right, err := p.parseIsTest()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpr{Op: op, Left: left, Right: right}
			continue
		}
		if p.isKeyword("in") {
			p.advance()
			right, err := p.parseIsTest()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpr{Op: "in", Left: left, Right: right}
			continue
		}
		if p.isKeyword("not") && p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tokKeyword && p.toks[p.pos+1].text == "in" {
			p.advance()
			p.advance()
			right, err := p.parseIsTest()
			if err != nil {
				return nil, err
			}
			left = &UnaryExpr{Op: "not", Expr: &BinaryExpr{Op: "in", Left: left, Right: right}}
			continue
		}
		break
	}
	return left, nil
}

func (p *exprParser) parseIsTest() (Expr, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("is") {
		p.advance()
		not := false
		if p.isKeyword("not") {
			not = true
			p.advance()
		}
		if p.cur().kind != tokIdent && p.cur().kind != tokKeyword {
			return nil, &RenderError{Line: p.line, Kind: KindSyntaxError, Message: "expected test name after 'is'"}
		}
		name := p.advance().text
		var args []Expr
		if p.isOp("(") {
			args, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		left = &TestExpr{Target: left, Name: name, Not: not, Args: args}
	}
	return left, nil
}

func (p *exprParser) parseConcat() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isOp("~") {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "~", Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.advance().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseMultiplicative() (Expr, error) {
	left, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.advance().text
		right, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseFilter() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("|") {
		p.advance()
		if p.cur().kind != tokIdent {
			return nil, &RenderError{Line: p.line, Kind: KindSyntaxError, Message: "expected filter name after '|'"}
		}
		name := p.advance().text
		var args []Expr
		if p.isOp("(") {
			args, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		left = &FilterExpr{Target: left, Name: name, Args: args, Line: p.line}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (Expr, error) {
	if p.isOp("-") {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", Expr: e}, nil
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (Expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.advance()
			if p.cur().kind != tokIdent && p.cur().kind != tokKeyword {
				return nil, &RenderError{Line: p.line, Kind: KindSyntaxError, Message: "expected attribute name after '.'"}
			}
			name := p.advance().text
			e = &AttrExpr{Target: e, Field: name}
		case p.isOp("["):
			p.advance()
			key, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			e = &IndexExpr{Target: e, Key: key}
		case p.isOp("("):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = &CallExpr{Target: e, Args: args}
		default:
			return e, nil
		}
	}
}

func (p *exprParser) parseArgs() ([]Expr, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	var args []Expr
	if !p.isOp(")") {
		for {
			a, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.isOp(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *exprParser) parseAtom() (Expr, error) {
	t := p.cur()
	switch {
	case t.kind == tokNumber:
		p.advance()
		return &LiteralExpr{Value: t.num}, nil
	case t.kind == tokString:
		p.advance()
		return &LiteralExpr{Value: t.text}, nil
	case t.kind == tokKeyword && (t.text == "true" || t.text == "True"):
		p.advance()
		return &LiteralExpr{Value: true}, nil
	case t.kind == tokKeyword && (t.text == "false" || t.text == "False"):
		p.advance()
		return &LiteralExpr{Value: false}, nil
	case t.kind == tokKeyword && (t.text == "none" || t.text == "None"):
		p.advance()
		return &LiteralExpr{Value: nil}, nil
	case t.kind == tokIdent:
		p.advance()
		return &IdentExpr{Name: t.text}, nil
	case p.isOp("("):
		p.advance()
		e, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return e, nil
	case p.isOp("["):
		p.advance()
		var items []Expr
		if !p.isOp("]") {
			for {
				it, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				items = append(items, it)
				if p.isOp(",") {
					p.advance()
					continue
				}
				break
			}
		}
		if err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return &ListExpr{Items: items}, nil
	case p.isOp("{"):
		p.advance()
		var keys, values []Expr
		if !p.isOp("}") {
			for {
				k, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				if err := p.expectOp(":"); err != nil {
					return nil, err
				}
				v, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				keys = append(keys, k)
				values = append(values, v)
				if p.isOp(",") {
					p.advance()
					continue
				}
				break
			}
		}
		if err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return &DictExpr{Keys: keys, Values: values}, nil
	}
	return nil, &RenderError{Line: p.line, Kind: KindSyntaxError, Message: "unexpected token '" + t.text + "'"}
}

// parseExprString is a convenience wrapper used by the statement parser.
func parseExprString(src string, line int) (Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	return newExprParser(toks, line).ParseExpr()
}
