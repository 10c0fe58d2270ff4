package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

// Target is one requested type with optional attribute constraints.
type Target struct {
	Type        schema.QualifiedName
	Collection  bool
	Constraints []schema.Constraint
}

func (t Target) String() string {
	s := string(t.Type)
	if t.Collection {
		s += "[]"
	}
	return s
}

// GivenFact is a fact embedded in the query text.
type GivenFact struct {
	Name  string
	Type  schema.QualifiedName
	Value any
}

// Statement is a parsed query.
//
//	[given { name : Type = value ... }]
//	(find | findAll) { Target[[]] [(attribute = value, attribute != value)] }
//	[as Type[[]]]
//
// Commas are optional, as in GraphQL. Values are strings, numbers, true or
// false.
type Statement struct {
	Source     string
	Mode       Mode
	Given      []GivenFact
	Targets    []Target
	Projection *Target
}

// Parse parses a query string. Syntax errors wrap ErrParse and carry the line
// and column of the offending token.
func Parse(src string) (*Statement, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	st, err := p.statement()
	if err != nil {
		return nil, errors.WrapInvalid(err, "query", "Parse", "parse query")
	}
	st.Source = src
	return st, nil
}

func tokenize(src string) ([]lexer.Token, error) {
	lex := lexer.New(&ast.Source{Name: "query", Input: src})
	var tokens []lexer.Token
	for {
		tok, err := lex.ReadToken()
		if err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%s: %w", err.Error(), ErrParse), "query", "Parse", "tokenize")
		}
		tokens = append(tokens, tok)
		if tok.Kind == lexer.EOF {
			return tokens, nil
		}
	}
}

type parser struct {
	tokens []lexer.Token
	pos    int
}

func (p *parser) peek() lexer.Token { return p.tokens[p.pos] }

func (p *parser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != lexer.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok lexer.Token, format string, args ...any) error {
	found := tok.Value
	if tok.Kind == lexer.EOF {
		found = "end of query"
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("line %d, column %d: %s, found %q: %w", tok.Pos.Line, tok.Pos.Column, msg, found, ErrParse)
}

func (p *parser) expect(kind lexer.Type, what string) (lexer.Token, error) {
	tok := p.next()
	if tok.Kind != kind {
		return tok, p.errorf(tok, "expected %s", what)
	}
	return tok, nil
}

func (p *parser) peekKeyword(word string) bool {
	tok := p.peek()
	return tok.Kind == lexer.Name && tok.Value == word
}

func (p *parser) statement() (*Statement, error) {
	st := &Statement{}

	if p.peekKeyword("given") {
		p.next()
		given, err := p.given()
		if err != nil {
			return nil, err
		}
		st.Given = given
	}

	tok := p.next()
	switch {
	case tok.Kind == lexer.Name && tok.Value == "find":
		st.Mode = FindOne
	case tok.Kind == lexer.Name && tok.Value == "findAll":
		st.Mode = FindAll
	default:
		return nil, p.errorf(tok, "expected find or findAll")
	}

	if _, err := p.expect(lexer.BraceL, "{"); err != nil {
		return nil, err
	}
	for p.peek().Kind != lexer.BraceR {
		target, err := p.target()
		if err != nil {
			return nil, err
		}
		st.Targets = append(st.Targets, target)
	}
	p.next()
	if len(st.Targets) == 0 {
		return nil, p.errorf(p.tokens[p.pos-1], "expected a target type")
	}

	if p.peekKeyword("as") {
		p.next()
		name, err := p.expect(lexer.Name, "projection type")
		if err != nil {
			return nil, err
		}
		proj := &Target{Type: schema.QualifiedName(name.Value)}
		if proj.Collection, err = p.listSuffix(); err != nil {
			return nil, err
		}
		st.Projection = proj
	}

	if tok := p.peek(); tok.Kind != lexer.EOF {
		return nil, p.errorf(tok, "expected end of query")
	}
	return st, nil
}

func (p *parser) given() ([]GivenFact, error) {
	if _, err := p.expect(lexer.BraceL, "{ after given"); err != nil {
		return nil, err
	}
	var out []GivenFact
	for p.peek().Kind != lexer.BraceR {
		name, err := p.expect(lexer.Name, "fact name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon, ":"); err != nil {
			return nil, err
		}
		typ, err := p.expect(lexer.Name, "fact type")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Equals, "="); err != nil {
			return nil, err
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, GivenFact{Name: name.Value, Type: schema.QualifiedName(typ.Value), Value: value})
	}
	p.next()
	return out, nil
}

func (p *parser) target() (Target, error) {
	name, err := p.expect(lexer.Name, "target type")
	if err != nil {
		return Target{}, err
	}
	t := Target{Type: schema.QualifiedName(name.Value)}
	if t.Collection, err = p.listSuffix(); err != nil {
		return Target{}, err
	}
	if p.peek().Kind != lexer.ParenL {
		return t, nil
	}
	p.next()
	for p.peek().Kind != lexer.ParenR {
		c, err := p.constraint()
		if err != nil {
			return Target{}, err
		}
		t.Constraints = append(t.Constraints, c)
	}
	p.next()
	return t, nil
}

func (p *parser) listSuffix() (bool, error) {
	if p.peek().Kind != lexer.BracketL {
		return false, nil
	}
	p.next()
	if _, err := p.expect(lexer.BracketR, "]"); err != nil {
		return false, err
	}
	return true, nil
}

func (p *parser) constraint() (schema.Constraint, error) {
	attr, err := p.expect(lexer.Name, "attribute name")
	if err != nil {
		return schema.Constraint{}, err
	}
	c := schema.Constraint{Attribute: attr.Value, Operator: schema.Equal}

	tok := p.next()
	switch tok.Kind {
	case lexer.Equals:
	case lexer.Bang:
		if _, err := p.expect(lexer.Equals, "= after !"); err != nil {
			return schema.Constraint{}, err
		}
		c.Operator = schema.NotEqual
	default:
		return schema.Constraint{}, p.errorf(tok, "expected = or !=")
	}

	value, err := p.value()
	if err != nil {
		return schema.Constraint{}, err
	}
	switch v := value.(type) {
	case float64:
		c.Value = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		c.Value = strconv.FormatInt(v, 10)
	default:
		c.Value = fmt.Sprint(v)
	}
	return c, nil
}

func (p *parser) value() (any, error) {
	tok := p.next()
	switch tok.Kind {
	case lexer.String, lexer.BlockString:
		return tok.Value, nil
	case lexer.Int:
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, "integer out of range")
		}
		return n, nil
	case lexer.Float:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number")
		}
		return f, nil
	case lexer.Name:
		switch strings.ToLower(tok.Value) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return nil, p.errorf(tok, "expected a string, number or boolean")
}
