package factors

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads the canonical form produced by Factor.String, for example
// "div(sub(sma(close,10),sma(close,30)),sma(close,30))".
func Parse(s string) (Factor, error) {
	p := &parser{src: s}
	f, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrInvalidExpr, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) token() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '(' || c == ')' || c == ',' || unicode.IsSpace(rune(c)) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) peek(c byte) bool {
	p.skipSpace()
	return p.pos < len(p.src) && p.src[p.pos] == c
}

func (p *parser) expr() (Factor, error) {
	name := p.token()
	if name == "" {
		return nil, p.errorf("expected expression")
	}
	if !p.peek('(') {
		v, err := strconv.ParseFloat(name, 64)
		if err != nil {
			return nil, p.errorf("unknown term %q", name)
		}
		return Const(v), nil
	}
	p.pos++

	var f Factor
	var err error
	switch strings.ToLower(name) {
	case string(OpAdd), string(OpSub), string(OpMul), string(OpDiv):
		f, err = p.binary(Op(strings.ToLower(name)))
	case "neg":
		var in Factor
		in, err = p.expr()
		f = Neg(in)
	case "sma":
		var c Column
		var n int
		if c, err = p.column(); err == nil {
			if err = p.expect(','); err == nil {
				n, err = p.integer()
			}
		}
		f = NewSimpleMovingAverage(c, n)
	case "latest":
		var c Column
		c, err = p.column()
		f = NewLatest(c)
	case "returns", "vwap", "adv", "volatility":
		var n int
		n, err = p.integer()
		f = windowed(strings.ToLower(name), n)
	default:
		return nil, p.errorf("unknown function %q", name)
	}
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *parser) binary(op Op) (Factor, error) {
	l, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(','); err != nil {
		return nil, err
	}
	r, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &BinaryOp{Op: op, Left: l, Right: r}, nil
}

func (p *parser) column() (Column, error) {
	return ParseColumn(p.token())
}

func (p *parser) integer() (int, error) {
	tok := p.token()
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, p.errorf("expected integer, got %q", tok)
	}
	return n, nil
}

func windowed(name string, n int) Factor {
	switch name {
	case "returns":
		return NewReturns(n)
	case "vwap":
		return NewVWAP(n)
	case "adv":
		return NewAverageDollarVolume(n)
	default:
		return NewAnnualizedVolatility(n)
	}
}
