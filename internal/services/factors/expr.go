package factors

import (
	"fmt"
)

// Expr is the serialisable tree form of a factor. Inner nodes set Op; leaves
// set Factor.
//
//	{"op":"div","left":{...},"right":{"factor":"sma","column":"close","window":30}}
type Expr struct {
	Op     string   `json:"op,omitempty" yaml:"op,omitempty"`
	Left   *Expr    `json:"left,omitempty" yaml:"left,omitempty"`
	Right  *Expr    `json:"right,omitempty" yaml:"right,omitempty"`
	Factor string   `json:"factor,omitempty" yaml:"factor,omitempty"`
	Column string   `json:"column,omitempty" yaml:"column,omitempty"`
	Window int      `json:"window,omitempty" yaml:"window,omitempty"`
	Value  *float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// Build converts the tree to a validated Factor.
func (e *Expr) Build() (Factor, error) {
	f, err := e.build()
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (e *Expr) build() (Factor, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: empty node", ErrInvalidExpr)
	}
	if e.Op != "" {
		return e.buildOp()
	}

	column := Close
	if e.Column != "" {
		c, err := ParseColumn(e.Column)
		if err != nil {
			return nil, err
		}
		column = c
	}

	switch e.Factor {
	case "sma":
		return NewSimpleMovingAverage(column, e.Window), nil
	case "latest":
		return NewLatest(column), nil
	case "returns":
		return NewReturns(e.Window), nil
	case "vwap":
		return NewVWAP(e.Window), nil
	case "adv":
		return NewAverageDollarVolume(e.Window), nil
	case "volatility":
		return NewAnnualizedVolatility(e.Window), nil
	case "const":
		if e.Value == nil {
			return nil, fmt.Errorf("%w: const needs a value", ErrInvalidExpr)
		}
		return Const(*e.Value), nil
	case "":
		return nil, fmt.Errorf("%w: node needs op or factor", ErrInvalidExpr)
	default:
		return nil, fmt.Errorf("%w: unknown factor %q", ErrInvalidExpr, e.Factor)
	}
}

func (e *Expr) buildOp() (Factor, error) {
	left, err := e.Left.build()
	if err != nil {
		return nil, fmt.Errorf("%s left: %w", e.Op, err)
	}
	if e.Op == "neg" {
		if e.Right != nil {
			return nil, fmt.Errorf("%w: neg takes one operand", ErrInvalidExpr)
		}
		return Neg(left), nil
	}

	op := Op(e.Op)
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidExpr, e.Op)
	}
	right, err := e.Right.build()
	if err != nil {
		return nil, fmt.Errorf("%s right: %w", e.Op, err)
	}
	return &BinaryOp{Op: op, Left: left, Right: right}, nil
}
