package factors

import (
	"fmt"
	"math"
	"strconv"
)

// Op is a binary arithmetic operator.
type Op string

const (
	OpAdd Op = "add"
	OpSub Op = "sub"
	OpMul Op = "mul"
	OpDiv Op = "div"
)

func (o Op) apply(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	switch o {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return divide(a, b)
	}
	return math.NaN()
}

// BinaryOp combines two factors element-wise per asset.
type BinaryOp struct {
	Op          Op
	Left, Right Factor
}

// Add returns a + b per asset.
func Add(a, b Factor) Factor { return &BinaryOp{Op: OpAdd, Left: a, Right: b} }

// Sub returns a - b per asset.
func Sub(a, b Factor) Factor { return &BinaryOp{Op: OpSub, Left: a, Right: b} }

// Mul returns a * b per asset.
func Mul(a, b Factor) Factor { return &BinaryOp{Op: OpMul, Left: a, Right: b} }

// Div divides a by b. Zero or undefined divisors yield NaN.
func Div(a, b Factor) Factor { return &BinaryOp{Op: OpDiv, Left: a, Right: b} }

// WindowLength is the longer of the two operands' windows.
func (b *BinaryOp) WindowLength() int {
	return max(b.Left.WindowLength(), b.Right.WindowLength())
}

func (b *BinaryOp) Validate() error {
	switch b.Op {
	case OpAdd, OpSub, OpMul, OpDiv:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidExpr, b.Op)
	}
	if b.Left == nil || b.Right == nil {
		return fmt.Errorf("%w: %s needs two operands", ErrInvalidExpr, b.Op)
	}
	if err := b.Left.Validate(); err != nil {
		return err
	}
	return b.Right.Validate()
}

func (b *BinaryOp) Compute(w *Window) []float64 {
	l := b.Left.Compute(w)
	r := b.Right.Compute(w)
	out := make([]float64, len(l))
	for i := range l {
		out[i] = b.Op.apply(l[i], r[i])
	}
	return out
}

func (b *BinaryOp) String() string {
	return fmt.Sprintf("%s(%s,%s)", b.Op, b.Left, b.Right)
}

// Constant is a scalar broadcast to every asset.
type Constant struct {
	Value float64
}

// Const creates a constant factor.
func Const(v float64) Factor { return &Constant{Value: v} }

func (c *Constant) WindowLength() int { return 0 }

func (c *Constant) Validate() error {
	if math.IsInf(c.Value, 0) || math.IsNaN(c.Value) {
		return fmt.Errorf("%w: constant must be finite", ErrInvalidExpr)
	}
	return nil
}

func (c *Constant) Compute(w *Window) []float64 {
	out := make([]float64, len(w.Assets))
	for i := range out {
		out[i] = c.Value
	}
	return out
}

func (c *Constant) String() string { return strconv.FormatFloat(c.Value, 'g', -1, 64) }

// Negate flips the sign of a factor.
type Negate struct {
	Input Factor
}

// Neg returns -f per asset.
func Neg(f Factor) Factor { return &Negate{Input: f} }

func (n *Negate) WindowLength() int { return n.Input.WindowLength() }

func (n *Negate) Validate() error {
	if n.Input == nil {
		return fmt.Errorf("%w: neg needs an operand", ErrInvalidExpr)
	}
	return n.Input.Validate()
}

func (n *Negate) Compute(w *Window) []float64 {
	out := n.Input.Compute(w)
	for i := range out {
		out[i] = -out[i]
	}
	return out
}

func (n *Negate) String() string { return fmt.Sprintf("neg(%s)", n.Input) }
