package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"FactorPipe/internal/services/factors"
)

var (
	ErrEmptyName       = errors.New("column name is empty")
	ErrDuplicateColumn = errors.New("column already exists")
	ErrNilFactor       = errors.New("factor is nil")
)

// Pipeline maps output column names to factors. Only named columns are
// emitted; intermediate factors stay internal.
type Pipeline struct {
	columns map[string]factors.Factor
}

// New copies columns into a new pipeline.
func New(columns map[string]factors.Factor) *Pipeline {
	p := &Pipeline{columns: make(map[string]factors.Factor, len(columns))}
	for name, f := range columns {
		p.columns[name] = f
	}
	return p
}

// Add registers a new output column.
func (p *Pipeline) Add(name string, f factors.Factor) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if f == nil {
		return fmt.Errorf("%s: %w", name, ErrNilFactor)
	}
	if _, ok := p.columns[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrDuplicateColumn)
	}
	p.columns[name] = f
	return nil
}

// Remove drops a column and returns its factor, if any.
func (p *Pipeline) Remove(name string) (factors.Factor, bool) {
	f, ok := p.columns[name]
	delete(p.columns, name)
	return f, ok
}

// Columns returns the output names in sorted order.
func (p *Pipeline) Columns() []string {
	names := make([]string, 0, len(p.columns))
	for name := range p.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factor returns the factor bound to column name.
func (p *Pipeline) Factor(name string) (factors.Factor, bool) {
	f, ok := p.columns[name]
	return f, ok
}

// Len is the number of columns.
func (p *Pipeline) Len() int { return len(p.columns) }

// MaxWindowLength is the longest lookback any column needs.
func (p *Pipeline) MaxWindowLength() int {
	n := 0
	for _, f := range p.columns {
		n = max(n, f.WindowLength())
	}
	return n
}

// Validate checks every column's factor tree.
func (p *Pipeline) Validate() error {
	for _, name := range p.Columns() {
		f := p.columns[name]
		if f == nil {
			return fmt.Errorf("%s: %w", name, ErrNilFactor)
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
	}
	return nil
}

// Fingerprint identifies the pipeline by its canonical column expressions.
func (p *Pipeline) Fingerprint() string {
	h := md5.New()
	for _, name := range p.Columns() {
		fmt.Fprintf(h, "%s=%s;", name, p.columns[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// String lists columns as name=expression, one per line.
func (p *Pipeline) String() string {
	var b strings.Builder
	for _, name := range p.Columns() {
		fmt.Fprintf(&b, "%s=%s\n", name, p.columns[name])
	}
	return b.String()
}
