package genotype

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"gepnas/internal/symbol"
)

var (
	ErrHeadLength      = errors.New("head length must be > 0")
	ErrGeneLength      = errors.New("gene length mismatch")
	ErrDomainViolation = errors.New("symbol outside its head/tail domain")
)

// Gene is a fixed-length K-expression: a head that may hold any symbol and a
// tail that holds only cell symbols. Genes are immutable; operators build new
// ones.
type Gene struct {
	pset    *symbol.PrimitiveSet
	head    int
	symbols []symbol.ID
}

// NewGene draws each head position uniformly from program and cell symbols
// and each tail position uniformly from cell symbols.
func NewGene(rng *rand.Rand, pset *symbol.PrimitiveSet, head int) (Gene, error) {
	if rng == nil {
		return Gene{}, errors.New("random source is required")
	}
	if pset == nil {
		return Gene{}, errors.New("primitive set is required")
	}
	if head <= 0 {
		return Gene{}, fmt.Errorf("%w: %d", ErrHeadLength, head)
	}
	tail, err := pset.TailLength(head)
	if err != nil {
		return Gene{}, err
	}

	headDomain := pset.HeadSymbols()
	tailDomain := pset.Cells()
	symbols := make([]symbol.ID, head+tail)
	for i := 0; i < head; i++ {
		symbols[i] = headDomain[rng.Intn(len(headDomain))]
	}
	for i := head; i < head+tail; i++ {
		symbols[i] = tailDomain[rng.Intn(len(tailDomain))]
	}
	return Gene{pset: pset, head: head, symbols: symbols}, nil
}

// NewGeneFromIDs builds a gene from explicit symbol ids, checking length and
// the head/tail domain rule.
func NewGeneFromIDs(pset *symbol.PrimitiveSet, head int, ids []symbol.ID) (Gene, error) {
	if pset == nil {
		return Gene{}, errors.New("primitive set is required")
	}
	if head <= 0 {
		return Gene{}, fmt.Errorf("%w: %d", ErrHeadLength, head)
	}
	g := Gene{pset: pset, head: head, symbols: append([]symbol.ID(nil), ids...)}
	if err := g.Validate(); err != nil {
		return Gene{}, err
	}
	return g, nil
}

// ParseGene resolves symbol names into a gene.
func ParseGene(pset *symbol.PrimitiveSet, head int, names []string) (Gene, error) {
	if pset == nil {
		return Gene{}, errors.New("primitive set is required")
	}
	ids := make([]symbol.ID, 0, len(names))
	for i, name := range names {
		s, ok := pset.Lookup(name)
		if !ok {
			return Gene{}, fmt.Errorf("%w: %q at position %d", symbol.ErrUnknownSymbol, name, i)
		}
		ids = append(ids, s.ID())
	}
	return NewGeneFromIDs(pset, head, ids)
}

// ParseGeneString accepts a K-expression written as comma or space separated
// symbol names, e.g. "seq,A,B".
func ParseGeneString(pset *symbol.PrimitiveSet, head int, text string) (Gene, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return ParseGene(pset, head, fields)
}

// Validate re-checks the structural invariants of the gene.
func (g Gene) Validate() error {
	if g.pset == nil {
		return errors.New("gene has no primitive set")
	}
	tail, err := g.pset.TailLength(g.head)
	if err != nil {
		return err
	}
	if len(g.symbols) != g.head+tail {
		return fmt.Errorf("%w: got=%d want=%d", ErrGeneLength, len(g.symbols), g.head+tail)
	}
	for i, id := range g.symbols {
		if !g.pset.Contains(id) {
			return fmt.Errorf("%w: id %d at position %d", symbol.ErrUnknownSymbol, id, i)
		}
		if i >= g.head && !g.pset.IsCell(id) {
			return fmt.Errorf("%w: %s at tail position %d", ErrDomainViolation, g.pset.Symbol(id).Name(), i)
		}
	}
	return nil
}

// WithSymbols returns a gene of the same shape holding ids. Operators only
// produce domain-valid sequences, so a violation here is a programming error
// and panics.
func (g Gene) WithSymbols(ids []symbol.ID) Gene {
	next, err := NewGeneFromIDs(g.pset, g.head, ids)
	if err != nil {
		panic(fmt.Sprintf("genotype: invalid gene rebuild: %v", err))
	}
	return next
}

func (g Gene) PrimitiveSet() *symbol.PrimitiveSet { return g.pset }

func (g Gene) HeadLength() int { return g.head }

func (g Gene) TailLength() int { return len(g.symbols) - g.head }

func (g Gene) Len() int { return len(g.symbols) }

func (g Gene) At(i int) symbol.ID { return g.symbols[i] }

func (g Gene) SymbolAt(i int) *symbol.Symbol { return g.pset.Symbol(g.symbols[i]) }

// IsHead reports whether position i belongs to the head domain.
func (g Gene) IsHead(i int) bool { return i < g.head }

// Symbols returns a copy of the gene's symbol ids.
func (g Gene) Symbols() []symbol.ID {
	return append([]symbol.ID(nil), g.symbols...)
}

func (g Gene) Head() []symbol.ID {
	return append([]symbol.ID(nil), g.symbols[:g.head]...)
}

func (g Gene) Tail() []symbol.ID {
	return append([]symbol.ID(nil), g.symbols[g.head:]...)
}

func (g Gene) Names() []string {
	names := make([]string, 0, len(g.symbols))
	for _, id := range g.symbols {
		names = append(names, g.pset.Symbol(id).Name())
	}
	return names
}

func (g Gene) String() string {
	if g.pset == nil {
		return ""
	}
	return strings.Join(g.Names(), ",")
}

func (g Gene) Equal(other Gene) bool {
	if g.head != other.head || len(g.symbols) != len(other.symbols) {
		return false
	}
	for i := range g.symbols {
		if g.symbols[i] != other.symbols[i] {
			return false
		}
	}
	return true
}
