package cellgraph

import (
	"errors"
	"fmt"

	"gepnas/internal/genotype"
	"gepnas/internal/symbol"
)

var ErrMalformedGene = errors.New("malformed gene")

// ExpressionTree is a read-only breadth-first view over a gene. Position 0 is
// the root and the children of position i occupy a contiguous run of later
// positions. Nothing is copied out of the gene; the tree only records where
// each child run starts and how many positions the expression uses.
type ExpressionTree struct {
	gene  genotype.Gene
	first []int
}

// Parse reads the gene as a K-expression. Slots are filled strictly in gene
// order and reading stops once every open slot is closed; trailing tail
// symbols are left unused.
func Parse(g genotype.Gene) (ExpressionTree, error) {
	if g.Len() == 0 {
		return ExpressionTree{}, fmt.Errorf("%w: empty gene", ErrMalformedGene)
	}
	first := make([]int, 0, g.Len())
	next := 1
	for i := 0; i < next; i++ {
		first = append(first, next)
		next += g.SymbolAt(i).Arity()
		if next > g.Len() {
			return ExpressionTree{}, fmt.Errorf("%w: %d slots needed, gene holds %d (%s)", ErrMalformedGene, next, g.Len(), g)
		}
	}
	return ExpressionTree{gene: g, first: first}, nil
}

// Used is the number of gene positions that take part in the expression.
func (t ExpressionTree) Used() int { return len(t.first) }

func (t ExpressionTree) Symbol(i int) *symbol.Symbol { return t.gene.SymbolAt(i) }

// Children returns the gene positions of i's arguments, left to right.
func (t ExpressionTree) Children(i int) []int {
	arity := t.gene.SymbolAt(i).Arity()
	out := make([]int, arity)
	for k := range out {
		out[k] = t.first[i] + k
	}
	return out
}

// Depth counts levels from the root down to the deepest leaf.
func (t ExpressionTree) Depth() int {
	level := make([]int, t.Used())
	best := 0
	for i := 0; i < t.Used(); i++ {
		if i == 0 {
			level[i] = 1
		}
		if level[i] > best {
			best = level[i]
		}
		for _, c := range t.Children(i) {
			level[c] = level[i] + 1
		}
	}
	return best
}
