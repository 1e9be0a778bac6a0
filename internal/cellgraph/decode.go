package cellgraph

import (
	"errors"
	"fmt"

	"gepnas/internal/genotype"
	"gepnas/internal/graph"
)

var ErrInvalidPhenotype = errors.New("composition produced an invalid graph")

// DecodeGene lowers one gene bottom-up. Node ids are derived from the gene
// index and the gene position, so decoding is deterministic and ids are
// unique across a chromosome.
func DecodeGene(g genotype.Gene, geneIndex int) (graph.Graph, error) {
	tree, err := Parse(g)
	if err != nil {
		return graph.Graph{}, fmt.Errorf("gene %d: %w", geneIndex, err)
	}

	lowered := make([]graph.Graph, tree.Used())
	for i := tree.Used() - 1; i >= 0; i-- {
		s := tree.Symbol(i)
		if s.IsCell() {
			lowered[i] = graph.Single(graph.Node{
				ID:       nodeID(geneIndex, g.Len(), i),
				Op:       s.Name(),
				Gene:     geneIndex,
				Position: i,
			})
			continue
		}
		children := make([]graph.Graph, 0, s.Arity())
		for _, c := range tree.Children(i) {
			children = append(children, lowered[c])
		}
		lowered[i] = s.Compose(children)
	}
	return lowered[0], nil
}

// Decode maps a chromosome to its computation graph. Gene graphs are chained
// in order and nodes left off every input to output path are dropped; those
// symbols stay in the genotype but contribute nothing to the phenotype. A
// chromosome whose genes all terminate decodes to the empty identity graph.
func Decode(c genotype.Chromosome) (graph.Graph, error) {
	out := graph.Empty()
	for i := 0; i < c.NumGenes(); i++ {
		g, err := DecodeGene(c.Gene(i), i)
		if err != nil {
			return graph.Graph{}, err
		}
		out = graph.Chain(out, g)
	}
	out = out.Prune()
	if err := out.Validate(); err != nil {
		return graph.Graph{}, fmt.Errorf("%w: %v", ErrInvalidPhenotype, err)
	}
	return out, nil
}

// MustDecode panics on decode failure. Decoding a gene built by this module
// can only fail through a programming error.
func MustDecode(c genotype.Chromosome) graph.Graph {
	g, err := Decode(c)
	if err != nil {
		panic(fmt.Sprintf("cellgraph: %v", err))
	}
	return g
}

func nodeID(geneIndex, geneLen, position int) graph.NodeID {
	return graph.NodeID(geneIndex*geneLen + position)
}
