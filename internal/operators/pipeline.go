package operators

import (
	"fmt"
	"math/rand"

	"gepnas/internal/genotype"
)

// Binding names an operator and the probability it runs with.
type Binding struct {
	Name        string  `json:"name" yaml:"name"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Pipeline applies its mutations to every individual, then its crossovers to
// consecutive pairs. Within each group operators run in the order given.
type Pipeline struct {
	mutations  []Operator
	crossovers []Operator
}

func NewPipeline(ops ...Operator) Pipeline {
	var p Pipeline
	for _, op := range ops {
		if op.Kind() == KindCrossover {
			p.crossovers = append(p.crossovers, op)
		} else {
			p.mutations = append(p.mutations, op)
		}
	}
	return p
}

// Build resolves every binding against the registry.
func Build(bindings []Binding) (Pipeline, error) {
	ops := make([]Operator, 0, len(bindings))
	for i, b := range bindings {
		op, err := New(b.Name, b.Probability)
		if err != nil {
			return Pipeline{}, fmt.Errorf("operator %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return NewPipeline(ops...), nil
}

// Operators returns mutations followed by crossovers, the order they run in.
func (p Pipeline) Operators() []Operator {
	out := make([]Operator, 0, len(p.mutations)+len(p.crossovers))
	out = append(out, p.mutations...)
	return append(out, p.crossovers...)
}

// Apply returns the varied offspring. The input slice is not modified. With
// an odd count the last individual takes part in mutation only.
func (p Pipeline) Apply(rng *rand.Rand, offspring []genotype.Chromosome) []genotype.Chromosome {
	out := append([]genotype.Chromosome(nil), offspring...)
	for _, op := range p.mutations {
		for i := range out {
			out[i] = op.Mutate(rng, out[i])
		}
	}
	for _, op := range p.crossovers {
		for i := 1; i < len(out); i += 2 {
			out[i-1], out[i] = op.Cross(rng, out[i-1], out[i])
		}
	}
	return out
}
