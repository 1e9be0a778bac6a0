package evo

import (
	"fmt"
	"math"

	"gepnas/internal/graph"
)

const sizeProportionalEfficiency = 0.05

// FitnessPostprocessor adjusts a raw evaluator score before it is stored on
// the chromosome and used for ranking.
type FitnessPostprocessor interface {
	Name() string
	Adjust(fitness float64, phenotype graph.Graph) float64
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Adjust(fitness float64, _ graph.Graph) float64 {
	return fitness
}

// SizeProportionalPostprocessor penalizes larger cells by their node and
// edge count.
type SizeProportionalPostprocessor struct{}

func (SizeProportionalPostprocessor) Name() string {
	return "size_proportional"
}

func (SizeProportionalPostprocessor) Adjust(fitness float64, phenotype graph.Graph) float64 {
	complexity := float64(phenotype.Len() + len(phenotype.Edges))
	if complexity < 1 {
		complexity = 1
	}
	return fitness / math.Pow(complexity, sizeProportionalEfficiency)
}

func PostprocessorByName(name string) (FitnessPostprocessor, error) {
	switch name {
	case "", "none":
		return NoopFitnessPostprocessor{}, nil
	case "size_proportional":
		return SizeProportionalPostprocessor{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown fitness postprocessor %q", ErrInvalidConfig, name)
	}
}
