package operators

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"gepnas/internal/genotype"
)

const (
	NameCrossGene        = "cx_gene"
	NameCrossTwoPoint    = "cx_2p"
	NameCrossOnePoint    = "cx_1p"
	NameMutateUniform    = "mut_uniform"
	NameInvertProgram    = "mut_invert_program"
	NameInvertCell       = "mut_invert_cell"
	NameTransposeProgram = "mut_transpose_program"
	NameTransposeCell    = "mut_transpose_cell"
)

var (
	ErrOperatorExists      = errors.New("operator already registered")
	ErrOperatorNotFound    = errors.New("operator not found")
	ErrInvalidProbability  = errors.New("operator probability must be within [0, 1]")
	ErrInvalidOperatorSpec = errors.New("invalid operator spec")
)

type Kind int

const (
	KindMutation Kind = iota
	KindCrossover
)

func (k Kind) String() string {
	if k == KindCrossover {
		return "crossover"
	}
	return "mutation"
}

type MutateFunc func(rng *rand.Rand, c genotype.Chromosome, pb float64) genotype.Chromosome

type CrossFunc func(rng *rand.Rand, a, b genotype.Chromosome, pb float64) (genotype.Chromosome, genotype.Chromosome)

// Spec describes a registrable operator. Exactly one of Mutate and Cross must
// be set.
type Spec struct {
	Name   string
	Mutate MutateFunc
	Cross  CrossFunc
}

// Operator is a registered operator bound to its probability.
type Operator struct {
	name        string
	probability float64
	mutate      MutateFunc
	cross       CrossFunc
}

func (o Operator) Name() string         { return o.name }
func (o Operator) Probability() float64 { return o.probability }

func (o Operator) Kind() Kind {
	if o.cross != nil {
		return KindCrossover
	}
	return KindMutation
}

// Mutate applies a mutation operator. Crossover operators return c unchanged.
func (o Operator) Mutate(rng *rand.Rand, c genotype.Chromosome) genotype.Chromosome {
	if o.mutate == nil {
		return c
	}
	return o.mutate(rng, c, o.probability)
}

// Cross applies a crossover operator. Mutation operators return the parents
// unchanged.
func (o Operator) Cross(rng *rand.Rand, a, b genotype.Chromosome) (genotype.Chromosome, genotype.Chromosome) {
	if o.cross == nil {
		return a, b
	}
	return o.cross(rng, a, b, o.probability)
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]Spec
}{
	m: builtins(),
}

func builtins() map[string]Spec {
	return map[string]Spec{
		NameCrossGene:        {Name: NameCrossGene, Cross: CrossGene},
		NameCrossTwoPoint:    {Name: NameCrossTwoPoint, Cross: CrossTwoPoint},
		NameCrossOnePoint:    {Name: NameCrossOnePoint, Cross: CrossOnePoint},
		NameMutateUniform:    {Name: NameMutateUniform, Mutate: MutateUniform},
		NameInvertProgram:    {Name: NameInvertProgram, Mutate: InvertProgram},
		NameInvertCell:       {Name: NameInvertCell, Mutate: InvertCell},
		NameTransposeProgram: {Name: NameTransposeProgram, Mutate: TransposeProgram},
		NameTransposeCell:    {Name: NameTransposeCell, Mutate: TransposeCell},
	}
}

// Register adds a custom operator under a new name.
func Register(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOperatorSpec)
	}
	if (spec.Mutate == nil) == (spec.Cross == nil) {
		return fmt.Errorf("%w: %s needs exactly one of mutate or cross", ErrInvalidOperatorSpec, spec.Name)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, spec.Name)
	}
	registry.m[spec.Name] = spec
	return nil
}

// New resolves a registered operator and binds it to pb.
func New(name string, pb float64) (Operator, error) {
	if pb < 0 || pb > 1 {
		return Operator{}, fmt.Errorf("%w: %s=%g", ErrInvalidProbability, name, pb)
	}
	registry.mu.RLock()
	spec, ok := registry.m[name]
	registry.mu.RUnlock()
	if !ok {
		return Operator{}, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	return Operator{name: name, probability: pb, mutate: spec.Mutate, cross: spec.Cross}, nil
}

func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.m = builtins()
}
