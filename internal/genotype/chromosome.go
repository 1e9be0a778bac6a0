package genotype

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"gepnas/internal/symbol"
)

var ErrGeneCount = errors.New("gene count must be > 0")

// GeneFactory creates one random gene.
type GeneFactory func(rng *rand.Rand) (Gene, error)

// Factory binds a primitive set and head length into a GeneFactory.
func Factory(pset *symbol.PrimitiveSet, head int) GeneFactory {
	return func(rng *rand.Rand) (Gene, error) {
		return NewGene(rng, pset, head)
	}
}

// Chromosome is one individual: an ordered sequence of equally shaped genes
// plus an optional cached fitness. Any gene change clears the fitness.
//
// Genes are immutable values, so a chromosome's genes can never be changed
// through another chromosome.
type Chromosome struct {
	genes   []Gene
	fitness float64
	valid   bool
}

// NewChromosome builds numGenes independent random genes.
func NewChromosome(rng *rand.Rand, factory GeneFactory, numGenes int) (Chromosome, error) {
	if factory == nil {
		return Chromosome{}, errors.New("gene factory is required")
	}
	if numGenes <= 0 {
		return Chromosome{}, fmt.Errorf("%w: %d", ErrGeneCount, numGenes)
	}
	genes := make([]Gene, 0, numGenes)
	for i := 0; i < numGenes; i++ {
		g, err := factory(rng)
		if err != nil {
			return Chromosome{}, fmt.Errorf("gene %d: %w", i, err)
		}
		genes = append(genes, g)
	}
	return Chromosome{genes: genes}, nil
}

// FromGenes assembles a chromosome from existing genes. All genes must share
// the primitive set and shape.
func FromGenes(genes ...Gene) (Chromosome, error) {
	if len(genes) == 0 {
		return Chromosome{}, fmt.Errorf("%w: 0", ErrGeneCount)
	}
	first := genes[0]
	for i, g := range genes {
		if err := g.Validate(); err != nil {
			return Chromosome{}, fmt.Errorf("gene %d: %w", i, err)
		}
		if g.pset != first.pset || g.head != first.head || len(g.symbols) != len(first.symbols) {
			return Chromosome{}, fmt.Errorf("%w: gene %d shape differs from gene 0", ErrGeneLength, i)
		}
	}
	return Chromosome{genes: append([]Gene(nil), genes...)}, nil
}

// ParseChromosome resolves per-gene symbol names.
func ParseChromosome(pset *symbol.PrimitiveSet, head int, genes [][]string) (Chromosome, error) {
	parsed := make([]Gene, 0, len(genes))
	for i, names := range genes {
		g, err := ParseGene(pset, head, names)
		if err != nil {
			return Chromosome{}, fmt.Errorf("gene %d: %w", i, err)
		}
		parsed = append(parsed, g)
	}
	return FromGenes(parsed...)
}

func (c Chromosome) NumGenes() int { return len(c.genes) }

func (c Chromosome) Gene(i int) Gene { return c.genes[i] }

func (c Chromosome) Genes() []Gene { return append([]Gene(nil), c.genes...) }

// WithGene replaces gene i and clears the cached fitness.
func (c Chromosome) WithGene(i int, g Gene) Chromosome {
	genes := append([]Gene(nil), c.genes...)
	genes[i] = g
	return Chromosome{genes: genes}
}

// Fitness returns the cached fitness and whether it is set.
func (c Chromosome) Fitness() (float64, bool) { return c.fitness, c.valid }

func (c Chromosome) HasFitness() bool { return c.valid }

func (c Chromosome) WithFitness(f float64) Chromosome {
	c.genes = append([]Gene(nil), c.genes...)
	c.fitness = f
	c.valid = true
	return c
}

func (c Chromosome) Invalidated() Chromosome {
	return Chromosome{genes: append([]Gene(nil), c.genes...)}
}

// Equal compares genotypes only; fitness is ignored.
func (c Chromosome) Equal(other Chromosome) bool {
	if len(c.genes) != len(other.genes) {
		return false
	}
	for i := range c.genes {
		if !c.genes[i].Equal(other.genes[i]) {
			return false
		}
	}
	return true
}

// Key is the genotype identity used to deduplicate individuals.
func (c Chromosome) Key() string {
	parts := make([]string, 0, len(c.genes))
	for _, g := range c.genes {
		parts = append(parts, g.String())
	}
	return strings.Join(parts, "|")
}

func (c Chromosome) Fingerprint() string {
	digest := sha1.Sum([]byte(c.Key()))
	return hex.EncodeToString(digest[:8])
}

func (c Chromosome) String() string { return c.Key() }

// Names returns the symbol names gene by gene.
func (c Chromosome) Names() [][]string {
	out := make([][]string, 0, len(c.genes))
	for _, g := range c.genes {
		out = append(out, g.Names())
	}
	return out
}

func (c Chromosome) Validate() error {
	if len(c.genes) == 0 {
		return fmt.Errorf("%w: 0", ErrGeneCount)
	}
	for i, g := range c.genes {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("gene %d: %w", i, err)
		}
	}
	return nil
}

// PrimitiveSet returns the symbol set shared by the chromosome's genes.
func (c Chromosome) PrimitiveSet() *symbol.PrimitiveSet {
	if len(c.genes) == 0 {
		return nil
	}
	return c.genes[0].pset
}

func (c Chromosome) HeadLength() int {
	if len(c.genes) == 0 {
		return 0
	}
	return c.genes[0].head
}
