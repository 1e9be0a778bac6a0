package operators

import (
	"math/rand"

	"gepnas/internal/genotype"
	"gepnas/internal/symbol"
)

// MutateUniform visits every position independently and, with probability pb,
// redraws it from its own domain: program and cell symbols in the head, cell
// symbols in the tail.
func MutateUniform(rng *rand.Rand, c genotype.Chromosome, pb float64) genotype.Chromosome {
	if pb <= 0 || c.NumGenes() == 0 {
		return c
	}
	pset := c.PrimitiveSet()
	headDomain := pset.HeadSymbols()
	tailDomain := pset.Cells()

	out := c
	for gi := 0; gi < c.NumGenes(); gi++ {
		g := c.Gene(gi)
		ids := g.Symbols()
		touched := false
		for i := range ids {
			if rng.Float64() >= pb {
				continue
			}
			touched = true
			if g.IsHead(i) {
				ids[i] = draw(rng, headDomain)
			} else {
				ids[i] = draw(rng, tailDomain)
			}
		}
		if touched {
			out = out.WithGene(gi, g.WithSymbols(ids))
		}
	}
	return out
}

// InvertProgram reverses a random sub-range of the head of a random gene.
func InvertProgram(rng *rand.Rand, c genotype.Chromosome, pb float64) genotype.Chromosome {
	return invert(rng, c, pb, func(g genotype.Gene) (int, int) { return 0, g.HeadLength() })
}

// InvertCell reverses a random sub-range of the tail of a random gene.
func InvertCell(rng *rand.Rand, c genotype.Chromosome, pb float64) genotype.Chromosome {
	return invert(rng, c, pb, func(g genotype.Gene) (int, int) { return g.HeadLength(), g.Len() })
}

func invert(rng *rand.Rand, c genotype.Chromosome, pb float64, region func(genotype.Gene) (int, int)) genotype.Chromosome {
	if c.NumGenes() == 0 || !fire(rng, pb) {
		return c
	}
	gi := rng.Intn(c.NumGenes())
	g := c.Gene(gi)
	lo, hi := region(g)
	if hi-lo < 2 {
		return c
	}
	start := lo + rng.Intn(hi-lo-1)
	end := start + 1 + rng.Intn(hi-start-1)

	ids := g.Symbols()
	for i, j := start, end; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return c.WithGene(gi, g.WithSymbols(ids))
}

// TransposeProgram copies an insertion sequence that starts on a program
// symbol in the head and reinserts it at another head position after the
// root. The head shifts right and is truncated back to its length; the tail
// is untouched.
func TransposeProgram(rng *rand.Rand, c genotype.Chromosome, pb float64) genotype.Chromosome {
	return transpose(rng, c, pb, func(g genotype.Gene, i int) bool {
		return g.IsHead(i) && !g.SymbolAt(i).IsCell()
	})
}

// TransposeCell is TransposeProgram with an insertion sequence that starts on
// a cell symbol anywhere in the gene.
func TransposeCell(rng *rand.Rand, c genotype.Chromosome, pb float64) genotype.Chromosome {
	return transpose(rng, c, pb, func(g genotype.Gene, i int) bool {
		return g.SymbolAt(i).IsCell()
	})
}

func transpose(rng *rand.Rand, c genotype.Chromosome, pb float64, eligible func(genotype.Gene, int) bool) genotype.Chromosome {
	if c.NumGenes() == 0 || !fire(rng, pb) {
		return c
	}
	gi := rng.Intn(c.NumGenes())
	g := c.Gene(gi)
	head := g.HeadLength()
	if head < 2 {
		return c
	}

	starts := make([]int, 0, g.Len())
	for i := 0; i < g.Len(); i++ {
		if eligible(g, i) {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return c
	}
	start := starts[rng.Intn(len(starts))]

	targets := make([]int, 0, head-1)
	for t := 1; t < head; t++ {
		if t != start {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return c
	}
	target := targets[rng.Intn(len(targets))]

	maxLen := head - 1
	if remaining := g.Len() - start; remaining < maxLen {
		maxLen = remaining
	}
	length := 1 + rng.Intn(maxLen)

	ids := g.Symbols()
	sequence := append([]symbol.ID(nil), ids[start:start+length]...)
	newHead := make([]symbol.ID, 0, head+length)
	newHead = append(newHead, ids[:target]...)
	newHead = append(newHead, sequence...)
	newHead = append(newHead, ids[target:head]...)
	copy(ids[:head], newHead[:head])
	return c.WithGene(gi, g.WithSymbols(ids))
}
