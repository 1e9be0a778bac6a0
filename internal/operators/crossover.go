package operators

import (
	"math/rand"

	"gepnas/internal/genotype"
	"gepnas/internal/symbol"
)

// CrossGene swaps one whole gene, chosen uniformly, between the parents with
// probability pb. Parents are left untouched.
func CrossGene(rng *rand.Rand, a, b genotype.Chromosome, pb float64) (genotype.Chromosome, genotype.Chromosome) {
	if !compatible(a, b) || !fire(rng, pb) {
		return a, b
	}
	i := rng.Intn(a.NumGenes())
	ga, gb := a.Gene(i), b.Gene(i)
	return a.WithGene(i, gb), b.WithGene(i, ga)
}

// CrossTwoPoint picks one gene index and two cut points inside that gene and
// swaps the enclosed segment. Cuts are the same positions in both parents, so
// every swapped symbol lands in the domain it came from.
func CrossTwoPoint(rng *rand.Rand, a, b genotype.Chromosome, pb float64) (genotype.Chromosome, genotype.Chromosome) {
	if !compatible(a, b) || !fire(rng, pb) {
		return a, b
	}
	gi := rng.Intn(a.NumGenes())
	ga, gb := a.Gene(gi), b.Gene(gi)
	n := ga.Len()
	start := rng.Intn(n)
	end := start + 1 + rng.Intn(n-start)

	sa, sb := ga.Symbols(), gb.Symbols()
	for i := start; i < end; i++ {
		sa[i], sb[i] = sb[i], sa[i]
	}
	return a.WithGene(gi, ga.WithSymbols(sa)), b.WithGene(gi, gb.WithSymbols(sb))
}

// CrossOnePoint cuts the concatenated genes of both parents at one aligned
// point and exchanges everything after it.
func CrossOnePoint(rng *rand.Rand, a, b genotype.Chromosome, pb float64) (genotype.Chromosome, genotype.Chromosome) {
	if !compatible(a, b) || !fire(rng, pb) {
		return a, b
	}
	geneLen := a.Gene(0).Len()
	total := geneLen * a.NumGenes()
	if total < 2 {
		return a, b
	}
	cut := 1 + rng.Intn(total-1)

	childA, childB := a, b
	for gi := 0; gi < a.NumGenes(); gi++ {
		lo := gi * geneLen
		hi := lo + geneLen
		if hi <= cut {
			continue
		}
		ga, gb := a.Gene(gi), b.Gene(gi)
		if lo >= cut {
			childA = childA.WithGene(gi, gb)
			childB = childB.WithGene(gi, ga)
			continue
		}
		sa, sb := ga.Symbols(), gb.Symbols()
		for i := cut - lo; i < geneLen; i++ {
			sa[i], sb[i] = sb[i], sa[i]
		}
		childA = childA.WithGene(gi, ga.WithSymbols(sa))
		childB = childB.WithGene(gi, gb.WithSymbols(sb))
	}
	return childA, childB
}

func compatible(a, b genotype.Chromosome) bool {
	if a.NumGenes() == 0 || a.NumGenes() != b.NumGenes() {
		return false
	}
	ga, gb := a.Gene(0), b.Gene(0)
	return ga.PrimitiveSet() == gb.PrimitiveSet() && ga.HeadLength() == gb.HeadLength() && ga.Len() == gb.Len()
}

func fire(rng *rand.Rand, pb float64) bool {
	if pb <= 0 {
		return false
	}
	return rng.Float64() < pb
}

func draw(rng *rand.Rand, domain []symbol.ID) symbol.ID {
	return domain[rng.Intn(len(domain))]
}
