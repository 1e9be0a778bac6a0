package genotype

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewChromosomeBuildsIndependentGenes(t *testing.T) {
	ps := testPrimitiveSet(t)
	c, err := NewChromosome(rand.New(rand.NewSource(3)), Factory(ps, 3), 4)
	if err != nil {
		t.Fatalf("new chromosome: %v", err)
	}
	if c.NumGenes() != 4 {
		t.Fatalf("expected 4 genes, got %d", c.NumGenes())
	}
	if _, ok := c.Fitness(); ok {
		t.Fatal("expected fitness to be unset")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.PrimitiveSet() != ps || c.HeadLength() != 3 {
		t.Fatal("unexpected chromosome shape")
	}
}

func TestNewChromosomeRejectsZeroGenes(t *testing.T) {
	ps := testPrimitiveSet(t)
	_, err := NewChromosome(rand.New(rand.NewSource(3)), Factory(ps, 3), 0)
	if !errors.Is(err, ErrGeneCount) {
		t.Fatalf("expected gene count error, got %v", err)
	}
}

func TestWithGeneClearsFitness(t *testing.T) {
	ps := testPrimitiveSet(t)
	c, err := ParseChromosome(ps, 1, [][]string{{"seq", "A", "B"}, {"A", "B", "C"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	scored := c.WithFitness(0.5)
	if f, ok := scored.Fitness(); !ok || f != 0.5 {
		t.Fatalf("unexpected fitness %v %v", f, ok)
	}

	replacement, err := ParseGeneString(ps, 1, "cpo,C,C")
	if err != nil {
		t.Fatalf("parse gene: %v", err)
	}
	changed := scored.WithGene(1, replacement)
	if changed.HasFitness() {
		t.Fatal("expected fitness cleared after gene change")
	}
	if scored.Gene(1).String() != "A,B,C" {
		t.Fatal("original chromosome was modified")
	}
	if changed.Equal(scored) {
		t.Fatal("expected genotypes to differ")
	}
	if !scored.Invalidated().Equal(scored) || scored.Invalidated().HasFitness() {
		t.Fatal("invalidated copy should keep genes and drop fitness")
	}
}

func TestFromGenesRejectsMixedShapes(t *testing.T) {
	ps := testPrimitiveSet(t)
	short, err := ParseGeneString(ps, 1, "seq,A,B")
	if err != nil {
		t.Fatalf("parse short: %v", err)
	}
	long, err := ParseGeneString(ps, 2, "seq,A,B,C,A")
	if err != nil {
		t.Fatalf("parse long: %v", err)
	}
	if _, err := FromGenes(short, long); !errors.Is(err, ErrGeneLength) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestKeyAndFingerprintTrackGenotype(t *testing.T) {
	ps := testPrimitiveSet(t)
	a, err := ParseChromosome(ps, 1, [][]string{{"seq", "A", "B"}})
	if err != nil {
		t.Fatalf("parse a: %v", err)
	}
	b, err := ParseChromosome(ps, 1, [][]string{{"seq", "A", "B"}})
	if err != nil {
		t.Fatalf("parse b: %v", err)
	}
	c, err := ParseChromosome(ps, 1, [][]string{{"seq", "B", "A"}})
	if err != nil {
		t.Fatalf("parse c: %v", err)
	}
	if a.Key() != "seq,A,B" {
		t.Fatalf("unexpected key %q", a.Key())
	}
	if a.Fingerprint() != b.WithFitness(1).Fingerprint() {
		t.Fatal("fingerprint should ignore fitness")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("different genotypes should not share a fingerprint")
	}
}
