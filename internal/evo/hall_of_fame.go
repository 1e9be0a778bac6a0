package evo

import (
	"math"

	"gepnas/internal/genotype"
)

// HallOfFame keeps the best distinct genotypes seen across a run, fittest
// first. It is a value: Update returns a new hall and leaves the receiver
// untouched.
type HallOfFame struct {
	capacity int
	members  []genotype.Chromosome
}

func NewHallOfFame(capacity int) HallOfFame {
	if capacity < 0 {
		capacity = 0
	}
	return HallOfFame{capacity: capacity}
}

// RestoreHallOfFame rebuilds a hall from persisted members.
func RestoreHallOfFame(capacity int, members []genotype.Chromosome) HallOfFame {
	return NewHallOfFame(capacity).Update(members)
}

func (h HallOfFame) Capacity() int { return h.capacity }

func (h HallOfFame) Len() int { return len(h.members) }

func (h HallOfFame) Members() []genotype.Chromosome {
	return append([]genotype.Chromosome(nil), h.members...)
}

func (h HallOfFame) Best() (genotype.Chromosome, bool) {
	if len(h.members) == 0 {
		return genotype.Chromosome{}, false
	}
	return h.members[0], true
}

// Update merges the evaluated members of population. Identical genotypes are
// stored once, with the better fitness. Unevaluated chromosomes and non-finite
// scores are ignored.
func (h HallOfFame) Update(population []genotype.Chromosome) HallOfFame {
	if h.capacity == 0 {
		return h
	}
	merged := make([]genotype.Chromosome, 0, len(h.members)+len(population))
	index := make(map[string]int, len(h.members)+len(population))
	add := func(c genotype.Chromosome) {
		f, ok := c.Fitness()
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return
		}
		key := c.Key()
		if at, seen := index[key]; seen {
			if prev, _ := merged[at].Fitness(); f > prev {
				merged[at] = c
			}
			return
		}
		index[key] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range h.members {
		add(c)
	}
	for _, c := range population {
		add(c)
	}

	merged = sortByFitness(merged)
	if len(merged) > h.capacity {
		merged = merged[:h.capacity]
	}
	return HallOfFame{capacity: h.capacity, members: merged}
}
