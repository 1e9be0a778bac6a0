package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gepnas/internal/genotype"
)

var (
	ErrDegenerateFitness = errors.New("roulette selection needs finite non-negative fitness with a positive total")
	ErrMissingFitness    = errors.New("chromosome has no fitness")
	ErrEmptyPopulation   = errors.New("population is empty")
	ErrNonFiniteFitness  = errors.New("evaluator returned a non-finite fitness")
)

// Selector draws k parents from an evaluated population. Parents may repeat.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, population []genotype.Chromosome, k int) ([]genotype.Chromosome, error)
}

// RouletteSelector picks proportionally to fitness.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (RouletteSelector) Select(rng *rand.Rand, population []genotype.Chromosome, k int) ([]genotype.Chromosome, error) {
	ranked, err := rankPopulation(population)
	if err != nil || k <= 0 {
		return nil, err
	}

	total := 0.0
	for _, c := range ranked {
		f, _ := c.Fitness()
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: fitness %g", ErrDegenerateFitness, f)
		}
		total += f
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total %g", ErrDegenerateFitness, total)
	}

	chosen := make([]genotype.Chromosome, 0, k)
	for i := 0; i < k; i++ {
		u := rng.Float64() * total
		sum := 0.0
		pick := ranked[len(ranked)-1]
		for _, c := range ranked {
			f, _ := c.Fitness()
			sum += f
			if sum > u {
				pick = c
				break
			}
		}
		chosen = append(chosen, pick)
	}
	return chosen, nil
}

// TournamentSelector samples Size individuals per draw and keeps the fittest.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng *rand.Rand, population []genotype.Chromosome, k int) ([]genotype.Chromosome, error) {
	if _, err := rankPopulation(population); err != nil || k <= 0 {
		return nil, err
	}
	size := s.Size
	if size <= 0 {
		size = 3
	}

	chosen := make([]genotype.Chromosome, 0, k)
	for i := 0; i < k; i++ {
		best := population[rng.Intn(len(population))]
		bestFitness, _ := best.Fitness()
		for j := 1; j < size; j++ {
			candidate := population[rng.Intn(len(population))]
			if f, _ := candidate.Fitness(); f > bestFitness {
				best, bestFitness = candidate, f
			}
		}
		chosen = append(chosen, best)
	}
	return chosen, nil
}

// BestSelector returns the k fittest, cycling through the ranking when k
// exceeds the population size.
type BestSelector struct{}

func (BestSelector) Name() string {
	return "best"
}

func (BestSelector) Select(rng *rand.Rand, population []genotype.Chromosome, k int) ([]genotype.Chromosome, error) {
	ranked, err := rankPopulation(population)
	if err != nil || k <= 0 {
		return nil, err
	}
	chosen := make([]genotype.Chromosome, 0, k)
	for i := 0; i < k; i++ {
		chosen = append(chosen, ranked[i%len(ranked)])
	}
	return chosen, nil
}

// SelectorByName resolves the selector names accepted in run configs.
func SelectorByName(name string, tournamentSize int) (Selector, error) {
	switch name {
	case "", "roulette":
		return RouletteSelector{}, nil
	case "tournament":
		return TournamentSelector{Size: tournamentSize}, nil
	case "best":
		return BestSelector{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown selector %q", ErrInvalidConfig, name)
	}
}

func rankPopulation(population []genotype.Chromosome) ([]genotype.Chromosome, error) {
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}
	for i, c := range population {
		if !c.HasFitness() {
			return nil, fmt.Errorf("%w: individual %d", ErrMissingFitness, i)
		}
	}
	return sortByFitness(population), nil
}

// sortByFitness returns a copy ordered by descending fitness. Ties keep
// population order.
func sortByFitness(population []genotype.Chromosome) []genotype.Chromosome {
	ranked := append([]genotype.Chromosome(nil), population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		fi, _ := ranked[i].Fitness()
		fj, _ := ranked[j].Fitness()
		return fi > fj
	})
	return ranked
}
