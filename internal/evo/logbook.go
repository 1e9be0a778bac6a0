package evo

import (
	"context"
	"math"

	"gepnas/internal/genotype"
)

// GenerationRecord summarizes the fitness of one evaluated generation.
// Std is the population standard deviation.
type GenerationRecord struct {
	Generation  int     `json:"generation" yaml:"generation"`
	Evaluations int     `json:"evaluations" yaml:"evaluations"`
	Avg         float64 `json:"avg" yaml:"avg"`
	Std         float64 `json:"std" yaml:"std"`
	Min         float64 `json:"min" yaml:"min"`
	Max         float64 `json:"max" yaml:"max"`
}

type Logbook []GenerationRecord

// Best returns the highest Max across the logbook.
func (l Logbook) Best() (GenerationRecord, bool) {
	if len(l) == 0 {
		return GenerationRecord{}, false
	}
	best := l[0]
	for _, rec := range l[1:] {
		if rec.Max > best.Max {
			best = rec
		}
	}
	return best, true
}

func (l Logbook) TotalEvaluations() int {
	total := 0
	for _, rec := range l {
		total += rec.Evaluations
	}
	return total
}

// Summarize computes the record for an evaluated population. Chromosomes
// without a fitness are skipped.
func Summarize(generation, evaluations int, population []genotype.Chromosome) GenerationRecord {
	rec := GenerationRecord{Generation: generation, Evaluations: evaluations}
	values := make([]float64, 0, len(population))
	for _, c := range population {
		if f, ok := c.Fitness(); ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return rec
	}

	rec.Min, rec.Max = values[0], values[0]
	sum := 0.0
	for _, v := range values {
		sum += v
		rec.Min = math.Min(rec.Min, v)
		rec.Max = math.Max(rec.Max, v)
	}
	rec.Avg = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - rec.Avg
		variance += d * d
	}
	rec.Std = math.Sqrt(variance / float64(len(values)))
	return rec
}

// StatsSink is notified after every evaluated generation, including
// generation 0. A sink error aborts the run.
type StatsSink interface {
	Observe(ctx context.Context, state State) error
}

type StatsSinkFunc func(ctx context.Context, state State) error

func (f StatsSinkFunc) Observe(ctx context.Context, state State) error {
	return f(ctx, state)
}

// MultiSink fans out to every sink in order and stops at the first error.
type MultiSink []StatsSink

func (m MultiSink) Observe(ctx context.Context, state State) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Observe(ctx, state); err != nil {
			return err
		}
	}
	return nil
}
