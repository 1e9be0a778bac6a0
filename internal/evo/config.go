package evo

import (
	"errors"
	"fmt"
	"log/slog"

	"gepnas/internal/fitness"
	"gepnas/internal/genotype"
	"gepnas/internal/operators"
)

var ErrInvalidConfig = errors.New("invalid search config")

type Config struct {
	PopulationSize int
	Generations    int
	Elites         int
	HallOfFameSize int
	Workers        int
	Seed           int64

	// NumGenes chromosomes are built from Factory.
	NumGenes int
	Factory  genotype.GeneFactory

	Evaluator     fitness.Evaluator
	Pipeline      operators.Pipeline
	Selector      Selector
	Postprocessor FitnessPostprocessor
	Sink          StatsSink
	Logger        *slog.Logger
}

func (c Config) validate() error {
	switch {
	case c.PopulationSize <= 0:
		return fmt.Errorf("%w: population size must be > 0", ErrInvalidConfig)
	case c.Generations < 0:
		return fmt.Errorf("%w: generations must be >= 0", ErrInvalidConfig)
	case c.Elites < 0 || c.Elites > c.PopulationSize:
		return fmt.Errorf("%w: elites must be in [0, population size]", ErrInvalidConfig)
	case c.HallOfFameSize < 0:
		return fmt.Errorf("%w: hall of fame size must be >= 0", ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	case c.NumGenes <= 0:
		return fmt.Errorf("%w: genes per chromosome must be > 0", ErrInvalidConfig)
	case c.Factory == nil:
		return fmt.Errorf("%w: gene factory is required", ErrInvalidConfig)
	case c.Evaluator == nil:
		return fmt.Errorf("%w: evaluator is required", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Selector == nil {
		c.Selector = RouletteSelector{}
	}
	if c.Postprocessor == nil {
		c.Postprocessor = NoopFitnessPostprocessor{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Logger = c.Logger.With(slog.String("component", "evo"))
	return c
}
