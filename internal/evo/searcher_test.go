package evo

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"gepnas/internal/cellgraph"
	"gepnas/internal/fitness"
	"gepnas/internal/genotype"
	"gepnas/internal/graph"
	"gepnas/internal/operators"
)

func nodeCountEvaluator(calls *atomic.Int32) fitness.Evaluator {
	return fitness.EvaluatorFunc(func(_ context.Context, g graph.Graph) (float64, error) {
		if calls != nil {
			calls.Add(1)
		}
		score := 1.0 + float64(g.Len()) + 0.1*float64(len(g.Edges))
		if ops := g.Ops(); ops["B"] > 0 {
			score += 0.5
		}
		return score, nil
	})
}

func testConfig(t *testing.T, evaluator fitness.Evaluator) Config {
	t.Helper()
	ps, err := cellgraph.StandardPrimitiveSet("cnn", "A", "B", "C", "D")
	if err != nil {
		t.Fatalf("primitive set: %v", err)
	}
	pipeline, err := operators.Build([]operators.Binding{
		{Name: operators.NameMutateUniform, Probability: 0.1},
		{Name: operators.NameInvertProgram, Probability: 0.1},
		{Name: operators.NameTransposeProgram, Probability: 0.1},
		{Name: operators.NameTransposeCell, Probability: 0.1},
		{Name: operators.NameCrossGene, Probability: 0.1},
		{Name: operators.NameCrossTwoPoint, Probability: 0.6},
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return Config{
		PopulationSize: 12,
		Generations:    6,
		Elites:         1,
		HallOfFameSize: 3,
		Workers:        4,
		Seed:           200,
		NumGenes:       2,
		Factory:        genotype.Factory(ps, 3),
		Evaluator:      evaluator,
		Pipeline:       pipeline,
	}
}

func TestNewSearcherValidatesConfig(t *testing.T) {
	base := testConfig(t, nodeCountEvaluator(nil))
	cases := map[string]func(*Config){
		"population":  func(c *Config) { c.PopulationSize = 0 },
		"generations": func(c *Config) { c.Generations = -1 },
		"elites":      func(c *Config) { c.Elites = c.PopulationSize + 1 },
		"hof":         func(c *Config) { c.HallOfFameSize = -1 },
		"genes":       func(c *Config) { c.NumGenes = 0 },
		"factory":     func(c *Config) { c.Factory = nil },
		"evaluator":   func(c *Config) { c.Evaluator = nil },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if _, err := NewSearcher(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
	if _, err := NewSearcher(base); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestZeroGenerationsEvaluatesInitialPopulationOnce(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t, nodeCountEvaluator(&calls))
	cfg.Generations = 0
	s, err := NewSearcher(cfg)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	st, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Generation != 0 || len(st.Logbook) != 1 {
		t.Fatalf("expected only generation 0, got gen=%d logbook=%d", st.Generation, len(st.Logbook))
	}
	if int(calls.Load()) != cfg.PopulationSize || st.Logbook[0].Evaluations != cfg.PopulationSize {
		t.Fatalf("expected %d evaluations, got calls=%d record=%d", cfg.PopulationSize, calls.Load(), st.Logbook[0].Evaluations)
	}
	for i, c := range st.Population {
		if !c.HasFitness() {
			t.Fatalf("individual %d was not evaluated", i)
		}
	}
}

func TestRunWithElitismNeverLosesTheBest(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t, nodeCountEvaluator(&calls))
	cfg.Generations = 15
	s, err := NewSearcher(cfg)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	st, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.Logbook) != cfg.Generations+1 || st.Generation != cfg.Generations {
		t.Fatalf("expected %d records, got %d", cfg.Generations+1, len(st.Logbook))
	}
	for i := 1; i < len(st.Logbook); i++ {
		if st.Logbook[i].Max < st.Logbook[i-1].Max {
			t.Fatalf("best fitness dropped at generation %d: %v -> %v", i, st.Logbook[i-1].Max, st.Logbook[i].Max)
		}
		if st.Logbook[i].Generation != i {
			t.Fatalf("unexpected generation number %d at %d", st.Logbook[i].Generation, i)
		}
	}
	if len(st.Population) != cfg.PopulationSize {
		t.Fatalf("population size changed to %d", len(st.Population))
	}
	if int(calls.Load()) != st.Logbook.TotalEvaluations() || st.Evaluations != st.Logbook.TotalEvaluations() {
		t.Fatalf("evaluation count mismatch: calls=%d logbook=%d state=%d", calls.Load(), st.Logbook.TotalEvaluations(), st.Evaluations)
	}
	for i := 1; i < len(st.Logbook); i++ {
		if st.Logbook[i].Evaluations > cfg.PopulationSize-cfg.Elites {
			t.Fatalf("generation %d re-evaluated elites: %d evaluations", i, st.Logbook[i].Evaluations)
		}
	}

	best, ok := st.HallOfFame.Best()
	if !ok {
		t.Fatal("hall of fame is empty")
	}
	bestFitness, _ := best.Fitness()
	for _, c := range st.Population {
		if f, _ := c.Fitness(); f > bestFitness {
			t.Fatalf("population member %v beats hall of fame best %v", f, bestFitness)
		}
	}
	if st.HallOfFame.Len() > cfg.HallOfFameSize {
		t.Fatalf("hall of fame exceeds capacity: %d", st.HallOfFame.Len())
	}
	members := st.HallOfFame.Members()
	for i := 1; i < len(members); i++ {
		prev, _ := members[i-1].Fitness()
		cur, _ := members[i].Fitness()
		if cur > prev {
			t.Fatal("hall of fame is not sorted")
		}
		if members[i].Key() == members[i-1].Key() {
			t.Fatal("hall of fame holds duplicates")
		}
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	run := func() State {
		s, err := NewSearcher(testConfig(t, nodeCountEvaluator(nil)))
		if err != nil {
			t.Fatalf("new searcher: %v", err)
		}
		st, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return st
	}
	a, b := run(), run()
	for i := range a.Population {
		if a.Population[i].Key() != b.Population[i].Key() {
			t.Fatalf("individual %d differs between runs", i)
		}
	}
}

func TestEvaluatorErrorAbortsRun(t *testing.T) {
	boom := errors.New("trainer crashed")
	var calls atomic.Int32
	cfg := testConfig(t, fitness.EvaluatorFunc(func(context.Context, graph.Graph) (float64, error) {
		if calls.Add(1) > 20 {
			return 0, boom
		}
		return 1, nil
	}))
	s, err := NewSearcher(cfg)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected evaluator error, got %v", err)
	}
}

func TestNonFiniteFitnessAbortsRun(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1)} {
		var calls atomic.Int32
		cfg := testConfig(t, fitness.EvaluatorFunc(func(context.Context, graph.Graph) (float64, error) {
			if calls.Add(1) == 3 {
				return bad, nil
			}
			return 1, nil
		}))
		s, err := NewSearcher(cfg)
		if err != nil {
			t.Fatalf("new searcher: %v", err)
		}
		if _, err := s.Run(context.Background()); !errors.Is(err, ErrNonFiniteFitness) {
			t.Fatalf("fitness %v: expected ErrNonFiniteFitness, got %v", bad, err)
		}
	}
}

func TestStepHonorsCancellation(t *testing.T) {
	s, err := NewSearcher(testConfig(t, nodeCountEvaluator(nil)))
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	st, err := s.Init(context.Background())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Step(ctx, st); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestSinkObservesEveryGeneration(t *testing.T) {
	var seen []int
	cfg := testConfig(t, nodeCountEvaluator(nil))
	cfg.Sink = StatsSinkFunc(func(_ context.Context, st State) error {
		seen = append(seen, st.Generation)
		if len(st.Logbook) != st.Generation+1 {
			t.Errorf("logbook not updated before sink at generation %d", st.Generation)
		}
		return nil
	})
	s, err := NewSearcher(cfg)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != cfg.Generations+1 {
		t.Fatalf("expected %d observations, got %v", cfg.Generations+1, seen)
	}
	for i, g := range seen {
		if g != i {
			t.Fatalf("unexpected observation order %v", seen)
		}
	}
}

func TestSeedRejectsWrongPopulationSize(t *testing.T) {
	s, err := NewSearcher(testConfig(t, nodeCountEvaluator(nil)))
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	if _, err := s.Seed(context.Background(), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestEvaluateSkipsScoredChromosomes(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t, nodeCountEvaluator(&calls))
	s, err := NewSearcher(cfg)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	st, err := s.Init(context.Background())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	calls.Store(0)
	pop := append([]genotype.Chromosome(nil), st.Population...)
	pop[2] = pop[2].Invalidated()
	out, evals, err := s.Evaluate(context.Background(), pop)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if evals != 1 || calls.Load() != 1 || !out[2].HasFitness() {
		t.Fatalf("expected exactly one evaluation, got evals=%d calls=%d", evals, calls.Load())
	}
}
