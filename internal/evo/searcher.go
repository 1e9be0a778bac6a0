package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/sourcegraph/conc/pool"

	"gepnas/internal/cellgraph"
	"gepnas/internal/genotype"
)

// State is the complete search state between generations. Population order
// is significant: index is the individual's ordinal.
type State struct {
	Generation  int
	Population  []genotype.Chromosome
	HallOfFame  HallOfFame
	Logbook     Logbook
	Evaluations int
}

// Searcher runs the generational loop. It owns its random source and is not
// safe for concurrent use; fitness evaluation inside a generation is the only
// parallel part.
type Searcher struct {
	cfg    Config
	rng    *rand.Rand
	logger *slog.Logger
}

func NewSearcher(cfg Config) (*Searcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Searcher{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: cfg.Logger,
	}, nil
}

func (s *Searcher) Config() Config { return s.cfg }

// Init draws and evaluates generation 0.
func (s *Searcher) Init(ctx context.Context) (State, error) {
	population := make([]genotype.Chromosome, 0, s.cfg.PopulationSize)
	for i := 0; i < s.cfg.PopulationSize; i++ {
		c, err := genotype.NewChromosome(s.rng, s.cfg.Factory, s.cfg.NumGenes)
		if err != nil {
			return State{}, fmt.Errorf("initial individual %d: %w", i, err)
		}
		population = append(population, c)
	}
	return s.Seed(ctx, population)
}

// Seed evaluates a caller-provided generation 0.
func (s *Searcher) Seed(ctx context.Context, population []genotype.Chromosome) (State, error) {
	if len(population) != s.cfg.PopulationSize {
		return State{}, fmt.Errorf("%w: initial population mismatch: got=%d want=%d", ErrInvalidConfig, len(population), s.cfg.PopulationSize)
	}
	evaluated, evals, err := s.Evaluate(ctx, population)
	if err != nil {
		return State{}, err
	}
	st := State{
		Generation:  0,
		Population:  evaluated,
		HallOfFame:  NewHallOfFame(s.cfg.HallOfFameSize).Update(evaluated),
		Evaluations: evals,
	}
	return s.record(ctx, st, evals)
}

// Run performs Init followed by exactly Generations steps.
func (s *Searcher) Run(ctx context.Context) (State, error) {
	st, err := s.Init(ctx)
	if err != nil {
		return State{}, err
	}
	return s.Continue(ctx, st)
}

// Continue steps st until it reaches the configured generation count.
func (s *Searcher) Continue(ctx context.Context, st State) (State, error) {
	for st.Generation < s.cfg.Generations {
		next, err := s.Step(ctx, st)
		if err != nil {
			return st, err
		}
		st = next
	}
	best, _ := st.HallOfFame.Best()
	bestFitness, _ := best.Fitness()
	s.logger.Info("search finished",
		slog.Int("generations", st.Generation),
		slog.Int("evaluations", st.Evaluations),
		slog.Float64("best_fitness", bestFitness),
	)
	return st, nil
}

// Step advances st by one generation: elites are carried over unchanged, the
// remaining slots are filled by selection and variation, and only offspring
// without a fitness are evaluated.
func (s *Searcher) Step(ctx context.Context, st State) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	ranked := sortByFitness(st.Population)
	next := make([]genotype.Chromosome, 0, s.cfg.PopulationSize)
	next = append(next, ranked[:s.cfg.Elites]...)

	if offspringCount := s.cfg.PopulationSize - s.cfg.Elites; offspringCount > 0 {
		parents, err := s.cfg.Selector.Select(s.rng, st.Population, offspringCount)
		if err != nil {
			return State{}, fmt.Errorf("generation %d: select: %w", st.Generation+1, err)
		}
		next = append(next, s.cfg.Pipeline.Apply(s.rng, parents)...)
	}

	evaluated, evals, err := s.Evaluate(ctx, next)
	if err != nil {
		return State{}, fmt.Errorf("generation %d: %w", st.Generation+1, err)
	}
	logbook := append(Logbook(nil), st.Logbook...)
	out := State{
		Generation:  st.Generation + 1,
		Population:  evaluated,
		HallOfFame:  st.HallOfFame.Update(evaluated),
		Logbook:     logbook,
		Evaluations: st.Evaluations + evals,
	}
	return s.record(ctx, out, evals)
}

// Evaluate scores every chromosome that has no fitness and returns the
// population in the same order along with the number of evaluations. The
// first decode or evaluator error cancels the rest.
func (s *Searcher) Evaluate(ctx context.Context, population []genotype.Chromosome) ([]genotype.Chromosome, int, error) {
	out := append([]genotype.Chromosome(nil), population...)
	pending := make([]int, 0, len(out))
	for i, c := range out {
		if !c.HasFitness() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out, 0, nil
	}

	p := pool.New().
		WithMaxGoroutines(s.cfg.Workers).
		WithErrors().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, idx := range pending {
		idx := idx
		p.Go(func(ctx context.Context) error {
			phenotype, err := cellgraph.Decode(out[idx])
			if err != nil {
				return fmt.Errorf("decode individual %d: %w", idx, err)
			}
			raw, err := s.cfg.Evaluator.Evaluate(ctx, phenotype)
			if err != nil {
				return fmt.Errorf("evaluate individual %d: %w", idx, err)
			}
			if math.IsNaN(raw) || math.IsInf(raw, 0) {
				return fmt.Errorf("evaluate individual %d: %w: %g", idx, ErrNonFiniteFitness, raw)
			}
			out[idx] = out[idx].WithFitness(s.cfg.Postprocessor.Adjust(raw, phenotype))
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, 0, err
	}
	return out, len(pending), nil
}

func (s *Searcher) record(ctx context.Context, st State, evals int) (State, error) {
	rec := Summarize(st.Generation, evals, st.Population)
	st.Logbook = append(st.Logbook, rec)
	s.logger.Info("generation evaluated",
		slog.Int("generation", rec.Generation),
		slog.Int("evaluations", rec.Evaluations),
		slog.Float64("avg", rec.Avg),
		slog.Float64("std", rec.Std),
		slog.Float64("min", rec.Min),
		slog.Float64("max", rec.Max),
	)
	if s.cfg.Sink != nil {
		if err := s.cfg.Sink.Observe(ctx, st); err != nil {
			return State{}, fmt.Errorf("generation %d: stats sink: %w", st.Generation, err)
		}
	}
	return st, nil
}
