package gepnas

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"gepnas/internal/cellgraph"
	"gepnas/internal/cells"
	"gepnas/internal/config"
	"gepnas/internal/evo"
	"gepnas/internal/fitness"
	"gepnas/internal/genotype"
	"gepnas/internal/model"
	"gepnas/internal/operators"
	"gepnas/internal/stats"
	"gepnas/internal/storage"
	"gepnas/internal/symbol"
)

type RunRequest struct {
	Config config.RunConfig
	// Sink is notified after the built-in checkpoint and metrics sinks.
	Sink evo.StatsSink
}

// ResumeRequest continues a stored run from its last checkpoint for
// Generations more generations.
type ResumeRequest struct {
	RunRef
	Generations int
	Sink        evo.StatsSink
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Logbook      evo.Logbook
	Best         Individual
	Evaluations  int
	CacheHits    int
	Duration     time.Duration
}

// setup is a validated run configuration bound to concrete components.
type setup struct {
	cfg       config.RunConfig
	cells     []string
	pset      *symbol.PrimitiveSet
	evoConfig evo.Config
	memo      *fitness.Memoize
}

// Run executes one complete search described by req.Config. Checkpoints are
// written to the store after every generation; artifacts and graph exports
// are written under Output.Path once the search finishes.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	s, err := c.prepare(req.Config)
	if err != nil {
		return RunSummary{}, err
	}
	rawConfig, err := yaml.Marshal(req.Config)
	if err != nil {
		return RunSummary{}, fmt.Errorf("encode run config: %w", err)
	}
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              uuid.NewString(),
		Status:          model.RunStatusRunning,
		StartedAt:       c.now().UTC(),
		Seed:            s.cfg.Search.Seed,
		HeadLength:      s.cfg.Search.HeadLength,
		NumGenes:        s.cfg.Search.NumGenes,
		Cells:           s.cells,
		Generations:     s.cfg.Search.Generations,
		Config:          string(rawConfig),
	}
	return c.execute(ctx, s, &run, req.Sink, func(ctx context.Context, searcher *evo.Searcher) (evo.State, error) {
		return searcher.Run(ctx)
	})
}

// Resume restores the last checkpoint of a run and keeps searching. The
// random stream restarts from the configured seed offset by the checkpoint
// generation, so a resumed run is reproducible but differs from an
// uninterrupted one.
func (c *Client) Resume(ctx context.Context, req ResumeRequest) (RunSummary, error) {
	if req.Generations <= 0 {
		return RunSummary{}, fmt.Errorf("%w: resume needs at least one generation", config.ErrInvalidConfig)
	}
	run, err := c.resolveRun(ctx, req.RunRef)
	if err != nil {
		return RunSummary{}, err
	}
	cfg := config.Defaults()
	if err := yaml.Unmarshal([]byte(run.Config), &cfg); err != nil {
		return RunSummary{}, fmt.Errorf("decode config of run %s: %w", run.ID, err)
	}
	snapshot, ok, err := c.store.GetPopulation(ctx, run.ID)
	if err != nil {
		return RunSummary{}, err
	}
	if !ok {
		return RunSummary{}, fmt.Errorf("%w: no checkpoint for %s", ErrRunNotFound, run.ID)
	}
	entries, _, err := c.store.GetLogbook(ctx, run.ID)
	if err != nil {
		return RunSummary{}, err
	}
	hof, _, err := c.store.GetHallOfFame(ctx, run.ID)
	if err != nil {
		return RunSummary{}, err
	}

	cfg.Search.Generations = snapshot.Generation + req.Generations
	cfg.Search.Seed += int64(snapshot.Generation)
	s, err := c.prepare(cfg)
	if err != nil {
		return RunSummary{}, err
	}
	population, err := chromosomes(s.pset, cfg.Search.HeadLength, snapshot.Individuals)
	if err != nil {
		return RunSummary{}, fmt.Errorf("restore population: %w", err)
	}
	members, err := chromosomes(s.pset, cfg.Search.HeadLength, hof.Members)
	if err != nil {
		return RunSummary{}, fmt.Errorf("restore hall of fame: %w", err)
	}
	logbook := evoLogbook(entries)
	restored := evo.State{
		Generation:  snapshot.Generation,
		Population:  population,
		HallOfFame:  evo.RestoreHallOfFame(cfg.Search.HallOfFame, members),
		Logbook:     logbook,
		Evaluations: logbook.TotalEvaluations(),
	}

	run.Status = model.RunStatusRunning
	run.Error = ""
	run.Generations = cfg.Search.Generations
	return c.execute(ctx, s, &run, req.Sink, func(ctx context.Context, searcher *evo.Searcher) (evo.State, error) {
		return searcher.Continue(ctx, restored)
	})
}

func (c *Client) prepare(cfg config.RunConfig) (setup, error) {
	if err := cfg.Validate(); err != nil {
		return setup{}, err
	}
	cellNames, err := cells.Resolve(cfg.Search.Cells)
	if err != nil {
		return setup{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	pset, err := cellgraph.StandardPrimitiveSet(primitiveSetName, cellNames...)
	if err != nil {
		return setup{}, err
	}
	pipeline, err := operators.Build(cfg.Operators.Bindings())
	if err != nil {
		return setup{}, err
	}
	selector, err := evo.SelectorByName(cfg.Search.Selector, cfg.Search.TournamentSize)
	if err != nil {
		return setup{}, err
	}
	postprocessor, err := evo.PostprocessorByName(cfg.Search.Postprocessor)
	if err != nil {
		return setup{}, err
	}
	evaluator, memo, err := c.buildEvaluator(cfg.Fitness, cfg.Architecture)
	if err != nil {
		return setup{}, err
	}
	return setup{
		cfg:   cfg,
		cells: cellNames,
		pset:  pset,
		memo:  memo,
		evoConfig: evo.Config{
			PopulationSize: cfg.Search.PopulationSize,
			Generations:    cfg.Search.Generations,
			Elites:         cfg.Search.Elites,
			HallOfFameSize: cfg.Search.HallOfFame,
			Workers:        cfg.Search.Workers,
			Seed:           cfg.Search.Seed,
			NumGenes:       cfg.Search.NumGenes,
			Factory:        genotype.Factory(pset, cfg.Search.HeadLength),
			Evaluator:      evaluator,
			Pipeline:       pipeline,
			Selector:       selector,
			Postprocessor:  postprocessor,
		},
	}, nil
}

func (c *Client) buildEvaluator(fc config.FitnessConfig, ac config.ArchitectureConfig) (fitness.Evaluator, *fitness.Memoize, error) {
	var evaluator fitness.Evaluator
	switch fc.Evaluator {
	case config.EvaluatorProxy:
		evaluator = fitness.Proxy{Arch: ac.Architecture(), Budget: fc.Budget}
	case config.EvaluatorCommand:
		evaluator = fitness.Command{Path: fc.Command, Args: fc.Args}
	default:
		return nil, nil, fmt.Errorf("%w: unknown evaluator %q", config.ErrInvalidConfig, fc.Evaluator)
	}
	if fc.Timeout > 0 {
		evaluator = fitness.Timeout{Evaluator: evaluator, Limit: fc.Timeout}
	}
	if c.metrics != nil {
		evaluator = c.metrics.Instrument(evaluator)
	}
	if !fc.Memoize {
		return evaluator, nil, nil
	}
	memo := fitness.NewMemoize(evaluator)
	return memo, memo, nil
}

type searchFunc func(ctx context.Context, searcher *evo.Searcher) (evo.State, error)

func (c *Client) execute(ctx context.Context, s setup, run *model.RunRecord, extra evo.StatsSink, search searchFunc) (RunSummary, error) {
	logger := c.logger.With(slog.String("run_id", run.ID))
	if err := c.store.SaveRun(ctx, *run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}

	sinks := evo.MultiSink{checkpointSink{store: c.store, run: run}}
	if c.metrics != nil {
		sinks = append(sinks, c.metrics)
	}
	if extra != nil {
		sinks = append(sinks, extra)
	}
	evoConfig := s.evoConfig
	evoConfig.Sink = sinks
	evoConfig.Logger = logger

	searcher, err := evo.NewSearcher(evoConfig)
	if err != nil {
		return RunSummary{}, c.fail(ctx, *run, err)
	}

	started := c.now()
	logger.Info("search started",
		slog.Int("population", s.cfg.Search.PopulationSize),
		slog.Int("generations", s.cfg.Search.Generations),
		slog.Any("cells", s.cells),
	)
	st, err := search(ctx, searcher)
	if err != nil {
		return RunSummary{}, c.fail(ctx, *run, err)
	}
	duration := c.now().Sub(started)

	runDir, err := stats.WriteRunArtifacts(s.cfg.Output.Path, stats.RunArtifacts{
		Config:     runConfigArtifact(run.ID, s.cfg, s.cells),
		StartedAt:  run.StartedAt,
		Duration:   duration,
		Logbook:    logbookEntries(st.Logbook),
		HallOfFame: chromosomeRecords(st.HallOfFame.Members()),
		Population: chromosomeRecords(st.Population),
	})
	if err != nil {
		return RunSummary{}, c.fail(ctx, *run, fmt.Errorf("write artifacts: %w", err))
	}
	if err := c.exportGraphs(filepath.Join(runDir, "best"), st.HallOfFame.Members()); err != nil {
		return RunSummary{}, c.fail(ctx, *run, err)
	}
	if err := c.exportGraphs(filepath.Join(runDir, "pop"), st.Population); err != nil {
		return RunSummary{}, c.fail(ctx, *run, err)
	}

	summary := RunSummary{
		RunID:        run.ID,
		ArtifactsDir: filepath.Clean(runDir),
		Logbook:      st.Logbook,
		Evaluations:  st.Evaluations,
		Duration:     duration,
	}
	if s.memo != nil {
		summary.CacheHits = s.memo.Hits()
	}
	if best, ok := st.HallOfFame.Best(); ok {
		if summary.Best, err = decodeIndividual(1, best); err != nil {
			return RunSummary{}, c.fail(ctx, *run, err)
		}
	}

	run.Status = model.RunStatusCompleted
	run.FinishedAt = c.now().UTC()
	run.OutputDir = summary.ArtifactsDir
	run.BestFitness = summary.Best.Fitness
	if err := c.store.SaveRun(ctx, *run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	logger.Info("run complete",
		slog.Float64("best_fitness", summary.Best.Fitness),
		slog.Int("evaluations", summary.Evaluations),
		slog.Int("cache_hits", summary.CacheHits),
		slog.String("duration", stats.FormatDuration(duration)),
		slog.String("artifacts", summary.ArtifactsDir),
	)
	return summary, nil
}

func (c *Client) fail(ctx context.Context, run model.RunRecord, cause error) error {
	run.Status = model.RunStatusFailed
	run.Error = cause.Error()
	run.FinishedAt = c.now().UTC()
	// The caller's context may already be done; the failure is still recorded.
	if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Error("record failed run", slog.String("run_id", run.ID), slog.Any("error", err))
	}
	return cause
}
