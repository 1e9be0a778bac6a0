package gepnas

import (
	"context"
	"fmt"

	"gepnas/internal/config"
	"gepnas/internal/evo"
	"gepnas/internal/genotype"
	"gepnas/internal/model"
	"gepnas/internal/stats"
	"gepnas/internal/storage"
	"gepnas/internal/symbol"
)

// checkpointSink persists the search state after every generation so that a
// run can be inspected while in progress and resumed after a crash.
type checkpointSink struct {
	store storage.Store
	run   *model.RunRecord
}

func (s checkpointSink) Observe(ctx context.Context, st evo.State) error {
	runID := s.run.ID
	err := s.store.SavePopulation(ctx, model.PopulationSnapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Generation:      st.Generation,
		Individuals:     chromosomeRecords(st.Population),
	})
	if err != nil {
		return fmt.Errorf("checkpoint population: %w", err)
	}
	if err := s.store.SaveLogbook(ctx, runID, logbookEntries(st.Logbook)); err != nil {
		return fmt.Errorf("checkpoint logbook: %w", err)
	}
	err = s.store.SaveHallOfFame(ctx, model.HallOfFameRecord{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Capacity:        st.HallOfFame.Capacity(),
		Members:         chromosomeRecords(st.HallOfFame.Members()),
	})
	if err != nil {
		return fmt.Errorf("checkpoint hall of fame: %w", err)
	}

	s.run.Generation = st.Generation
	s.run.Evaluations = st.Evaluations
	if best, ok := st.HallOfFame.Best(); ok {
		s.run.BestFitness, _ = best.Fitness()
	}
	return s.store.SaveRun(ctx, *s.run)
}

func chromosomeRecords(population []genotype.Chromosome) []model.ChromosomeRecord {
	out := make([]model.ChromosomeRecord, 0, len(population))
	for _, c := range population {
		record := model.ChromosomeRecord{Genes: c.Names(), Fingerprint: c.Fingerprint()}
		if f, ok := c.Fitness(); ok {
			record.Fitness = &f
		}
		out = append(out, record)
	}
	return out
}

func chromosomeFromRecord(pset *symbol.PrimitiveSet, head int, record model.ChromosomeRecord) (genotype.Chromosome, error) {
	c, err := genotype.ParseChromosome(pset, head, record.Genes)
	if err != nil {
		return genotype.Chromosome{}, err
	}
	if record.Fitness != nil {
		c = c.WithFitness(*record.Fitness)
	}
	return c, nil
}

func chromosomes(pset *symbol.PrimitiveSet, head int, records []model.ChromosomeRecord) ([]genotype.Chromosome, error) {
	out := make([]genotype.Chromosome, 0, len(records))
	for i, record := range records {
		c, err := chromosomeFromRecord(pset, head, record)
		if err != nil {
			return nil, fmt.Errorf("individual %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func logbookEntries(logbook evo.Logbook) []model.LogbookEntry {
	out := make([]model.LogbookEntry, 0, len(logbook))
	for _, r := range logbook {
		out = append(out, model.LogbookEntry{
			Generation:  r.Generation,
			Evaluations: r.Evaluations,
			Avg:         r.Avg,
			Std:         r.Std,
			Min:         r.Min,
			Max:         r.Max,
		})
	}
	return out
}

func evoLogbook(entries []model.LogbookEntry) evo.Logbook {
	out := make(evo.Logbook, 0, len(entries))
	for _, e := range entries {
		out = append(out, evo.GenerationRecord{
			Generation:  e.Generation,
			Evaluations: e.Evaluations,
			Avg:         e.Avg,
			Std:         e.Std,
			Min:         e.Min,
			Max:         e.Max,
		})
	}
	return out
}

func runConfigArtifact(runID string, cfg config.RunConfig, cellNames []string) stats.RunConfig {
	ops := make(map[string]float64)
	for _, b := range cfg.Operators.Bindings() {
		ops[b.Name] = b.Probability
	}
	return stats.RunConfig{
		RunID:          runID,
		Seed:           cfg.Search.Seed,
		HeadLength:     cfg.Search.HeadLength,
		NumGenes:       cfg.Search.NumGenes,
		Cells:          cellNames,
		PopulationSize: cfg.Search.PopulationSize,
		Generations:    cfg.Search.Generations,
		Elites:         cfg.Search.Elites,
		HallOfFameSize: cfg.Search.HallOfFame,
		Workers:        cfg.Search.Workers,
		Selector:       cfg.Search.Selector,
		Postprocessor:  cfg.Search.Postprocessor,
		Evaluator:      cfg.Fitness.Evaluator,
		Operators:      ops,
	}
}
