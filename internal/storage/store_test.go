package storage

import (
	"context"
	"testing"
	"time"

	"gepnas/internal/model"
)

func scored(f float64) *float64 { return &f }

// exerciseStore runs the same checkpoint round trips against any backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-b", "run-a", "run-c"} {
		run := model.RunRecord{
			VersionedRecord: CurrentVersion(),
			ID:              id,
			Status:          model.RunStatusRunning,
			StartedAt:       base.Add(time.Duration(i) * time.Minute),
			Seed:            200,
			HeadLength:      3,
			NumGenes:        2,
			Cells:           []string{"conv1x1", "conv3x3"},
			Generations:     20,
		}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	run, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	run.Status = model.RunStatusCompleted
	run.BestFitness = 0.9
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}
	run, _, _ = store.GetRun(ctx, "run-a")
	if run.Status != model.RunStatusCompleted || run.BestFitness != 0.9 || len(run.Cells) != 2 {
		t.Fatalf("unexpected run after update: %+v", run)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%v err=%v", ok, err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run-b" || runs[1].ID != "run-a" || runs[2].ID != "run-c" {
		t.Fatalf("expected runs ordered by start time, got %+v", runs)
	}

	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-a",
		Generation:      4,
		Individuals: []model.ChromosomeRecord{
			{Genes: [][]string{{"seq", "A", "B", "A", "B", "A", "B"}}, Fitness: scored(0.5)},
			{Genes: [][]string{{"A", "A", "B", "A", "B", "A", "B"}}},
		},
	}
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("save population: %v", err)
	}
	snapshot.Generation = 5
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("replace population: %v", err)
	}
	loaded, ok, err := store.GetPopulation(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%v err=%v", ok, err)
	}
	if loaded.Generation != 5 || len(loaded.Individuals) != 2 {
		t.Fatalf("unexpected population: %+v", loaded)
	}
	if loaded.Individuals[0].Fitness == nil || *loaded.Individuals[0].Fitness != 0.5 || loaded.Individuals[1].Fitness != nil {
		t.Fatalf("fitness not preserved: %+v", loaded.Individuals)
	}
	if loaded.Individuals[0].Genes[0][0] != "seq" {
		t.Fatalf("genes not preserved: %+v", loaded.Individuals[0].Genes)
	}

	entries := []model.LogbookEntry{
		{Generation: 0, Evaluations: 20, Avg: 0.3, Min: 0.1, Max: 0.5},
		{Generation: 1, Evaluations: 12, Avg: 0.4, Std: 0.1, Min: 0.2, Max: 0.6},
	}
	if err := store.SaveLogbook(ctx, "run-a", entries); err != nil {
		t.Fatalf("save logbook: %v", err)
	}
	gotEntries, ok, err := store.GetLogbook(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get logbook: ok=%v err=%v", ok, err)
	}
	if len(gotEntries) != 2 || gotEntries[1] != entries[1] {
		t.Fatalf("unexpected logbook: %+v", gotEntries)
	}

	hof := model.HallOfFameRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-a",
		Capacity:        2,
		Members:         snapshot.Individuals[:1],
	}
	if err := store.SaveHallOfFame(ctx, hof); err != nil {
		t.Fatalf("save hall of fame: %v", err)
	}
	gotHOF, ok, err := store.GetHallOfFame(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get hall of fame: ok=%v err=%v", ok, err)
	}
	if gotHOF.Capacity != 2 || len(gotHOF.Members) != 1 || *gotHOF.Members[0].Fitness != 0.5 {
		t.Fatalf("unexpected hall of fame: %+v", gotHOF)
	}

	for name, lookup := range map[string]func() (bool, error){
		"population": func() (bool, error) { _, ok, err := store.GetPopulation(ctx, "run-b"); return ok, err },
		"logbook":    func() (bool, error) { _, ok, err := store.GetLogbook(ctx, "run-b"); return ok, err },
		"hof":        func() (bool, error) { _, ok, err := store.GetHallOfFame(ctx, "run-b"); return ok, err },
	} {
		if ok, err := lookup(); err != nil || ok {
			t.Fatalf("%s: expected nothing for run-b, ok=%v err=%v", name, ok, err)
		}
	}
}
