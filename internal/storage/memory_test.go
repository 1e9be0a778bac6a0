package storage

import (
	"context"
	"errors"
	"testing"

	"gepnas/internal/model"
)

func TestMemoryStoreRoundTrips(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "r"}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := store.ListRuns(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestMemoryStoreCopiesOnSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	genes := [][]string{{"A", "B", "A"}}
	f := 0.25
	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "r",
		Individuals:     []model.ChromosomeRecord{{Genes: genes, Fitness: &f}},
	}
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}
	genes[0][0] = "Z"
	f = 9
	loaded, _, _ := store.GetPopulation(ctx, "r")
	if loaded.Individuals[0].Genes[0][0] != "A" || *loaded.Individuals[0].Fitness != 0.25 {
		t.Fatalf("stored snapshot aliases caller memory: %+v", loaded.Individuals[0])
	}
}
