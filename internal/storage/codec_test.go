package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(fixturePath(name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func TestDecodeRunFixture(t *testing.T) {
	run, err := DecodeRun(readFixture(t, "run_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if run.ID != "run-fixture-1" || run.Evaluations != 231 || len(run.Cells) != 4 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.FinishedAt.Sub(run.StartedAt).Seconds() != 400 {
		t.Fatalf("unexpected run timestamps: %v %v", run.StartedAt, run.FinishedAt)
	}
}

func TestDecodePopulationFixture(t *testing.T) {
	snapshot, err := DecodePopulation(readFixture(t, "population_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if snapshot.RunID != "run-fixture-1" || len(snapshot.Individuals) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.Individuals[0].Fitness == nil || snapshot.Individuals[1].Fitness != nil {
		t.Fatal("expected only the first individual to carry fitness")
	}
	if len(snapshot.Individuals[0].Genes) != 2 || len(snapshot.Individuals[0].Genes[1]) != 7 {
		t.Fatalf("unexpected genes: %+v", snapshot.Individuals[0].Genes)
	}
}

func TestDecodeHallOfFameFixture(t *testing.T) {
	record, err := DecodeHallOfFame(readFixture(t, "hall_of_fame_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if record.Capacity != 2 || len(record.Members) != 1 || *record.Members[0].Fitness != 0.875 {
		t.Fatalf("unexpected hall of fame: %+v", record)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	if _, err := DecodeRun(readFixture(t, "run_v0.json")); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	if _, err := DecodePopulation([]byte(`{"schema_version":2,"codec_version":1}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	if _, err := DecodeHallOfFame([]byte(`{"schema_version":1,"codec_version":3}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestLogbookCodecKeepsOrder(t *testing.T) {
	data := []byte(`[{"gen":0,"nevals":20,"avg":0.1,"std":0,"min":0.1,"max":0.1},{"gen":1,"nevals":9,"avg":0.2,"std":0.1,"min":0.1,"max":0.3}]`)
	entries, err := DecodeLogbook(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[1].Generation != 1 || entries[1].Evaluations != 9 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	encoded, err := EncodeLogbook(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := DecodeLogbook(encoded)
	if err != nil || len(again) != 2 || again[1] != entries[1] {
		t.Fatalf("logbook did not survive encoding: %+v %v", again, err)
	}
}
