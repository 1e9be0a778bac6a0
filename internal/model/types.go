package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunRecord describes one search run. Config holds the run configuration as
// YAML so a run can be inspected without the file it was started from.
type RunRecord struct {
	VersionedRecord
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Seed        int64     `json:"seed"`
	HeadLength  int       `json:"head_length"`
	NumGenes    int       `json:"num_genes"`
	Cells       []string  `json:"cells"`
	Generations int       `json:"generations"`
	Generation  int       `json:"generation"`
	Evaluations int       `json:"evaluations"`
	BestFitness float64   `json:"best_fitness"`
	OutputDir   string    `json:"output_dir,omitempty"`
	Config      string    `json:"config,omitempty"`
}

// ChromosomeRecord is a chromosome as symbol names, one slice per gene.
type ChromosomeRecord struct {
	Genes       [][]string `json:"genes"`
	Fitness     *float64   `json:"fitness,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
}

type PopulationSnapshot struct {
	VersionedRecord
	RunID       string             `json:"run_id"`
	Generation  int                `json:"generation"`
	Individuals []ChromosomeRecord `json:"individuals"`
}

type HallOfFameRecord struct {
	VersionedRecord
	RunID    string             `json:"run_id"`
	Capacity int                `json:"capacity"`
	Members  []ChromosomeRecord `json:"members"`
}

type LogbookEntry struct {
	Generation  int     `json:"gen"`
	Evaluations int     `json:"nevals"`
	Avg         float64 `json:"avg"`
	Std         float64 `json:"std"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
}
