package storage

import (
	"context"
	"errors"

	"gepnas/internal/model"
)

var (
	ErrNotInitialized     = errors.New("store is not initialized")
	ErrUnsupportedBackend = errors.New("unsupported store backend")
)

// Store persists search runs and their checkpoints. Populations, logbooks and
// halls of fame are keyed by run id; saving replaces the previous value.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetPopulation(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
	SaveLogbook(ctx context.Context, runID string, entries []model.LogbookEntry) error
	GetLogbook(ctx context.Context, runID string) ([]model.LogbookEntry, bool, error)
	SaveHallOfFame(ctx context.Context, record model.HallOfFameRecord) error
	GetHallOfFame(ctx context.Context, runID string) (model.HallOfFameRecord, bool, error)
}
