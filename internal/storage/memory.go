package storage

import (
	"context"
	"sort"
	"sync"

	"gepnas/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	populations map[string]model.PopulationSnapshot
	logbooks    map[string][]model.LogbookEntry
	halls       map[string]model.HallOfFameRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.populations = make(map[string]model.PopulationSnapshot)
	s.logbooks = make(map[string][]model.LogbookEntry)
	s.halls = make(map[string]model.HallOfFameRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	run.Cells = append([]string(nil), run.Cells...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.RunRecord{}, false, ErrNotInitialized
	}
	run, ok := s.runs[id]
	if ok {
		run.Cells = append([]string(nil), run.Cells...)
	}
	return run, ok, nil
}

// ListRuns returns runs oldest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		run.Cells = append([]string(nil), run.Cells...)
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	snapshot.Individuals = copyChromosomes(snapshot.Individuals)
	s.populations[snapshot.RunID] = snapshot
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.PopulationSnapshot{}, false, ErrNotInitialized
	}
	snapshot, ok := s.populations[runID]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	snapshot.Individuals = copyChromosomes(snapshot.Individuals)
	return snapshot, true, nil
}

func (s *MemoryStore) SaveLogbook(_ context.Context, runID string, entries []model.LogbookEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	copied := make([]model.LogbookEntry, len(entries))
	copy(copied, entries)
	s.logbooks[runID] = copied
	return nil
}

func (s *MemoryStore) GetLogbook(_ context.Context, runID string) ([]model.LogbookEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	entries, ok := s.logbooks[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.LogbookEntry, len(entries))
	copy(copied, entries)
	return copied, true, nil
}

func (s *MemoryStore) SaveHallOfFame(_ context.Context, record model.HallOfFameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	record.Members = copyChromosomes(record.Members)
	s.halls[record.RunID] = record
	return nil
}

func (s *MemoryStore) GetHallOfFame(_ context.Context, runID string) (model.HallOfFameRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.HallOfFameRecord{}, false, ErrNotInitialized
	}
	record, ok := s.halls[runID]
	if !ok {
		return model.HallOfFameRecord{}, false, nil
	}
	record.Members = copyChromosomes(record.Members)
	return record, true, nil
}

func copyChromosomes(in []model.ChromosomeRecord) []model.ChromosomeRecord {
	out := make([]model.ChromosomeRecord, 0, len(in))
	for _, c := range in {
		genes := make([][]string, 0, len(c.Genes))
		for _, g := range c.Genes {
			genes = append(genes, append([]string(nil), g...))
		}
		copied := model.ChromosomeRecord{Genes: genes, Fingerprint: c.Fingerprint}
		if c.Fitness != nil {
			f := *c.Fitness
			copied.Fitness = &f
		}
		out = append(out, copied)
	}
	return out
}
