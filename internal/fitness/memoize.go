package fitness

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"gepnas/internal/graph"
)

// Memoize caches scores by graph fingerprint. Distinct genotypes often decode
// to the same cell; concurrent requests for one fingerprint share a single
// call to the wrapped evaluator. Errors are not cached.
type Memoize struct {
	evaluator Evaluator
	group     singleflight.Group

	mu     sync.RWMutex
	scores map[string]float64
	hits   int
}

func NewMemoize(evaluator Evaluator) *Memoize {
	return &Memoize{evaluator: evaluator, scores: make(map[string]float64)}
}

func (m *Memoize) Evaluate(ctx context.Context, g graph.Graph) (float64, error) {
	key := g.Fingerprint()
	m.mu.Lock()
	if score, ok := m.scores[key]; ok {
		m.hits++
		m.mu.Unlock()
		return score, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(key, func() (any, error) {
		m.mu.RLock()
		score, ok := m.scores[key]
		m.mu.RUnlock()
		if ok {
			return score, nil
		}
		score, err := m.evaluator.Evaluate(ctx, g)
		if err != nil {
			return 0.0, err
		}
		m.mu.Lock()
		m.scores[key] = score
		m.mu.Unlock()
		return score, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Len is the number of cached fingerprints.
func (m *Memoize) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scores)
}

func (m *Memoize) Hits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits
}
