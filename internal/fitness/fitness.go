package fitness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gepnas/internal/graph"
)

var ErrEvaluationTimeout = errors.New("evaluation timed out")

// Evaluator scores a decoded cell. Higher is better.
type Evaluator interface {
	Evaluate(ctx context.Context, g graph.Graph) (float64, error)
}

type EvaluatorFunc func(ctx context.Context, g graph.Graph) (float64, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, g graph.Graph) (float64, error) {
	return f(ctx, g)
}

// Timeout bounds every evaluation of the wrapped evaluator.
type Timeout struct {
	Evaluator Evaluator
	Limit     time.Duration
}

func (t Timeout) Evaluate(ctx context.Context, g graph.Graph) (float64, error) {
	if t.Limit <= 0 {
		return t.Evaluator.Evaluate(ctx, g)
	}
	ctx, cancel := context.WithTimeout(ctx, t.Limit)
	defer cancel()

	score, err := t.Evaluator.Evaluate(ctx, g)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, fmt.Errorf("%w after %s: %v", ErrEvaluationTimeout, t.Limit, err)
	}
	return score, err
}
