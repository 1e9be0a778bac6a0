package fitness

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gepnas/internal/cells"
	"gepnas/internal/graph"
)

var ErrInvalidArchitecture = errors.New("invalid architecture")

const stemKernel = 3 * 3 * 3

// Architecture describes the network a cell is stacked into: a 3x3 stem, one
// stage per RepeatList entry with the cell repeated inside it, a 1x1
// reduction doubling channels between stages, and a linear classifier.
type Architecture struct {
	Channels   int     `json:"channels" yaml:"channels"`
	WidthCoeff float64 `json:"width_coeff" yaml:"width_coeff"`
	DepthCoeff float64 `json:"depth_coeff" yaml:"depth_coeff"`
	RepeatList []int   `json:"repeat_list" yaml:"repeat_list"`
	Classes    int     `json:"classes" yaml:"classes"`
}

func DefaultArchitecture() Architecture {
	return Architecture{
		Channels:   16,
		WidthCoeff: 1,
		DepthCoeff: 1,
		RepeatList: []int{1, 1, 1},
		Classes:    10,
	}
}

func (a Architecture) Validate() error {
	switch {
	case a.Channels <= 0:
		return fmt.Errorf("%w: channels must be > 0", ErrInvalidArchitecture)
	case a.WidthCoeff <= 0 || a.DepthCoeff <= 0:
		return fmt.Errorf("%w: width and depth coefficients must be > 0", ErrInvalidArchitecture)
	case len(a.RepeatList) == 0:
		return fmt.Errorf("%w: repeat list is required", ErrInvalidArchitecture)
	case a.Classes <= 0:
		return fmt.Errorf("%w: classes must be > 0", ErrInvalidArchitecture)
	}
	for i, r := range a.RepeatList {
		if r <= 0 {
			return fmt.Errorf("%w: repeat list entry %d must be > 0", ErrInvalidArchitecture, i)
		}
	}
	return nil
}

// Parameters counts the trainable parameters of the network built around g.
func (a Architecture) Parameters(g graph.Graph) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	ops := make([]cells.Op, 0, g.Len())
	for _, n := range g.Nodes {
		op, ok := cells.Lookup(n.Op)
		if !ok {
			return 0, fmt.Errorf("node %d: %w: %s", n.ID, cells.ErrUnknownOp, n.Op)
		}
		ops = append(ops, op)
	}

	channels := int(math.Round(float64(a.Channels) * a.WidthCoeff))
	if channels < 1 {
		channels = 1
	}
	total := stemKernel*channels + 2*channels
	for stage, repeats := range a.RepeatList {
		if stage > 0 {
			total += channels * 2 * channels
			channels *= 2
		}
		perCell := 0
		for _, op := range ops {
			perCell += op.Params(channels)
		}
		total += perCell * int(math.Ceil(float64(repeats)*a.DepthCoeff))
	}
	total += channels*a.Classes + a.Classes
	return total, nil
}

// Proxy scores a cell by how close the network's parameter count lands to
// Budget on a log scale. The score is min(p/b, b/p), always in (0, 1].
type Proxy struct {
	Arch   Architecture
	Budget int
}

func (p Proxy) Evaluate(ctx context.Context, g graph.Graph) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.Budget <= 0 {
		return 0, fmt.Errorf("%w: parameter budget must be > 0", ErrInvalidArchitecture)
	}
	params, err := p.Arch.Parameters(g)
	if err != nil {
		return 0, err
	}
	ratio := float64(params) / float64(p.Budget)
	if ratio > 1 {
		ratio = 1 / ratio
	}
	return ratio, nil
}
