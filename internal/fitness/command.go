package fitness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"gepnas/internal/export"
	"gepnas/internal/graph"
)

var (
	ErrCommandFailed = errors.New("fitness command failed")
	ErrCommandOutput = errors.New("fitness command printed no score")
)

// Command runs an external trainer per evaluation. The graph document is
// written to its stdin as JSON; the last non-empty line of stdout must be the
// score.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
}

func (c Command) Evaluate(ctx context.Context, g graph.Graph) (float64, error) {
	if c.Path == "" {
		return 0, fmt.Errorf("%w: command path is required", ErrCommandFailed)
	}
	payload, err := export.JSON(g)
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: %s: %v: %s", ErrCommandFailed, c.Path, err, strings.TrimSpace(stderr.String()))
	}
	return parseScore(stdout.String())
}

func parseScore(out string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return 0, ErrCommandOutput
	}
	score, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrCommandOutput, last)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: non-finite score %q", ErrCommandOutput, last)
	}
	return score, nil
}
