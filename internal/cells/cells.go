package cells

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownOp = errors.New("unknown cell op")

type Kind int

const (
	KindConv Kind = iota
	KindDepthwise
	KindSeparable
	KindPool
)

func (k Kind) String() string {
	switch k {
	case KindDepthwise:
		return "depthwise"
	case KindSeparable:
		return "separable"
	case KindPool:
		return "pool"
	default:
		return "conv"
	}
}

// Op is a leaf operation a cell symbol stands for. Channels are preserved
// through every op.
type Op struct {
	Name     string `json:"name" yaml:"name"`
	Code     string `json:"code" yaml:"code"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	KernelH  int    `json:"kernel_h" yaml:"kernel_h"`
	KernelW  int    `json:"kernel_w" yaml:"kernel_w"`
	Dilation int    `json:"dilation" yaml:"dilation"`
}

// Params is the trainable parameter count at the given channel width,
// including batch norm scale and shift.
func (o Op) Params(channels int) int {
	c := channels
	k := o.KernelH * o.KernelW
	switch o.Kind {
	case KindPool:
		return 0
	case KindDepthwise:
		return k*c + 2*c
	case KindSeparable:
		return k*c + c*c + 2*c
	default:
		return k*c*c + 2*c
	}
}

var catalog = []Op{
	{Name: "conv1x1", Code: "A", Kind: KindConv, KernelH: 1, KernelW: 1, Dilation: 1},
	{Name: "conv3x3", Code: "B", Kind: KindConv, KernelH: 3, KernelW: 3, Dilation: 1},
	{Name: "dwconv3x3", Code: "C", Kind: KindDepthwise, KernelH: 3, KernelW: 3, Dilation: 1},
	{Name: "conv1x3", Code: "D", Kind: KindConv, KernelH: 1, KernelW: 3, Dilation: 1},
	{Name: "conv3x1", Code: "F", Kind: KindConv, KernelH: 3, KernelW: 1, Dilation: 1},
	{Name: "maxpool3x3", Code: "G", Kind: KindPool, KernelH: 3, KernelW: 3, Dilation: 1},
	{Name: "avgpool3x3", Code: "H", Kind: KindPool, KernelH: 3, KernelW: 3, Dilation: 1},
	{Name: "sepconv3x3", Code: "M", Kind: KindSeparable, KernelH: 3, KernelW: 3, Dilation: 1},
	{Name: "sepconv5x5", Code: "N", Kind: KindSeparable, KernelH: 5, KernelW: 5, Dilation: 1},
	{Name: "dilconv3x3", Code: "Q", Kind: KindSeparable, KernelH: 3, KernelW: 3, Dilation: 2},
	{Name: "dilconv5x5", Code: "R", Kind: KindSeparable, KernelH: 5, KernelW: 5, Dilation: 2},
}

// DefaultNames is the cell set the search uses when none is configured.
func DefaultNames() []string {
	return []string{"conv1x1", "conv3x3", "conv1x3", "conv3x1"}
}

func All() []Op {
	return append([]Op(nil), catalog...)
}

// Lookup accepts an op name or its single-letter code.
func Lookup(nameOrCode string) (Op, bool) {
	key := strings.TrimSpace(nameOrCode)
	for _, op := range catalog {
		if op.Name == key || op.Code == key {
			return op, true
		}
	}
	return Op{}, false
}

// Resolve maps names or codes to canonical op names, preserving order.
func Resolve(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		op, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOp, name)
		}
		out = append(out, op.Name)
	}
	return out, nil
}
