package cellgraph

import (
	"fmt"

	"gepnas/internal/graph"
	"gepnas/internal/symbol"
)

// Program symbol names of the cellular encoding.
const (
	End = "end"
	Seq = "seq"
	CPO = "cpo"
	CPI = "cpi"
)

// Rule couples a program symbol's arity with its composition function.
type Rule struct {
	Arity   int
	Compose symbol.ComposeFunc
}

// StandardRules is the cellular-encoding rule table in registration order.
var StandardRules = []struct {
	Name string
	Rule Rule
}{
	{Name: End, Rule: Rule{Arity: 0, Compose: Terminate}},
	{Name: Seq, Rule: Rule{Arity: 2, Compose: Sequence}},
	{Name: CPO, Rule: Rule{Arity: 2, Compose: ParallelOutput}},
	{Name: CPI, Rule: Rule{Arity: 2, Compose: ParallelInput}},
}

// Terminate stops division. It contributes nothing, so the enclosing rule
// falls back to the most recently lowered sibling.
func Terminate(_ []graph.Graph) graph.Graph {
	return graph.Empty()
}

// Sequence chains children one after another.
func Sequence(children []graph.Graph) graph.Graph {
	out := graph.Empty()
	for _, c := range children {
		out = graph.Chain(out, c)
	}
	return out
}

// ParallelOutput chains a into b and copies a's output around b so that both
// paths recombine at b's output.
func ParallelOutput(children []graph.Graph) graph.Graph {
	return foldPairs(children, func(a, b graph.Graph) graph.Graph {
		out := graph.Chain(a, b)
		if a.IsEmpty() || b.IsEmpty() {
			return out
		}
		return out.WithEdge(a.Output, b.Output)
	})
}

// ParallelInput chains a into b and copies a's input around a so that both
// paths recombine at b's input.
func ParallelInput(children []graph.Graph) graph.Graph {
	return foldPairs(children, func(a, b graph.Graph) graph.Graph {
		out := graph.Chain(a, b)
		if a.IsEmpty() || b.IsEmpty() {
			return out
		}
		return out.WithEdge(a.Input, b.Input)
	})
}

func foldPairs(children []graph.Graph, join func(a, b graph.Graph) graph.Graph) graph.Graph {
	out := graph.Empty()
	for i, c := range children {
		if i == 0 {
			out = c
			continue
		}
		out = join(out, c)
	}
	return out
}

// NewPrimitiveSet registers the named program symbols from StandardRules and
// the given cell symbols.
func NewPrimitiveSet(name string, programs, cells []string) (*symbol.PrimitiveSet, error) {
	rules := make(map[string]Rule, len(StandardRules))
	for _, item := range StandardRules {
		rules[item.Name] = item.Rule
	}

	b := symbol.NewBuilder(name)
	for _, p := range programs {
		rule, ok := rules[p]
		if !ok {
			return nil, fmt.Errorf("%w: program %q", symbol.ErrUnknownSymbol, p)
		}
		if err := b.AddProgramSymbol(p, rule.Arity, rule.Compose); err != nil {
			return nil, err
		}
	}
	for _, c := range cells {
		if err := b.AddCellSymbol(c); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// StandardPrimitiveSet registers end, seq, cpo and cpi plus the given cells.
func StandardPrimitiveSet(name string, cells ...string) (*symbol.PrimitiveSet, error) {
	programs := make([]string, 0, len(StandardRules))
	for _, item := range StandardRules {
		programs = append(programs, item.Name)
	}
	return NewPrimitiveSet(name, programs, cells)
}
