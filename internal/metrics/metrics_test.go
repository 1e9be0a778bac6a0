package metrics

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"gepnas/internal/cellgraph"
	"gepnas/internal/evo"
	"gepnas/internal/fitness"
	"gepnas/internal/genotype"
	"gepnas/internal/graph"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" {
				matched := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "stat" && lp.GetValue() == label {
						matched = true
					}
				}
				if !matched {
					continue
				}
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s{stat=%q} not found", name, label)
	return 0
}

func TestSinkObserveSetsSeries(t *testing.T) {
	ps, err := cellgraph.StandardPrimitiveSet("cnn", "A", "B")
	if err != nil {
		t.Fatalf("primitive set: %v", err)
	}
	c, err := genotype.NewChromosome(rand.New(rand.NewSource(1)), genotype.Factory(ps, 2), 1)
	if err != nil {
		t.Fatalf("chromosome: %v", err)
	}

	reg := prometheus.NewRegistry()
	sink := newTestSink(t, reg)
	st := evo.State{
		Generation: 2,
		Logbook: evo.Logbook{
			{Generation: 0, Evaluations: 10, Avg: 0.2, Min: 0.1, Max: 0.3},
			{Generation: 1, Evaluations: 7, Avg: 0.4, Std: 0.05, Min: 0.2, Max: 0.9},
		},
		HallOfFame: evo.NewHallOfFame(2).Update([]genotype.Chromosome{c.WithFitness(0.95)}),
	}
	if err := sink.Observe(context.Background(), st); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := sink.Observe(context.Background(), st); err != nil {
		t.Fatalf("observe: %v", err)
	}

	if v := gatherValue(t, reg, "gepnas_generation", ""); v != 1 {
		t.Fatalf("generation = %v", v)
	}
	if v := gatherValue(t, reg, "gepnas_evaluations_total", ""); v != 14 {
		t.Fatalf("evaluations = %v, want 14", v)
	}
	if v := gatherValue(t, reg, "gepnas_population_fitness", "max"); v != 0.9 {
		t.Fatalf("max = %v", v)
	}
	if v := gatherValue(t, reg, "gepnas_population_fitness", "std"); v != 0.05 {
		t.Fatalf("std = %v", v)
	}
	if v := gatherValue(t, reg, "gepnas_hall_of_fame_best", ""); v != 0.95 {
		t.Fatalf("hall of fame best = %v", v)
	}
}

func TestSinkIgnoresEmptyLogbook(t *testing.T) {
	sink := newTestSink(t, prometheus.NewRegistry())
	if err := sink.Observe(context.Background(), evo.State{}); err != nil {
		t.Fatalf("observe: %v", err)
	}
}

func TestInstrumentCountsCallsAndErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := newTestSink(t, reg)
	boom := errors.New("no gpu")
	calls := 0
	ev := sink.Instrument(fitness.EvaluatorFunc(func(context.Context, graph.Graph) (float64, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return 0.5, nil
	}))

	if score, err := ev.Evaluate(context.Background(), graph.Empty()); err != nil || score != 0.5 {
		t.Fatalf("first call = %v, %v", score, err)
	}
	if _, err := ev.Evaluate(context.Background(), graph.Empty()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error to pass through, got %v", err)
	}
	if v := gatherValue(t, reg, "gepnas_evaluation_duration_seconds", ""); v != 2 {
		t.Fatalf("histogram samples = %v, want 2", v)
	}
	if v := gatherValue(t, reg, "gepnas_evaluation_errors_total", ""); v != 1 {
		t.Fatalf("errors = %v, want 1", v)
	}
}

func newTestSink(t *testing.T, reg prometheus.Registerer) *Sink {
	t.Helper()
	sink, err := NewSink(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	return sink
}

func TestSinksShareOneRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newTestSink(t, reg)
	second := newTestSink(t, reg)
	st := evo.State{Logbook: evo.Logbook{{Generation: 0, Evaluations: 4}}}
	if err := first.Observe(context.Background(), st); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := second.Observe(context.Background(), st); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if v := gatherValue(t, reg, "gepnas_evaluations_total", ""); v != 8 {
		t.Fatalf("evaluations = %v, want both sinks counted as 8", v)
	}
}

func TestNewSinkReportsConflictingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gepnas",
		Name:      "generation",
		Help:      "a counter squatting on the gauge name",
	}))
	if _, err := NewSink(reg); err == nil {
		t.Fatal("expected an error for a conflicting collector")
	}
}
