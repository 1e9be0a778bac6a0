// Package metrics exports search progress as Prometheus series.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gepnas/internal/evo"
	"gepnas/internal/fitness"
	"gepnas/internal/graph"
)

const namespace = "gepnas"

// Sink records one sample per generation. It satisfies evo.StatsSink.
type Sink struct {
	generation  prometheus.Gauge
	evaluations prometheus.Counter
	fitness     *prometheus.GaugeVec
	hallOfFame  prometheus.Gauge
	evalSeconds prometheus.Histogram
	evalErrors  prometheus.Counter
}

// NewSink registers the search series on reg. A nil reg falls back to the
// default registerer. Sinks built on the same registerer share their series.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := &registrar{reg: reg}
	s := &Sink{
		generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Last completed generation",
		}),
		evaluations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Fitness evaluations performed",
		}),
		fitness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "population_fitness",
			Help:      "Population fitness statistics of the last generation",
		}, []string{"stat"}),
		hallOfFame: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hall_of_fame_best",
			Help:      "Best fitness held by the hall of fame",
		}),
		evalSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of a single fitness evaluation",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
		}),
		evalErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Fitness evaluations that returned an error",
		}),
	}
	if factory.err != nil {
		return nil, factory.err
	}
	return s, nil
}

// registrar registers collectors and hands back the one already registered
// under the same descriptor. The first other error is kept in err.
type registrar struct {
	reg prometheus.Registerer
	err error
}

func (r *registrar) register(c prometheus.Collector) prometheus.Collector {
	err := r.reg.Register(c)
	if err == nil {
		return c
	}
	var exists prometheus.AlreadyRegisteredError
	if errors.As(err, &exists) {
		return exists.ExistingCollector
	}
	if r.err == nil {
		r.err = err
	}
	return c
}

func (r *registrar) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	return asCollector[prometheus.Gauge](r, prometheus.NewGauge(opts))
}

func (r *registrar) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	return asCollector[prometheus.Counter](r, prometheus.NewCounter(opts))
}

func (r *registrar) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	return asCollector[*prometheus.GaugeVec](r, prometheus.NewGaugeVec(opts, labels))
}

func (r *registrar) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	return asCollector[prometheus.Histogram](r, prometheus.NewHistogram(opts))
}

func asCollector[T prometheus.Collector](r *registrar, c T) T {
	got, ok := r.register(c).(T)
	if !ok {
		if r.err == nil {
			r.err = errors.New("metrics: registered collector has a different type")
		}
		return c
	}
	return got
}

func (s *Sink) Observe(_ context.Context, st evo.State) error {
	if len(st.Logbook) == 0 {
		return nil
	}
	rec := st.Logbook[len(st.Logbook)-1]
	s.generation.Set(float64(rec.Generation))
	s.evaluations.Add(float64(rec.Evaluations))
	s.fitness.WithLabelValues("avg").Set(rec.Avg)
	s.fitness.WithLabelValues("std").Set(rec.Std)
	s.fitness.WithLabelValues("min").Set(rec.Min)
	s.fitness.WithLabelValues("max").Set(rec.Max)
	if best, ok := st.HallOfFame.Best(); ok {
		if f, ok := best.Fitness(); ok {
			s.hallOfFame.Set(f)
		}
	}
	return nil
}

// Instrument wraps evaluator so that each call is timed and failures counted.
func (s *Sink) Instrument(evaluator fitness.Evaluator) fitness.Evaluator {
	return fitness.EvaluatorFunc(func(ctx context.Context, g graph.Graph) (float64, error) {
		start := time.Now()
		score, err := evaluator.Evaluate(ctx, g)
		s.evalSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			s.evalErrors.Inc()
		}
		return score, err
	})
}
