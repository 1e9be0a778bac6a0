// Package gepnas is the programmatic entry point for running and inspecting
// cell topology searches.
package gepnas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gepnas/internal/cellgraph"
	"gepnas/internal/cells"
	"gepnas/internal/export"
	"gepnas/internal/genotype"
	"gepnas/internal/graph"
	"gepnas/internal/metrics"
	"gepnas/internal/model"
	"gepnas/internal/stats"
	"gepnas/internal/storage"
	"gepnas/internal/symbol"
)

const (
	defaultDBPath     = "gepnas.db"
	defaultExportsDir = "exports"
	primitiveSetName  = "cnn"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrNoRuns         = errors.New("no runs available")
	ErrAmbiguousRunID = errors.New("use either run id or latest")
	ErrMissingRunID   = errors.New("run id or latest is required")
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	Logger     *slog.Logger
	Exporter   export.Exporter
	// Registerer receives the search metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	Now        func() time.Time
}

type Client struct {
	store      storage.Store
	logger     *slog.Logger
	exporter   export.Exporter
	metrics    *metrics.Sink
	exportsDir string
	now        func() time.Time
}

// Individual is a decoded chromosome.
type Individual struct {
	Rank    int
	Fitness float64
	Scored  bool
	Genes   [][]string
	Graph   graph.Graph
}

// RunRef selects a run by id or the most recently started one.
type RunRef struct {
	RunID  string
	Latest bool
}

type RunsRequest struct {
	Limit int
}

type ExportRequest struct {
	RunRef
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
	Graphs    int
}

type DecodeRequest struct {
	Genes      [][]string
	HeadLength int
	Cells      []string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exporter := opts.Exporter
	if exporter == nil {
		exporter = export.FileExporter{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		store:      store,
		logger:     logger.With(slog.String("component", "client")),
		exporter:   exporter,
		exportsDir: exportsDir,
		now:        now,
	}
	if opts.Registerer != nil {
		if c.metrics, err = metrics.NewSink(opts.Registerer); err != nil {
			_ = storage.CloseIfSupported(store)
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) exportGraphs(dir string, population []genotype.Chromosome) error {
	for i, chromosome := range population {
		g, err := cellgraph.Decode(chromosome)
		if err != nil {
			return fmt.Errorf("decode individual %d: %w", i, err)
		}
		base := filepath.Join(dir, "indv_"+strconv.Itoa(i))
		if err := c.exporter.Save(g, base); err != nil {
			return fmt.Errorf("save individual %d: %w", i, err)
		}
		if err := c.exporter.Draw(g, base); err != nil {
			return fmt.Errorf("draw individual %d: %w", i, err)
		}
	}
	return nil
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RunRecord, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i])
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (c *Client) Logbook(ctx context.Context, ref RunRef) ([]model.LogbookEntry, error) {
	run, err := c.resolveRun(ctx, ref)
	if err != nil {
		return nil, err
	}
	entries, ok, err := c.store.GetLogbook(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no logbook for %s", ErrRunNotFound, run.ID)
	}
	return entries, nil
}

// HallOfFame returns the stored hall of fame of a run, decoded, best first.
func (c *Client) HallOfFame(ctx context.Context, ref RunRef) ([]Individual, error) {
	run, err := c.resolveRun(ctx, ref)
	if err != nil {
		return nil, err
	}
	record, ok, err := c.store.GetHallOfFame(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no hall of fame for %s", ErrRunNotFound, run.ID)
	}
	pset, err := cellgraph.StandardPrimitiveSet(primitiveSetName, run.Cells...)
	if err != nil {
		return nil, err
	}
	out := make([]Individual, 0, len(record.Members))
	for i, member := range record.Members {
		chromosome, err := chromosomeFromRecord(pset, run.HeadLength, member)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		ind, err := decodeIndividual(i+1, chromosome)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		out = append(out, ind)
	}
	return out, nil
}

// Export copies a run's artifacts to OutDir and redraws its hall of fame
// from the store.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	run, err := c.resolveRun(ctx, req.RunRef)
	if err != nil {
		return ExportSummary{}, err
	}
	if run.OutputDir == "" {
		return ExportSummary{}, fmt.Errorf("%w: run %s has no artifacts (status %s)", ErrRunNotFound, run.ID, run.Status)
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}
	dst, err := stats.ExportRunArtifacts(filepath.Dir(run.OutputDir), run.ID, outDir)
	if err != nil {
		return ExportSummary{}, err
	}
	members, err := c.HallOfFame(ctx, RunRef{RunID: run.ID})
	if err != nil {
		return ExportSummary{}, err
	}
	for _, member := range members {
		base := filepath.Join(dst, "best", "indv_"+strconv.Itoa(member.Rank-1))
		if err := c.exporter.Save(member.Graph, base); err != nil {
			return ExportSummary{}, err
		}
		if err := c.exporter.Draw(member.Graph, base); err != nil {
			return ExportSummary{}, err
		}
	}
	return ExportSummary{RunID: run.ID, Directory: filepath.Clean(dst), Graphs: len(members)}, nil
}

// Decode turns a chromosome written as symbol names into its cell graph.
// Cells defaults to the standard cell set. Cells and gene fields may use op
// names or their single-letter codes.
func (c *Client) Decode(_ context.Context, req DecodeRequest) (graph.Graph, error) {
	names := req.Cells
	if len(names) == 0 {
		names = cells.DefaultNames()
	}
	resolved, err := cells.Resolve(names)
	if err != nil {
		return graph.Graph{}, err
	}
	pset, err := cellgraph.StandardPrimitiveSet(primitiveSetName, resolved...)
	if err != nil {
		return graph.Graph{}, err
	}
	head := req.HeadLength
	if head <= 0 && len(req.Genes) > 0 {
		if head, err = headLengthFor(pset, len(req.Genes[0])); err != nil {
			return graph.Graph{}, err
		}
	}
	chromosome, err := genotype.ParseChromosome(pset, head, canonicalGenes(pset, req.Genes))
	if err != nil {
		return graph.Graph{}, err
	}
	return cellgraph.Decode(chromosome)
}

// canonicalGenes rewrites cell codes such as "A" to the op names the
// primitive set registers. Program symbols and unknown fields pass through.
func canonicalGenes(pset *symbol.PrimitiveSet, genes [][]string) [][]string {
	out := make([][]string, len(genes))
	for i, gene := range genes {
		out[i] = make([]string, len(gene))
		for j, name := range gene {
			out[i][j] = name
			if _, ok := pset.Lookup(name); ok {
				continue
			}
			if op, ok := cells.Lookup(name); ok {
				out[i][j] = op.Name
			}
		}
	}
	return out
}

// headLengthFor inverts len = h + h*(n-1) + 1 for the set's max arity n.
func headLengthFor(pset *symbol.PrimitiveSet, geneLen int) (int, error) {
	n, err := pset.MaxArity()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return geneLen - 1, nil
	}
	return (geneLen - 1) / n, nil
}

func (c *Client) resolveRun(ctx context.Context, ref RunRef) (model.RunRecord, error) {
	if ref.RunID != "" && ref.Latest {
		return model.RunRecord{}, ErrAmbiguousRunID
	}
	if ref.RunID == "" && !ref.Latest {
		return model.RunRecord{}, ErrMissingRunID
	}
	if ref.Latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return model.RunRecord{}, err
		}
		if len(runs) == 0 {
			return model.RunRecord{}, ErrNoRuns
		}
		return runs[len(runs)-1], nil
	}
	run, ok, err := c.store.GetRun(ctx, ref.RunID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, ref.RunID)
	}
	return run, nil
}

func decodeIndividual(rank int, c genotype.Chromosome) (Individual, error) {
	g, err := cellgraph.Decode(c)
	if err != nil {
		return Individual{}, err
	}
	f, scored := c.Fitness()
	return Individual{Rank: rank, Fitness: f, Scored: scored, Genes: c.Names(), Graph: g}, nil
}
