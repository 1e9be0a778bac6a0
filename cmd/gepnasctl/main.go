package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gepnas/internal/config"
	"gepnas/internal/evo"
	"gepnas/internal/export"
	"gepnas/internal/storage"
	"gepnas/pkg/gepnas"
)

const defaultDBPath = "gepnas.db"

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runSearch(ctx, args[1:])
	case "resume":
		return runResume(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "logbook":
		return runLogbook(ctx, args[1:])
	case "hof":
		return runHallOfFame(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "decode":
		return runDecode(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configPath := fs.String("config", "gepnas.ini", "config file to write (.ini or .yaml)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*configPath); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", *configPath)
	}
	cfg := config.Defaults()
	cfg.Output.Store = *storeKind
	cfg.Output.SQLitePath = *dbPath
	if err := config.Save(cfg, *configPath); err != nil {
		return err
	}

	client, err := gepnas.New(gepnas.Options{StoreKind: *storeKind, DBPath: *dbPath, Logger: newLogger("cli")})
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "initialized config=%s store=%s\n", *configPath, *storeKind)
	return nil
}

type searchFlags struct {
	configPath  string
	storeKind   string
	dbPath      string
	outputPath  string
	metricsAddr string
	pop         int
	gens        int
	seed        int64
	workers     int
	head        int
	genes       int
	cells       string
	evaluator   string
	command     string
	selector    string
	quiet       bool
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var f searchFlags
	fs.StringVar(&f.configPath, "config", "", "config file (.ini or .yaml); defaults apply when empty")
	fs.StringVar(&f.storeKind, "store", "", "store backend override: memory|sqlite")
	fs.StringVar(&f.dbPath, "db-path", "", "sqlite database path override")
	fs.StringVar(&f.outputPath, "out", "", "artifact directory override")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	fs.IntVar(&f.pop, "pop", 0, "population size override")
	fs.IntVar(&f.gens, "gens", -1, "generation count override")
	fs.Int64Var(&f.seed, "seed", 0, "seed override (0 keeps the configured seed)")
	fs.IntVar(&f.workers, "workers", 0, "evaluation worker override")
	fs.IntVar(&f.head, "head", 0, "head length override")
	fs.IntVar(&f.genes, "genes", 0, "genes per chromosome override")
	fs.StringVar(&f.cells, "cells", "", "comma separated cell ops override")
	fs.StringVar(&f.evaluator, "evaluator", "", "fitness evaluator override: proxy|command")
	fs.StringVar(&f.command, "command", "", "trainer command for the command evaluator")
	fs.StringVar(&f.selector, "selection", "", "selector override: roulette|tournament|best")
	fs.BoolVar(&f.quiet, "quiet", false, "suppress per-generation lines")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadRunConfig(f)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.Output.MetricsAddr != "" {
		shutdown, err := serveMetrics(cfg.Output.MetricsAddr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	client, err := gepnas.New(gepnas.Options{
		StoreKind:  cfg.Output.Store,
		DBPath:     cfg.Output.SQLitePath,
		Logger:     newLogger("search"),
		Registerer: reg,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Run(ctx, gepnas.RunRequest{Config: cfg, Sink: progressSink(f.quiet)})
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func loadRunConfig(f searchFlags) (config.RunConfig, error) {
	cfg := config.Defaults()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.RunConfig{}, err
		}
		cfg = loaded
	}
	if f.storeKind != "" {
		cfg.Output.Store = f.storeKind
	}
	if f.dbPath != "" {
		cfg.Output.SQLitePath = f.dbPath
	}
	if f.outputPath != "" {
		cfg.Output.Path = f.outputPath
	}
	if f.metricsAddr != "" {
		cfg.Output.MetricsAddr = f.metricsAddr
	}
	if f.pop > 0 {
		cfg.Search.PopulationSize = f.pop
		if cfg.Search.Elites > f.pop {
			cfg.Search.Elites = f.pop
		}
	}
	if f.gens >= 0 {
		cfg.Search.Generations = f.gens
	}
	if f.seed != 0 {
		cfg.Search.Seed = f.seed
	}
	if f.workers > 0 {
		cfg.Search.Workers = f.workers
	}
	if f.head > 0 {
		cfg.Search.HeadLength = f.head
	}
	if f.genes > 0 {
		cfg.Search.NumGenes = f.genes
	}
	if f.cells != "" {
		cfg.Search.Cells = splitList(f.cells)
	}
	if f.evaluator != "" {
		cfg.Fitness.Evaluator = f.evaluator
	}
	if f.command != "" {
		cfg.Fitness.Command = f.command
	}
	if f.selector != "" {
		cfg.Search.Selector = f.selector
	}
	return cfg, cfg.Validate()
}

func runResume(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to resume")
	latest := fs.Bool("latest", false, "resume the most recent run")
	gens := fs.Int("gens", 10, "additional generations")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	quiet := fs.Bool("quiet", false, "suppress per-generation lines")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(ctx, *storeKind, *dbPath, "search")
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Resume(ctx, gepnas.ResumeRequest{
		RunRef:      gepnas.RunRef{RunID: *runID, Latest: *latest},
		Generations: *gens,
		Sink:        progressSink(*quiet),
	})
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := openClient(ctx, *storeKind, *dbPath, "cli")
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.Runs(ctx, gepnas.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID       string  `json:"run_id"`
			Status      string  `json:"status"`
			StartedAt   string  `json:"started_at_utc"`
			Seed        int64   `json:"seed"`
			Generation  int     `json:"generation"`
			Generations int     `json:"generations"`
			Evaluations int     `json:"evaluations"`
			BestFitness float64 `json:"best_fitness"`
			OutputDir   string  `json:"output_dir,omitempty"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem{
				RunID:       r.ID,
				Status:      r.Status,
				StartedAt:   r.StartedAt.UTC().Format(time.RFC3339),
				Seed:        r.Seed,
				Generation:  r.Generation,
				Generations: r.Generations,
				Evaluations: r.Evaluations,
				BestFitness: r.BestFitness,
				OutputDir:   r.OutputDir,
			})
		}
		return writeJSON(items)
	}

	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s status=%s started=%s gen=%d/%d evals=%s best=%.6f\n",
			r.ID,
			r.Status,
			humanize.Time(r.StartedAt),
			r.Generation,
			r.Generations,
			humanize.Comma(int64(r.Evaluations)),
			r.BestFitness,
		)
	}
	return nil
}

func runLogbook(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logbook", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit the logbook as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(ctx, *storeKind, *dbPath, "cli")
	if err != nil {
		return err
	}
	defer client.Close()

	entries, err := client.Logbook(ctx, gepnas.RunRef{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(entries)
	}
	fmt.Fprintf(stdout, "%-5s %-7s %-10s %-10s %-10s %-10s\n", "gen", "nevals", "avg", "std", "min", "max")
	for _, e := range entries {
		fmt.Fprintf(stdout, "%-5d %-7d %-10.6f %-10.6f %-10.6f %-10.6f\n", e.Generation, e.Evaluations, e.Avg, e.Std, e.Min, e.Max)
	}
	return nil
}

func runHallOfFame(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("hof", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(ctx, *storeKind, *dbPath, "cli")
	if err != nil {
		return err
	}
	defer client.Close()

	members, err := client.HallOfFame(ctx, gepnas.RunRef{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if len(members) == 0 {
		fmt.Fprintln(stdout, "hall of fame is empty")
		return nil
	}
	for _, m := range members {
		fmt.Fprintf(stdout, "rank=%d fitness=%.6f nodes=%d depth=%d genes=%s\n",
			m.Rank, m.Fitness, m.Graph.Len(), m.Graph.Depth(), formatGenes(m.Genes))
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "export output base directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(ctx, *storeKind, *dbPath, "cli")
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Export(ctx, gepnas.ExportRequest{
		RunRef: gepnas.RunRef{RunID: *runID, Latest: *latest},
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s dir=%s graphs=%d\n", summary.RunID, summary.Directory, summary.Graphs)
	return nil
}

func runDecode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	head := fs.Int("head", 0, "head length (inferred from the gene length when 0)")
	cellList := fs.String("cells", "", "comma separated cell ops (standard set when empty)")
	jsonOut := fs.Bool("json", false, "emit the graph as JSON instead of DOT")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("decode requires at least one gene, e.g. \"seq conv1x1 conv3x3\"")
	}

	genes := make([][]string, 0, fs.NArg())
	for _, arg := range fs.Args() {
		genes = append(genes, strings.Fields(arg))
	}
	req := gepnas.DecodeRequest{Genes: genes, HeadLength: *head}
	if *cellList != "" {
		req.Cells = splitList(*cellList)
	}

	client, err := gepnas.New(gepnas.Options{StoreKind: config.StoreMemory, Logger: newLogger("cli")})
	if err != nil {
		return err
	}
	defer client.Close()

	g, err := client.Decode(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		data, err := export.JSON(g)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}
	_, err = fmt.Fprint(stdout, export.Dot(g, "cell"))
	return err
}

func openClient(ctx context.Context, storeKind, dbPath, component string) (*gepnas.Client, error) {
	client, err := gepnas.New(gepnas.Options{StoreKind: storeKind, DBPath: dbPath, Logger: newLogger(component)})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// newLogger writes text to a terminal and JSON lines everywhere else.
func newLogger(component string) *slog.Logger {
	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	}
	return slog.New(handler).With(slog.String("component", component))
}

func progressSink(quiet bool) evo.StatsSink {
	if quiet {
		return nil
	}
	return evo.StatsSinkFunc(func(_ context.Context, st evo.State) error {
		if len(st.Logbook) == 0 {
			return nil
		}
		r := st.Logbook[len(st.Logbook)-1]
		fmt.Fprintf(stdout, "gen=%d nevals=%d avg=%.6f std=%.6f min=%.6f max=%.6f\n",
			r.Generation, r.Evaluations, r.Avg, r.Std, r.Min, r.Max)
		return nil
	})
}

func printSummary(summary gepnas.RunSummary) {
	fmt.Fprintf(stdout, "run_id=%s best=%.6f evaluations=%s cache_hits=%s duration=%s\n",
		summary.RunID,
		summary.Best.Fitness,
		humanize.Comma(int64(summary.Evaluations)),
		humanize.Comma(int64(summary.CacheHits)),
		summary.Duration.Round(time.Millisecond),
	)
	fmt.Fprintf(stdout, "best genes=%s\n", formatGenes(summary.Best.Genes))
	fmt.Fprintf(stdout, "artifacts=%s\n", summary.ArtifactsDir)
}

func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func formatGenes(genes [][]string) string {
	parts := make([]string, 0, len(genes))
	for _, gene := range genes {
		parts = append(parts, "["+strings.Join(gene, " ")+"]")
	}
	return strings.Join(parts, " ")
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: gepnasctl <init|run|resume|runs|logbook|hof|export|decode> [flags]", msg)
}
