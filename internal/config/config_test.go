package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gepnas/internal/operators"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Search.HeadLength != 3 || cfg.Search.NumGenes != 2 || cfg.Search.PopulationSize != 20 || cfg.Search.Seed != 200 {
		t.Fatalf("unexpected search defaults %+v", cfg.Search)
	}
}

func TestDefaultBindingsFollowRegistrationOrder(t *testing.T) {
	got := Defaults().Operators.Bindings()
	want := []string{
		operators.NameCrossGene,
		operators.NameCrossTwoPoint,
		operators.NameMutateUniform,
		operators.NameInvertProgram,
		operators.NameTransposeProgram,
		operators.NameTransposeCell,
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected bindings %+v", got)
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("binding %d = %s, want %s", i, got[i].Name, want[i])
		}
	}
	if _, err := operators.Build(got); err != nil {
		t.Fatalf("default bindings do not build: %v", err)
	}
}

func TestLoadINIOverridesDefaults(t *testing.T) {
	path := writeFile(t, "run.ini", `
[search]
head_length = 5
pop_size = 30
cells = conv1x1 sepconv3x3 G

[operators]
cx_1p = 0.2

[architecture]
repeat_list = 2 2

[fitness]
evaluator = command
command = ./train.sh
args = --epochs 3
timeout = 90s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.HeadLength != 5 || cfg.Search.PopulationSize != 30 {
		t.Fatalf("search section not applied: %+v", cfg.Search)
	}
	if cfg.Search.NumGenes != 2 || cfg.Search.Generations != 20 {
		t.Fatalf("missing keys should keep defaults: %+v", cfg.Search)
	}
	if len(cfg.Search.Cells) != 3 || cfg.Search.Cells[2] != "G" {
		t.Fatalf("unexpected cells %v", cfg.Search.Cells)
	}
	if cfg.Operators.CrossOnePoint != 0.2 || cfg.Operators.CrossTwoPoint != 0.6 {
		t.Fatalf("unexpected operators %+v", cfg.Operators)
	}
	if len(cfg.Architecture.RepeatList) != 2 || cfg.Architecture.RepeatList[1] != 2 {
		t.Fatalf("unexpected repeat list %v", cfg.Architecture.RepeatList)
	}
	if cfg.Fitness.Evaluator != EvaluatorCommand || cfg.Fitness.Timeout != 90*time.Second {
		t.Fatalf("unexpected fitness %+v", cfg.Fitness)
	}
	if len(cfg.Fitness.Args) != 2 || cfg.Fitness.Args[0] != "--epochs" {
		t.Fatalf("unexpected args %v", cfg.Fitness.Args)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "run.yaml", `
search:
  num_gen: 5
  selector: Tournament
  cells: [conv3x3, dilconv5x5]
fitness:
  param_budget: 1000
  timeout: 2m
output:
  store: sqlite
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.Generations != 5 || cfg.Search.Selector != "tournament" || cfg.Search.HeadLength != 3 {
		t.Fatalf("unexpected search %+v", cfg.Search)
	}
	if cfg.Fitness.Budget != 1000 || cfg.Fitness.Timeout != 2*time.Minute || !cfg.Fitness.Memoize {
		t.Fatalf("unexpected fitness %+v", cfg.Fitness)
	}
	if cfg.Output.Store != StoreSQLite {
		t.Fatalf("unexpected output %+v", cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"run.ini", "run.yaml"} {
		cfg := Defaults()
		cfg.Search.HeadLength = 7
		cfg.Search.Cells = []string{"conv1x1", "maxpool3x3"}
		cfg.Operators.InvertCell = 0.05
		path := filepath.Join(t.TempDir(), name)
		if err := Save(cfg, path); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if loaded.Search.HeadLength != 7 || len(loaded.Search.Cells) != 2 || loaded.Search.Cells[1] != "maxpool3x3" {
			t.Fatalf("%s: search lost: %+v", name, loaded.Search)
		}
		if loaded.Operators != cfg.Operators {
			t.Fatalf("%s: operators lost: %+v", name, loaded.Operators)
		}
		if loaded.Fitness.Budget != cfg.Fitness.Budget || loaded.Output.Path != cfg.Output.Path {
			t.Fatalf("%s: fitness or output lost", name)
		}
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	if _, err := Load("run.toml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if err := Save(Defaults(), filepath.Join(t.TempDir(), "run.json")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*RunConfig){
		"head":      func(c *RunConfig) { c.Search.HeadLength = 0 },
		"genes":     func(c *RunConfig) { c.Search.NumGenes = 0 },
		"pop":       func(c *RunConfig) { c.Search.PopulationSize = 0 },
		"elites":    func(c *RunConfig) { c.Search.Elites = 21 },
		"cells":     func(c *RunConfig) { c.Search.Cells = nil },
		"cell":      func(c *RunConfig) { c.Search.Cells = []string{"conv9x9"} },
		"pb":        func(c *RunConfig) { c.Operators.MutateUniform = 1.5 },
		"channels":  func(c *RunConfig) { c.Architecture.Channels = 0 },
		"evaluator": func(c *RunConfig) { c.Fitness.Evaluator = "oracle" },
		"budget":    func(c *RunConfig) { c.Fitness.Budget = 0 },
		"command":   func(c *RunConfig) { c.Fitness.Evaluator = EvaluatorCommand },
		"store":     func(c *RunConfig) { c.Output.Store = "redis" },
	}
	for name, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}
