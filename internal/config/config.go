package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"gepnas/internal/cells"
	"gepnas/internal/fitness"
	"gepnas/internal/operators"
)

var (
	ErrInvalidConfig     = errors.New("invalid run config")
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

const (
	EvaluatorProxy   = "proxy"
	EvaluatorCommand = "command"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// RunConfig is everything one search run needs. INI files use one section
// per field; YAML files use the same names as nested maps.
type RunConfig struct {
	Search       SearchConfig       `yaml:"search"`
	Operators    OperatorConfig     `yaml:"operators"`
	Architecture ArchitectureConfig `yaml:"architecture"`
	Fitness      FitnessConfig      `yaml:"fitness"`
	Output       OutputConfig       `yaml:"output"`
}

type SearchConfig struct {
	HeadLength     int      `ini:"head_length" yaml:"head_length"`
	NumGenes       int      `ini:"num_genes" yaml:"num_genes"`
	Generations    int      `ini:"num_gen" yaml:"num_gen"`
	PopulationSize int      `ini:"pop_size" yaml:"pop_size"`
	Elites         int      `ini:"elites" yaml:"elites"`
	HallOfFame     int      `ini:"hof" yaml:"hof"`
	Seed           int64    `ini:"seed" yaml:"seed"`
	Workers        int      `ini:"workers" yaml:"workers"`
	Selector       string   `ini:"selector" yaml:"selector"`
	TournamentSize int      `ini:"tournament_size" yaml:"tournament_size"`
	Postprocessor  string   `ini:"postprocessor" yaml:"postprocessor"`
	Cells          []string `ini:"cells" delim:" " yaml:"cells"`
}

// OperatorConfig holds one probability per operator. Zero disables it.
type OperatorConfig struct {
	CrossGene        float64 `ini:"cx_gene" yaml:"cx_gene"`
	CrossTwoPoint    float64 `ini:"cx_2p" yaml:"cx_2p"`
	CrossOnePoint    float64 `ini:"cx_1p" yaml:"cx_1p"`
	MutateUniform    float64 `ini:"mut_uniform" yaml:"mut_uniform"`
	InvertProgram    float64 `ini:"mut_invert_program" yaml:"mut_invert_program"`
	InvertCell       float64 `ini:"mut_invert_cell" yaml:"mut_invert_cell"`
	TransposeProgram float64 `ini:"mut_transpose_program" yaml:"mut_transpose_program"`
	TransposeCell    float64 `ini:"mut_transpose_cell" yaml:"mut_transpose_cell"`
}

type ArchitectureConfig struct {
	Channels   int     `ini:"channels" yaml:"channels"`
	WidthCoeff float64 `ini:"width_coeff" yaml:"width_coeff"`
	DepthCoeff float64 `ini:"depth_coeff" yaml:"depth_coeff"`
	RepeatList []int   `ini:"repeat_list" delim:" " yaml:"repeat_list"`
	Classes    int     `ini:"classes" yaml:"classes"`
}

type FitnessConfig struct {
	Evaluator string        `ini:"evaluator" yaml:"evaluator"`
	Budget    int           `ini:"param_budget" yaml:"param_budget"`
	Command   string        `ini:"command" yaml:"command"`
	Args      []string      `ini:"args" delim:" " yaml:"args"`
	Timeout   time.Duration `ini:"timeout" yaml:"timeout"`
	Memoize   bool          `ini:"memoize" yaml:"memoize"`
}

type OutputConfig struct {
	Path        string `ini:"path" yaml:"path"`
	Store       string `ini:"store" yaml:"store"`
	SQLitePath  string `ini:"sqlite_path" yaml:"sqlite_path"`
	MetricsAddr string `ini:"metrics_addr" yaml:"metrics_addr"`
}

// Defaults is a small search over the standard cell set: 20 individuals of two
// genes for 20 generations.
func Defaults() RunConfig {
	return RunConfig{
		Search: SearchConfig{
			HeadLength:     3,
			NumGenes:       2,
			Generations:    20,
			PopulationSize: 20,
			Elites:         1,
			HallOfFame:     2,
			Seed:           200,
			Workers:        4,
			Selector:       "roulette",
			TournamentSize: 3,
			Postprocessor:  "none",
			Cells:          cells.DefaultNames(),
		},
		Operators: OperatorConfig{
			CrossGene:        0.1,
			CrossTwoPoint:    0.6,
			MutateUniform:    0.044,
			InvertProgram:    0.1,
			TransposeProgram: 0.1,
			TransposeCell:    0.1,
		},
		Architecture: ArchitectureConfig{
			Channels:   16,
			WidthCoeff: 1,
			DepthCoeff: 1,
			RepeatList: []int{1, 1, 1},
			Classes:    10,
		},
		Fitness: FitnessConfig{
			Evaluator: EvaluatorProxy,
			Budget:    250000,
			Memoize:   true,
		},
		Output: OutputConfig{
			Path:       "comp_graphs/experiment_4",
			Store:      StoreMemory,
			SQLitePath: "gepnas.db",
		},
	}
}

// Load reads a config file on top of Defaults. The format follows the
// extension: .ini or .cfg for INI, .yaml or .yml for YAML.
func Load(path string) (RunConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		return LoadINI(path)
	case ".yaml", ".yml":
		return LoadYAML(path)
	default:
		return RunConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func LoadINI(path string) (RunConfig, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("load config file %s: %w", path, err)
	}

	cfg := Defaults()
	for _, sec := range cfg.sections() {
		if !file.HasSection(sec.name) {
			continue
		}
		if err := file.Section(sec.name).MapTo(sec.target); err != nil {
			return RunConfig{}, fmt.Errorf("map [%s] section: %w", sec.name, err)
		}
	}
	cfg.clean()
	return cfg, nil
}

func LoadYAML(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("yaml unmarshal %s: %w", path, err)
	}
	cfg.clean()
	return cfg, nil
}

// Save writes cfg in the format implied by the extension.
func Save(cfg RunConfig, path string) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		file := ini.Empty()
		for _, sec := range cfg.sections() {
			if err := file.Section(sec.name).ReflectFrom(sec.target); err != nil {
				return fmt.Errorf("reflect [%s] section: %w", sec.name, err)
			}
		}
		var b strings.Builder
		if _, err := file.WriteTo(&b); err != nil {
			return fmt.Errorf("encode ini: %w", err)
		}
		data = []byte(b.String())
	case ".yaml", ".yml":
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("yaml marshal: %w", err)
		}
		data = out
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

type section struct {
	name   string
	target any
}

func (c *RunConfig) sections() []section {
	return []section{
		{name: "search", target: &c.Search},
		{name: "operators", target: &c.Operators},
		{name: "architecture", target: &c.Architecture},
		{name: "fitness", target: &c.Fitness},
		{name: "output", target: &c.Output},
	}
}

func (c *RunConfig) clean() {
	for i, name := range c.Search.Cells {
		c.Search.Cells[i] = strings.TrimSpace(name)
	}
	c.Search.Selector = strings.ToLower(strings.TrimSpace(c.Search.Selector))
	c.Fitness.Evaluator = strings.ToLower(strings.TrimSpace(c.Fitness.Evaluator))
	c.Output.Store = strings.ToLower(strings.TrimSpace(c.Output.Store))
}

func (c RunConfig) Validate() error {
	s := c.Search
	switch {
	case s.HeadLength < 1:
		return fmt.Errorf("%w: head_length must be >= 1", ErrInvalidConfig)
	case s.NumGenes < 1:
		return fmt.Errorf("%w: num_genes must be >= 1", ErrInvalidConfig)
	case s.Generations < 0:
		return fmt.Errorf("%w: num_gen must be >= 0", ErrInvalidConfig)
	case s.PopulationSize < 1:
		return fmt.Errorf("%w: pop_size must be >= 1", ErrInvalidConfig)
	case s.Elites < 0 || s.Elites > s.PopulationSize:
		return fmt.Errorf("%w: elites must be in [0, pop_size]", ErrInvalidConfig)
	case s.HallOfFame < 0:
		return fmt.Errorf("%w: hof must be >= 0", ErrInvalidConfig)
	case s.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	case len(s.Cells) == 0:
		return fmt.Errorf("%w: at least one cell op is required", ErrInvalidConfig)
	}
	if _, err := cells.Resolve(s.Cells); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, b := range c.Operators.Bindings() {
		if b.Probability < 0 || b.Probability > 1 {
			return fmt.Errorf("%w: %s probability %g outside [0, 1]", ErrInvalidConfig, b.Name, b.Probability)
		}
	}
	if err := c.Architecture.Architecture().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch c.Fitness.Evaluator {
	case EvaluatorProxy:
		if c.Fitness.Budget <= 0 {
			return fmt.Errorf("%w: param_budget must be > 0", ErrInvalidConfig)
		}
	case EvaluatorCommand:
		if c.Fitness.Command == "" {
			return fmt.Errorf("%w: command evaluator needs a command", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown evaluator %q", ErrInvalidConfig, c.Fitness.Evaluator)
	}
	if c.Fitness.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0", ErrInvalidConfig)
	}

	switch c.Output.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Output.Store)
	}
	return nil
}

// Bindings lists the operators with a non-zero probability. The pipeline
// runs the mutations before the crossovers whatever the order here.
func (o OperatorConfig) Bindings() []operators.Binding {
	all := []operators.Binding{
		{Name: operators.NameCrossOnePoint, Probability: o.CrossOnePoint},
		{Name: operators.NameCrossGene, Probability: o.CrossGene},
		{Name: operators.NameCrossTwoPoint, Probability: o.CrossTwoPoint},
		{Name: operators.NameMutateUniform, Probability: o.MutateUniform},
		{Name: operators.NameInvertProgram, Probability: o.InvertProgram},
		{Name: operators.NameInvertCell, Probability: o.InvertCell},
		{Name: operators.NameTransposeProgram, Probability: o.TransposeProgram},
		{Name: operators.NameTransposeCell, Probability: o.TransposeCell},
	}
	out := make([]operators.Binding, 0, len(all))
	for _, b := range all {
		if b.Probability != 0 {
			out = append(out, b)
		}
	}
	return out
}

func (a ArchitectureConfig) Architecture() fitness.Architecture {
	return fitness.Architecture{
		Channels:   a.Channels,
		WidthCoeff: a.WidthCoeff,
		DepthCoeff: a.DepthCoeff,
		RepeatList: append([]int(nil), a.RepeatList...),
		Classes:    a.Classes,
	}
}
