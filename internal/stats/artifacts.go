package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/ncruces/go-strftime"

	"gepnas/internal/model"
)

const (
	runIndexFile = "run_index.json"
	stampLayout  = "%Y%m%d-%H%M%S"
)

var ErrMissingRunID = errors.New("run id is required")

// artifactFiles are copied by ExportRunArtifacts when present.
var artifactFiles = []string{
	"config.json",
	"summary.json",
	"logbook.json",
	"logbook.csv",
	"hall_of_fame.json",
	"population.json",
}

type RunConfig struct {
	RunID          string             `json:"run_id"`
	Seed           int64              `json:"seed"`
	HeadLength     int                `json:"head_length"`
	NumGenes       int                `json:"num_genes"`
	Cells          []string           `json:"cells"`
	PopulationSize int                `json:"population_size"`
	Generations    int                `json:"generations"`
	Elites         int                `json:"elites"`
	HallOfFameSize int                `json:"hall_of_fame_size"`
	Workers        int                `json:"workers"`
	Selector       string             `json:"selector"`
	Postprocessor  string             `json:"postprocessor"`
	Evaluator      string             `json:"evaluator"`
	Operators      map[string]float64 `json:"operators"`
}

type Summary struct {
	RunID            string  `json:"run_id"`
	StartedAtUTC     string  `json:"started_at_utc"`
	Duration         string  `json:"duration"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Generations      int     `json:"generations"`
	Evaluations      int     `json:"evaluations"`
	FinalBestFitness float64 `json:"final_best_fitness"`
}

type RunArtifacts struct {
	Config     RunConfig
	StartedAt  time.Time
	Duration   time.Duration
	Logbook    []model.LogbookEntry
	HallOfFame []model.ChromosomeRecord
	Population []model.ChromosomeRecord
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Dir              string  `json:"dir"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Evaluations      int     `json:"evaluations"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// RunDirName names the artifact directory of a run, for example
// 20260302-101500_3f2a9c1e.
func RunDirName(startedAt time.Time, runID string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return strftime.Format(stampLayout, startedAt.UTC()) + "_" + short
}

// FormatDuration renders d as days:hours:minutes:seconds, e.g. 1:02:03:04.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int64(d / time.Second)
	days, sec := sec/86400, sec%86400
	hrs, sec := sec/3600, sec%3600
	mins, sec := sec/60, sec%60
	return fmt.Sprintf("%d:%02d:%02d:%02d", days, hrs, mins, sec)
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", ErrMissingRunID
	}

	runDir := filepath.Join(baseDir, RunDirName(artifacts.StartedAt, artifacts.Config.RunID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	summary := summarize(artifacts)
	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "logbook.json"), nonNil(artifacts.Logbook)); err != nil {
		return "", err
	}
	if err := WriteLogbookCSV(filepath.Join(runDir, "logbook.csv"), artifacts.Logbook); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "hall_of_fame.json"), nonNil(artifacts.HallOfFame)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "population.json"), nonNil(artifacts.Population)); err != nil {
		return "", err
	}

	err := AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            artifacts.Config.RunID,
		Dir:              filepath.Base(runDir),
		PopulationSize:   artifacts.Config.PopulationSize,
		Generations:      artifacts.Config.Generations,
		Seed:             artifacts.Config.Seed,
		Evaluations:      summary.Evaluations,
		FinalBestFitness: summary.FinalBestFitness,
		CreatedAtUTC:     summary.StartedAtUTC,
	})
	if err != nil {
		return "", err
	}
	return runDir, nil
}

func summarize(a RunArtifacts) Summary {
	s := Summary{
		RunID:           a.Config.RunID,
		StartedAtUTC:    a.StartedAt.UTC().Format(time.RFC3339),
		Duration:        FormatDuration(a.Duration),
		DurationSeconds: a.Duration.Seconds(),
	}
	for i, entry := range a.Logbook {
		s.Evaluations += entry.Evaluations
		s.Generations = entry.Generation
		if i == 0 || entry.Max > s.FinalBestFitness {
			s.FinalBestFitness = entry.Max
		}
	}
	for _, member := range a.HallOfFame {
		if member.Fitness != nil && *member.Fitness > s.FinalBestFitness {
			s.FinalBestFitness = *member.Fitness
		}
	}
	return s
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return ErrMissingRunID
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LookupRunDir resolves the artifact directory of runID through the index.
func LookupRunDir(baseDir, runID string) (string, bool, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return "", false, err
	}
	for _, entry := range entries {
		if entry.RunID == runID {
			return filepath.Join(baseDir, entry.Dir), true, nil
		}
	}
	return "", false, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", ErrMissingRunID
	}
	src, ok, err := LookupRunDir(baseDir, runID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("run %s not found in %s", runID, filepath.Join(baseDir, runIndexFile))
	}

	dst := filepath.Join(outDir, filepath.Base(src))
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range artifactFiles {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(runDir string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(runDir, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadSummary(runDir string) (Summary, bool, error) {
	var s Summary
	ok, err := readJSON(filepath.Join(runDir, "summary.json"), &s)
	return s, ok, err
}

func WriteLogbookCSV(path string, entries []model.LogbookEntry) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"gen", "nevals", "avg", "std", "min", "max"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writer.Write([]string{
			strconv.Itoa(e.Generation),
			strconv.Itoa(e.Evaluations),
			strconv.FormatFloat(e.Avg, 'f', -1, 64),
			strconv.FormatFloat(e.Std, 'f', -1, 64),
			strconv.FormatFloat(e.Min, 'f', -1, 64),
			strconv.FormatFloat(e.Max, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadLogbookCSV(path string) ([]model.LogbookEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 6
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.LogbookEntry{}, nil
		}
		return nil, err
	}

	entries := make([]model.LogbookEntry, 0, 32)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		var e model.LogbookEntry
		if e.Generation, err = strconv.Atoi(record[0]); err != nil {
			return nil, err
		}
		if e.Evaluations, err = strconv.Atoi(record[1]); err != nil {
			return nil, err
		}
		floats := []*float64{&e.Avg, &e.Std, &e.Min, &e.Max}
		for i, dst := range floats {
			if *dst, err = strconv.ParseFloat(record[2+i], 64); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
