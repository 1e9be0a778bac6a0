package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"gepnas/internal/graph"
)

const (
	GraphExt = ".yaml"
	DotExt   = ".dot"
)

var ErrInvalidDocument = errors.New("invalid graph document")

// Exporter writes a phenotype under a base path. The base path carries no
// extension; each format appends its own.
type Exporter interface {
	Save(g graph.Graph, base string) error
	Draw(g graph.Graph, base string) error
}

// Document is the serialized form of a phenotype.
type Document struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Depth       int    `json:"depth" yaml:"depth"`
	graph.Graph `yaml:",inline"`
}

func NewDocument(g graph.Graph) Document {
	return Document{Fingerprint: g.Fingerprint(), Depth: g.Depth(), Graph: g}
}

// FileExporter saves YAML documents and Graphviz drawings next to each other.
type FileExporter struct{}

func (FileExporter) Save(g graph.Graph, base string) error {
	data, err := yaml.Marshal(NewDocument(g))
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return writeFile(base+GraphExt, data)
}

func (FileExporter) Draw(g graph.Graph, base string) error {
	return writeFile(base+DotExt, []byte(Dot(g, filepath.Base(base))))
}

// Load reads a document written by Save and validates the graph.
func Load(path string) (graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Graph{}, fmt.Errorf("read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return graph.Graph{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := doc.Graph.Validate(); err != nil {
		return graph.Graph{}, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}
	return doc.Graph, nil
}

// JSON encodes the document form of g.
func JSON(g graph.Graph) ([]byte, error) {
	data, err := json.Marshal(NewDocument(g))
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
