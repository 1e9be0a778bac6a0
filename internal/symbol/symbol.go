package symbol

import (
	"errors"
	"fmt"
	"sort"

	"gepnas/internal/graph"
)

var (
	ErrDuplicateSymbol  = errors.New("symbol already registered")
	ErrInvalidArity     = errors.New("invalid symbol arity")
	ErrNoProgramSymbols = errors.New("no program symbols registered")
	ErrNoCellSymbols    = errors.New("no cell symbols registered")
	ErrMissingCompose   = errors.New("program symbol requires a composition rule")
	ErrUnknownSymbol    = errors.New("unknown symbol")
)

type Role int

const (
	RoleProgram Role = iota
	RoleCell
)

func (r Role) String() string {
	switch r {
	case RoleProgram:
		return "program"
	case RoleCell:
		return "cell"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ID is the stable index of a symbol inside its PrimitiveSet. Genes store IDs,
// never names.
type ID int

// ComposeFunc lowers a program symbol. It receives the already lowered
// subgraphs of the symbol's children, each with a single input and output, and
// must return one subgraph with a single input and output that is acyclic and
// keeps every non-input node fed. Empty children are identity subgraphs.
type ComposeFunc func(children []graph.Graph) graph.Graph

// Symbol is immutable and shared by every gene of a run.
type Symbol struct {
	id      ID
	name    string
	role    Role
	arity   int
	compose ComposeFunc
}

func (s *Symbol) ID() ID       { return s.id }
func (s *Symbol) Name() string { return s.name }
func (s *Symbol) Role() Role   { return s.role }
func (s *Symbol) Arity() int   { return s.arity }

func (s *Symbol) IsCell() bool { return s.role == RoleCell }

// Compose applies the program symbol's composition rule.
func (s *Symbol) Compose(children []graph.Graph) graph.Graph {
	if s.compose == nil {
		return graph.Empty()
	}
	return s.compose(children)
}

func (s *Symbol) String() string { return s.name }

// Builder collects symbol registrations before freezing them into a
// PrimitiveSet.
type Builder struct {
	name    string
	symbols []*Symbol
	byName  map[string]*Symbol
}

func NewBuilder(name string) *Builder {
	return &Builder{name: name, byName: make(map[string]*Symbol)}
}

// AddProgramSymbol registers a graph-construction operator with a fixed arity.
func (b *Builder) AddProgramSymbol(name string, arity int, compose ComposeFunc) error {
	if arity < 0 {
		return fmt.Errorf("%w: %s arity=%d", ErrInvalidArity, name, arity)
	}
	if compose == nil {
		return fmt.Errorf("%w: %s", ErrMissingCompose, name)
	}
	return b.add(&Symbol{name: name, role: RoleProgram, arity: arity, compose: compose})
}

// AddCellSymbol registers a terminal leaf operation (arity 0).
func (b *Builder) AddCellSymbol(name string) error {
	return b.add(&Symbol{name: name, role: RoleCell})
}

func (b *Builder) add(s *Symbol) error {
	if s.name == "" {
		return errors.New("symbol name is required")
	}
	if _, exists := b.byName[s.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, s.name)
	}
	s.id = ID(len(b.symbols))
	b.symbols = append(b.symbols, s)
	b.byName[s.name] = s
	return nil
}

// Build freezes the registrations. At least one cell symbol is required so
// that gene tails can be filled.
func (b *Builder) Build() (*PrimitiveSet, error) {
	ps := &PrimitiveSet{
		name:    b.name,
		symbols: append([]*Symbol(nil), b.symbols...),
		byName:  make(map[string]*Symbol, len(b.symbols)),
	}
	for _, s := range ps.symbols {
		ps.byName[s.name] = s
		if s.role == RoleProgram {
			ps.programs = append(ps.programs, s.id)
		} else {
			ps.cells = append(ps.cells, s.id)
		}
	}
	if len(ps.cells) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCellSymbols, b.name)
	}
	ps.head = append(append([]ID(nil), ps.programs...), ps.cells...)
	return ps, nil
}

// PrimitiveSet is the closed registry of program and cell symbols for a run.
type PrimitiveSet struct {
	name     string
	symbols  []*Symbol
	byName   map[string]*Symbol
	programs []ID
	cells    []ID
	head     []ID
}

func (p *PrimitiveSet) Name() string { return p.name }

func (p *PrimitiveSet) Len() int { return len(p.symbols) }

// Symbol resolves an id. It panics on ids outside the set: genes only ever
// hold ids issued by this set.
func (p *PrimitiveSet) Symbol(id ID) *Symbol {
	return p.symbols[id]
}

func (p *PrimitiveSet) Contains(id ID) bool {
	return id >= 0 && int(id) < len(p.symbols)
}

func (p *PrimitiveSet) Lookup(name string) (*Symbol, bool) {
	s, ok := p.byName[name]
	return s, ok
}

func (p *PrimitiveSet) MustLookup(name string) ID {
	s, ok := p.byName[name]
	if !ok {
		panic(fmt.Sprintf("%v: %s", ErrUnknownSymbol, name))
	}
	return s.id
}

// Programs returns the program symbol ids in registration order.
func (p *PrimitiveSet) Programs() []ID { return append([]ID(nil), p.programs...) }

// Cells returns the cell symbol ids in registration order.
func (p *PrimitiveSet) Cells() []ID { return append([]ID(nil), p.cells...) }

// HeadSymbols is the head domain: program symbols followed by cell symbols.
func (p *PrimitiveSet) HeadSymbols() []ID { return append([]ID(nil), p.head...) }

func (p *PrimitiveSet) IsCell(id ID) bool {
	return p.Contains(id) && p.symbols[id].role == RoleCell
}

// MaxArity is the largest arity among program symbols.
func (p *PrimitiveSet) MaxArity() (int, error) {
	if len(p.programs) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoProgramSymbols, p.name)
	}
	best := 0
	for _, id := range p.programs {
		if a := p.symbols[id].arity; a > best {
			best = a
		}
	}
	return best, nil
}

// TailLength sizes a gene tail so that any head can be closed:
// head*(max_arity-1)+1.
func (p *PrimitiveSet) TailLength(head int) (int, error) {
	maxArity, err := p.MaxArity()
	if err != nil {
		return 0, err
	}
	if maxArity == 0 {
		return 1, nil
	}
	return head*(maxArity-1) + 1, nil
}

// Names lists every symbol name sorted alphabetically.
func (p *PrimitiveSet) Names() []string {
	names := make([]string, 0, len(p.symbols))
	for _, s := range p.symbols {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return names
}
