package ir0

import (
	"context"

	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Start brings one subsystem up. Its dependencies, named in Deps, are
// guaranteed to have already run by the time Start is called.
type Subsystem struct {
	Name  string
	Deps  []string
	Start func(ctx context.Context) error
}

type bootNode struct {
	id int64
	*Subsystem
}

func (n *bootNode) ID() int64 { return n.id }

// Sequencer orders subsystem bring-up by dependency the same way
// internal/batch orders package builds: subsystems are graph nodes,
// "depends on" is an edge, and topo.Sort turns the edge set into a
// linear start order.
type Sequencer struct {
	g    *simple.DirectedGraph
	byID map[string]*bootNode
	log  *klog.Logger
}

// NewSequencer returns an empty boot sequencer.
func NewSequencer(log *klog.Logger) *Sequencer {
	return &Sequencer{
		g:    simple.NewDirectedGraph(),
		byID: make(map[string]*bootNode),
		log:  log,
	}
}

// Add registers a subsystem. Deps must already be registered.
func (s *Sequencer) Add(sub Subsystem) error {
	if _, exists := s.byID[sub.Name]; exists {
		return xerrors.Errorf("ir0: subsystem %q registered twice", sub.Name)
	}
	n := &bootNode{id: int64(len(s.byID)), Subsystem: &sub}
	s.byID[sub.Name] = n
	s.g.AddNode(n)
	for _, dep := range sub.Deps {
		d, ok := s.byID[dep]
		if !ok {
			return xerrors.Errorf("ir0: subsystem %q depends on unregistered %q", sub.Name, dep)
		}
		s.g.SetEdge(s.g.NewEdge(d, n))
	}
	return nil
}

// Order returns the dependency-respecting start order without running
// anything, mainly for tests and -dry-run style inspection.
func (s *Sequencer) Order() ([]string, error) {
	sorted, err := topo.Sort(s.g)
	if err != nil {
		if uo, ok := err.(topo.Unorderable); ok {
			return nil, xerrors.Errorf("ir0: cyclic subsystem dependency: %v", cycleNames(uo))
		}
		return nil, err
	}
	names := make([]string, len(sorted))
	for i, n := range sorted {
		names[i] = n.(*bootNode).Name
	}
	return names, nil
}

func cycleNames(uo topo.Unorderable) []string {
	var names []string
	for _, component := range uo {
		for _, n := range component {
			names = append(names, n.(*bootNode).Name)
		}
	}
	return names
}

// Boot runs every registered subsystem's Start in dependency order,
// stopping at the first failure.
func (s *Sequencer) Boot(ctx context.Context) error {
	order, err := s.Order()
	if err != nil {
		return err
	}
	for _, name := range order {
		n := s.byID[name]
		s.log.Infof("starting %s", name)
		if err := n.Start(ctx); err != nil {
			return xerrors.Errorf("ir0: starting %s: %w", name, err)
		}
	}
	return nil
}

var _ graph.Node = (*bootNode)(nil)
