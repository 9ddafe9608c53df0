package compiler

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
	"github.com/aretw0/sluice/pkg/schema"
)

// DefaultExt is the artifact extension used when the pipeline sets none.
const DefaultExt = "png"

// Compiler turns a parsed pipeline definition into an executable graph.
type Compiler struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for compile warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// New creates a compiler resolving stage types through reg.
func New(reg *registry.Registry, opts ...Option) *Compiler {
	c := &Compiler{registry: reg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Compile validates the topology of p and builds the graph.
// It stops at the first problem, which is a *domain.ConfigurationError or a
// *domain.RoutingError.
func (c *Compiler) Compile(p *schema.Pipeline) (*domain.Graph, error) {
	if len(p.Topology) == 0 {
		return nil, domain.Configuration("", "pipeline topology is empty")
	}

	b := &builder{
		compiler:    c,
		pipeline:    p,
		instances:   make(map[string]domain.Stage),
		positioned:  make(map[string]bool),
		mergers:     make(map[string]*mergerState),
		checkpoints: make(map[string]string),
		keys:        make(map[string]string),
	}

	head, err := b.source(p.Topology[0])
	if err != nil {
		return nil, err
	}
	if _, err := b.chain(head, p.Topology[1:]); err != nil {
		return nil, err
	}
	if err := b.danglingMergers(); err != nil {
		return nil, err
	}
	b.warnUnused()

	ext := p.Cache.Ext
	if ext == "" {
		ext = DefaultExt
	}
	return &domain.Graph{
		Source:      head.Stage.(domain.Source),
		Head:        head,
		Ext:         ext,
		Checkpoints: b.order,
	}, nil
}

type mergerState struct {
	node *domain.Node
	// feeders holds, per inlet, the branch path of every reference to it.
	feeders    map[string][][]branchStep
	positioned bool
}

// branchStep is one fan-out taken on the way to a topology element.
type branchStep struct {
	node   *domain.Node
	outlet string
}

// fork returns the fan-out node at which two branch paths part, or nil when
// they part at different nodes.
func fork(a, b []branchStep) *domain.Node {
	for i := range min(len(a), len(b)) {
		if a[i] != b[i] {
			if a[i].node == b[i].node {
				return a[i].node
			}
			return nil
		}
	}
	return nil
}

type builder struct {
	compiler *Compiler
	pipeline *schema.Pipeline

	instances  map[string]domain.Stage
	positioned map[string]bool
	mergers    map[string]*mergerState

	// checkpoints maps checkpoint names to the stage owning them, keys maps
	// working-artifact keys to the stage writing them.
	checkpoints map[string]string
	keys        map[string]string
	order       []string

	// path is the fan-out taken to reach the element being compiled.
	path []branchStep
}

func (b *builder) source(elem schema.Node) (*domain.Node, error) {
	leaf, ok := elem.(schema.Leaf)
	if !ok {
		return nil, domain.Configuration(elem.StageName(), "pipeline must start with a source stage")
	}
	stage, err := b.instance(leaf.Stage)
	if err != nil {
		return nil, err
	}
	if stage.Kind() != domain.KindSource {
		return nil, domain.Configuration(leaf.Stage, "pipeline must start with a source stage, got a %s", stage.Kind())
	}
	b.positioned[leaf.Stage] = true
	return &domain.Node{Stage: stage, Key: leaf.Stage}, nil
}

// chain compiles elems as the continuation of prev (nil for the head of a
// branch) and returns the chain's first node.
func (b *builder) chain(prev *domain.Node, elems []schema.Node) (*domain.Node, error) {
	var head *domain.Node
	var closedBy string

	link := func(n *domain.Node) {
		if head == nil {
			head = n
		}
		if prev != nil {
			prev.Next = n
		}
	}

	for _, elem := range elems {
		if closedBy != "" {
			return nil, domain.Configuration(elem.StageName(), "nothing may follow %s", closedBy)
		}
		fanned := prev != nil && prev.Stage.Kind().Fans()

		if ref, ok := elem.(schema.InletRef); ok {
			if fanned {
				return nil, domain.Configuration(ref.String(), "only a merger may follow sorter or splitter %q", prev.Name())
			}
			n, err := b.inletRef(ref)
			if err != nil {
				return nil, err
			}
			link(n)
			closedBy = "inlet reference " + ref.String()
			continue
		}

		name := elem.StageName()
		stage, err := b.instance(name)
		if err != nil {
			return nil, err
		}
		if b.positioned[name] {
			return nil, domain.Configuration(name, "stage appears more than once in the pipeline")
		}
		b.positioned[name] = true

		kind := stage.Kind()
		if _, isBranch := elem.(schema.Branch); isBranch && !kind.Fans() {
			return nil, domain.Configuration(name, "a %s has no outlets to branch on", kind)
		}

		switch kind {
		case domain.KindSource:
			return nil, domain.Configuration(name, "a source may only be the first pipeline element")

		case domain.KindMerger:
			if !fanned {
				return nil, domain.Configuration(name, "a merger must directly follow the sorter or splitter feeding it")
			}
			n, err := b.positionMerger(name, stage)
			if err != nil {
				return nil, err
			}
			prev = n
			continue

		default:
			if fanned {
				return nil, domain.Configuration(name, "only a merger may follow sorter or splitter %q", prev.Name())
			}
		}

		n, err := b.node(name, stage)
		if err != nil {
			return nil, err
		}
		link(n)

		if kind.Fans() {
			if err := b.branches(n, elem); err != nil {
				return nil, err
			}
		}
		if kind == domain.KindTerminus {
			closedBy = "terminus " + name
		}
		prev = n
	}
	return head, nil
}

func (b *builder) branches(n *domain.Node, elem schema.Node) error {
	outlets := n.Stage.Outlets()
	n.Branches = make(map[string]*domain.Node, len(outlets))
	for _, outlet := range outlets {
		n.Branches[outlet] = nil
	}

	branch, ok := elem.(schema.Branch)
	if !ok {
		return nil
	}
	for _, outlet := range branch.Outlets {
		if !domain.HasPort(outlets, outlet.Name) {
			return &domain.RoutingError{Stage: n.Name(), Port: outlet.Name, Declared: outlets}
		}
		b.path = append(b.path, branchStep{node: n, outlet: outlet.Name})
		sub, err := b.chain(nil, outlet.Chain)
		b.path = b.path[:len(b.path)-1]
		if err != nil {
			return err
		}
		n.Branches[outlet.Name] = sub
	}
	return nil
}

func (b *builder) inletRef(ref schema.InletRef) (*domain.Node, error) {
	stage, err := b.instance(ref.Merger)
	if err != nil {
		return nil, err
	}
	if stage.Kind() != domain.KindMerger {
		return nil, domain.Configuration(ref.String(), "%q is a %s, not a merger", ref.Merger, stage.Kind())
	}
	if !domain.HasPort(stage.Inlets(), ref.Inlet) {
		return nil, &domain.RoutingError{Stage: ref.Merger, Port: ref.Inlet, Declared: stage.Inlets()}
	}

	m := b.merger(ref.Merger, stage)
	if m.positioned {
		return nil, domain.Configuration(ref.String(), "merger %q is positioned before this reference", ref.Merger)
	}
	here := slices.Clone(b.path)
	for _, prev := range m.feeders[ref.Inlet] {
		if at := fork(prev, here); at != nil && at.Stage.Kind() == domain.KindSplitter {
			return nil, domain.Configuration(ref.String(), "inlet %q is fed from two outlets of splitter %q", ref.Inlet, at.Name())
		}
	}
	m.feeders[ref.Inlet] = append(m.feeders[ref.Inlet], here)
	return &domain.Node{Target: m.node, Inlet: ref.Inlet}, nil
}

func (b *builder) positionMerger(name string, stage domain.Stage) (*domain.Node, error) {
	m := b.merger(name, stage)
	for _, inlet := range stage.Inlets() {
		if len(m.feeders[inlet]) == 0 {
			return nil, domain.Configuration(name, "inlet %q has no producer", inlet)
		}
	}
	if err := b.claimKey(m.node); err != nil {
		return nil, err
	}
	m.positioned = true
	return m.node, nil
}

// merger returns the state of a merger, creating its node on first use so
// that inlet references compiled before the merger's position can target it.
func (b *builder) merger(name string, stage domain.Stage) *mergerState {
	if m, ok := b.mergers[name]; ok {
		return m
	}
	def := b.pipeline.Stages[name]
	m := &mergerState{
		node: &domain.Node{
			Stage:  stage,
			Suffix: def.Suffix,
			Trim:   b.trims(def),
			Key:    artifactKey(def),
		},
		feeders: make(map[string][][]branchStep),
	}
	b.mergers[name] = m
	return m
}

func (b *builder) node(name string, stage domain.Stage) (*domain.Node, error) {
	def := b.pipeline.Stages[name]
	n := &domain.Node{
		Stage:  stage,
		Suffix: def.Suffix,
		Trim:   b.trims(def),
		Key:    artifactKey(def),
	}

	switch stage.Kind() {
	case domain.KindProcessor, domain.KindSplitter:
		if err := b.claimKey(n); err != nil {
			return nil, err
		}
	case domain.KindCheckpoint:
		cp := stage.(*domain.CheckpointStage).Checkpoint
		if owner, taken := b.checkpoints[cp]; taken {
			return nil, domain.Configuration(name, "checkpoint %q is already used by stage %q", cp, owner)
		}
		b.checkpoints[cp] = name
		b.order = append(b.order, cp)
	}
	return n, nil
}

func (b *builder) claimKey(n *domain.Node) error {
	if owner, taken := b.keys[n.Key]; taken {
		return domain.Configuration(n.Name(), "artifact key %q is already written by stage %q", n.Key, owner)
	}
	b.keys[n.Key] = n.Name()
	return nil
}

func (b *builder) instance(name string) (domain.Stage, error) {
	if stage, ok := b.instances[name]; ok {
		return stage, nil
	}
	def, ok := b.pipeline.Stages[name]
	if !ok {
		return nil, domain.Configuration(name, "stage is not defined")
	}
	stage, err := b.compiler.registry.Build(registry.Config{Name: name, Type: def.Type, Args: def.Args})
	if err != nil {
		return nil, err
	}
	if err := checkCapabilities(stage); err != nil {
		return nil, err
	}
	b.instances[name] = stage
	return stage, nil
}

func (b *builder) trims(def schema.StageDef) []string {
	trims := make([]string, 0, len(b.pipeline.Naming.Trim)+len(def.Trim))
	trims = append(trims, b.pipeline.Naming.Trim...)
	return append(trims, def.Trim...)
}

func (b *builder) danglingMergers() error {
	names := make([]string, 0, len(b.mergers))
	for name := range b.mergers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !b.mergers[name].positioned {
			return domain.Configuration(name, "merger is referenced by an inlet but never placed in the pipeline")
		}
	}
	return nil
}

func (b *builder) warnUnused() {
	names := make([]string, 0, len(b.pipeline.Stages))
	for name := range b.pipeline.Stages {
		if !b.positioned[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		b.compiler.logger.Warn("stage defined but not used", "stage", name)
	}
}

func artifactKey(def schema.StageDef) string {
	if def.Suffix != "" {
		return def.Suffix
	}
	return def.Name
}

// checkCapabilities verifies that a stage implements the interface its kind
// requires, so the engine can dispatch without further checks.
func checkCapabilities(stage domain.Stage) error {
	var ok bool
	switch stage.Kind() {
	case domain.KindSource:
		_, ok = stage.(domain.Source)
	case domain.KindProcessor:
		_, ok = stage.(domain.Processor)
	case domain.KindSorter:
		_, ok = stage.(domain.Sorter)
	case domain.KindSplitter:
		_, ok = stage.(domain.Splitter)
	case domain.KindMerger:
		_, ok = stage.(domain.Merger)
	case domain.KindTerminus:
		_, ok = stage.(domain.Terminus)
	case domain.KindCheckpoint:
		_, ok = stage.(*domain.CheckpointStage)
	}
	if !ok {
		return domain.Configuration(stage.Name(), "stage does not implement the %s interface", stage.Kind())
	}
	if stage.Kind().Fans() && len(stage.Outlets()) == 0 {
		return domain.Configuration(stage.Name(), "a %s must declare at least one outlet", stage.Kind())
	}
	if stage.Kind() == domain.KindMerger && len(stage.Inlets()) == 0 {
		return domain.Configuration(stage.Name(), "a merger must declare at least one inlet")
	}
	return nil
}
