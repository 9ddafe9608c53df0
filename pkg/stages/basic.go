package stages

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
)

// Identity is a processor returning its input unchanged.
type Identity struct {
	domain.Base
}

// NewIdentity builds an Identity processor. It takes no args.
func NewIdentity(cfg registry.Config) (domain.Stage, error) {
	if err := registry.Decode(cfg.Args, &struct{}{}); err != nil {
		return nil, err
	}
	return &Identity{Base: domain.NewBase(cfg.Name, domain.KindProcessor)}, nil
}

func (s *Identity) Process(ctx context.Context, item *domain.Item) ([]byte, error) {
	return item.Content().Bytes()
}

type copyArgs struct {
	Outlets []string `mapstructure:"outlets"`
}

// Copy is a splitter duplicating its input onto every outlet.
type Copy struct {
	domain.Base
}

// NewCopy builds a Copy splitter. Args: outlets (at least one).
func NewCopy(cfg registry.Config) (domain.Stage, error) {
	var args copyArgs
	if err := registry.Decode(cfg.Args, &args); err != nil {
		return nil, err
	}
	if err := uniquePorts("outlets", args.Outlets); err != nil {
		return nil, err
	}
	return &Copy{Base: domain.NewBase(cfg.Name, domain.KindSplitter, args.Outlets...)}, nil
}

func (s *Copy) Split(ctx context.Context, item *domain.Item) (map[string][]byte, error) {
	data, err := item.Content().Bytes()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(s.Outlets()))
	for _, o := range s.Outlets() {
		out[o] = data
	}
	return out, nil
}

type concatArgs struct {
	Inlets    []string `mapstructure:"inlets"`
	Separator string   `mapstructure:"separator"`
}

// Concat is a merger joining inlet payloads in declared inlet order.
type Concat struct {
	domain.Base
	separator []byte
}

// NewConcat builds a Concat merger. Args: inlets (at least one), separator.
func NewConcat(cfg registry.Config) (domain.Stage, error) {
	var args concatArgs
	if err := registry.Decode(cfg.Args, &args); err != nil {
		return nil, err
	}
	if err := uniquePorts("inlets", args.Inlets); err != nil {
		return nil, err
	}
	return &Concat{
		Base:      domain.NewBase(cfg.Name, domain.KindMerger, args.Inlets...),
		separator: []byte(args.Separator),
	}, nil
}

func (s *Concat) Merge(ctx context.Context, inputs map[string]*domain.Item) ([]byte, error) {
	parts := make([][]byte, 0, len(inputs))
	for _, inlet := range s.Inlets() {
		item, ok := inputs[inlet]
		if !ok {
			return nil, fmt.Errorf("missing input for inlet %q", inlet)
		}
		data, err := item.Content().Bytes()
		if err != nil {
			return nil, err
		}
		parts = append(parts, data)
	}
	return bytes.Join(parts, s.separator), nil
}

func uniquePorts(field string, ports []string) error {
	if len(ports) == 0 {
		return fmt.Errorf("%s: at least one is required", field)
	}
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if p == "" {
			return fmt.Errorf("%s: names cannot be empty", field)
		}
		if seen[p] {
			return fmt.Errorf("%s: %q is declared twice", field, p)
		}
		seen[p] = true
	}
	return nil
}
