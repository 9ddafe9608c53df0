package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Config is what a constructor receives to build one stage instance.
type Config struct {
	// Name is the unique stage name from the pipeline definition.
	Name string
	// Type is the registered type name.
	Type string
	// Args holds the stage's own configuration, reserved keys removed.
	Args map[string]any
}

// Constructor builds a stage instance from its configuration.
type Constructor func(cfg Config) (domain.Stage, error)

// Registry maps stage type names to constructors. It is populated by the host
// before compilation and passed explicitly; there is no global registry.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Constructor
}

// New creates an empty registry with the built-in checkpoint type.
func New() *Registry {
	r := &Registry{
		types: make(map[string]Constructor),
	}
	r.types[CheckpointType] = newCheckpoint
	return r
}

// CheckpointType is the type name of the built-in memoization stage.
const CheckpointType = "checkpoint"

// Register adds a stage type. Registering an existing name is an error.
func (r *Registry) Register(typeName string, ctor Constructor) error {
	if typeName == "" {
		return fmt.Errorf("stage type name cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("stage type %q: constructor is nil", typeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[typeName]; exists {
		return fmt.Errorf("stage type %q already registered", typeName)
	}
	r.types[typeName] = ctor
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(typeName string, ctor Constructor) {
	if err := r.Register(typeName, ctor); err != nil {
		panic(err)
	}
}

// Has reports whether a type is registered.
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[typeName]
	return ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build looks up cfg.Type and constructs the stage.
// The constructed stage must report cfg.Name as its name.
func (r *Registry) Build(cfg Config) (domain.Stage, error) {
	r.mu.RLock()
	ctor, ok := r.types[cfg.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.Configuration(cfg.Name, "unknown stage type %q", cfg.Type)
	}

	stage, err := ctor(cfg)
	if err != nil {
		return nil, &domain.ConfigurationError{Stage: cfg.Name, Reason: fmt.Sprintf("cannot construct %q", cfg.Type), Err: err}
	}
	if stage == nil {
		return nil, domain.Configuration(cfg.Name, "constructor for %q returned no stage", cfg.Type)
	}
	if stage.Name() != cfg.Name {
		return nil, domain.Configuration(cfg.Name, "constructor for %q named the stage %q", cfg.Type, stage.Name())
	}
	return stage, nil
}

// Decode copies args into out (a pointer to a struct) using mapstructure tags.
// Values are weakly typed, so "2" decodes into an int field.
func Decode(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid stage arguments: %w", err)
	}
	return nil
}

type checkpointArgs struct {
	Name string `mapstructure:"name"`
}

func newCheckpoint(cfg Config) (domain.Stage, error) {
	var args checkpointArgs
	if err := Decode(cfg.Args, &args); err != nil {
		return nil, err
	}
	return domain.NewCheckpointStage(cfg.Name, args.Name), nil
}
