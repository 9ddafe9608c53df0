package testutils

import (
	"testing"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
	"github.com/aretw0/sluice/pkg/schema"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Registry returns a registry where every given stage is registered under a
// type named like the stage itself, so a pipeline can declare `up: up`.
// The same instance is returned by every Build, letting tests inspect calls.
func Registry(t *testing.T, stages ...domain.Stage) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, s := range stages {
		require.NoError(t, reg.Register(s.Name(), func(registry.Config) (domain.Stage, error) {
			return s, nil
		}))
	}
	return reg
}

// ParsePipeline parses a YAML pipeline document and fails the test on error.
func ParsePipeline(t *testing.T, doc string) *schema.Pipeline {
	t.Helper()
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw), "invalid YAML")
	p, err := schema.Parse(raw)
	require.NoError(t, err, "invalid pipeline")
	return p
}
