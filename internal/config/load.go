// Package config reads pipeline definition files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/sluice/pkg/schema"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Extensions lists the pipeline file extensions Load understands.
var Extensions = []string{".yaml", ".yml", ".json", ".toml"}

// Decode turns a document into the generic map schema.Parse expects,
// choosing the syntax from ext.
func Decode(ext string, data []byte) (map[string]any, error) {
	var raw map[string]any
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err = dec.Decode(&raw); err == nil {
			raw = normalizeNumbers(raw).(map[string]any)
		}
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported pipeline format %q (want one of %s)", ext, strings.Join(Extensions, ", "))
	}
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("document is empty")
	}
	return raw, nil
}

// Load reads and parses the pipeline file at path.
// Relative cache and work roots are resolved against the file's directory.
func Load(path string) (*schema.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	raw, err := Decode(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	p, err := schema.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline %s: %w", filepath.Base(path), err)
	}

	base := filepath.Dir(path)
	p.Cache.Root = Resolve(base, p.Cache.Root)
	p.Work.Root = Resolve(base, p.Work.Root)
	return p, nil
}

// Resolve joins a relative path onto base. Empty and absolute paths are
// returned unchanged.
func Resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// normalizeNumbers converts json.Number values to int64 when whole and
// float64 otherwise, matching what the YAML and TOML decoders produce.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	}
	return v
}
