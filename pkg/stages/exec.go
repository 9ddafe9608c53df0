package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
)

// Placeholders substituted in exec arguments.
const (
	PlaceholderIn  = "{in}"
	PlaceholderOut = "{out}"
)

// EnvPrefix prefixes every variable the exec stage injects.
const EnvPrefix = "SLUICE_"

type execArgs struct {
	Command string         `mapstructure:"command"`
	Args    []string       `mapstructure:"args"`
	Env     map[string]any `mapstructure:"env"`
	Dir     string         `mapstructure:"dir"`
	Ext     string         `mapstructure:"ext"`
	// Stdout takes the payload from standard output instead of {out}.
	Stdout bool `mapstructure:"stdout"`
	// SkipExitCodes are exit codes meaning "this item cannot be handled here".
	SkipExitCodes []int `mapstructure:"skip_exit_codes"`
}

// Exec is a processor running an external command once per item.
//
// The command reads the input from {in} and writes its result to {out}.
// The same paths are exported as SLUICE_IN and SLUICE_OUT, along with
// SLUICE_ROOT, SLUICE_NAME and one SLUICE_ARG_<KEY> per env entry.
// Values are passed through the environment rather than spliced into the
// command line.
type Exec struct {
	domain.Base
	args execArgs
}

// NewExec builds an Exec processor.
func NewExec(cfg registry.Config) (domain.Stage, error) {
	var args execArgs
	if err := registry.Decode(cfg.Args, &args); err != nil {
		return nil, err
	}
	if args.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	args.Ext = strings.TrimPrefix(args.Ext, ".")
	if args.Ext == "" {
		args.Ext = "png"
	}
	return &Exec{
		Base: domain.NewBase(cfg.Name, domain.KindProcessor),
		args: args,
	}, nil
}

// Command returns the configured executable.
func (s *Exec) Command() string { return s.args.Command }

func (s *Exec) ResolvePaths(base string) { s.args.Dir = resolve(base, s.args.Dir) }

func (s *Exec) Process(ctx context.Context, item *domain.Item) ([]byte, error) {
	bin, err := exec.LookPath(s.args.Command)
	if err != nil {
		return nil, domain.Capability(s.Name(), fmt.Sprintf("command %q is not available", s.args.Command), err)
	}

	tmp, err := os.MkdirTemp("", "sluice-exec-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	in := item.Content().Path()
	if in == "" {
		data, err := item.Content().Bytes()
		if err != nil {
			return nil, err
		}
		in = filepath.Join(tmp, "in."+s.args.Ext)
		if err := os.WriteFile(in, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to stage input: %w", err)
		}
	}
	out := filepath.Join(tmp, "out."+s.args.Ext)

	argv := make([]string, len(s.args.Args))
	for i, a := range s.args.Args {
		a = strings.ReplaceAll(a, PlaceholderIn, in)
		argv[i] = strings.ReplaceAll(a, PlaceholderOut, out)
	}

	cmd := exec.CommandContext(ctx, bin, argv...)
	cmd.Dir = s.args.Dir
	cmd.Env = append(cmd.Environ(), s.environ(item, in, out)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && slices.Contains(s.args.SkipExitCodes, exitErr.ExitCode()) {
			return nil, domain.Capability(s.Name(), fmt.Sprintf("command exited with %d", exitErr.ExitCode()), nil)
		}
		return nil, fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	if s.args.Stdout {
		return stdout.Bytes(), nil
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("command produced no output at {out}: %w", err)
	}
	return data, nil
}

func (s *Exec) environ(item *domain.Item, in, out string) []string {
	env := []string{
		EnvPrefix + "IN=" + in,
		EnvPrefix + "OUT=" + out,
		EnvPrefix + "ROOT=" + item.Root(),
		EnvPrefix + "NAME=" + item.Name(),
	}
	for k, v := range s.args.Env {
		env = append(env, fmt.Sprintf("%sARG_%s=%s", EnvPrefix, strings.ToUpper(k), envValue(v)))
	}
	return env
}

// envValue renders primitives as-is and anything structured as JSON.
func envValue(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
