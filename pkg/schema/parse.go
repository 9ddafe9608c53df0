package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Reserved keys inside a stage's configuration map.
const (
	KeySuffix = "suffix"
	KeyTrim   = "trim"
)

var (
	namingSchema = Schema{"trim": Slice(String())}
	cacheSchema  = Schema{"root": String(), "ext": String()}
	workSchema   = Schema{"root": String()}

	topLevelKeys = map[string]bool{
		"stages": true, "pipeline": true, "naming": true, "cache": true, "work": true,
	}
)

// Parse validates a decoded pipeline document (as produced by a YAML, JSON or
// TOML decoder) and builds the Pipeline AST.
//
// The document shape is:
//
//	stages:
//	  <name>: {<type>: {<config>...}}   # or <name>: <type>
//	pipeline:
//	  - <stage>
//	  - <stage>: {<outlet>: [<element>...]}
//	  - <merger>.<inlet>
//	naming: {trim: [...]}
//	cache:  {root: ..., ext: ...}
//	work:   {root: ...}
//
// All problems found are returned together as an *AggregateError.
func Parse(raw map[string]any) (*Pipeline, error) {
	p := &parser{}
	pipeline := &Pipeline{Stages: make(map[string]StageDef)}

	keys := sortedKeys(raw)
	for _, key := range keys {
		if !topLevelKeys[key] {
			p.fail(key, "unknown section", nil)
		}
	}

	if stages, ok := p.mapping("stages", raw["stages"], true); ok {
		for _, name := range sortedKeys(stages) {
			if def, ok := p.stageDef(name, stages[name]); ok {
				pipeline.Stages[name] = def
			}
		}
	}

	switch list := raw["pipeline"].(type) {
	case nil:
		p.fail("pipeline", "required", nil)
	case []any:
		if len(list) == 0 {
			p.fail("pipeline", "must not be empty", nil)
		}
		pipeline.Topology = p.chain("pipeline", list)
	default:
		p.fail("pipeline", "expected a list", list)
	}

	if naming, ok := p.mapping("naming", raw["naming"], false); ok {
		p.errs = append(p.errs, Validate("naming", namingSchema, naming)...)
		pipeline.Naming.Trim = stringSlice(naming["trim"])
	}
	if cache, ok := p.mapping("cache", raw["cache"], false); ok {
		p.errs = append(p.errs, Validate("cache", cacheSchema, cache)...)
		pipeline.Cache.Root, _ = cache["root"].(string)
		pipeline.Cache.Ext, _ = cache["ext"].(string)
		pipeline.Cache.Ext = strings.TrimPrefix(pipeline.Cache.Ext, ".")
	}
	if work, ok := p.mapping("work", raw["work"], false); ok {
		p.errs = append(p.errs, Validate("work", workSchema, work)...)
		pipeline.Work.Root, _ = work["root"].(string)
	}

	if len(p.errs) > 0 {
		return nil, &AggregateError{Errors: p.errs}
	}
	return pipeline, nil
}

type parser struct {
	errs []error
}

func (p *parser) fail(path, reason string, value any) {
	p.errs = append(p.errs, &ValidationError{Path: path, Reason: reason, Value: value})
}

func (p *parser) mapping(key string, value any, required bool) (map[string]any, bool) {
	switch m := value.(type) {
	case nil:
		if required {
			p.fail(key, "required", nil)
		}
		return nil, false
	case map[string]any:
		return m, true
	default:
		p.fail(key, "expected a mapping", value)
		return nil, false
	}
}

func (p *parser) stageDef(name string, value any) (StageDef, bool) {
	key := "stages." + name
	if !validStageName(name) {
		p.fail(key, fmt.Sprintf("invalid stage name (must be non-empty and not contain %q)", InletSeparator), nil)
		return StageDef{}, false
	}

	def := StageDef{Name: name, Args: map[string]any{}}
	switch v := value.(type) {
	case string:
		def.Type = v
	case map[string]any:
		if len(v) != 1 {
			p.fail(key, "expected exactly one stage type", v)
			return StageDef{}, false
		}
		for typeName, cfg := range v {
			def.Type = typeName
			switch c := cfg.(type) {
			case nil:
			case map[string]any:
				for k, val := range c {
					def.Args[k] = val
				}
			default:
				p.fail(key+"."+typeName, "expected a configuration mapping", cfg)
				return StageDef{}, false
			}
		}
	default:
		p.fail(key, "expected a stage type or {type: config} mapping", value)
		return StageDef{}, false
	}

	if def.Type == "" {
		p.fail(key, "stage type is empty", nil)
		return StageDef{}, false
	}

	reserved := Schema{KeySuffix: String(), KeyTrim: Slice(String())}
	present := map[string]any{}
	for k := range reserved {
		if val, ok := def.Args[k]; ok {
			present[k] = val
			delete(def.Args, k)
		}
	}
	if errs := Validate(key, reserved, present); len(errs) > 0 {
		p.errs = append(p.errs, errs...)
		return StageDef{}, false
	}
	def.Suffix, _ = present[KeySuffix].(string)
	def.Trim = stringSlice(present[KeyTrim])
	return def, true
}

func (p *parser) chain(key string, list []any) []Node {
	nodes := make([]Node, 0, len(list))
	for i, elem := range list {
		if n, ok := p.element(fmt.Sprintf("%s[%d]", key, i), elem); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (p *parser) element(key string, elem any) (Node, bool) {
	switch v := elem.(type) {
	case string:
		if merger, inlet, isRef := strings.Cut(v, InletSeparator); isRef {
			if !validStageName(merger) || inlet == "" || strings.Contains(inlet, InletSeparator) {
				p.fail(key, "malformed inlet reference (want merger.inlet)", v)
				return nil, false
			}
			return InletRef{Merger: merger, Inlet: inlet}, true
		}
		if !validStageName(v) {
			p.fail(key, "invalid stage reference", v)
			return nil, false
		}
		return Leaf{Stage: v}, true

	case map[string]any:
		if len(v) != 1 {
			p.fail(key, "a branch must have exactly one stage key", v)
			return nil, false
		}
		var name string
		var outlets any
		for k, o := range v {
			name, outlets = k, o
		}
		if !validStageName(name) {
			p.fail(key, "invalid stage reference", name)
			return nil, false
		}
		branchKey := key + "." + name
		om, ok := outlets.(map[string]any)
		if !ok {
			p.fail(branchKey, "expected a mapping of outlet to sub-topology", outlets)
			return nil, false
		}
		branch := Branch{Stage: name}
		for _, outlet := range sortedKeys(om) {
			outletKey := branchKey + "." + outlet
			var chain []Node
			switch sub := om[outlet].(type) {
			case nil:
			case string:
				if n, ok := p.element(outletKey+"[0]", sub); ok {
					chain = []Node{n}
				}
			case []any:
				chain = p.chain(outletKey, sub)
			default:
				p.fail(outletKey, "expected a list of stages", sub)
				continue
			}
			branch.Outlets = append(branch.Outlets, Outlet{Name: outlet, Chain: chain})
		}
		return branch, true

	default:
		p.fail(key, "expected a stage name or a branch mapping", elem)
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
