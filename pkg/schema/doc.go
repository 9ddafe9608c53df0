// Package schema parses declarative pipeline definitions into a small AST.
//
// The input is a generic document (map[string]any) as produced by any YAML,
// JSON or TOML decoder; the package is agnostic to the concrete syntax. The
// parser validates shapes and field types up front and reports every problem
// it finds as a ValidationError inside one AggregateError, so traversal code
// never has to probe container types.
//
// Topology elements are one of:
//
//	Leaf{Stage}                  // "upscale"
//	Branch{Stage, Outlets}       // {sort: {keep: [...], drop: [...]}}
//	InletRef{Merger, Inlet}      // "join.alpha"
//
// Basic usage:
//
//	pipeline, err := schema.Parse(doc)
//	if err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        fmt.Println(e)
//	    }
//	}
//
// Section fields are checked with a tiny type system:
//
//	errs := schema.Validate("cache", schema.Schema{
//	    "root": schema.String(),
//	    "ext":  schema.String(),
//	}, section)
//
// Name resolution (unknown stages, duplicate positions, undeclared outlets)
// is the compiler's job, not the parser's.
package schema
