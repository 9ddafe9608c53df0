// Package stages provides the built-in stage types: a directory source, an
// identity and an external-command processor, a name-pattern sorter, a copy
// splitter, a concatenating merger and a file output terminus.
//
// Hosts add them to a registry before compiling a pipeline:
//
//	reg := registry.New()
//	if err := stages.RegisterBuiltins(reg); err != nil {
//	    return err
//	}
package stages
