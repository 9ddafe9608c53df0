/*
Package domain contains the core models of the sluice pipeline engine.

It defines the artifacts flowing through a pipeline, the stage variants that
process them, the compiled graph and the error taxonomy. The package is kept
free of I/O beyond lazily reading item payloads.

# Key Entities

  - Item: one artifact plus its provenance (root name, derived name, parent).
  - Stage: a named node with fixed inlets/outlets, discriminated by Kind.
  - Graph / Node: the compiled pipeline, executed once per root item.
  - LifecycleHooks: observability callbacks fired by the engine.
*/
package domain
