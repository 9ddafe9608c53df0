/*
Package sluice is a checkpointed item pipeline engine.

A pipeline is a declarative graph of stages. A source emits root items; each
root is driven depth-first through processors, sorters, splitters, mergers and
termini before the next root starts. Every stage writes its artifact under a
working root, and checkpoints memoize items under a cache root, so a second
run over the same inputs reuses everything and recomputes nothing. After a
successful run, cache entries that no current root observed are purged.

# Pipeline files

Pipelines are written in YAML, JSON or TOML:

	stages:
	  src:    {dir: {path: in, glob: "*.png"}}
	  up:     {exec: {command: upscale, args: ["{in}", "{out}"], suffix: up}}
	  keep:   {checkpoint: {name: upscaled}}
	  route:  {pattern: {routes: [{outlet: icons, match: "^icon"}], fallback: photos}}
	  save:   {output: {dir: out}}
	pipeline:
	  - src
	  - up
	  - keep
	  - route:
	      photos: [save]
	      icons:
	naming: {trim: [raw]}
	cache:  {root: cache, ext: png}
	work:   {root: work}

An outlet without a branch (icons above) drops the items routed to it.
Splitter branches end in merger inlet references such as "join.rgb".

# Usage

	eng, err := sluice.New(sluice.WithLogger(logger))
	if err != nil {
		return err
	}
	p, err := eng.Load("pipeline.yaml")
	if err != nil {
		return err
	}
	res, err := eng.Run(ctx, p)

Custom stage types are added to a registry passed with WithRegistry. Each
constructor receives the stage's configuration and returns a value
implementing the interface of its kind (domain.Processor, domain.Sorter, ...).
*/
package sluice
