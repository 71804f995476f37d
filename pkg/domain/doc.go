/*
Package domain contains the core model of the bale bundler.

It describes the dependency graph, the chunks produced from it and the
report of a build. Nothing in here touches the filesystem or the network;
adapters live under pkg/adapters and the moving parts under internal.

# Key Entities

  - Module: one source file or asset, keyed by its canonical ModuleID.
  - Graph: arena of modules with id edges; cycles are recorded, not rejected.
  - Chunk: the linked output of one entry point.
  - AssetRecord: how a non-code module was emitted (inlined or written to disk).
  - BuildResult: the outcome of a build, with its errors, warnings and stats.
*/
package domain
