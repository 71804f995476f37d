/*
Package bale is a dependency-graph asset bundler.

Starting from one or more entry modules, bale resolves every import into a
graph of modules, runs each code module through an ordered chain of
transform plugins, decides per asset whether to inline it as a data URI or
emit it as a content-hashed file, and links every entry into one
self-contained JavaScript chunk.

# Concept

A build moves through fixed stages:

	idle -> resolving -> transforming -> linking -> emitting -> done

Any active stage may end in failed. A changed file only invalidates its
module and the modules that (transitively) import it; everything else is
reused from the previous build or served from the transform cache.

# Usage

	b, err := bale.New("./my-app")
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close()

	res, err := b.Build(context.Background())
	if err != nil {
		log.Fatal(err) // errors.As works for every error kind in res.Errors
	}
	for _, c := range res.Chunks {
		fmt.Println(c.OutputFilename, c.Hash)
	}

Configuration comes from bale.yaml, bale.json or bale.toml in the project
root, or from WithConfig. The transform error policy (transform.on_error:
fail or skip) has no default and must be set.

# Key Entities

  - Module: one source or asset file, identified by its absolute path plus query.
  - Graph: modules keyed by id with import edges, cycles allowed.
  - Plugin: a named transform or emit hook, configured in the plugins list.
  - Chunk: the linked output of one entry.
  - BuildResult: chunks, artifacts, stats and every error of one build.

# Watching

Run builds once and rebuilds whenever a file below the root changes.
Changes arriving during a build are folded into a single follow-up build;
with watch.supersede enabled they cancel the running build instead.
*/
package bale
