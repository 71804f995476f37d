/*
Package ports defines the driven ports (interfaces) of the bale bundler.

The build core never touches a physical filesystem, parser, cache or lock
service directly; it talks to these interfaces and the adapters under
pkg/adapters plug in behind them.

# Key Interfaces

  - FileSystem: reads sources and writes artifacts (memory, osfs).
  - SyntaxExtractor: lists the imports of a module and returns an editable tree.
  - Plugin, Transformer, Emitter: the plugin registration surface.
  - TransformCache: stores transformed sources between builds (memory, redis).
  - DistributedLocker: serializes builds across processes (redis).
  - Watchable: delivers changed paths (fsnotify).
*/
package ports
