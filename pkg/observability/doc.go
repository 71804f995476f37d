// Package observability turns build lifecycle hooks into Prometheus metrics
// and structured logs.
//
// Both are plain domain.LifecycleHooks values, so they compose with Merge:
//
//	m := observability.NewMetrics()
//	hooks := m.Hooks().Merge(observability.LogHooks(logger))
//	b, err := bale.New(".", bale.WithLifecycleHooks(hooks))
//
// The dev server mounts m.Handler() at /metrics.
package observability
