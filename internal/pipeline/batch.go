package pipeline

import (
	"context"
	"sync"

	"github.com/aretw0/bale/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// Outcome pairs a module id with its transform result.
type Outcome struct {
	ID     domain.ModuleID
	Result Result
	Err    error
}

// TransformAll transforms ids concurrently and returns once every scheduled
// transform has finished. Modules in force bypass the cache. When ctx is
// cancelled no new transforms are scheduled; the returned skipped list holds
// the ids that never started.
func (p *Pipeline) TransformAll(ctx context.Context, g *domain.Graph, ids []domain.ModuleID, force map[domain.ModuleID]bool) (outcomes []Outcome, skipped []domain.ModuleID) {
	var (
		mu  sync.Mutex
		grp errgroup.Group
	)
	grp.SetLimit(p.concurrency)

	for i, id := range ids {
		mod, ok := g.Get(id)
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			skipped = append(skipped, ids[i:]...)
			break
		}
		m := *mod
		grp.Go(func() error {
			res, err := p.Apply(ctx, m, force[m.ID])
			mu.Lock()
			outcomes = append(outcomes, Outcome{ID: m.ID, Result: res, Err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()
	return outcomes, skipped
}
