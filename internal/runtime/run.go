package runtime

import (
	"context"
	"errors"

	"github.com/aretw0/bale/pkg/domain"
)

type finished struct {
	res   *domain.BuildResult
	err   error
	paths []string
	full  bool
}

// Run rebuilds on every change received from events or OnChange until ctx
// is done, or until events is closed and the queue is drained. A first full build runs when no graph exists.
//
// One build runs at a time. Changes that arrive meanwhile are coalesced into
// the next build; with supersede enabled they also cancel the running build,
// whose changes are queued again.
func (e *Engine) Run(ctx context.Context, events <-chan string) error {
	var (
		cancel context.CancelFunc
		done   chan finished
		closed bool
	)
	if e.Graph() == nil {
		e.requeue(nil, true)
	}

	start := func() {
		paths, full := e.takePending()
		bctx, c := context.WithCancel(ctx)
		cancel = c
		done = make(chan finished, 1)
		go func(ch chan<- finished) {
			res, err := e.build(bctx, paths, full)
			ch <- finished{res: res, err: err, paths: paths, full: full}
		}(done)
	}
	supersede := func(reason string) {
		if cancel != nil && e.supersede {
			e.logger.Debug("superseding running build", "reason", reason)
			cancel()
		}
	}

	for {
		if cancel == nil {
			if e.hasPending() {
				start()
			} else if closed {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if cancel != nil {
				cancel()
				<-done
			}
			return ctx.Err()

		case p, ok := <-events:
			if !ok {
				events, closed = nil, true
				continue
			}
			e.mark(p)
			supersede(p)

		case <-e.wake:
			supersede("change")

		case f := <-done:
			cancel()
			cancel, done = nil, nil
			switch {
			case f.err != nil:
				e.logger.Error("build did not run", "err", f.err)
			case errors.Is(f.res.Err(), domain.ErrBuildCancelled) && ctx.Err() == nil:
				e.requeue(f.paths, f.full)
			}
		}
	}
}
