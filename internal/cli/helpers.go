package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/internal/presentation/tui"
	"github.com/aretw0/bale/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger.
// In debug mode, it writes to Stderr so stdout stays free for build output.
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// printReport writes the markdown build report, rendered with glamour when w
// is a terminal.
func printReport(w io.Writer, r *domain.BuildResult, root string) {
	md := tui.Report(r, root)
	if f, ok := w.(*os.File); ok && tui.IsTerminal(f) {
		if out, err := tui.NewRenderer()(md); err == nil {
			md = out
		}
	}
	fmt.Fprint(w, md)
}

// buildPrinter reports finished builds on the terminal.
type buildPrinter struct {
	out  io.Writer
	root string
	diff bool

	mu   sync.Mutex
	prev map[string][]byte
}

func newBuildPrinter(out io.Writer, root string, diff bool) *buildPrinter {
	return &buildPrinter{out: out, root: root, diff: diff, prev: make(map[string][]byte)}
}

func (p *buildPrinter) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuildDone: func(_ context.Context, r *domain.BuildResult) {
			p.done(r)
		},
	}
}

func (p *buildPrinter) done(r *domain.BuildResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, tui.Status(r))
	for _, e := range r.ErrorStrings() {
		fmt.Fprintf(p.out, "  error: %s\n", e)
	}
	for _, w := range r.WarningStrings() {
		fmt.Fprintf(p.out, "  warning: %s\n", w)
	}
	if !r.Succeeded() {
		return
	}

	for _, c := range r.Chunks {
		before, seen := p.prev[c.Name]
		p.prev[c.Name] = c.Code
		if !p.diff || !seen {
			continue
		}
		d, err := tui.ChunkDiff(c.Name, before, c.Code)
		if err != nil {
			fmt.Fprintf(p.out, "  diff failed: %v\n", err)
			continue
		}
		fmt.Fprint(p.out, d)
	}
}
