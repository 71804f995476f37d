package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/pkg/domain"
)

// BuildEvent is the payload pushed to /__bale/events after every build.
type BuildEvent struct {
	BuildID   string       `json:"build_id"`
	Stage     domain.Stage `json:"stage"`
	Succeeded bool         `json:"succeeded"`
	Rebuilt   []string     `json:"rebuilt,omitempty"`
	Errors    []string     `json:"errors,omitempty"`
	Chunks    []string     `json:"chunks,omitempty"`
}

// Events fans build notifications out to live SSE clients.
type Events struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	root        string
	logger      *slog.Logger
}

// NewEvents creates a broadcaster. Module ids in events are relative to root.
func NewEvents(root string, logger *slog.Logger) *Events {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Events{
		subscribers: make(map[chan string]struct{}),
		root:        root,
		logger:      logger,
	}
}

// Subscribe registers a client. The returned func unregisters it and closes
// the channel.
func (e *Events) Subscribe() (<-chan string, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan string, 10)
	e.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subscribers, ch)
			close(ch)
		})
	}
}

// Len returns the number of connected clients.
func (e *Events) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers)
}

// Broadcast sends msg to every client. Slow clients drop the message.
func (e *Events) Broadcast(msg string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for ch := range e.subscribers {
		select {
		case ch <- msg:
		default:
			e.logger.Warn("sse client buffer full, dropping event")
		}
	}
}

// Hooks publishes a BuildEvent when a build finishes.
func (e *Events) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuildDone: func(_ context.Context, r *domain.BuildResult) {
			ev := BuildEvent{
				BuildID:   r.BuildID,
				Succeeded: r.Succeeded(),
				Stage:     r.Stage,
				Errors:    r.ErrorStrings(),
			}
			for _, id := range r.Rebuilt {
				ev.Rebuilt = append(ev.Rebuilt, id.Rel(e.root))
			}
			for _, c := range r.Chunks {
				ev.Chunks = append(ev.Chunks, c.OutputFilename)
			}
			data, err := json.Marshal(ev)
			if err != nil {
				e.logger.Error("encode build event", "err", err)
				return
			}
			e.Broadcast(string(data))
		},
	}
}
