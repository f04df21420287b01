package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	KindExecuteBuild = "build:execute"
	KindTrackJob     = "job:track"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is shut down")
)

// DefaultTaskTimeout bounds a distributed task that carries no timeout.
const DefaultTaskTimeout = 24 * time.Hour

// Task references the row a handler works on. Timeout bounds how long a
// distributed worker may hold the task.
type Task struct {
	Kind    string        `json:"kind"`
	RefID   int64         `json:"ref_id"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

type HandlerFunc func(ctx context.Context, t Task) error

type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	Start() error
	Shutdown()
}

// Mux routes tasks to handlers by kind.
type Mux struct {
	handlers map[string]HandlerFunc
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]HandlerFunc)}
}

func (m *Mux) Handle(kind string, h HandlerFunc) {
	m.handlers[kind] = h
}

func (m *Mux) Kinds() []string {
	kinds := make([]string, 0, len(m.handlers))
	for k := range m.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (m *Mux) Dispatch(ctx context.Context, t Task) error {
	h, ok := m.handlers[t.Kind]
	if !ok {
		return fmt.Errorf("no handler for task kind %q", t.Kind)
	}
	return h(ctx, t)
}
