package queue

import (
	"context"

	"handy/catalog/internal/domain/task"
)

// Handler executes a task.
type Handler func(ctx context.Context, t task.Task) error

// Inline runs every task synchronously on AddTask. It stands in for the
// stream queue when the service runs without Redis. The debounce guard is
// released before AddTask returns, so scheduling does not coalesce here.
type Inline struct {
	handler Handler
}

func NewInline(handler Handler) *Inline {
	return &Inline{handler: handler}
}

func (q *Inline) AddTask(ctx context.Context, t task.Task) (string, error) {
	if err := q.handler(ctx, t); err != nil {
		return "", err
	}
	return "inline", nil
}
