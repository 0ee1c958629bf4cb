package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handy/catalog/internal/domain/task"
)

func TestInlineRunsHandler(t *testing.T) {
	var got []task.Task
	q := NewInline(func(_ context.Context, tk task.Task) error {
		got = append(got, tk)
		return nil
	})

	id, err := q.AddTask(context.Background(), &task.RewriteItemTask{ItemID: 3})
	require.NoError(t, err)
	assert.Equal(t, "inline", id)
	require.Len(t, got, 1)
	assert.Equal(t, task.TypeRewriteItem, got[0].TaskType())

	failing := NewInline(func(context.Context, task.Task) error { return errors.New("boom") })
	_, err = failing.AddTask(context.Background(), &task.RewriteFlushTask{})
	assert.Error(t, err)
}
