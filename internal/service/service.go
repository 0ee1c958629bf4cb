package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain/task"
	"handy/catalog/internal/permalink"
	"handy/catalog/internal/queue"
	"handy/catalog/internal/state"
)

const maxRetries = 5

// Rewriter is the part of permalink.Rewriter the worker drives.
type Rewriter interface {
	Regenerate(ctx context.Context, itemID int64) error
	RegenerateTerm(ctx context.Context, taxonomy string, termID int64) (int, error)
}

// Service consumes deferred rewrite work.
type Service struct {
	rewriter     Rewriter
	queue        queue.Queue
	stateManager state.StateManager
	groupName    string
	minIdleTime  time.Duration
}

// NewService builds the worker. q may be nil when tasks run inline.
func NewService(
	rewriter Rewriter,
	q queue.Queue,
	stateManager state.StateManager,
	groupName string,
	minIdleTime int,
) *Service {
	return &Service{
		rewriter:     rewriter,
		queue:        q,
		stateManager: stateManager,
		groupName:    groupName,
		minIdleTime:  time.Duration(minIdleTime) * time.Second,
	}
}

// Handle executes one task. The debounce guard is released first so changes
// made while the task runs schedule a fresh one.
func (s *Service) Handle(ctx context.Context, t task.Task) error {
	switch tk := t.(type) {
	case *task.RewriteItemTask:
		s.release(ctx, permalink.ItemKey(tk.ItemID))
		if err := s.rewriter.Regenerate(ctx, tk.ItemID); err != nil {
			return s.retryItem(ctx, tk, err)
		}
		log.Debugf("✅ Regenerated rewrite rule for %s %d (%s)", tk.ContentType, tk.ItemID, tk.Reason)
		return nil

	case *task.RewriteFlushTask:
		s.release(ctx, permalink.TermKey(tk.Taxonomy, tk.TermID))
		n, err := s.rewriter.RegenerateTerm(ctx, tk.Taxonomy, tk.TermID)
		if err != nil {
			return fmt.Errorf("failed to flush rewrite rules for %s/%d: %w", tk.Taxonomy, tk.TermID, err)
		}
		log.Infof("✅ Regenerated %d rewrite rules for %q term %d (%s)", n, tk.Taxonomy, tk.TermID, tk.Reason)
		return nil

	default:
		return fmt.Errorf("unknown task type: %s", t.TaskType())
	}
}

func (s *Service) retryItem(ctx context.Context, tk *task.RewriteItemTask, cause error) error {
	if s.queue == nil || tk.RetryCount >= maxRetries {
		return fmt.Errorf("failed to regenerate rewrite rule for %d: %w", tk.ItemID, cause)
	}

	retry := &task.RewriteItemTask{
		ItemID:      tk.ItemID,
		ContentType: tk.ContentType,
		Reason:      tk.Reason,
		RetryCount:  tk.RetryCount + 1,
	}
	if _, err := s.queue.AddTask(ctx, retry); err != nil {
		log.Errorf("❌ Failed to re-add rewrite task for item %d: %v", tk.ItemID, err)
		return err
	}
	log.Warnf("🔄 Rewrite of item %d failed, will retry (attempt %d): %v", tk.ItemID, retry.RetryCount, cause)
	return nil
}

func (s *Service) release(ctx context.Context, key string) {
	if err := s.stateManager.Release(ctx, key); err != nil {
		log.Warnf("⚠️ Failed to release debounce guard %s: %v", key, err)
	}
}

func (s *Service) RunWorkers(ctx context.Context, numWorkers int) error {
	if s.queue == nil {
		return fmt.Errorf("workers need a stream queue")
	}
	var wg sync.WaitGroup

	s.runWorkersForStream(ctx, &wg, numWorkers, s.queue.StreamName(task.TypeRewriteItem), "item")
	s.runWorkersForStream(ctx, &wg, max(numWorkers/2, 1), s.queue.StreamName(task.TypeRewriteFlush), "flush")

	wg.Wait()
	return nil
}

func (s *Service) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName, workerType string) {
	// Auto-claimer for this stream
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if backlog, err := s.queue.Backlog(ctx, streamName, s.groupName); err != nil {
					log.Warnf("⚠️ Could not read backlog of %s: %v", streamName, err)
				} else if backlog > 0 {
					log.WithFields(log.Fields{"stream": streamName, "pending": backlog}).Info("📬 Rewrite tasks pending")
				}
				consumer := fmt.Sprintf("autoclaimer-%s-%d", workerType, time.Now().UnixNano())
				claimedMessages, err := s.queue.AutoClaim(ctx, s.groupName, consumer, streamName, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
					for _, msg := range claimedMessages {
						if err := s.processMessage(ctx, &msg); err != nil {
							log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
					msg, err := s.queue.GetTask(ctx, s.groupName, consumer, streamName)
					if err != nil {
						if ctx.Err() == nil {
							log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
						}
						continue
					}

					if msg != nil {
						if err := s.processMessage(ctx, msg); err != nil {
							log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}(i + 1)
	}
}

// processMessage decodes and runs a stream message. It is acked unless
// decoding fails, so a broken task is left for inspection.
func (s *Service) processMessage(ctx context.Context, msg *redis.XMessage) error {
	taskType, ok := msg.Values[queue.FieldTaskType].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}

	taskData, ok := msg.Values[queue.FieldTaskData].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	var (
		t   task.Task
		err error
	)
	switch taskType {
	case task.TypeRewriteItem:
		t, err = task.UnmarshalTask[*task.RewriteItemTask]([]byte(taskData))
	case task.TypeRewriteFlush:
		t, err = task.UnmarshalTask[*task.RewriteFlushTask]([]byte(taskData))
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s data: %w", taskType, err)
	}

	handleErr := s.Handle(ctx, t)
	if handleErr != nil {
		log.Errorf("❌ %s in message %s failed: %v", taskType, msg.ID, handleErr)
	}

	if err := s.queue.AckTask(ctx, s.queue.StreamName(taskType), s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return handleErr
}
