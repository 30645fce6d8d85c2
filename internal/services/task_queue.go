package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/pkg/logger"
)

const (
	// TaskTypeLabelRequest pushes a sampled event to the expert labeling
	// queue. The labeling system consumes these; this core only decides
	// membership.
	TaskTypeLabelRequest = "label:request"
	// TaskTypeRecompute recomputes the reward for a single event after new
	// labels arrive.
	TaskTypeRecompute = "reward:recompute"
)

// LabelRequestTask is the payload handed to the expert labeling queue.
type LabelRequestTask struct {
	EventID        string `json:"event_id"`
	ProductIdea    string `json:"product_idea"`
	TargetAudience string `json:"target_audience"`
	Goal           string `json:"goal"`
	OutputType     string `json:"output_type"`
	OutputContent  string `json:"output_content"`
	SourceModel    string `json:"source_model"`
}

// RecomputeTask identifies one event whose reward needs recomputation.
type RecomputeTask struct {
	EventID string `json:"event_id"`
}

// TaskQueue decouples the synchronous ingestion path from label delivery and
// reward recomputation.
type TaskQueue interface {
	// EnqueueLabelRequest pushes a sampled event to the labeling queue.
	EnqueueLabelRequest(task *LabelRequestTask) error
	// EnqueueRecompute schedules a reward recomputation for one event.
	EnqueueRecompute(task *RecomputeTask) error
	// IsAsync returns true if the queue processes tasks out of process.
	IsAsync() bool
	// Close gracefully shuts down the queue.
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config. With
// Redis disabled (or unreachable) it falls back to in-process handling so a
// single-node deployment needs no extra infrastructure.
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance.
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based).
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) EnqueueLabelRequest(task *LabelRequestTask) error {
	return q.enqueue(TaskTypeLabelRequest, task, "labeling")
}

func (q *AsyncQueue) EnqueueRecompute(task *RecomputeTask) error {
	return q.enqueue(TaskTypeRecompute, task, "default")
}

func (q *AsyncQueue) enqueue(taskType string, payload interface{}, queue string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	t := asynq.NewTask(taskType, data)
	info, err := q.client.Enqueue(t,
		asynq.Queue(queue),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Task enqueued: type=%s, id=%s, queue=%s", taskType, info.ID, info.Queue)
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue with in-process handling (no Redis).
// Recompute tasks run in a goroutine; label requests are not delivered
// anywhere, since without a shared queue the labeling system pulls from
// GET /api/labeling/queue instead.
type SyncQueue struct {
	recompute func(context.Context, *RecomputeTask) error
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetRecomputeProcessor sets the function that handles recompute tasks.
func (q *SyncQueue) SetRecomputeProcessor(fn func(context.Context, *RecomputeTask) error) {
	q.recompute = fn
}

func (q *SyncQueue) EnqueueLabelRequest(task *LabelRequestTask) error {
	logger.Infof("[SyncQueue] Event %s selected for labeling (served via pull API)", task.EventID)
	return nil
}

func (q *SyncQueue) EnqueueRecompute(task *RecomputeTask) error {
	if q.recompute == nil {
		logger.Warnf("[SyncQueue] No recompute processor set, dropping task for event %s", task.EventID)
		return nil
	}

	// Run in a goroutine to not block the caller; the periodic sweep
	// corrects anything lost to a crash here.
	go func() {
		if err := q.recompute(context.Background(), task); err != nil {
			logger.Infof("[SyncQueue] Recompute failed for event %s: %v", task.EventID, err)
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
