package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/pkg/logger"
)

// Worker consumes recompute tasks from the async queue. Label-request tasks
// live on the "labeling" queue and are consumed by the external labeling
// system, so this worker only registers the recompute handler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	recompute func(context.Context, *RecomputeTask) error
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Infof("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

// SetRecomputeProcessor sets the function that handles recompute tasks.
func (w *Worker) SetRecomputeProcessor(fn func(context.Context, *RecomputeTask) error) {
	w.recompute = fn
}

// Start begins processing tasks.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeRecompute, w.handleRecomputeTask)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting async worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Infof("[Worker] Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] Shutdown complete")
}

func (w *Worker) handleRecomputeTask(ctx context.Context, t *asynq.Task) error {
	var task RecomputeTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		logger.Infof("[Worker] Failed to unmarshal task: %v", err)
		return err
	}

	logger.Infof("[Worker] Recomputing reward for event %s", task.EventID)

	if w.recompute == nil {
		logger.Infof("[Worker] Warning: no recompute processor set")
		return nil
	}

	return w.recompute(ctx, &task)
}

var (
	globalWorker *Worker
	workerOnce   sync.Once
)

// InitWorker initializes the global worker.
func InitWorker(cfg *config.RedisConfig) *Worker {
	workerOnce.Do(func() {
		globalWorker = NewWorker(cfg)
	})
	return globalWorker
}

// GetWorker returns the global worker instance.
func GetWorker() *Worker {
	return globalWorker
}
