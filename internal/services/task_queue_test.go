package services

import (
	"context"
	"testing"
	"time"
)

func TestTaskTypes_Constants(t *testing.T) {
	if TaskTypeLabelRequest != "label:request" {
		t.Errorf("TaskTypeLabelRequest = %q, expected %q", TaskTypeLabelRequest, "label:request")
	}
	if TaskTypeRecompute != "reward:recompute" {
		t.Errorf("TaskTypeRecompute = %q, expected %q", TaskTypeRecompute, "reward:recompute")
	}
}

func TestSyncQueue_New(t *testing.T) {
	queue := NewSyncQueue()
	if queue == nil {
		t.Error("NewSyncQueue should not return nil")
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
}

func TestSyncQueue_Close(t *testing.T) {
	queue := NewSyncQueue()
	if err := queue.Close(); err != nil {
		t.Errorf("SyncQueue.Close() should return nil, got %v", err)
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue()

	err := queue.EnqueueRecompute(&RecomputeTask{EventID: "fb_1"})
	if err != nil {
		t.Errorf("EnqueueRecompute without processor should not error, got %v", err)
	}
	err = queue.EnqueueLabelRequest(&LabelRequestTask{EventID: "fb_1"})
	if err != nil {
		t.Errorf("EnqueueLabelRequest should not error in sync mode, got %v", err)
	}
}

func TestSyncQueue_RecomputeRunsProcessor(t *testing.T) {
	queue := NewSyncQueue()

	done := make(chan string, 1)
	queue.SetRecomputeProcessor(func(ctx context.Context, task *RecomputeTask) error {
		done <- task.EventID
		return nil
	})

	if err := queue.EnqueueRecompute(&RecomputeTask{EventID: "fb_42"}); err != nil {
		t.Fatalf("EnqueueRecompute error: %v", err)
	}

	select {
	case got := <-done:
		if got != "fb_42" {
			t.Errorf("processor received event %q, expected fb_42", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recompute processor was not invoked")
	}
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}
