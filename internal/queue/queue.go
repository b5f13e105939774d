package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"chatbot-crm/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	TaskTypeProcess    TaskType = "process"
	TaskTypeProcessAll TaskType = "process_all"
)

// Task represents a unit of work handed to the processor.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

// ProcessPayload asks the processor to run one document through ingestion.
type ProcessPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	// RequestedBy is the user that triggered processing, for logs.
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewProcessTask builds a TaskTypeProcess task for one document.
func NewProcessTask(documentID uuid.UUID, requestedBy string) (Task, error) {
	body, err := json.Marshal(ProcessPayload{DocumentID: documentID, RequestedBy: requestedBy})
	if err != nil {
		return Task{}, err
	}
	return Task{Type: TaskTypeProcess, Payload: body}, nil
}

// NewProcessAllTask builds a TaskTypeProcessAll task.
func NewProcessAllTask() Task {
	return Task{Type: TaskTypeProcessAll, MaxAttempts: 1}
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := q.Enqueue(ctx, task); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}
