package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chatbot-crm/internal/app"
	"chatbot-crm/internal/httputil"
	"chatbot-crm/internal/ingest"
	"chatbot-crm/internal/queue"
	"chatbot-crm/internal/store"
)

// pipeline is the part of ingest.Pipeline the worker drives.
type pipeline interface {
	ProcessByID(ctx context.Context, id uuid.UUID) (ingest.Outcome, error)
	ProcessAll(ctx context.Context) (ingest.Summary, error)
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	if deps.Queue == nil {
		deps.Log.Error("processor requires a queue; set QUEUE_PROVIDER=nats")
		os.Exit(1)
	}
	deps.Log.Info("processor worker starting", "concurrency", deps.Config.BatchConcurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeProcess, func(ctx context.Context, task queue.Task) error {
			var payload queue.ProcessPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				deps.Log.Error("dropping malformed process task", "id", task.ID, "err", err)
				return nil
			}
			return handleProcess(ctx, deps.Log, deps.Pipeline, payload)
		})
	})

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeProcessAll, func(ctx context.Context, task queue.Task) error {
			return handleProcessAll(ctx, deps.Log, deps.Pipeline)
		})
	})

	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Log, deps.Config.Port, "processor")
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("processor service stopped", "err", err)
	}
}

// handleProcess runs one document. Only failures that may succeed on a later
// attempt are returned, so the queue retries them.
func handleProcess(ctx context.Context, log *slog.Logger, p pipeline, payload queue.ProcessPayload) error {
	log = log.With("document_id", payload.DocumentID, "requested_by", payload.RequestedBy)

	out, err := p.ProcessByID(ctx, payload.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("document no longer exists; skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load document %s: %w", payload.DocumentID, err)
	}
	if out.OK() {
		return nil
	}
	if retryable(out) {
		return fmt.Errorf("process document %s: %w", payload.DocumentID, out.Err)
	}
	log.Warn("document cannot be processed", "reason", out.Reason)
	return nil
}

func handleProcessAll(ctx context.Context, log *slog.Logger, p pipeline) error {
	summary, err := p.ProcessAll(ctx)
	if err != nil {
		return fmt.Errorf("process all: %w", err)
	}
	for _, msg := range summary.Errors {
		log.Warn(msg)
	}
	return nil
}

func retryable(out ingest.Outcome) bool {
	return errors.Is(out.Err, ingest.ErrNoEmbedding) || out.Reason == ingest.ReasonStoreFailed
}
