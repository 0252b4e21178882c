// Package aihook implements the AI Hook (§4.7): fire-and-forget dispatch
// of a completed upload to one of a fixed set of downstream pipelines,
// keyed by metadata.purpose.
package aihook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/auth-platform/file-upload/internal/async"
	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/observability"
	"github.com/auth-platform/file-upload/internal/security"
)

// Purpose is the dispatch key read from Session.Metadata["purpose"].
type Purpose string

const (
	PurposeFineTuning Purpose = "fine-tuning"
	PurposeEmbeddings Purpose = "embeddings"
	PurposeTraining   Purpose = "training"
	PurposeIndexing   Purpose = "indexing"
	PurposeDefault    Purpose = "default"
)

// taskPayload is what gets queued for async dispatch; it intentionally
// carries only what a downstream pipeline needs, not the whole Session.
type taskPayload struct {
	SessionID string            `json:"sessionId"`
	FinalPath string            `json:"finalPath"`
	Metadata  map[string]string `json:"metadata"`
}

// AsyncJobRef is submit's return value: a reference the client can show
// without waiting on the actual pipeline work.
type AsyncJobRef struct {
	JobID         string
	Status        string
	EstimatedTime string
}

// Hook implements §4.7 over the teacher's async worker pool, repurposed
// from its virus-scan/thumbnail/metadata-extract task types to the four
// named purposes plus a default.
type Hook struct {
	processor *async.Processor
	metrics   *observability.Metrics
	log       *observability.Logger
}

// Config bounds the underlying worker pool.
type Config struct {
	Workers    int
	QueueSize  int
	MaxRetries int
}

// New constructs and starts the Hook's worker pool. Close stops it.
// metrics may be nil in tests.
func New(cfg Config, metrics *observability.Metrics, log *observability.Logger) *Hook {
	p := async.NewProcessor(async.Config{
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		MaxRetries: cfg.MaxRetries,
	})

	h := &Hook{processor: p, metrics: metrics, log: log}

	dispatch := func(ctx context.Context, task *async.Task) error {
		var payload taskPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return err
		}
		// Downstream pipeline work is out of scope for this service; the
		// handler's job is only to exist so the queue drains instead of
		// growing unbounded. A real deployment swaps this for a call into
		// the named pipeline (fine-tuning queue, embeddings service, ...).
		if log != nil {
			redacted := security.RedactMap(payload.Metadata)
			log.WithComponent("aihook").
				WithField("metadata", redacted).
				Info("dispatched " + string(task.Type) + " job for session " + payload.SessionID)
		}
		return nil
	}

	for _, purpose := range []Purpose{PurposeFineTuning, PurposeEmbeddings, PurposeTraining, PurposeIndexing, PurposeDefault} {
		p.RegisterHandler(async.TaskType(purpose), dispatch)
	}

	if err := p.Start(); err != nil && log != nil {
		log.WithComponent("aihook").Warn("worker pool failed to start: " + err.Error())
	}

	return h
}

// Close stops the worker pool, used during graceful shutdown. It cancels
// the workers and waits for them to exit; tasks still queued are not run.
func (h *Hook) Close() error {
	return h.processor.Stop()
}

// Submit implements §4.7's submit: never blocks beyond constructing the
// job reference; queueing failures are logged and swallowed, never
// surfaced to the caller, since AI-hook errors must not fail an upload.
func (h *Hook) Submit(ctx context.Context, sess *domain.Session, finalPath string) AsyncJobRef {
	purpose := string(PurposeDefault)
	if p, ok := sess.Metadata["purpose"]; ok {
		switch Purpose(p) {
		case PurposeFineTuning, PurposeEmbeddings, PurposeTraining, PurposeIndexing:
			purpose = p
		}
	}

	jobID := uuid.New().String()

	payload, err := json.Marshal(taskPayload{
		SessionID: sess.SessionID,
		FinalPath: finalPath,
		Metadata:  sess.Metadata,
	})
	if err != nil {
		if h.log != nil {
			h.log.WithComponent("aihook").Warn("payload marshal failed: " + err.Error())
		}
		return AsyncJobRef{JobID: jobID, Status: "failed"}
	}

	task := &async.Task{
		ID:      jobID,
		Type:    async.TaskType(purpose),
		Payload: payload,
	}

	submitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.processor.Submit(submitCtx, task); err != nil {
		if h.log != nil {
			h.log.WithComponent("aihook").Warn("submit failed for session " + sess.SessionID + ": " + err.Error())
		}
		if h.metrics != nil {
			h.metrics.RecordAIHookDispatch(purpose, "failed")
		}
		return AsyncJobRef{JobID: jobID, Status: "failed"}
	}

	if h.metrics != nil {
		h.metrics.RecordAIHookDispatch(purpose, "queued")
	}
	return AsyncJobRef{JobID: jobID, Status: "queued", EstimatedTime: "unknown"}
}
