package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/knowledgebot/core"
)

// PipelineClient is the subset of Client the orchestrator drives.
type PipelineClient interface {
	ProcessFile(ctx context.Context, workspaceID, sourceID, path, filename string) error
	ProcessQA(ctx context.Context, workspaceID, sourceID, question, answer string) error
	ProcessArticle(ctx context.Context, workspaceID, sourceID, title, content string) error
	DeleteEmbeddings(ctx context.Context, collection, sourceID string) error
	Query(ctx context.Context, workspaceID, sessionID, question string) (core.QueryResult, error)
}

// StatusStore records the outcome of ingestion tasks.
type StatusStore interface {
	UpdateStatus(ctx context.Context, sourceID string, status core.SourceStatus) error
}

// Orchestrator schedules pipeline calls on a background queue and writes
// the resulting source status back. Calls for one source run in the order
// they were dispatched.
type Orchestrator struct {
	client   PipelineClient
	queue    *Queue
	statuses StatusStore
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// New creates an Orchestrator. The queue is owned by the caller until
// Close is called on the orchestrator.
func New(client PipelineClient, queue *Queue, statuses StatusStore, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}
	if statuses == nil {
		return nil, ErrStatusStoreRequired
	}
	o := &Orchestrator{
		client:   client,
		queue:    queue,
		statuses: statuses,
		logger:   slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// DispatchFile schedules ingestion of a stored file and returns
// PROCESSING. If the task cannot be queued the source is marked FAILED.
func (o *Orchestrator) DispatchFile(ctx context.Context, workspaceID, sourceID, path, filename string) core.SourceStatus {
	return o.dispatch(ctx, "process-file", sourceID, func(ctx context.Context) error {
		return o.client.ProcessFile(ctx, workspaceID, sourceID, path, filename)
	})
}

// DispatchQA schedules ingestion of a question/answer pair.
func (o *Orchestrator) DispatchQA(ctx context.Context, workspaceID, sourceID, question, answer string) core.SourceStatus {
	return o.dispatch(ctx, "process-qa", sourceID, func(ctx context.Context) error {
		return o.client.ProcessQA(ctx, workspaceID, sourceID, question, answer)
	})
}

// DispatchArticle schedules ingestion of an article.
func (o *Orchestrator) DispatchArticle(ctx context.Context, workspaceID, sourceID, title, content string) core.SourceStatus {
	return o.dispatch(ctx, "process-article", sourceID, func(ctx context.Context) error {
		return o.client.ProcessArticle(ctx, workspaceID, sourceID, title, content)
	})
}

// DispatchDelete schedules removal of a source's chunks. Failures are
// logged and otherwise ignored.
func (o *Orchestrator) DispatchDelete(workspaceID, sourceID string) {
	err := o.queue.Submit(Task{
		Name: "delete-embeddings " + sourceID,
		Key:  sourceID,
		Run: func(ctx context.Context) error {
			return o.client.DeleteEmbeddings(ctx, workspaceID, sourceID)
		},
	})
	if err != nil {
		o.logger.Error("failed to schedule embedding deletion", "source_id", sourceID, "err", err)
	}
}

// Query forwards a question to the pipeline. Errors keep their class; see
// HTTPStatus.
func (o *Orchestrator) Query(ctx context.Context, workspaceID, sessionID, question string) (core.QueryResult, error) {
	return o.client.Query(ctx, workspaceID, sessionID, question)
}

// Wait blocks until every dispatched task has finished.
func (o *Orchestrator) Wait() {
	o.queue.Wait()
}

// Close drains the queue and releases it.
func (o *Orchestrator) Close() {
	o.queue.Close()
}

func (o *Orchestrator) dispatch(ctx context.Context, name, sourceID string, run func(context.Context) error) core.SourceStatus {
	// Status writes outlive the request that dispatched the task.
	statusCtx := context.WithoutCancel(ctx)

	err := o.queue.Submit(Task{
		Name: name + " " + sourceID,
		Key:  sourceID,
		Run:  run,
		Done: func(err error) {
			status := core.StatusCompleted
			if err != nil {
				status = core.StatusFailed
				o.logger.Error("ingestion task failed", "task", name, "source_id", sourceID, "err", err)
			}
			o.setStatus(statusCtx, sourceID, status)
		},
	})
	if err != nil {
		o.logger.Error("failed to schedule ingestion", "task", name, "source_id", sourceID, "err", err)
		o.setStatus(statusCtx, sourceID, core.StatusFailed)
		return core.StatusFailed
	}
	return core.StatusProcessing
}

func (o *Orchestrator) setStatus(ctx context.Context, sourceID string, status core.SourceStatus) {
	if err := o.statuses.UpdateStatus(ctx, sourceID, status); err != nil {
		o.logger.Error("failed to update source status", "source_id", sourceID, "status", status, "err", err)
		return
	}
	o.logger.Info("updated source status", "source_id", sourceID, "status", status)
}
