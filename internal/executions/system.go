package executions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/internal/extraction"
	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/fault"
	"github.com/JaimeStill/sift/pkg/metrics"
	"github.com/JaimeStill/sift/pkg/pagination"
)

const (
	maxAttempts = 3
	// resolveLimit bounds concurrent document lookups and uploads in one batch.
	resolveLimit = 8
)

// System defines the public contract for execution tracking.
//
// The signal operations MarkProcessing, Complete, and Fail return the unchanged
// execution together with ErrAlreadyTerminal when the execution has finished.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Execution], error)
	Find(ctx context.Context, id uuid.UUID) (*Execution, error)
	// Status returns the polling view. It never errors for a known id.
	Status(ctx context.Context, id uuid.UUID) (*StatusView, error)

	// Enqueue records a queued execution of an active workflow. No record is
	// created when the workflow is not active.
	Enqueue(ctx context.Context, cmd EnqueueCommand) (*Execution, error)
	// ExecuteBulk resolves every source independently, enqueues one execution
	// per source in submission order, and dispatches the resolved ones. A source
	// that cannot be resolved or recorded yields a failed execution; only the
	// workflow precondition fails the whole batch.
	ExecuteBulk(ctx context.Context, cmd BulkCommand) ([]Execution, error)

	MarkProcessing(ctx context.Context, id uuid.UUID) (*Execution, error)
	Complete(ctx context.Context, id uuid.UUID, result *schema.ExtractionResult) (*Execution, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*Execution, error)

	// Stale returns non-terminal executions without progress since cutoff.
	Stale(ctx context.Context, cutoff time.Time) ([]Execution, error)
}

// Workflows resolves the workflow an execution runs against.
type Workflows interface {
	Find(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error)
}

// Dispatcher runs background work without blocking the caller.
type Dispatcher interface {
	Go(name string, fn func(ctx context.Context))
}

// Option configures the execution system.
type Option func(*system)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *system) { s.now = now }
}

type system struct {
	store        Store
	workflows    Workflows
	documents    documents.System
	extractor    extraction.Client
	dispatcher   Dispatcher
	logger       *slog.Logger
	pagination   pagination.Config
	pollInterval time.Duration
	now          func() time.Time
}

// New creates the execution system. pollInterval paces the watch channel.
func New(
	store Store,
	wfs Workflows,
	docs documents.System,
	extractor extraction.Client,
	dispatcher Dispatcher,
	logger *slog.Logger,
	pagination pagination.Config,
	pollInterval time.Duration,
	opts ...Option,
) System {
	s := &system{
		store:        store,
		workflows:    wfs,
		documents:    docs,
		extractor:    extractor,
		dispatcher:   dispatcher,
		logger:       logger.With("system", "executions"),
		pagination:   pagination,
		pollInterval: pollInterval,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *system) Handler(maxUploadSize int64) *Handler {
	return NewHandler(s, s.logger, s.pagination, maxUploadSize, s.pollInterval)
}

func (s *system) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Execution], error) {
	page.Normalize(s.pagination)
	return s.store.List(ctx, page, filters)
}

func (s *system) Find(ctx context.Context, id uuid.UUID) (*Execution, error) {
	return s.store.Find(ctx, id)
}

func (s *system) Status(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	e, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := e.View()
	return &view, nil
}

func (s *system) Enqueue(ctx context.Context, cmd EnqueueCommand) (*Execution, error) {
	if _, err := s.activeWorkflow(ctx, cmd.WorkflowID); err != nil {
		return nil, err
	}

	filename := cmd.Filename
	if filename == "" {
		if doc, err := s.documents.Find(ctx, cmd.FileID); err == nil {
			filename = doc.Filename
		}
	}

	return s.enqueue(ctx, cmd.WorkflowID, cmd.FileID, filename, cmd.OwnerID)
}

// resolution is the outcome of resolving one bulk source.
type resolution struct {
	fileID   uuid.UUID
	filename string
	err      error
}

func (s *system) ExecuteBulk(ctx context.Context, cmd BulkCommand) ([]Execution, error) {
	if len(cmd.Sources) == 0 {
		return nil, fmt.Errorf("%w: at least one file required", ErrInvalidInput)
	}

	wf, err := s.activeWorkflow(ctx, cmd.WorkflowID)
	if err != nil {
		return nil, err
	}

	resolved := make([]resolution, len(cmd.Sources))

	var g errgroup.Group
	g.SetLimit(resolveLimit)
	for i, src := range cmd.Sources {
		g.Go(func() error {
			resolved[i] = s.resolve(ctx, src, cmd.OwnerID)
			return nil
		})
	}
	g.Wait()

	out := make([]Execution, 0, len(resolved))
	for _, r := range resolved {
		e, err := s.enqueue(ctx, cmd.WorkflowID, r.fileID, r.filename, cmd.OwnerID)
		if err != nil {
			s.logger.Error("execution not recorded", "workflow_id", cmd.WorkflowID, "file_id", r.fileID, "error", err)
			out = append(out, *s.unrecorded(cmd.WorkflowID, r, cmd.OwnerID, err))
			continue
		}

		if r.err != nil {
			reason := fmt.Sprintf("%s: %v", fault.StorageUnavailable, r.err)
			failed, err := s.Fail(ctx, e.ID, reason)
			if err != nil {
				s.logger.Error("execution failure not recorded", "id", e.ID, "error", err)
				failed = failedCopy(e, reason, s.now())
			}
			out = append(out, *failed)
			continue
		}

		s.dispatch(wf, e)
		out = append(out, *e)
	}

	s.logger.Info("bulk execution submitted", "workflow_id", cmd.WorkflowID, "files", len(out))
	return out, nil
}

func (s *system) MarkProcessing(ctx context.Context, id uuid.UUID) (*Execution, error) {
	return s.signal(ctx, id, TriggerStart, func(e *Execution, now time.Time) error {
		e.ProcessingAt = &now
		return nil
	})
}

// Complete validates result only for a live execution, so a re-delivered result
// for a finished one is always the AlreadyTerminal no-op.
func (s *system) Complete(ctx context.Context, id uuid.UUID, result *schema.ExtractionResult) (*Execution, error) {
	return s.signal(ctx, id, TriggerComplete, func(e *Execution, now time.Time) error {
		if result == nil {
			return fmt.Errorf("%w: result required", ErrInvalidInput)
		}
		if err := result.Validate(); err != nil {
			return err
		}
		e.ExtractionResult = result.Clone()
		e.CompletedAt = &now
		return nil
	})
}

func (s *system) Fail(ctx context.Context, id uuid.UUID, reason string) (*Execution, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "execution failed"
	}

	return s.signal(ctx, id, TriggerFail, func(e *Execution, now time.Time) error {
		e.ErrorMessage = &reason
		e.CompletedAt = &now
		return nil
	})
}

func (s *system) Stale(ctx context.Context, cutoff time.Time) ([]Execution, error) {
	return s.store.Stale(ctx, cutoff)
}

// signal applies trigger under a status compare-and-swap, re-reading after a
// lost race so a concurrent terminal signal is observed rather than overwritten.
func (s *system) signal(
	ctx context.Context,
	id uuid.UUID,
	trigger Trigger,
	mutate func(e *Execution, now time.Time) error,
) (*Execution, error) {
	for range maxAttempts {
		current, err := s.store.Find(ctx, id)
		if err != nil {
			return nil, err
		}

		to, err := Next(current.Status, trigger)
		if errors.Is(err, ErrAlreadyTerminal) {
			metrics.RecordDuplicateSignal(string(trigger))
			s.logger.Info("signal ignored for terminal execution", "id", id, "trigger", trigger, "status", current.Status)
			return current, err
		}
		if err != nil {
			return nil, err
		}
		if to == current.Status {
			s.logger.Debug("execution already in state", "id", id, "status", current.Status)
			return current, nil
		}

		next := current.Clone()
		next.Status = to
		if err := mutate(next, s.now()); err != nil {
			return nil, err
		}

		saved, err := s.store.Save(ctx, next, current.Status)
		if errors.Is(err, errStale) {
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.RecordExecutionTransition(string(current.Status), string(to))
		if to.Terminal() {
			metrics.RecordExecutionDuration(string(to), saved.CompletedAt.Sub(saved.StartedAt))
		}
		s.logger.Info("execution transition",
			"id", id,
			"workflow_id", saved.WorkflowID,
			"trigger", trigger,
			"from", current.Status,
			"to", to,
		)
		return saved, nil
	}

	return nil, ErrConflict
}

func (s *system) activeWorkflow(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	wf, err := s.workflows.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.Status != workflows.StatusActive {
		return nil, fmt.Errorf("%w: workflow %s is %s", ErrWorkflowNotActive, id, wf.Status)
	}
	return wf, nil
}

func (s *system) enqueue(ctx context.Context, workflowID, fileID uuid.UUID, filename, owner string) (*Execution, error) {
	e, err := s.store.Create(ctx, &Execution{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		FileID:     fileID,
		Filename:   filename,
		Status:     StatusQueued,
		StartedAt:  s.now(),
		OwnerID:    owner,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordExecutionTransition("new", string(StatusQueued))
	s.logger.Info("execution queued", "id", e.ID, "workflow_id", workflowID, "file_id", fileID)
	return e, nil
}

// unrecorded builds the failed execution reported for a source whose record
// could not be created. It is not persisted.
func (s *system) unrecorded(workflowID uuid.UUID, r resolution, owner string, cause error) *Execution {
	now := s.now()
	return failedCopy(&Execution{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		FileID:     r.fileID,
		Filename:   r.filename,
		StartedAt:  now,
		CreatedAt:  now,
		OwnerID:    owner,
	}, fmt.Sprintf("%s: %v", fault.StorageUnavailable, cause), now)
}

func failedCopy(e *Execution, reason string, now time.Time) *Execution {
	out := e.Clone()
	out.Status = StatusFailed
	out.ExtractionResult = nil
	out.ErrorMessage = &reason
	out.CompletedAt = &now
	return out
}

// resolve stores an upload under a pre-allocated id, or checks that an existing
// document and its blob are reachable.
func (s *system) resolve(ctx context.Context, src Source, owner string) resolution {
	if src.Upload != nil {
		cmd := *src.Upload
		if cmd.ID == uuid.Nil {
			cmd.ID = uuid.New()
		}
		cmd.OwnerID = owner

		doc, err := s.documents.Create(ctx, cmd)
		if err != nil {
			return resolution{fileID: cmd.ID, filename: cmd.Filename, err: err}
		}
		return resolution{fileID: doc.ID, filename: doc.Filename}
	}

	doc, err := s.documents.Resolve(ctx, src.FileID)
	if err != nil {
		return resolution{fileID: src.FileID, err: err}
	}
	return resolution{fileID: doc.ID, filename: doc.Filename}
}

func (s *system) dispatch(wf *workflows.Workflow, e *Execution) {
	id, fileID, workflowID, current := e.ID, e.FileID, wf.ID, wf.Schema().Clone()

	s.dispatcher.Go("execute "+id.String(), func(ctx context.Context) {
		if _, err := s.MarkProcessing(ctx, id); err != nil {
			if !errors.Is(err, ErrAlreadyTerminal) {
				s.logger.Warn("execution not started", "id", id, "error", err)
			}
			return
		}

		doc, err := s.documentRef(ctx, fileID)
		if err != nil {
			s.recordFailure(ctx, id, err)
			return
		}

		result, err := s.extractor.Extract(ctx, extraction.ExtractRequest{
			WorkflowID:  workflowID,
			ExecutionID: &id,
			Document:    doc,
			Schema:      current,
		})
		if errors.Is(err, extraction.ErrDeferred) {
			s.logger.Info("execution awaiting callback", "id", id)
			return
		}
		if err != nil {
			s.recordFailure(ctx, id, err)
			return
		}

		if _, err := s.Complete(context.WithoutCancel(ctx), id, result); err != nil {
			if fault.CodeOf(err) == fault.InvalidInput {
				s.recordFailure(ctx, id, fmt.Errorf("%s: %w", fault.ExtractionFailed, err))
				return
			}
			s.logger.Info("execution result not applied", "id", id, "error", err)
		}
	})
}

// recordFailure fails the execution. Work interrupted by shutdown is left in
// place for the supervisor or a later callback.
func (s *system) recordFailure(ctx context.Context, id uuid.UUID, cause error) {
	if ctx.Err() != nil {
		s.logger.Warn("execution interrupted", "id", id, "error", cause)
		return
	}

	s.logger.Warn("execution failed", "id", id, "error", cause)
	if _, err := s.Fail(context.WithoutCancel(ctx), id, cause.Error()); err != nil && !errors.Is(err, ErrAlreadyTerminal) {
		s.logger.Error("execution failure not recorded", "id", id, "error", err)
	}
}

func (s *system) documentRef(ctx context.Context, fileID uuid.UUID) (extraction.Document, error) {
	doc, err := s.documents.Find(ctx, fileID)
	if err != nil {
		return extraction.Document{}, err
	}

	u, err := s.documents.PresignURL(ctx, fileID)
	if err != nil {
		return extraction.Document{}, err
	}

	return extraction.Document{
		ID:          doc.ID,
		URL:         u.URL,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
	}, nil
}
