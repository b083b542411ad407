package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/internal/extraction"
	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/pkg/fault"
	"github.com/JaimeStill/sift/pkg/metrics"
	"github.com/JaimeStill/sift/pkg/pagination"
)

// maxAttempts bounds re-reads after a lost status compare-and-swap.
const maxAttempts = 3

// System defines the public contract for workflow operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Workflow], error)
	// Find returns the workflow with outdated flags computed against its sample data.
	Find(ctx context.Context, id uuid.UUID) (*Workflow, error)

	// Create registers a draft workflow over an existing document.
	Create(ctx context.Context, cmd CreateCommand) (*Workflow, error)
	// CreateFromUpload stores the document, creates the workflow, and begins analysis.
	CreateFromUpload(ctx context.Context, cmd UploadCommand) (*Workflow, error)

	// BeginAnalysis moves a draft to analyzing and dispatches analysis without waiting for it.
	BeginAnalysis(ctx context.Context, id uuid.UUID) (*Workflow, error)
	AnalysisCompleted(ctx context.Context, id uuid.UUID, analysis extraction.Analysis) (*Workflow, error)
	SamplesExtracted(ctx context.Context, id uuid.UUID, result *schema.ExtractionResult) (*Workflow, error)
	AnalysisFailed(ctx context.Context, id uuid.UUID, reason string) (*Workflow, error)
	Publish(ctx context.Context, id uuid.UUID) (*Workflow, error)
	// ReExtract refreshes sample data with the current schema.
	ReExtract(ctx context.Context, id uuid.UUID) (*Workflow, error)

	UpdateConfiguration(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Workflow, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Dispatcher runs background work without blocking the caller.
type Dispatcher interface {
	Go(name string, fn func(ctx context.Context))
}

// Option configures the workflow system.
type Option func(*system)

// WithClock overrides the time source used for stamps.
func WithClock(now func() time.Time) Option {
	return func(s *system) { s.now = now }
}

type system struct {
	store      Store
	documents  documents.System
	extractor  extraction.Client
	dispatcher Dispatcher
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates the workflow system.
func New(
	store Store,
	docs documents.System,
	extractor extraction.Client,
	dispatcher Dispatcher,
	logger *slog.Logger,
	pagination pagination.Config,
	opts ...Option,
) System {
	s := &system{
		store:      store,
		documents:  docs,
		extractor:  extractor,
		dispatcher: dispatcher,
		logger:     logger.With("system", "workflows"),
		pagination: pagination,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *system) Handler(maxUploadSize int64) *Handler {
	return NewHandler(s, s.logger, s.pagination, maxUploadSize)
}

func (s *system) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Workflow], error) {
	page.Normalize(s.pagination)
	return s.store.List(ctx, page, filters)
}

func (s *system) Find(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	w, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Configuration = schema.Annotate(w.Configuration, w.SampleDataExtractedAt)
	return w, nil
}

func (s *system) Create(ctx context.Context, cmd CreateCommand) (*Workflow, error) {
	if cmd.FileID == uuid.Nil {
		return nil, fmt.Errorf("%w: file reference required", ErrInvalidInput)
	}

	doc, err := s.documents.Find(ctx, cmd.FileID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return nil, fmt.Errorf("%w: file %s not found", ErrInvalidInput, cmd.FileID)
		}
		return nil, err
	}

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = doc.Filename
	}

	w, err := s.store.Create(ctx, &Workflow{
		ID:             uuid.New(),
		Name:           name,
		Description:    cmd.Description,
		Categories:     []schema.Category{},
		Configuration:  schema.Configuration{Fields: []schema.Field{}, Tables: []schema.Table{}},
		Status:         StatusDraft,
		FileID:         doc.ID,
		OwnerID:        cmd.OwnerID,
		OrganizationID: cmd.OrganizationID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("workflow created", "id", w.ID, "file_id", w.FileID)
	return w, nil
}

func (s *system) CreateFromUpload(ctx context.Context, cmd UploadCommand) (*Workflow, error) {
	cmd.Document.OwnerID = cmd.OwnerID

	doc, err := s.documents.Create(ctx, cmd.Document)
	if err != nil {
		return nil, err
	}

	w, err := s.Create(ctx, CreateCommand{
		Name:           cmd.Name,
		Description:    cmd.Description,
		FileID:         doc.ID,
		OwnerID:        cmd.OwnerID,
		OrganizationID: cmd.OrganizationID,
	})
	if err != nil {
		return nil, err
	}

	return s.BeginAnalysis(ctx, w.ID)
}

func (s *system) BeginAnalysis(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	w, err := s.transition(ctx, id, TriggerAnalyze, nil, nil)
	if err != nil {
		return nil, err
	}

	s.dispatchAnalyze(w)
	return w, nil
}

func (s *system) AnalysisCompleted(ctx context.Context, id uuid.UUID, analysis extraction.Analysis) (*Workflow, error) {
	hasSamples := !analysis.SampleData.Empty()
	if hasSamples {
		if err := analysis.SampleData.Validate(); err != nil {
			return nil, err
		}
	}

	w, err := s.transition(ctx, id, TriggerAnalysisCompleted, nil, func(w *Workflow) error {
		now := s.now()

		normalized, err := schema.Normalize(w.Schema(), analysis.Schema, now)
		if err != nil {
			return err
		}
		w.SetSchema(normalized)
		w.ErrorMessage = nil

		if hasSamples {
			w.SampleData = analysis.SampleData.Clone()
			w.SampleDataExtractedAt = &now
		}
		return nil
	}, hasSamples)
	if err != nil {
		return nil, err
	}

	if w.Status == StatusExtracting {
		s.dispatchExtract(w)
	}
	return w, nil
}

func (s *system) SamplesExtracted(ctx context.Context, id uuid.UUID, result *schema.ExtractionResult) (*Workflow, error) {
	if err := result.Validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, TriggerSamplesExtracted, nil, func(w *Workflow) error {
		now := s.now()
		w.SampleData = result.Clone()
		w.SampleDataExtractedAt = &now
		w.ErrorMessage = nil
		return nil
	})
}

func (s *system) AnalysisFailed(ctx context.Context, id uuid.UUID, reason string) (*Workflow, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "analysis failed"
	}

	w, err := s.transition(ctx, id, TriggerFail, nil, func(w *Workflow) error {
		w.ErrorMessage = &reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("workflow analysis failed", "id", id, "reason", reason)
	return w, nil
}

func (s *system) Publish(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	w, err := s.transition(ctx, id, TriggerPublish,
		func(w *Workflow) error {
			if w.Configuration.Empty() {
				return schema.ErrEmptyConfiguration
			}
			return nil
		},
		func(w *Workflow) error {
			return schema.ValidateActive(w.Configuration)
		},
	)
	if err != nil {
		return nil, err
	}
	return s.annotated(w), nil
}

func (s *system) ReExtract(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	w, err := s.transition(ctx, id, TriggerReExtract, nil, nil)
	if err != nil {
		return nil, err
	}

	s.dispatchExtract(w)
	return s.annotated(w), nil
}

func (s *system) UpdateConfiguration(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Workflow, error) {
	if cmd.Name != nil && strings.TrimSpace(*cmd.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}

	for range maxAttempts {
		current, err := s.store.Find(ctx, id)
		if err != nil {
			return nil, err
		}

		switch current.Status {
		case StatusAnalyzing, StatusExtracting:
			return nil, fmt.Errorf("%w: configuration is owned by the collaborator while %s", ErrInvalidTransition, current.Status)
		}

		next := current.Clone()
		if cmd.Name != nil {
			next.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.Description != nil {
			next.Description = *cmd.Description
		}

		if cmd.Categories != nil || cmd.Configuration != nil {
			submitted := current.Schema().Clone()
			if cmd.Categories != nil {
				submitted.Categories = cmd.Categories
			}
			if cmd.Configuration != nil {
				submitted.Configuration = *cmd.Configuration
			}

			normalized, err := schema.Normalize(current.Schema(), submitted, s.now())
			if err != nil {
				return nil, err
			}
			next.SetSchema(normalized)
		}

		if current.Status == StatusActive {
			if err := schema.ValidateActive(next.Configuration); err != nil {
				return nil, err
			}
		}

		saved, err := s.store.Save(ctx, next, current.Status)
		if errors.Is(err, errStale) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("workflow configuration updated",
			"id", id,
			"status", saved.Status,
			"fields", len(saved.Configuration.Fields),
			"tables", len(saved.Configuration.Tables),
		)
		return s.annotated(saved), nil
	}

	return nil, ErrConflict
}

func (s *system) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("workflow deleted", "id", id)
	return nil
}

// transition applies trigger under a status compare-and-swap. guard runs on the
// current record before the graph is consulted; mutate edits the copy to be saved.
// A lost race re-reads and re-evaluates, so a duplicate signal observes the new
// status rather than overwriting it.
func (s *system) transition(
	ctx context.Context,
	id uuid.UUID,
	trigger Trigger,
	guard func(*Workflow) error,
	mutate func(*Workflow) error,
	args ...any,
) (*Workflow, error) {
	for range maxAttempts {
		current, err := s.store.Find(ctx, id)
		if err != nil {
			return nil, err
		}

		if guard != nil {
			if err := guard(current); err != nil {
				return nil, err
			}
		}

		to, err := Next(current.Status, trigger, args...)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		next.Status = to
		if mutate != nil {
			if err := mutate(next); err != nil {
				return nil, err
			}
		}

		saved, err := s.store.Save(ctx, next, current.Status)
		if errors.Is(err, errStale) {
			s.logger.Debug("workflow status changed during transition, retrying", "id", id, "trigger", trigger)
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.RecordWorkflowTransition(string(current.Status), string(to))
		s.logger.Info("workflow transition",
			"id", id,
			"trigger", trigger,
			"from", current.Status,
			"to", to,
		)
		return saved, nil
	}

	return nil, ErrConflict
}

func (s *system) annotated(w *Workflow) *Workflow {
	w.Configuration = schema.Annotate(w.Configuration, w.SampleDataExtractedAt)
	return w
}

func (s *system) dispatchAnalyze(w *Workflow) {
	id, fileID := w.ID, w.FileID

	s.dispatcher.Go("analyze "+id.String(), func(ctx context.Context) {
		doc, err := s.documentRef(ctx, fileID)
		if err != nil {
			s.recordFailure(ctx, id, err)
			return
		}

		analysis, err := s.extractor.Analyze(ctx, extraction.AnalyzeRequest{
			WorkflowID: id,
			Document:   doc,
		})
		if errors.Is(err, extraction.ErrDeferred) {
			s.logger.Info("analysis awaiting callback", "id", id)
			return
		}
		if err != nil {
			s.recordFailure(ctx, id, err)
			return
		}

		if _, err := s.AnalysisCompleted(context.WithoutCancel(ctx), id, *analysis); err != nil {
			if code := fault.CodeOf(err); code == fault.InvalidInput || code == fault.ReferentialViolation {
				s.recordFailure(ctx, id, fmt.Errorf("collaborator returned an unusable schema: %w", err))
				return
			}
			s.logger.Warn("analysis result not applied", "id", id, "error", err)
		}
	})
}

func (s *system) dispatchExtract(w *Workflow) {
	id, fileID, current := w.ID, w.FileID, w.Schema().Clone()

	s.dispatcher.Go("extract samples "+id.String(), func(ctx context.Context) {
		doc, err := s.documentRef(ctx, fileID)
		if err != nil {
			s.recordFailure(ctx, id, err)
			return
		}

		result, err := s.extractor.Extract(ctx, extraction.ExtractRequest{
			WorkflowID: id,
			Document:   doc,
			Schema:     current,
		})
		if errors.Is(err, extraction.ErrDeferred) {
			s.logger.Info("sample extraction awaiting callback", "id", id)
			return
		}
		if err != nil {
			s.recordFailure(ctx, id, err)
			return
		}

		if _, err := s.SamplesExtracted(context.WithoutCancel(ctx), id, result); err != nil {
			if fault.CodeOf(err) == fault.InvalidInput {
				s.recordFailure(ctx, id, err)
				return
			}
			s.logger.Warn("sample data not applied", "id", id, "error", err)
		}
	})
}

// recordFailure moves the workflow to error. Work interrupted by shutdown is
// left in place so it can be retried.
func (s *system) recordFailure(ctx context.Context, id uuid.UUID, cause error) {
	if ctx.Err() != nil {
		s.logger.Warn("workflow collaborator call interrupted", "id", id, "error", cause)
		return
	}

	s.logger.Warn("workflow collaborator call failed", "id", id, "error", cause)
	if _, err := s.AnalysisFailed(context.WithoutCancel(ctx), id, cause.Error()); err != nil {
		s.logger.Info("workflow failure not recorded", "id", id, "error", err)
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
