package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/internal/extraction"
	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/pkg/auth"
	"github.com/JaimeStill/sift/pkg/handlers"
	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/routes"
)

// Handler provides HTTP endpoints for workflow operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "workflows"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for workflow endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/analyze", Handler: h.Analyze},
			{Method: "POST", Pattern: "/{id}/publish", Handler: h.Publish},
			{Method: "POST", Pattern: "/{id}/re-extract", Handler: h.ReExtract},
			{Method: "POST", Pattern: "/{id}/analysis/complete", Handler: h.AnalysisComplete},
			{Method: "POST", Pattern: "/{id}/analysis/fail", Handler: h.AnalysisFail},
			{Method: "POST", Pattern: "/{id}/samples", Handler: h.Samples},
		},
	}
}

// List returns a paginated list of workflows with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Create accepts either a multipart upload with a "file" part, which creates the
// workflow and begins analysis, or a JSON body referencing an existing document,
// which creates a draft.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		h.upload(w, r)
		return
	}

	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		return
	}
	h.identify(r, &cmd.OwnerID, &cmd.OrganizationID)

	wf, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, wf)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, documents.ErrFileTooLarge)
		return
	}

	_, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: file part required", ErrInvalidInput))
		return
	}

	doc, err := documents.CommandFromUpload(h.logger, header)
	if err != nil {
		handlers.RespondError(w, h.logger, documents.MapHTTPStatus(err), err)
		return
	}

	cmd := UploadCommand{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Document:    doc,
	}
	h.identify(r, &cmd.OwnerID, &cmd.OrganizationID)

	wf, err := h.sys.CreateFromUpload(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, wf)
}

// Find returns a single workflow with outdated annotations.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	wf, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, wf)
}

// Update edits the name, description, categories, or configuration of a workflow.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd UpdateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		return
	}

	wf, err := h.sys.UpdateConfiguration(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, wf)
}

// Delete removes a workflow and its executions.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Analyze begins analysis of a draft workflow.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, http.StatusAccepted, h.sys.BeginAnalysis)
}

// Publish activates a configured workflow.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, http.StatusOK, h.sys.Publish)
}

// ReExtract refreshes the sample data of a configuring or active workflow.
func (h *Handler) ReExtract(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, http.StatusAccepted, h.sys.ReExtract)
}

// AnalysisComplete receives the analysis result from the extraction collaborator.
func (h *Handler) AnalysisComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var analysis extraction.Analysis
	if err := json.NewDecoder(r.Body).Decode(&analysis); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		return
	}

	wf, err := h.sys.AnalysisCompleted(r.Context(), id, analysis)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, wf)
}

// AnalysisFail receives an analysis or sample extraction failure from the collaborator.
func (h *Handler) AnalysisFail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd FailCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		return
	}

	wf, err := h.sys.AnalysisFailed(r.Context(), id, cmd.Reason)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, wf)
}

// Samples receives sample data extracted with the current schema.
func (h *Handler) Samples(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var result schema.ExtractionResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		return
	}

	wf, err := h.sys.SamplesExtracted(r.Context(), id, &result)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, wf)
}

func (h *Handler) signal(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	fn func(ctx context.Context, id uuid.UUID) (*Workflow, error),
) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	wf, err := fn(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, status, wf)
}

func (h *Handler) identify(r *http.Request, owner, organization *string) {
	if id, ok := auth.FromContext(r.Context()); ok {
		*owner = id.OwnerID
		*organization = id.OrganizationID
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}
