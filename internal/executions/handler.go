package executions

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/pkg/auth"
	"github.com/JaimeStill/sift/pkg/handlers"
	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/routes"
)

// Handler provides HTTP endpoints for execution submission, status, and signals.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
	pollInterval  time.Duration
}

// ExecuteRequest is the JSON body of the single execute endpoint.
type ExecuteRequest struct {
	FileID uuid.UUID `json:"file_id"`
}

// BulkRequest is the JSON body of the bulk execute endpoint.
type BulkRequest struct {
	FileIDs []uuid.UUID `json:"file_ids"`
}

// NewHandler creates a Handler. pollInterval paces the watch channel.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
	pollInterval time.Duration,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "executions"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
		pollInterval:  pollInterval,
	}
}

// Routes returns the execution endpoints together with the execution routes
// nested under workflows.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/executions",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
					{Method: "GET", Pattern: "/{id}/status", Handler: h.Status},
					{Method: "GET", Pattern: "/{id}/watch", Handler: h.Watch},
					{Method: "POST", Pattern: "/{id}/processing", Handler: h.Processing},
					{Method: "POST", Pattern: "/{id}/complete", Handler: h.Complete},
					{Method: "POST", Pattern: "/{id}/fail", Handler: h.Fail},
				},
			},
			{
				Prefix: "/workflows",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/{id}/execute", Handler: h.Execute},
					{Method: "POST", Pattern: "/{id}/execute-bulk", Handler: h.ExecuteBulk},
					{Method: "GET", Pattern: "/{id}/executions", Handler: h.ListByWorkflow},
				},
			},
		},
	}
}

// List returns a paginated list of executions with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, FiltersFromQuery(r.URL.Query()))
}

// ListByWorkflow returns a paginated list of the executions of one workflow.
func (h *Handler) ListByWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	filters := FiltersFromQuery(r.URL.Query())
	filters.WorkflowID = &id
	h.list(w, r, filters)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filters Filters) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a full execution.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	e, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, e)
}

// Status returns the polling view of an execution.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	view, err := h.sys.Status(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, view)
}

// Execute runs an active workflow against one file, given as a multipart "file"
// part or a JSON file_id.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var src Source
	if isMultipart(r) {
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, documents.ErrFileTooLarge)
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: file part required", ErrInvalidInput))
			return
		}
		upload, err := documents.CommandFromUpload(h.logger, header)
		if err != nil {
			handlers.RespondError(w, h.logger, documents.MapHTTPStatus(err), err)
			return
		}
		src.Upload = &upload
	} else {
		var req ExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == uuid.Nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: file_id required", ErrInvalidInput))
			return
		}
		src.FileID = req.FileID
	}

	out, err := h.sys.ExecuteBulk(r.Context(), BulkCommand{
		WorkflowID: id,
		Sources:    []Source{src},
		OwnerID:    owner(r),
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, out[0])
}

// ExecuteBulk runs an active workflow against many files, given as multipart
// "files" parts or a JSON list of file_ids.
func (h *Handler) ExecuteBulk(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var sources []Source
	if isMultipart(r) {
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, documents.ErrFileTooLarge)
			return
		}
		parts := r.MultipartForm.File["files"]
		if len(parts) == 0 {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: files parts required", ErrInvalidInput))
			return
		}
		sources = h.uploadSources(parts)
	} else {
		var req BulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidInput, err))
			return
		}
		for _, fileID := range req.FileIDs {
			sources = append(sources, Source{FileID: fileID})
		}
	}

	out, err := h.sys.ExecuteBulk(r.Context(), BulkCommand{
		WorkflowID: id,
		Sources:    sources,
		OwnerID:    owner(r),
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, out)
}

// uploadSources reads every part. A part that cannot be read still becomes a
// source so that its failure is recorded as an execution.
func (h *Handler) uploadSources(parts []*multipart.FileHeader) []Source {
	sources := make([]Source, len(parts))
	for i, header := range parts {
		cmd, err := documents.CommandFromUpload(h.logger, header)
		if err != nil {
			h.logger.Warn("unreadable upload part", "filename", header.Filename, "error", err)
			cmd = documents.CreateCommand{Filename: header.Filename}
		}
		cmd.ID = uuid.New()
		sources[i] = Source{Upload: &cmd}
	}
	return sources
}

// Processing receives the processing signal.
func (h *Handler) Processing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	e, err := h.sys.MarkProcessing(r.Context(), id)
	h.respondSignal(w, "processing", e, err)
}

// Complete receives the extraction result of an execution.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd CompleteCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		return
	}

	e, err := h.sys.Complete(r.Context(), id, cmd.Result)
	h.respondSignal(w, "complete", e, err)
}

// Fail receives a failure signal for an execution.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd FailCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		return
	}

	e, err := h.sys.Fail(r.Context(), id, cmd.Reason)
	h.respondSignal(w, "fail", e, err)
}

// respondSignal answers a duplicate terminal signal with the unchanged execution.
func (h *Handler) respondSignal(w http.ResponseWriter, signal string, e *Execution, err error) {
	if errors.Is(err, ErrAlreadyTerminal) && e != nil {
		h.logger.Info("duplicate signal acknowledged", "id", e.ID, "signal", signal, "status", e.Status)
		handlers.RespondJSON(w, http.StatusOK, e)
		return
	}
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, e)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

func isMultipart(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "multipart/form-data"
}

func owner(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id.OwnerID
	}
	return ""
}
