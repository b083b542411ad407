package workflows_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/extraction"
	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/auth"
	"github.com/JaimeStill/sift/pkg/handlers"
	"github.com/JaimeStill/sift/pkg/pagination"
)

type mockSystem struct {
	listFn      func(ctx context.Context, page pagination.PageRequest, filters workflows.Filters) (*pagination.PageResult[workflows.Workflow], error)
	findFn      func(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error)
	createFn    func(ctx context.Context, cmd workflows.CreateCommand) (*workflows.Workflow, error)
	uploadFn    func(ctx context.Context, cmd workflows.UploadCommand) (*workflows.Workflow, error)
	signalFn    func(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error)
	completedFn func(ctx context.Context, id uuid.UUID, analysis extraction.Analysis) (*workflows.Workflow, error)
	samplesFn   func(ctx context.Context, id uuid.UUID, result *schema.ExtractionResult) (*workflows.Workflow, error)
	failedFn    func(ctx context.Context, id uuid.UUID, reason string) (*workflows.Workflow, error)
	updateFn    func(ctx context.Context, id uuid.UUID, cmd workflows.UpdateCommand) (*workflows.Workflow, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockSystem) Handler(maxUploadSize int64) *workflows.Handler {
	return workflows.NewHandler(m, discard(), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}, maxUploadSize)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters workflows.Filters) (*pagination.PageResult[workflows.Workflow], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd workflows.CreateCommand) (*workflows.Workflow, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) CreateFromUpload(ctx context.Context, cmd workflows.UploadCommand) (*workflows.Workflow, error) {
	return m.uploadFn(ctx, cmd)
}

func (m *mockSystem) BeginAnalysis(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	return m.signalFn(ctx, id)
}

func (m *mockSystem) AnalysisCompleted(ctx context.Context, id uuid.UUID, analysis extraction.Analysis) (*workflows.Workflow, error) {
	return m.completedFn(ctx, id, analysis)
}

func (m *mockSystem) SamplesExtracted(ctx context.Context, id uuid.UUID, result *schema.ExtractionResult) (*workflows.Workflow, error) {
	return m.samplesFn(ctx, id, result)
}

func (m *mockSystem) AnalysisFailed(ctx context.Context, id uuid.UUID, reason string) (*workflows.Workflow, error) {
	return m.failedFn(ctx, id, reason)
}

func (m *mockSystem) Publish(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	return m.signalFn(ctx, id)
}

func (m *mockSystem) ReExtract(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	return m.signalFn(ctx, id)
}

func (m *mockSystem) UpdateConfiguration(ctx context.Context, id uuid.UUID, cmd workflows.UpdateCommand) (*workflows.Workflow, error) {
	return m.updateFn(ctx, id, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func setupMux(h *workflows.Handler) http.Handler {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

var workflowID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

func sampleWorkflow(status workflows.Status) *workflows.Workflow {
	return &workflows.Workflow{ID: workflowID, Name: "Invoices", Status: status, FileID: uuid.New()}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var body handlers.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandlerCreateUpload(t *testing.T) {
	var got workflows.UploadCommand
	sys := &mockSystem{
		uploadFn: func(_ context.Context, cmd workflows.UploadCommand) (*workflows.Workflow, error) {
			got = cmd
			return sampleWorkflow(workflows.StatusAnalyzing), nil
		},
	}
	mux := setupMux(sys.Handler(10 << 20))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("name", "Invoices")
	part, _ := mw.CreateFormFile("file", "invoice.txt")
	part.Write([]byte("plain text invoice"))
	mw.Close()

	req := httptest.NewRequest("POST", "/workflows", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{OwnerID: "u-9", OrganizationID: "org-2"}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	if got.Name != "Invoices" || got.Document.Filename != "invoice.txt" {
		t.Errorf("command = %+v", got)
	}
	if got.OwnerID != "u-9" || got.OrganizationID != "org-2" {
		t.Errorf("identity = %q/%q", got.OwnerID, got.OrganizationID)
	}
	if !strings.HasPrefix(got.Document.ContentType, "text/plain") {
		t.Errorf("content type = %q", got.Document.ContentType)
	}
}

func TestHandlerCreateFromFileID(t *testing.T) {
	fileID := uuid.New()
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd workflows.CreateCommand) (*workflows.Workflow, error) {
			if cmd.FileID != fileID {
				t.Errorf("file id = %v", cmd.FileID)
			}
			return sampleWorkflow(workflows.StatusDraft), nil
		},
	}
	mux := setupMux(sys.Handler(1 << 20))

	req := httptest.NewRequest("POST", "/workflows", strings.NewReader(`{"file_id":"`+fileID.String()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestHandlerSignals(t *testing.T) {
	tests := []struct {
		path   string
		status int
	}{
		{"/workflows/" + workflowID.String() + "/analyze", http.StatusAccepted},
		{"/workflows/" + workflowID.String() + "/publish", http.StatusOK},
		{"/workflows/" + workflowID.String() + "/re-extract", http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			sys := &mockSystem{
				signalFn: func(_ context.Context, id uuid.UUID) (*workflows.Workflow, error) {
					return sampleWorkflow(workflows.StatusActive), nil
				},
			}
			rec := httptest.NewRecorder()
			setupMux(sys.Handler(1<<20)).ServeHTTP(rec, httptest.NewRequest("POST", tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandlerPublishErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty configuration", schema.ErrEmptyConfiguration, http.StatusConflict, "EmptyConfiguration"},
		{"invalid transition", workflows.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},
		{"not found", workflows.ErrNotFound, http.StatusNotFound, "NotFound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				signalFn: func(context.Context, uuid.UUID) (*workflows.Workflow, error) { return nil, tt.err },
			}
			rec := httptest.NewRecorder()
			setupMux(sys.Handler(1<<20)).ServeHTTP(rec, httptest.NewRequest("POST", "/workflows/"+workflowID.String()+"/publish", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if body := decodeError(t, rec); string(body.Code) != tt.code {
				t.Errorf("code = %s, want %s", body.Code, tt.code)
			}
		})
	}
}

func TestHandlerUpdate(t *testing.T) {
	sys := &mockSystem{
		updateFn: func(_ context.Context, id uuid.UUID, cmd workflows.UpdateCommand) (*workflows.Workflow, error) {
			if cmd.Name == nil || *cmd.Name != "Renamed" {
				t.Errorf("name = %v", cmd.Name)
			}
			if cmd.Configuration == nil || len(cmd.Configuration.Fields) != 1 {
				t.Errorf("configuration = %+v", cmd.Configuration)
			}
			return sampleWorkflow(workflows.StatusConfiguring), nil
		},
	}

	body := `{"name":"Renamed","categories":[{"id":"c1","display_name":"Header"}],"configuration":{"fields":[{"category_id":"c1","name":"total"}],"tables":[]}}`
	req := httptest.NewRequest("PUT", "/workflows/"+workflowID.String(), strings.NewReader(body))
	rec := httptest.NewRecorder()
	setupMux(sys.Handler(1<<20)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
}

func TestHandlerUpdateReferentialViolation(t *testing.T) {
	sys := &mockSystem{
		updateFn: func(context.Context, uuid.UUID, workflows.UpdateCommand) (*workflows.Workflow, error) {
			return nil, schema.ErrReferentialViolation
		},
	}

	req := httptest.NewRequest("PUT", "/workflows/"+workflowID.String(), strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	setupMux(sys.Handler(1<<20)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestHandlerCallbacks(t *testing.T) {
	var reason string
	sys := &mockSystem{
		completedFn: func(_ context.Context, _ uuid.UUID, a extraction.Analysis) (*workflows.Workflow, error) {
			if len(a.Schema.Configuration.Fields) != 1 {
				t.Errorf("analysis fields = %d", len(a.Schema.Configuration.Fields))
			}
			return sampleWorkflow(workflows.StatusExtracting), nil
		},
		failedFn: func(_ context.Context, _ uuid.UUID, r string) (*workflows.Workflow, error) {
			reason = r
			return sampleWorkflow(workflows.StatusError), nil
		},
		samplesFn: func(_ context.Context, _ uuid.UUID, r *schema.ExtractionResult) (*workflows.Workflow, error) {
			return sampleWorkflow(workflows.StatusConfiguring), nil
		},
	}
	mux := setupMux(sys.Handler(1 << 20))
	base := "/workflows/" + workflowID.String()

	requests := []struct {
		path string
		body string
	}{
		{base + "/analysis/complete", `{"schema":{"categories":[],"configuration":{"fields":[{"name":"total"}],"tables":[]}}}`},
		{base + "/analysis/fail", `{"reason":"unreadable scan"}`},
		{base + "/samples", `{"fields":[{"field_name":"total","value":12.5}],"tables":[]}`},
	}

	for _, r := range requests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", r.path, strings.NewReader(r.body)))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", r.path, rec.Code)
		}
	}

	if reason != "unreadable scan" {
		t.Errorf("reason = %q", reason)
	}
}

func TestHandlerInvalidID(t *testing.T) {
	sys := &mockSystem{}
	rec := httptest.NewRecorder()
	setupMux(sys.Handler(1<<20)).ServeHTTP(rec, httptest.NewRequest("GET", "/workflows/not-a-uuid", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerDelete(t *testing.T) {
	sys := &mockSystem{
		deleteFn: func(context.Context, uuid.UUID) error { return nil },
	}
	rec := httptest.NewRecorder()
	setupMux(sys.Handler(1<<20)).ServeHTTP(rec, httptest.NewRequest("DELETE", "/workflows/"+workflowID.String(), nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
