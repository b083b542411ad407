package documents_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/pkg/auth"
	"github.com/JaimeStill/sift/pkg/pagination"
)

type mockSystem struct {
	listFn    func(ctx context.Context, page pagination.PageRequest, filters documents.Filters) (*pagination.PageResult[documents.Document], error)
	findFn    func(ctx context.Context, id uuid.UUID) (*documents.Document, error)
	createFn  func(ctx context.Context, cmd documents.CreateCommand) (*documents.Document, error)
	deleteFn  func(ctx context.Context, id uuid.UUID) error
	presignFn func(ctx context.Context, id uuid.UUID) (*documents.URL, error)
}

func (m *mockSystem) Handler(maxUploadSize int64) *documents.Handler {
	return documents.NewHandler(m, discard(), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}, maxUploadSize)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters documents.Filters) (*pagination.PageResult[documents.Document], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd documents.CreateCommand) (*documents.Document, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSystem) PresignURL(ctx context.Context, id uuid.UUID) (*documents.URL, error) {
	return m.presignFn(ctx, id)
}

func (m *mockSystem) Resolve(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	return m.findFn(ctx, id)
}

func setupMux(h *documents.Handler) http.Handler {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func sampleDoc() documents.Document {
	return documents.Document{
		ID:          uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		OwnerID:     "u-1",
		Filename:    "invoice.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1024,
		PageCount:   ptr(5),
		StorageKey:  "documents/550e8400-e29b-41d4-a716-446655440000/invoice.pdf",
		UploadedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestHandlerList(t *testing.T) {
	doc := sampleDoc()
	var captured documents.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f documents.Filters) (*pagination.PageResult[documents.Document], error) {
			captured = f
			result := pagination.NewPageResult([]documents.Document{doc}, 1, 1, 20)
			return &result, nil
		},
	}

	mux := setupMux(sys.Handler(1 << 20))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/documents?filename=inv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result pagination.PageResult[documents.Document]
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total != 1 || result.Data[0].ID != doc.ID {
		t.Errorf("result = %+v", result)
	}
	if captured.Filename == nil || *captured.Filename != "inv" {
		t.Errorf("filename filter = %v, want inv", captured.Filename)
	}
}

func TestHandlerFind(t *testing.T) {
	doc := sampleDoc()
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*documents.Document, error) {
			if id != doc.ID {
				return nil, documents.ErrNotFound
			}
			return &doc, nil
		},
	}
	mux := setupMux(sys.Handler(1 << 20))

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"found", "/documents/" + doc.ID.String(), http.StatusOK},
		{"not found", "/documents/" + uuid.NewString(), http.StatusNotFound},
		{"invalid id", "/documents/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandlerURL(t *testing.T) {
	doc := sampleDoc()
	sys := &mockSystem{
		presignFn: func(_ context.Context, id uuid.UUID) (*documents.URL, error) {
			return &documents.URL{URL: "https://blob/" + id.String(), ExpiresAt: doc.UploadedAt}, nil
		},
	}
	mux := setupMux(sys.Handler(1 << 20))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/documents/"+doc.ID.String()+"/url", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var u documents.URL
	if err := json.NewDecoder(rec.Body).Decode(&u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.URL != "https://blob/"+doc.ID.String() {
		t.Errorf("url = %q", u.URL)
	}
}

func TestHandlerUpload(t *testing.T) {
	var captured documents.CreateCommand
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd documents.CreateCommand) (*documents.Document, error) {
			captured = cmd
			d := sampleDoc()
			d.Filename = cmd.Filename
			return &d, nil
		},
	}
	mux := setupMux(sys.Handler(1 << 20))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	part.Write([]byte("plain text content"))
	mw.Close()

	req := httptest.NewRequest("POST", "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{OwnerID: "u-7"}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if captured.Filename != "notes.txt" {
		t.Errorf("filename = %q", captured.Filename)
	}
	if captured.OwnerID != "u-7" {
		t.Errorf("owner = %q, want u-7", captured.OwnerID)
	}
	if captured.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("content type = %q", captured.ContentType)
	}
	if captured.PageCount != nil {
		t.Errorf("page count = %v, want nil for text", captured.PageCount)
	}

	t.Run("missing file part", func(t *testing.T) {
		var empty bytes.Buffer
		w := multipart.NewWriter(&empty)
		w.WriteField("other", "x")
		w.Close()

		req := httptest.NewRequest("POST", "/documents", &empty)
		req.Header.Set("Content-Type", w.FormDataContentType())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerDelete(t *testing.T) {
	sys := &mockSystem{
		deleteFn: func(_ context.Context, id uuid.UUID) error { return nil },
	}
	mux := setupMux(sys.Handler(1 << 20))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("DELETE", "/documents/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
