package executions_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/internal/executions"
	"github.com/JaimeStill/sift/internal/extraction"
	"github.com/JaimeStill/sift/internal/memory"
	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/fault"
	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// queued holds dispatched work until the test runs it.
type queued struct {
	mu   sync.Mutex
	jobs []func(ctx context.Context)
}

func (q *queued) Go(_ string, fn func(ctx context.Context)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, fn)
}

func (q *queued) run(ctx context.Context) int {
	q.mu.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.mu.Unlock()

	for _, job := range jobs {
		job(ctx)
	}
	return len(jobs)
}

type mockClient struct {
	extractFn func(ctx context.Context, req extraction.ExtractRequest) (*schema.ExtractionResult, error)
}

func (m *mockClient) Analyze(context.Context, extraction.AnalyzeRequest) (*extraction.Analysis, error) {
	return nil, extraction.ErrDeferred
}

func (m *mockClient) Extract(ctx context.Context, req extraction.ExtractRequest) (*schema.ExtractionResult, error) {
	if m.extractFn == nil {
		return nil, extraction.ErrDeferred
	}
	return m.extractFn(ctx, req)
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db         *memdb.MemDB
	sys        executions.System
	workflows  workflows.System
	docs       documents.System
	blobs      *storage.Memory
	dispatcher *queued
}

func newFixture(t *testing.T, client extraction.Client) fixture {
	t.Helper()
	return newFixtureWithStore(t, client, func(s executions.Store) executions.Store { return s })
}

// newFixtureWithStore builds a fixture whose execution store is wrapped by wrap.
func newFixtureWithStore(t *testing.T, client extraction.Client, wrap func(executions.Store) executions.Store) fixture {
	t.Helper()

	db, err := memory.New()
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}

	page := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	blobs := storage.NewMemory(&storage.Config{ContainerName: "documents", PresignTTL: "15m"}, discard())
	docs := documents.New(documents.NewMemoryStore(db), blobs, discard(), page, 15*time.Minute)
	wfs := workflows.New(workflows.NewMemoryStore(db), docs, extraction.Deferred(), &queued{}, discard(), page)

	d := &queued{}
	sys := executions.New(
		wrap(executions.NewMemoryStore(db)),
		wfs,
		docs,
		client,
		d,
		discard(),
		page,
		10*time.Millisecond,
		executions.WithClock(func() time.Time { return epoch }),
	)

	return fixture{db: db, sys: sys, workflows: wfs, docs: docs, blobs: blobs, dispatcher: d}
}

func (f fixture) upload(t *testing.T, name string) *documents.Document {
	t.Helper()
	doc, err := f.docs.Create(context.Background(), documents.CreateCommand{
		Data:        []byte("document " + name),
		Filename:    name,
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return doc
}

// workflow creates a workflow over a fresh document and drives it to configuring,
// then to active when publish is set.
func (f fixture) workflow(t *testing.T, publish bool) *workflows.Workflow {
	t.Helper()
	ctx := context.Background()

	doc := f.upload(t, "sample.txt")
	wf, err := f.workflows.Create(ctx, workflows.CreateCommand{FileID: doc.ID})
	if err != nil {
		t.Fatalf("Create workflow: %v", err)
	}
	if _, err := f.workflows.BeginAnalysis(ctx, wf.ID); err != nil {
		t.Fatalf("BeginAnalysis: %v", err)
	}

	analysis := extraction.Analysis{
		Schema: schema.Schema{
			Categories: []schema.Category{{ID: "c", DisplayName: "Header"}},
			Configuration: schema.Configuration{
				Fields: []schema.Field{
					{CategoryID: "c", Name: "invoice_number"},
					{CategoryID: "c", Name: "total", Type: schema.FieldCurrency},
				},
				Tables: []schema.Table{{CategoryID: "c", Name: "items", Columns: []schema.Column{{Name: "sku"}}}},
			},
		},
		SampleData: result(),
	}
	wf, err = f.workflows.AnalysisCompleted(ctx, wf.ID, analysis)
	if err != nil {
		t.Fatalf("AnalysisCompleted: %v", err)
	}

	if publish {
		wf, err = f.workflows.Publish(ctx, wf.ID)
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	return wf
}

func result() *schema.ExtractionResult {
	return &schema.ExtractionResult{
		Fields: []schema.ExtractedField{{FieldName: "total", Value: 42.5}},
	}
}

func TestEnqueueRequiresActiveWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockClient{})
	wf := f.workflow(t, false)
	doc := f.upload(t, "invoice.txt")

	_, err := f.sys.Enqueue(ctx, executions.EnqueueCommand{WorkflowID: wf.ID, FileID: doc.ID})
	if !errors.Is(err, executions.ErrWorkflowNotActive) {
		t.Fatalf("err = %v, want ErrWorkflowNotActive", err)
	}
	if code := fault.CodeOf(err); code != fault.WorkflowNotActive {
		t.Errorf("code = %s", code)
	}

	page, err := f.sys.List(ctx, pagination.PageRequest{Page: 1, PageSize: 10}, executions.Filters{WorkflowID: &wf.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("%d executions created, want 0", page.Total)
	}
}

func TestSignalsLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockClient{})
	wf := f.workflow(t, true)
	doc := f.upload(t, "invoice.txt")

	e, err := f.sys.Enqueue(ctx, executions.EnqueueCommand{WorkflowID: wf.ID, FileID: doc.ID})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if e.Status != executions.StatusQueued || !e.StartedAt.Equal(epoch) {
		t.Errorf("enqueued = %s at %v", e.Status, e.StartedAt)
	}
	if e.Filename != "invoice.txt" {
		t.Errorf("filename = %q", e.Filename)
	}

	processing, err := f.sys.MarkProcessing(ctx, e.ID)
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if processing.Status != executions.StatusProcessing || processing.ProcessingAt == nil {
		t.Errorf("processing = %+v", processing)
	}

	again, err := f.sys.MarkProcessing(ctx, e.ID)
	if err != nil {
		t.Fatalf("repeated MarkProcessing: %v", err)
	}
	if again.Status != executions.StatusProcessing {
		t.Errorf("status = %s", again.Status)
	}

	if _, err := f.sys.Complete(ctx, e.ID, &schema.ExtractionResult{
		Fields: []schema.ExtractedField{{FieldName: "total", Value: map[string]any{"nested": true}}},
	}); !errors.Is(err, schema.ErrInvalidResult) {
		t.Errorf("invalid result: err = %v, want ErrInvalidResult", err)
	}

	done, err := f.sys.Complete(ctx, e.ID, result())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != executions.StatusCompleted || done.CompletedAt == nil || done.ExtractionResult == nil {
		t.Errorf("completed = %+v", done)
	}
	if done.ErrorMessage != nil {
		t.Errorf("error message set on completed execution")
	}
}

func TestTerminalImmutability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockClient{})
	wf := f.workflow(t, true)
	doc := f.upload(t, "invoice.txt")

	e, err := f.sys.Enqueue(ctx, executions.EnqueueCommand{WorkflowID: wf.ID, FileID: doc.ID})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := range 10 {
		wg.Go(func() {
			var err error
			if i%2 == 0 {
				_, err = f.sys.Complete(ctx, e.ID, result())
			} else {
				_, err = f.sys.Fail(ctx, e.ID, "collaborator crashed")
			}
			switch {
			case err == nil:
				mu.Lock()
				applied++
				mu.Unlock()
			case !errors.Is(err, executions.ErrAlreadyTerminal):
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("%d terminal signals applied, want 1", applied)
	}

	final, err := f.sys.Find(ctx, e.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	for _, signal := range []func() (*executions.Execution, error){
		func() (*executions.Execution, error) { return f.sys.MarkProcessing(ctx, e.ID) },
		func() (*executions.Execution, error) { return f.sys.Complete(ctx, e.ID, result()) },
		func() (*executions.Execution, error) { return f.sys.Fail(ctx, e.ID, "late") },
	} {
		got, err := signal()
		if !errors.Is(err, executions.ErrAlreadyTerminal) {
			t.Errorf("err = %v, want ErrAlreadyTerminal", err)
		}
		if got == nil || got.Status != final.Status {
			t.Errorf("duplicate signal returned %+v", got)
		}
	}

	after, err := f.sys.Find(ctx, e.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !after.CompletedAt.Equal(*final.CompletedAt) || after.Status != final.Status {
		t.Errorf("terminal execution changed: %+v -> %+v", final, after)
	}
	if (after.ErrorMessage == nil) != (final.ErrorMessage == nil) {
		t.Error("error message changed")
	}
}

func TestStatusIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockClient{})
	wf := f.workflow(t, true)
	doc := f.upload(t, "invoice.txt")

	e, err := f.sys.Enqueue(ctx, executions.EnqueueCommand{WorkflowID: wf.ID, FileID: doc.ID})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := f.sys.Fail(ctx, e.ID, "unreadable"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	first, err := f.sys.Status(ctx, e.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for range 3 {
		view, err := f.sys.Status(ctx, e.ID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if view.Status != first.Status || *view.ErrorMessage != *first.ErrorMessage || view.Result != nil {
			t.Errorf("status view changed: %+v", view)
		}
	}
	if first.Status != executions.StatusFailed || *first.ErrorMessage != "unreadable" {
		t.Errorf("view = %+v", first)
	}

	if _, err := f.sys.Status(ctx, uuid.New()); !errors.Is(err, executions.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

// flakyStore fails the nth Create call.
type flakyStore struct {
	executions.Store
	mu    sync.Mutex
	calls int
	fail  int
}

func (s *flakyStore) Create(ctx context.Context, e *executions.Execution) (*executions.Execution, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if n == s.fail {
		return nil, errors.New("connection reset")
	}
	return s.Store.Create(ctx, e)
}

func TestExecuteBulkRecordFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithStore(t, &mockClient{}, func(s executions.Store) executions.Store {
		return &flakyStore{Store: s, fail: 2}
	})
	wf := f.workflow(t, true)

	docs := []*documents.Document{f.upload(t, "a.txt"), f.upload(t, "b.txt"), f.upload(t, "c.txt")}
	sources := make([]executions.Source, len(docs))
	for i, d := range docs {
		sources[i] = executions.Source{FileID: d.ID}
	}

	out, err := f.sys.ExecuteBulk(ctx, executions.BulkCommand{WorkflowID: wf.ID, Sources: sources})
	if err != nil {
		t.Fatalf("ExecuteBulk: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("%d executions, want 3", len(out))
	}

	for i, e := range out {
		if e.FileID != docs[i].ID {
			t.Errorf("execution %d file = %v, want %v", i, e.FileID, docs[i].ID)
		}
	}
	if out[0].Status != executions.StatusQueued || out[2].Status != executions.StatusQueued {
		t.Errorf("recorded executions = %s, %s; want queued", out[0].Status, out[2].Status)
	}
	if out[1].Status != executions.StatusFailed || out[1].ErrorMessage == nil || out[1].CompletedAt == nil {
		t.Fatalf("unrecorded execution = %+v", out[1])
	}

	for _, i := range []int{0, 2} {
		if _, err := f.sys.Find(ctx, out[i].ID); err != nil {
			t.Errorf("Find execution %d: %v", i, err)
		}
	}
	if _, err := f.sys.Find(ctx, out[1].ID); !errors.Is(err, executions.ErrNotFound) {
		t.Errorf("Find unrecorded: err = %v, want ErrNotFound", err)
	}

	if n := f.dispatcher.run(ctx); n != 2 {
		t.Errorf("dispatched %d, want 2", n)
	}
}

func TestCompleteAfterTerminalIgnoresResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockClient{})
	wf := f.workflow(t, true)
	doc := f.upload(t, "invoice.txt")

	e, err := f.sys.Enqueue(ctx, executions.EnqueueCommand{WorkflowID: wf.ID, FileID: doc.ID})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := f.sys.Complete(ctx, e.ID, result()); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	malformed := &schema.ExtractionResult{
		Fields: []schema.ExtractedField{{FieldName: "total", Value: []any{1}}},
	}
	for _, r := range []*schema.ExtractionResult{malformed, nil} {
		got, err := f.sys.Complete(ctx, e.ID, r)
		if !errors.Is(err, executions.ErrAlreadyTerminal) {
			t.Fatalf("Complete(%v) err = %v, want ErrAlreadyTerminal", r, err)
		}
		if got.Status != executions.StatusCompleted {
			t.Errorf("status = %s, want completed", got.Status)
		}
	}

	live, err := f.sys.Enqueue(ctx, executions.EnqueueCommand{WorkflowID: wf.ID, FileID: doc.ID})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := f.sys.Complete(ctx, live.ID, malformed); fault.CodeOf(err) != fault.InvalidInput {
		t.Errorf("live malformed result err = %v, want InvalidInput", err)
	}
	still, _ := f.sys.Find(ctx, live.ID)
	if still.Status != executions.StatusQueued {
		t.Errorf("live execution status = %s, want queued", still.Status)
	}
}

func TestExecuteBulkIndependence(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	extracted := map[uuid.UUID]bool{}
	client := &mockClient{
		extractFn: func(_ context.Context, req extraction.ExtractRequest) (*schema.ExtractionResult, error) {
			mu.Lock()
			extracted[req.Document.ID] = true
			mu.Unlock()
			if len(req.Schema.Configuration.Fields) != 2 {
				t.Errorf("extract received %d fields", len(req.Schema.Configuration.Fields))
			}
			return result(), nil
		},
	}
	f := newFixture(t, client)
	wf := f.workflow(t, true)

	first := f.upload(t, "a.txt")
	second := f.upload(t, "b.txt")
	third := f.upload(t, "c.txt")
	if err := f.blobs.Delete(ctx, second.StorageKey); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	out, err := f.sys.ExecuteBulk(ctx, executions.BulkCommand{
		WorkflowID: wf.ID,
		Sources: []executions.Source{
			{FileID: first.ID},
			{FileID: second.ID},
			{FileID: third.ID},
		},
		OwnerID: "u-1",
	})
	if err != nil {
		t.Fatalf("ExecuteBulk: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("%d executions, want 3", len(out))
	}

	wantFiles := []uuid.UUID{first.ID, second.ID, third.ID}
	for i, e := range out {
		if e.FileID != wantFiles[i] {
			t.Errorf("execution %d file = %v, want %v", i, e.FileID, wantFiles[i])
		}
	}
	if out[0].Status != executions.StatusQueued || out[2].Status != executions.StatusQueued {
		t.Errorf("resolved executions = %s, %s; want queued", out[0].Status, out[2].Status)
	}
	if out[1].Status != executions.StatusFailed || out[1].ErrorMessage == nil {
		t.Fatalf("unresolved execution = %+v", out[1])
	}
	if got := *out[1].ErrorMessage; len(got) < len(fault.StorageUnavailable) || got[:len(fault.StorageUnavailable)] != string(fault.StorageUnavailable) {
		t.Errorf("reason = %q, want StorageUnavailable prefix", got)
	}

	if n := f.dispatcher.run(ctx); n != 2 {
		t.Fatalf("dispatched %d, want 2", n)
	}

	for _, i := range []int{0, 2} {
		e, err := f.sys.Find(ctx, out[i].ID)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if e.Status != executions.StatusCompleted {
			t.Errorf("execution %d = %s, want completed", i, e.Status)
		}
		if e.ProcessingAt == nil {
			t.Errorf("execution %d never marked processing", i)
		}
	}
	if extracted[second.ID] {
		t.Error("unresolved file was dispatched")
	}
}

func TestExecuteBulkUploads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockClient{})
	wf := f.workflow(t, true)

	preallocated := uuid.New()
	out, err := f.sys.ExecuteBulk(ctx, executions.BulkCommand{
		WorkflowID: wf.ID,
		Sources: []executions.Source{
			{Upload: &documents.CreateCommand{ID: preallocated, Data: []byte("hello"), Filename: "ok.txt", ContentType: "text/plain"}},
			{Upload: &documents.CreateCommand{Filename: "empty.txt"}},
		},
	})
	if err != nil {
		t.Fatalf("ExecuteBulk: %v", err)
	}

	if out[0].FileID != preallocated || out[0].Status != executions.StatusQueued {
		t.Errorf("upload execution = %+v", out[0])
	}
	if out[1].Status != executions.StatusFailed || out[1].FileID == uuid.Nil {
		t.Errorf("failed upload execution = %+v", out[1])
	}
}

func TestExecuteBulkInactiveWorkflow(t *testing.T) {
	f := newFixture(t, &mockClient{})
	wf := f.workflow(t, false)
	doc := f.upload(t, "a.txt")

	_, err := f.sys.ExecuteBulk(context.Background(), executions.BulkCommand{
		WorkflowID: wf.ID,
		Sources:    []executions.Source{{FileID: doc.ID}},
	})
	if !errors.Is(err, executions.ErrWorkflowNotActive) {
		t.Errorf("err = %v, want ErrWorkflowNotActive", err)
	}
}

func TestExtractionFailureRecorded(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		extractFn: func(context.Context, extraction.ExtractRequest) (*schema.ExtractionResult, error) {
			return nil, extraction.ErrExtractionFailed
		},
	}
	f := newFixture(t, client)
	wf := f.workflow(t, true)
	doc := f.upload(t, "a.txt")

	out, err := f.sys.ExecuteBulk(ctx, executions.BulkCommand{WorkflowID: wf.ID, Sources: []executions.Source{{FileID: doc.ID}}})
	if err != nil {
		t.Fatalf("ExecuteBulk: %v", err)
	}
	f.dispatcher.run(ctx)

	e, err := f.sys.Find(ctx, out[0].ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if e.Status != executions.StatusFailed || e.ErrorMessage == nil {
		t.Errorf("execution = %+v, want failed", e)
	}
}

func TestWorkflowDeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &mockClient{})
	wf := f.workflow(t, true)
	other := f.workflow(t, true)
	doc := f.upload(t, "a.txt")

	var ids []uuid.UUID
	for _, w := range []uuid.UUID{wf.ID, wf.ID, other.ID} {
		e, err := f.sys.Enqueue(ctx, executions.EnqueueCommand{WorkflowID: w, FileID: doc.ID})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, e.ID)
	}

	if err := f.workflows.Delete(ctx, wf.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, id := range ids[:2] {
		if _, err := f.sys.Find(ctx, id); !errors.Is(err, executions.ErrNotFound) {
			t.Errorf("execution %v survived workflow delete: %v", id, err)
		}
	}
	if _, err := f.sys.Find(ctx, ids[2]); err != nil {
		t.Errorf("unrelated execution removed: %v", err)
	}
	if _, err := f.docs.Find(ctx, doc.ID); err != nil {
		t.Errorf("document removed by workflow delete: %v", err)
	}
}
