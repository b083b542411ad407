// Package client is an HTTP client for the sift API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/sift/internal/executions"
	"github.com/JaimeStill/sift/internal/workflows"
	"github.com/JaimeStill/sift/pkg/auth"
	"github.com/JaimeStill/sift/pkg/fault"
	"github.com/JaimeStill/sift/pkg/pagination"
)

// Error is a failed API response.
type Error struct {
	Status  int        `json:"-"`
	Message string     `json:"error"`
	Code    fault.Code `json:"code"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

// Client calls the sift API rooted at a base URL such as http://localhost:8080/api.
type Client struct {
	baseURL string
	http    *http.Client
	owner   string
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithOwner sends owner as the trusted owner header.
func WithOwner(owner string) Option {
	return func(c *Client) { c.owner = owner }
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateWorkflow uploads the sample document at path and begins analysis.
func (c *Client) CreateWorkflow(ctx context.Context, path string) (*workflows.Workflow, error) {
	body, contentType, err := multipartFiles("file", path)
	if err != nil {
		return nil, err
	}
	var out workflows.Workflow
	return &out, c.do(ctx, "POST", "/workflows", contentType, body, &out)
}

// Workflows lists workflows.
func (c *Client) Workflows(ctx context.Context, page, pageSize int) (*pagination.PageResult[workflows.Workflow], error) {
	var out pagination.PageResult[workflows.Workflow]
	path := fmt.Sprintf("/workflows?page=%d&page_size=%d", page, pageSize)
	return &out, c.do(ctx, "GET", path, "", nil, &out)
}

// Workflow fetches a workflow with outdated annotations.
func (c *Client) Workflow(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	var out workflows.Workflow
	return &out, c.do(ctx, "GET", "/workflows/"+id.String(), "", nil, &out)
}

// Publish activates a configured workflow.
func (c *Client) Publish(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	var out workflows.Workflow
	return &out, c.do(ctx, "POST", "/workflows/"+id.String()+"/publish", "", nil, &out)
}

// ReExtract refreshes the sample data of a configured workflow.
func (c *Client) ReExtract(ctx context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	var out workflows.Workflow
	return &out, c.do(ctx, "POST", "/workflows/"+id.String()+"/re-extract", "", nil, &out)
}

// DeleteWorkflow removes a workflow and its executions.
func (c *Client) DeleteWorkflow(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, "DELETE", "/workflows/"+id.String(), "", nil, nil)
}

// Execute runs an active workflow against uploaded files. Each path yields
// one execution, in order.
func (c *Client) Execute(ctx context.Context, workflowID uuid.UUID, paths ...string) ([]executions.Execution, error) {
	body, contentType, err := multipartFiles("files", paths...)
	if err != nil {
		return nil, err
	}
	var out []executions.Execution
	return out, c.do(ctx, "POST", "/workflows/"+workflowID.String()+"/execute-bulk", contentType, body, &out)
}

// ExecuteDocuments runs an active workflow against registered documents.
func (c *Client) ExecuteDocuments(ctx context.Context, workflowID uuid.UUID, fileIDs ...uuid.UUID) ([]executions.Execution, error) {
	body, err := json.Marshal(executions.BulkRequest{FileIDs: fileIDs})
	if err != nil {
		return nil, err
	}
	var out []executions.Execution
	return out, c.do(ctx, "POST", "/workflows/"+workflowID.String()+"/execute-bulk", "application/json", bytes.NewReader(body), &out)
}

// Execution fetches a full execution record.
func (c *Client) Execution(ctx context.Context, id uuid.UUID) (*executions.Execution, error) {
	var out executions.Execution
	return &out, c.do(ctx, "GET", "/executions/"+id.String(), "", nil, &out)
}

// Status fetches the polling view of an execution.
func (c *Client) Status(ctx context.Context, id uuid.UUID) (*executions.StatusView, error) {
	var out executions.StatusView
	return &out, c.do(ctx, "GET", "/executions/"+id.String()+"/status", "", nil, &out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.owner != "" {
		req.Header.Set(auth.OwnerHeader, c.owner)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func multipartFiles(field string, paths ...string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, p := range paths {
		if err := writePart(mw, field, p); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func writePart(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
