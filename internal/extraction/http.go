package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JaimeStill/sift/internal/schema"
	"github.com/JaimeStill/sift/pkg/formatting"
)

const maxResponseBytes = 32 << 20

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns the HTTP collaborator for cfg, or Deferred when no base URL is set.
func NewClient(cfg *Config) Client {
	if cfg.BaseURL == "" {
		return Deferred()
	}
	return &httpClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
	}
}

func (c *httpClient) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	a, err := post[Analysis](ctx, c, "/analyze", req)
	if err != nil {
		return nil, err
	}
	if a.SampleData != nil {
		if err := a.SampleData.Validate(); err != nil {
			return nil, fmt.Errorf("%w: sample data: %w", ErrExtractionFailed, err)
		}
	}
	return &a, nil
}

func (c *httpClient) Extract(ctx context.Context, req ExtractRequest) (*schema.ExtractionResult, error) {
	r, err := post[schema.ExtractionResult](ctx, c, "/extract", req)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// post sends body as JSON and decodes the response, accepting JSON wrapped in a
// markdown code fence.
func post[T any](ctx context.Context, c *httpClient, path string, body any) (T, error) {
	var zero T

	payload, err := json.Marshal(body)
	if err != nil {
		return zero, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return zero, fmt.Errorf("%w: read response: %w", ErrExtractionFailed, err)
	}

	if resp.StatusCode >= 300 {
		return zero, fmt.Errorf("%w: %s returned %d: %s", ErrExtractionFailed, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	out, err := formatting.Parse[T](string(data))
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return out, nil
}
