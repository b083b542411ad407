package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/JaimeStill/sift/pkg/lifecycle"
)

type memoryBlob struct {
	data        []byte
	contentType string
}

// Memory is an in-process blob store for development and tests.
type Memory struct {
	mu        sync.RWMutex
	blobs     map[string]memoryBlob
	container string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewMemory creates an empty in-memory store.
func NewMemory(cfg *Config, logger *slog.Logger) *Memory {
	return &Memory{
		blobs:     make(map[string]memoryBlob),
		container: cfg.ContainerName,
		ttl:       cfg.PresignTTLDuration(),
		logger:    logger.With("system", "storage", "provider", ProviderMemory),
	}
}

func (m *Memory) Start(lc *lifecycle.Coordinator) error {
	m.logger.Info("starting storage system", "container", m.container)
	return nil
}

func (m *Memory) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read blob %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = memoryBlob{data: data, contentType: contentType}
	return nil
}

func (m *Memory) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok, nil
}

// PresignURL returns a memory:// URL. It is only meaningful to collaborators in the same process.
func (m *Memory) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ok, err := m.Exists(ctx, key); err != nil {
		return "", err
	} else if !ok {
		return "", ErrNotFound
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	u := url.URL{
		Scheme:   "memory",
		Host:     m.container,
		Path:     "/" + key,
		RawQuery: url.Values{"se": {time.Now().UTC().Add(ttl).Format(time.RFC3339)}}.Encode(),
	}
	return u.String(), nil
}
