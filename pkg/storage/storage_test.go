package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/sift/pkg/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := storage.Config{ConnectionString: "UseDevelopmentStorage=true"}
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if cfg.Provider != storage.ProviderAzure || cfg.ContainerName != "documents" {
			t.Errorf("config = %+v", cfg)
		}
		if cfg.PresignTTLDuration() != 15*time.Minute {
			t.Errorf("PresignTTLDuration() = %v", cfg.PresignTTLDuration())
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("TEST_STORAGE_PROVIDER", "memory")
		t.Setenv("TEST_STORAGE_TTL", "90")

		var cfg storage.Config
		err := cfg.Finalize(&storage.Env{Provider: "TEST_STORAGE_PROVIDER", PresignTTL: "TEST_STORAGE_TTL"})
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if cfg.Provider != storage.ProviderMemory {
			t.Errorf("Provider = %s", cfg.Provider)
		}
		if cfg.PresignTTLDuration() != 90*time.Second {
			t.Errorf("bare seconds ttl = %v", cfg.PresignTTLDuration())
		}
	})

	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{"azure without credentials", storage.Config{}, "connection_string or service_url"},
		{"azure with service url", storage.Config{ServiceURL: "https://acct.blob.core.windows.net"}, ""},
		{"unknown provider", storage.Config{Provider: "s3"}, "unknown storage provider"},
		{"bad ttl", storage.Config{Provider: storage.ProviderMemory, PresignTTL: "soon"}, "invalid presign_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Finalize: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := storage.Config{Provider: storage.ProviderAzure, ContainerName: "documents", PresignTTL: "15m"}
	base.Merge(&storage.Config{Provider: storage.ProviderMemory, PresignTTL: "1h"})

	if base.Provider != storage.ProviderMemory || base.ContainerName != "documents" || base.PresignTTL != "1h" {
		t.Errorf("merged = %+v", base)
	}
}

func newMemory(t *testing.T) storage.System {
	t.Helper()
	cfg := &storage.Config{Provider: storage.ProviderMemory}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	s, err := storage.New(cfg, discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	s := newMemory(t)
	key := "owner/abc/invoice.pdf"

	if err := s.Upload(ctx, key, strings.NewReader("%PDF-1.7"), "application/pdf"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rc, err := s.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.7" {
		t.Errorf("Download = %q", data)
	}

	u, err := s.PresignURL(ctx, key, 0)
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.HasPrefix(u, "memory://documents/"+key) {
		t.Errorf("PresignURL = %s", u)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, key); ok {
		t.Error("blob exists after Delete")
	}
	if err := s.Delete(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := s.PresignURL(ctx, key, time.Minute); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("PresignURL missing = %v, want ErrNotFound", err)
	}
}

func TestKeyValidation(t *testing.T) {
	ctx := context.Background()
	s := newMemory(t)

	tests := []struct {
		key  string
		want error
	}{
		{"", storage.ErrEmptyKey},
		{"../secrets", storage.ErrInvalidKey},
		{"a/../../b", storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := s.Upload(ctx, tt.key, strings.NewReader("x"), "text/plain")
			if !errors.Is(err, tt.want) {
				t.Errorf("Upload(%q) = %v, want %v", tt.key, err, tt.want)
			}
			if got := storage.MapHTTPStatus(err); got != http.StatusBadRequest {
				t.Errorf("MapHTTPStatus = %d, want 400", got)
			}
		})
	}
}
