package database_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/sift/pkg/database"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := database.Config{Name: "sift", User: "sift"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Host != "localhost" || cfg.Port != 5432 || cfg.SSLMode != "disable" {
		t.Errorf("connection defaults = %+v", cfg)
	}
	if cfg.ConnMaxLifetimeDuration() != 15*time.Minute || cfg.ConnTimeoutDuration() != 5*time.Second {
		t.Errorf("durations = %v, %v", cfg.ConnMaxLifetimeDuration(), cfg.ConnTimeoutDuration())
	}
	if cfg.PingAttempts != 5 {
		t.Errorf("PingAttempts = %d", cfg.PingAttempts)
	}
}

func TestFinalizeEnv(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")
	t.Setenv("TEST_DB_PORT", "6543")
	t.Setenv("TEST_DB_NAME", "sift_test")
	t.Setenv("TEST_DB_USER", "runner")
	t.Setenv("TEST_DB_PING", "bogus")

	cfg := database.Config{}
	err := cfg.Finalize(&database.Env{
		Host:         "TEST_DB_HOST",
		Port:         "TEST_DB_PORT",
		Name:         "TEST_DB_NAME",
		User:         "TEST_DB_USER",
		PingAttempts: "TEST_DB_PING",
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Host != "db.internal" || cfg.Port != 6543 || cfg.Name != "sift_test" || cfg.User != "runner" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.PingAttempts != 5 {
		t.Errorf("invalid env value should keep default, got %d", cfg.PingAttempts)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     database.Config
		wantErr string
	}{
		{"missing name", database.Config{User: "u"}, "name required"},
		{"missing user", database.Config{Name: "n"}, "user required"},
		{"bad lifetime", database.Config{Name: "n", User: "u", ConnMaxLifetime: "forever"}, "conn_max_lifetime"},
		{"idle above open", database.Config{Name: "n", User: "u", MaxOpenConns: 2, MaxIdleConns: 4}, "max_idle_conns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := database.Config{Host: "localhost", Port: 5432, Name: "sift", User: "sift", PingAttempts: 5}
	base.Merge(&database.Config{Host: "prod-db", PingAttempts: 10})

	if base.Host != "prod-db" || base.PingAttempts != 10 {
		t.Errorf("overlay not applied: %+v", base)
	}
	if base.Port != 5432 || base.Name != "sift" {
		t.Errorf("zero overlay fields overwrote base: %+v", base)
	}
}

func TestConnectionStrings(t *testing.T) {
	cfg := database.Config{Host: "db", Port: 5432, Name: "sift", User: "sift", Password: "p@ss", SSLMode: "disable"}

	if got, want := cfg.Dsn(), "host=db port=5432 dbname=sift user=sift password=p@ss sslmode=disable"; got != want {
		t.Errorf("Dsn() = %q, want %q", got, want)
	}
	if got, want := cfg.URL(), "postgres://sift:p%40ss@db:5432/sift?sslmode=disable"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestNew(t *testing.T) {
	cfg := database.Config{Name: "sift", User: "sift", MaxOpenConns: 7, MaxIdleConns: 3}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	sys, err := database.New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sys.Connection().Close()

	if got := sys.Connection().Stats().MaxOpenConnections; got != 7 {
		t.Errorf("MaxOpenConnections = %d, want 7", got)
	}
}
