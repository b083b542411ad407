// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/sift/internal/config"
	"github.com/JaimeStill/sift/internal/infrastructure"
	"github.com/JaimeStill/sift/pkg/middleware"
	"github.com/JaimeStill/sift/pkg/module"
	"github.com/JaimeStill/sift/pkg/openapi"
)

// NewModule creates the API module with all domain handlers and middleware.
// The execution supervisor is registered with the lifecycle coordinator.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	if err := domain.Supervisor.Start(runtime.Lifecycle); err != nil {
		return nil, fmt.Errorf("supervisor start failed: %w", err)
	}

	groups := routeGroups(domain, cfg)
	spec := NewSpec(cfg)
	if err := checkDocumented(spec, groups); err != nil {
		return nil, err
	}

	specJSON, err := openapi.MarshalJSON(spec)
	if err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, groups, specJSON)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Metrics())
	m.Use(runtime.Auth.Middleware())

	return m, nil
}
