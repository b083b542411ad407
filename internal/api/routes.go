package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/sift/internal/config"
	"github.com/JaimeStill/sift/pkg/openapi"
	"github.com/JaimeStill/sift/pkg/routes"
)

func routeGroups(domain *Domain, cfg *config.Config) []routes.Group {
	size := cfg.API.MaxUploadSizeBytes()
	return []routes.Group{
		domain.Documents.Handler(size).Routes(),
		domain.Workflows.Handler(size).Routes(),
		domain.Executions.Handler(size).Routes(),
	}
}

// checkDocumented fails when a registered route has no operation in spec.
func checkDocumented(spec *openapi.Spec, groups []routes.Group) error {
	for _, r := range routes.Flatten(groups...) {
		if spec.Operation(r.Method, r.Pattern) == nil {
			return fmt.Errorf("route %s %s has no openapi operation", r.Method, r.Pattern)
		}
	}
	return nil
}

func registerRoutes(mux *http.ServeMux, groups []routes.Group, spec []byte) {
	routes.Register(mux, groups...)
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))
}
