package main

import (
	"github.com/JaimeStill/sift/internal/api"
	"github.com/JaimeStill/sift/internal/config"
	"github.com/JaimeStill/sift/internal/infrastructure"
	"github.com/JaimeStill/sift/pkg/metrics"
	"github.com/JaimeStill/sift/pkg/module"
)

type Modules struct {
	API *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{
		API: apiModule,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()
	router.HandleHealth(infra.Lifecycle)
	router.HandleNative("GET /metrics", metrics.Handler())
	return router
}
