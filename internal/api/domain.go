package api

import (
	"github.com/JaimeStill/sift/internal/documents"
	"github.com/JaimeStill/sift/internal/executions"
	"github.com/JaimeStill/sift/internal/workflows"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents  documents.System
	Workflows  workflows.System
	Executions executions.System
	Supervisor *executions.Supervisor
}

type stores struct {
	documents  documents.Store
	workflows  workflows.Store
	executions executions.Store
}

// NewDomain creates all domain systems from the API runtime, backed by
// whichever store driver the infrastructure opened.
func NewDomain(runtime *Runtime) *Domain {
	st := newStores(runtime)
	cfg := runtime.Config

	docsSystem := documents.New(
		st.documents,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
		cfg.Storage.PresignTTLDuration(),
	)

	workflowsSystem := workflows.New(
		st.workflows,
		docsSystem,
		runtime.Extraction,
		runtime.Dispatcher,
		runtime.Logger,
		runtime.Pagination,
	)

	executionsSystem := executions.New(
		st.executions,
		workflowsSystem,
		docsSystem,
		runtime.Extraction,
		runtime.Dispatcher,
		runtime.Logger,
		runtime.Pagination,
		cfg.Executions.PollIntervalDuration(),
	)

	return &Domain{
		Documents:  docsSystem,
		Workflows:  workflowsSystem,
		Executions: executionsSystem,
		Supervisor: executions.NewSupervisor(
			executionsSystem,
			cfg.Executions.ProcessingTimeoutDuration(),
			cfg.Executions.SweepIntervalDuration(),
			runtime.Logger,
		),
	}
}

func newStores(runtime *Runtime) stores {
	if runtime.Memory != nil {
		return stores{
			documents:  documents.NewMemoryStore(runtime.Memory),
			workflows:  workflows.NewMemoryStore(runtime.Memory),
			executions: executions.NewMemoryStore(runtime.Memory),
		}
	}

	conn := runtime.Database.Connection()
	return stores{
		documents:  documents.NewRepository(conn),
		workflows:  workflows.NewRepository(conn),
		executions: executions.NewRepository(conn),
	}
}
