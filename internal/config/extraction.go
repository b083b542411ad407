package config

import (
	"github.com/JaimeStill/sift/internal/executions"
	"github.com/JaimeStill/sift/internal/extraction"
	"github.com/JaimeStill/sift/pkg/auth"
)

var extractionEnv = &extraction.Env{
	BaseURL:     "SIFT_EXTRACTION_BASE_URL",
	APIKey:      "SIFT_EXTRACTION_API_KEY",
	Timeout:     "SIFT_EXTRACTION_TIMEOUT",
	Concurrency: "SIFT_EXTRACTION_CONCURRENCY",
}

var executionsEnv = &executions.Env{
	PollInterval:      "SIFT_EXECUTIONS_POLL_INTERVAL",
	ProcessingTimeout: "SIFT_EXECUTIONS_PROCESSING_TIMEOUT",
	SweepInterval:     "SIFT_EXECUTIONS_SWEEP_INTERVAL",
}

var authEnv = &auth.Env{
	Issuer:            "SIFT_AUTH_ISSUER",
	ClientID:          "SIFT_AUTH_CLIENT_ID",
	OrganizationClaim: "SIFT_AUTH_ORGANIZATION_CLAIM",
	DefaultOwner:      "SIFT_AUTH_DEFAULT_OWNER",
}
