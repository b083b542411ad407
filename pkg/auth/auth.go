// Package auth resolves the caller identity attached to each request.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/sift/pkg/handlers"
)

const (
	OwnerHeader        = "X-Owner-ID"
	OrganizationHeader = "X-Organization-ID"
)

// Identity is the owner and organization a request acts on behalf of.
type Identity struct {
	OwnerID        string
	OrganizationID string
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by the middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Verifier turns a raw bearer token into an identity.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Identity, error)
}

// System attaches an Identity to every request.
type System struct {
	verifier     Verifier
	defaultOwner string
	logger       *slog.Logger
}

// New creates the identity system. With an issuer configured it discovers the
// OIDC provider, which requires network access to the issuer.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*System, error) {
	s := &System{
		defaultOwner: cfg.DefaultOwner,
		logger:       logger.With("system", "auth"),
	}

	if cfg.Issuer == "" {
		s.logger.Info("identity from trusted headers")
		return s, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	s.verifier = &oidcVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		orgClaim: cfg.OrganizationClaim,
	}
	s.logger.Info("identity from oidc bearer tokens", "issuer", cfg.Issuer)
	return s, nil
}

// NewWithVerifier creates a System that authenticates bearer tokens with v.
func NewWithVerifier(v Verifier, logger *slog.Logger) *System {
	return &System{
		verifier: v,
		logger:   logger.With("system", "auth"),
	}
}

// Middleware resolves the identity and stores it on the request context.
// Requests without a valid bearer token are rejected when a verifier is configured.
func (s *System) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := s.identify(r)
			if err != nil {
				handlers.RespondError(w, s.logger, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func (s *System) identify(r *http.Request) (Identity, error) {
	if s.verifier == nil {
		id := Identity{
			OwnerID:        r.Header.Get(OwnerHeader),
			OrganizationID: r.Header.Get(OrganizationHeader),
		}
		if id.OwnerID == "" {
			id.OwnerID = s.defaultOwner
		}
		return id, nil
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return Identity{}, fmt.Errorf("bearer token required")
	}

	id, err := s.verifier.Verify(r.Context(), raw)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	return id, nil
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
	orgClaim string
}

func (v *oidcVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	token, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, err
	}

	var claims map[string]json.RawMessage
	if err := token.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("decode claims: %w", err)
	}

	id := Identity{OwnerID: token.Subject}
	if rawOrg, ok := claims[v.orgClaim]; ok {
		var org string
		if err := json.Unmarshal(rawOrg, &org); err == nil {
			id.OrganizationID = org
		}
	}
	return id, nil
}
