package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// ConfigStore loads stored provider configuration
type ConfigStore interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Provider resolves OIDC provider configuration and endpoints
type Provider struct {
	repo       ConfigStore
	httpClient *http.Client
}

// NewProvider creates a new OIDC provider manager
func NewProvider(repo ConfigStore) *Provider {
	return &Provider{
		repo:       repo,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// GetConfig retrieves OIDC configuration for a provider
func (p *Provider) GetConfig(ctx context.Context, providerName string) (*models.OIDCConfig, error) {
	config, err := p.repo.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// Endpoints resolves the OAuth2 endpoints of config. A configured hosted
// domain wins, then the discovery document, then paths under the issuer.
func (p *Provider) Endpoints(ctx context.Context, config *models.OIDCConfig) Endpoints {
	issuer := strings.TrimSuffix(config.Issuer, "/")
	ep := Endpoints{
		Authorization: issuer + "/oauth2/authorize",
		Token:         issuer + "/oauth2/token",
		JWKS:          issuer + "/.well-known/jwks.json",
	}

	if doc, err := p.discover(ctx, issuer); err == nil {
		if doc.AuthorizationEndpoint != "" {
			ep.Authorization = doc.AuthorizationEndpoint
		}
		if doc.TokenEndpoint != "" {
			ep.Token = doc.TokenEndpoint
		}
		if doc.JWKSURI != "" {
			ep.JWKS = doc.JWKSURI
		}
	}

	if config.Domain != nil && strings.TrimSpace(*config.Domain) != "" {
		base := strings.TrimSuffix(strings.TrimSpace(*config.Domain), "/")
		if !strings.HasPrefix(base, "https://") && !strings.HasPrefix(base, "http://") {
			base = "https://" + base
		}
		ep.Authorization = base + "/oauth2/authorize"
		ep.Token = base + "/oauth2/token"
	}
	if config.JWKSUrl != nil && *config.JWKSUrl != "" {
		ep.JWKS = *config.JWKSUrl
	}

	return ep
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

func (p *Provider) discover(ctx context.Context, issuer string) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery returned status %d", resp.StatusCode)
	}
	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	return &doc, nil
}

// LoginConfig contains OIDC login configuration for the frontend
type LoginConfig struct {
	Provider              string `json:"provider"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	AuthorizationURL      string `json:"authorization_url"`
	ClientID              string `json:"client_id"`
	RedirectURI           string `json:"redirect_uri"`
	Scope                 string `json:"scope"`
	State                 string `json:"state"`
}

// GetLoginConfig returns what a browser needs to start the authorization code flow
func (p *Provider) GetLoginConfig(ctx context.Context, providerName, state string) (*LoginConfig, error) {
	config, err := p.GetConfig(ctx, providerName)
	if err != nil {
		return nil, err
	}
	ep := p.Endpoints(ctx, config)

	return &LoginConfig{
		Provider:              providerName,
		AuthorizationEndpoint: ep.Authorization,
		TokenEndpoint:         ep.Token,
		AuthorizationURL:      NewClient(config, ep).AuthCodeURL(state),
		ClientID:              config.ClientID,
		RedirectURI:           config.RedirectURI,
		Scope:                 strings.Join(DefaultScopes, " "),
		State:                 state,
	}, nil
}

// ProviderVerifier verifies tokens against the current stored configuration
// of one provider, so configuration changes apply without a restart.
type ProviderVerifier struct {
	provider *Provider
	name     string
	jwks     *JWKSManager
}

// TokenVerifier returns a verifier bound to providerName
func (p *Provider) TokenVerifier(providerName string, jwks *JWKSManager) *ProviderVerifier {
	return &ProviderVerifier{provider: p, name: providerName, jwks: jwks}
}

// Verify verifies tokenString with the provider's issuer and key set
func (v *ProviderVerifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	config, err := v.provider.GetConfig(ctx, v.name)
	if err != nil {
		return nil, err
	}
	jwksURL := strings.TrimSuffix(config.Issuer, "/") + "/.well-known/jwks.json"
	if config.JWKSUrl != nil && *config.JWKSUrl != "" {
		jwksURL = *config.JWKSUrl
	}
	return NewVerifier(v.jwks, config.Issuer, jwksURL).Verify(ctx, tokenString)
}
