package oidc

import (
	"golang.org/x/oauth2"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// DefaultScopes are requested on every authorization
var DefaultScopes = []string{"openid", "email", "profile"}

// Endpoints are the OAuth2 endpoints of a provider
type Endpoints struct {
	Authorization string
	Token         string
	JWKS          string
}

// Client wraps the OAuth2 configuration of one provider
type Client struct {
	config *oauth2.Config
}

// NewClient creates an OAuth2 client from stored configuration and resolved endpoints
func NewClient(oidcConfig *models.OIDCConfig, endpoints Endpoints) *Client {
	clientSecret := ""
	if oidcConfig.ClientSecret != nil {
		clientSecret = *oidcConfig.ClientSecret
	}

	return &Client{config: &oauth2.Config{
		ClientID:     oidcConfig.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  oidcConfig.RedirectURI,
		Scopes:       DefaultScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoints.Authorization,
			TokenURL: endpoints.Token,
		},
	}}
}

// AuthCodeURL returns the authorization URL carrying state
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}
