package models

import (
	"time"

	"github.com/google/uuid"
)

// OIDCConfig is a configured identity provider
type OIDCConfig struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Provider     string    `json:"provider" db:"provider"`
	Issuer       string    `json:"issuer" db:"issuer"`
	Domain       *string   `json:"domain,omitempty" db:"domain"` // hosted login domain when it differs from the issuer
	ClientID     string    `json:"client_id" db:"client_id"`
	ClientSecret *string   `json:"-" db:"client_secret"` // nil for public clients
	RedirectURI  string    `json:"redirect_uri" db:"redirect_uri"`
	JWKSUrl      *string   `json:"jwks_url,omitempty" db:"jwks_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
