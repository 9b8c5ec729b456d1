package models

import "time"

// CorsConfig holds the allowed browser origins for the API
type CorsConfig struct {
	ConfigKey        string    `json:"config_key" db:"config_key"`
	AllowedOrigins   string    `json:"allowed_origins" db:"allowed_origins"` // comma-separated
	AllowCredentials bool      `json:"allow_credentials" db:"allow_credentials"`
	MaxAge           int       `json:"max_age" db:"max_age"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
