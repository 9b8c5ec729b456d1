package models

import "time"

// RatelimitConfig holds the per-client request rate in limiter notation ("5-S", "100-M")
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key" db:"config_key"`
	Rate      string    `json:"rate" db:"rate"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
