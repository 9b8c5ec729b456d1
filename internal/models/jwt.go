package models

import "time"

// JWTClaims is the verified identity carried by a bearer token
type JWTClaims struct {
	Sub       string    `json:"sub"` // provider-scoped user id
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Iss       string    `json:"iss"`
	Aud       []string  `json:"aud"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"iat"`
}
