package models

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload issued by the external auth service. The pipeline
// only needs the acting user's identity for override attribution.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
