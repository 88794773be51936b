package types

import "github.com/golang-jwt/jwt/v4"

// Claims carries the identity the external auth collaborator asserts.
// The role is NOT taken from the token; it is resolved from user_roles.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
