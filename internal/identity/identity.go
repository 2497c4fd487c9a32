// Package identity issues and verifies the bearer tokens that guard the
// mutating trust endpoints.
//
// It provides:
//   - TokenIssuer:   issues and verifies EdDSA JWTs signed with the service key
//   - RequireToken:  Gin middleware enforcing Bearer token authentication
//   - OptionalToken: Gin middleware that injects claims when a valid token is present
//
// NewTokenVerifier builds a verify-only TokenIssuer from a public key, for
// checking tokens away from the service.
package identity
