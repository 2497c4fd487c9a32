package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxTokenClaims = "trust_token_claims"

// RequireToken returns a Gin middleware that enforces a valid Bearer token
// carrying every scope listed.
//
// On success it injects the *TokenClaims into the context under the
// "trust_token_claims" key.
func RequireToken(tokens *TokenIssuer, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}
		for _, s := range scopes {
			if !claims.HasScope(s) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "token lacks scope " + s,
				})
				return
			}
		}

		c.Set(ctxTokenClaims, claims)
		c.Next()
	}
}

// OptionalToken returns a Gin middleware that tries to parse a Bearer token.
// Unlike RequireToken, it never aborts; it skips injection when the header is
// absent or the token fails verification.
func OptionalToken(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if claims, err := tokens.Verify(tokenStr); err == nil {
				c.Set(ctxTokenClaims, claims)
			}
		}
		c.Next()
	}
}

// ClaimsFromCtx retrieves the token claims injected by RequireToken.
func ClaimsFromCtx(c *gin.Context) *TokenClaims {
	v, _ := c.Get(ctxTokenClaims)
	claims, _ := v.(*TokenClaims)
	return claims
}
