package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/jamroom/internal/auth"
)

const claimsKey = "auth_claims"

// AuthRequired validates the bearer token and stashes its claims in the
// request context. Websocket clients cannot set headers, so the token is
// also accepted as a query parameter.
func AuthRequired(tokens *auth.Manager) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := ctx.Query("token")
		if header := ctx.GetHeader("Authorization"); header != "" {
			raw = strings.TrimPrefix(header, "Bearer ")
		}
		if raw == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx.Set(claimsKey, claims)
		ctx.Next()
	}
}

func currentClaims(ctx *gin.Context) *auth.Claims {
	value, ok := ctx.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*auth.Claims)
	return claims
}
