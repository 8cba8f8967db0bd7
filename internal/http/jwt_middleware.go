package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/service"
)

const authClaimsKey = "auth_claims"

// JWTAuthMiddleware exige un token de sesión vigente en Authorization: Bearer.
// Los claims quedan en el contexto para GetAuthClaims.
func JWTAuthMiddleware(sessions *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := sessions.Parse(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": sessionErrorMessage(err)})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func sessionErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrJWTExpired):
		return "session expired"
	case errors.Is(err, service.ErrJWTRevoked):
		return "session revoked"
	default:
		return "invalid token"
	}
}

// GetAuthClaims devuelve los claims que dejó JWTAuthMiddleware.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
