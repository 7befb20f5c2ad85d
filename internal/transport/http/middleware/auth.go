package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/pkg/auth"
	"github.com/mehdidhammou/ai-connect-four/pkg/httputil"
)

// RendererKey is the gin context key holding the authenticated renderer name.
const RendererKey = "renderer"

// AuthMiddleware rejects requests without a valid bridge token.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := httputil.GetTokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := auth.ValidateBridgeToken(secret, tokenString)
		if err != nil {
			log.Debug().Str("component", "auth").Err(err).Str("path", c.Request.URL.Path).Msg("rejected bridge token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(RendererKey, claims.Renderer)
		c.Next()
	}
}
