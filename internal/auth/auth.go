package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

// StaticToken guards a route group with one shared bearer token.
// An empty token lets every request through.
func StaticToken(token string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		if !CheckBearer(c.GetHeader("Authorization"), token) {
			logger.Warn("rejected request with invalid token",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Next()
	}
}

// CheckBearer reports whether header carries exactly the expected bearer token.
func CheckBearer(header, token string) bool {
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	presented := strings.TrimPrefix(header, bearerPrefix)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
