package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/utils"
)

const (
	ContextMemberID    = "member_id"
	ContextMemberEmail = "member_email"
	ContextAuthMethod  = "auth_method"
)

type AuthConfig struct {
	JWT        *utils.JWTManager
	APIKey     string
	CookieName string
}

// AuthRequired admits requests carrying the operator API key in X-API-KEY
// or a member JWT in the auth cookie or a Bearer Authorization header.
func AuthRequired(cfg AuthConfig) gin.HandlerFunc {
	if cfg.CookieName == "" {
		cfg.CookieName = "jwt_token"
	}
	return func(c *gin.Context) {
		log := logger.FromGin(c, nil)

		if key := c.GetHeader("X-API-KEY"); key != "" && cfg.APIKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) == 1 {
				c.Set(ContextAuthMethod, "api_key")
				c.Next()
				return
			}
			log.Warn("AuthRequired: invalid API key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API key"})
			return
		}

		tokenString, err := c.Cookie(cfg.CookieName)
		if err != nil || tokenString == "" {
			tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
				return
			}
		}

		claims, err := cfg.JWT.Validate(tokenString)
		if err != nil {
			log.Info("AuthRequired: invalid JWT", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set(ContextMemberID, claims.MemberID)
		c.Set(ContextMemberEmail, claims.Email)
		c.Set(ContextAuthMethod, "jwt")
		c.Next()
	}
}

// OperatorOnly must follow AuthRequired. It admits only requests that
// authenticated with the operator API key; member tokens get 403.
func OperatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextAuthMethod) != "api_key" {
			logger.FromGin(c, nil).Warn("OperatorOnly: member token on operator route",
				zap.Int("member_id", c.GetInt(ContextMemberID)))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: operator access required"})
			return
		}
		c.Next()
	}
}
