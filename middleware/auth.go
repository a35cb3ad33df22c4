package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"loancrm/utils"
)

const (
	// SessionCookie is set on login; the Authorization header takes
	// precedence when both are present.
	SessionCookie = "session"

	sessionKeyPrefix = "session:"
	userContextKey   = "current_user"
)

// SessionUser is the identity stored in Redis for a logged-in advisor.
type SessionUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func SessionKey(token string) string {
	return sessionKeyPrefix + token
}

// RequireSession resolves the session token against Redis and aborts
// with 401 when it is absent, expired or unreadable.
func RequireSession(cache utils.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		data, err := cache.GetFromCache(c.Request.Context(), SessionKey(token))
		if err == redis.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session store unavailable"})
			return
		}

		var user SessionUser
		if err := json.Unmarshal([]byte(data), &user); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireRole gates an endpoint to one role. Must run after
// RequireSession.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient privileges"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity attached by RequireSession.
func CurrentUser(c *gin.Context) (SessionUser, bool) {
	v, exists := c.Get(userContextKey)
	if !exists {
		return SessionUser{}, false
	}
	user, ok := v.(SessionUser)
	return user, ok
}

func sessionToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}
