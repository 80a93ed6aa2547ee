package auth

import (
	"context"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/devroom-labs/devroom-backend/internal/users"
)

const (
	CtxAuthUID  = "auth_uid"
	CtxUserDBID = "user_db_id"
	CtxEmail    = "user_email"
)

// WithUser authenticates the request and upserts the account so downstream
// handlers always have a database user id in context.
//
// With a Firebase client configured it verifies the bearer ID token; without
// one it trusts X-User-* headers, for local development only.
func WithUser(authClient *fbauth.Client, userRepo *users.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var uid, email, name string

		if authClient != nil {
			token := extractToken(c)
			if token == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing authorization token"})
				c.Abort()
				return
			}

			decoded, err := authClient.VerifyIDToken(context.Background(), token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
				c.Abort()
				return
			}

			uid = decoded.UID
			if v, ok := decoded.Claims["email"].(string); ok {
				email = v
			}
			if v, ok := decoded.Claims["name"].(string); ok {
				name = v
			}
		} else {
			uid = strings.TrimSpace(c.GetHeader("X-User-Id"))
			if uid == "" {
				uid = "demo-user"
			}
			email = c.GetHeader("X-User-Email")
			name = c.GetHeader("X-User-Name")
		}

		dbID, err := userRepo.EnsureUser(c.Request.Context(), users.UpsertUser{
			AuthUID: uid,
			Email:   email,
			Name:    name,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			c.Abort()
			return
		}

		c.Set(CtxAuthUID, uid)
		c.Set(CtxUserDBID, dbID)
		c.Set(CtxEmail, email)
		c.Next()
	}
}

// UserDBID extracts the database user id set by WithUser.
func UserDBID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserDBID))
}

// UserEmail extracts the authenticated email set by WithUser.
func UserEmail(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxEmail))
}

// extractToken extracts the Bearer token from the Authorization header,
// falling back to the token query parameter for websocket upgrades.
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return c.Query("token")
}
