package middleware

import (
	"net/http"
	"strings"

	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// AuthCookieName carries the session token for browser clients
const AuthCookieName = "auth_token"

// TokenFromRequest prefers the Authorization header over the cookie
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := c.Cookie(AuthCookieName); err == nil {
		return cookie
	}
	return ""
}

// AuthMiddleware resolves the session token into the current user. Requests
// without a token are rejected before any lookup.
func AuthMiddleware(authUC domain.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		user, sessionID, err := authUC.Authenticate(c.Request.Context(), token)
		if err != nil {
			security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
				Event:     security.EventUnauthorizedAccess,
				IP:        c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
				RequestID: c.GetString(RequestIDKey),
				Details:   map[string]any{"path": c.FullPath()},
			})
			response.Abort(c, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		c.Set(string(domain.KeyUserID), user.ID)
		c.Set(string(domain.KeyUserEmail), user.Email)
		c.Set(string(domain.KeyUserRole), string(user.Role))
		c.Set(string(domain.KeySessionID), sessionID)

		c.Next()
	}
}

// RequireRole rejects authenticated users whose role is not in roles
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := domain.Role(c.GetString(string(domain.KeyUserRole)))
		if role == "" {
			response.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
			Event:        security.EventForbiddenAccess,
			SubjectType:  "user_id",
			SubjectValue: security.HashValue(c.GetString(string(domain.KeyUserID))),
			IP:           c.ClientIP(),
			RequestID:    c.GetString(RequestIDKey),
			Details:      map[string]any{"path": c.FullPath(), "role": string(role)},
		})
		response.Abort(c, http.StatusForbidden, "Insufficient permissions")
	}
}
