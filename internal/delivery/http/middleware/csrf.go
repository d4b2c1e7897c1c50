package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

const (
	CSRFTokenCookieName = "csrf_token"
	CSRFTokenHeaderName = "X-CSRF-Token"
	// 32 bytes = 64 hex chars
	CSRFTokenLength = 32
	CSRFTokenExpiry = 24 * time.Hour
)

// csrfExemptPaths are reachable before a session exists or are called by
// non-browser clients with their own authentication.
var csrfExemptPaths = map[string]bool{
	"/v1/auth/login":       true,
	"/v1/auth/register":    true,
	"/v1/auth/autologin":   true,
	"/v1/billing/checkout": true,
	"/v1/contact":          true,
	"/v1/health":           true,
	"/v1/webhooks/stripe":  true, // signed by the payment provider
}

func generateCSRFToken() (string, error) {
	b := make([]byte, CSRFTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CSRFMiddleware implements the double-submit cookie pattern. Mutating
// requests that carry the session cookie must echo the csrf_token cookie in
// the X-CSRF-Token header. Requests without the session cookie, or with a
// Bearer header, carry no ambient credentials and are not checked.
func CSRFMiddleware(secureCookie bool) gin.HandlerFunc {
	setCookie := func(c *gin.Context, token string) {
		c.SetSameSite(http.SameSiteLaxMode)
		// HttpOnly=false so the frontend can read it
		c.SetCookie(CSRFTokenCookieName, token, int(CSRFTokenExpiry.Seconds()), "/", "", secureCookie, false)
	}

	return func(c *gin.Context) {
		csrfCookie, err := c.Cookie(CSRFTokenCookieName)
		if err != nil || csrfCookie == "" {
			newToken, err := generateCSRFToken()
			if err != nil {
				response.Abort(c, http.StatusInternalServerError, "Failed to generate security token")
				return
			}
			setCookie(c, newToken)
			csrfCookie = newToken
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if csrfExemptPaths[c.Request.URL.Path] ||
			strings.HasPrefix(c.GetHeader("Authorization"), "Bearer ") ||
			!hasCookie(c, AuthCookieName) {
			c.Next()
			return
		}

		headerToken := c.GetHeader(CSRFTokenHeaderName)
		if headerToken == "" || subtle.ConstantTimeCompare([]byte(headerToken), []byte(csrfCookie)) != 1 {
			security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
				Event:     security.EventCSRFViolation,
				IP:        c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
				RequestID: c.GetString(RequestIDKey),
				Details:   map[string]any{"path": c.Request.URL.Path},
			})
			response.Abort(c, http.StatusForbidden, "Missing or invalid CSRF token")
			return
		}

		c.Next()
	}
}
