package v1

import (
	"net/http"
	"time"

	"launchpad-backend/internal/delivery/http/middleware"
	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/security"
	"launchpad-backend/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authUC       domain.AuthUsecase
	secureCookie bool
}

func NewAuthHandler(public, protected *gin.RouterGroup, authUC domain.AuthUsecase, secureCookie bool, limit gin.HandlerFunc) {
	handler := &AuthHandler{authUC: authUC, secureCookie: secureCookie}

	publicAuth := public.Group("/auth")
	{
		publicAuth.POST("/register", limit, handler.Register)
		publicAuth.POST("/login", limit, handler.Login)
		publicAuth.GET("/autologin", handler.LookupAutoLogin)
		publicAuth.POST("/autologin", limit, handler.ExchangeAutoLogin)
		publicAuth.POST("/password/forgot", limit, handler.ForgotPassword)
		publicAuth.POST("/password/reset", limit, handler.ResetPassword)
	}

	protectedAuth := protected.Group("/auth")
	{
		protectedAuth.GET("/me", handler.Me)
		protectedAuth.POST("/logout", handler.Logout)
	}
}

type AutoLoginExchangeRequest struct {
	Token string `json:"token" binding:"required"`
}

func clientMeta(c *gin.Context) domain.ClientMeta {
	return domain.ClientMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, token, maxAge, "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", h.secureCookie, true)
}

// Register godoc
// @Summary      Register
// @Description  Create an account with email and password and open a session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        register  body      domain.RegisterRequest  true  "Registration details"
// @Success      201       {object}  response.Response{data=domain.AuthResult}
// @Failure      400       {object}  response.Response
// @Failure      409       {object}  response.Response
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	result, err := h.authUC.Register(c, &req, clientMeta(c))
	if err != nil {
		c.Error(err)
		return
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	response.Success(c, http.StatusCreated, "Account created", result)
}

// Login godoc
// @Summary      Login
// @Description  Verify credentials and open a session. The token is also set as an HttpOnly cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        login  body      domain.LoginRequest  true  "Credentials"
// @Success      200    {object}  response.Response{data=domain.AuthResult}
// @Failure      401    {object}  response.Response
// @Failure      429    {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	result, err := h.authUC.Login(c, &req, clientMeta(c))
	if err != nil {
		security.DefaultLogger().LogLoginFailed(c.Request.Context(), req.Email, c.ClientIP(), c.Request.UserAgent(),
			c.GetString(middleware.RequestIDKey), err.Error())
		c.Error(err)
		return
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	response.Success(c, http.StatusOK, "Login successful", result)
}

// Logout godoc
// @Summary      Logout
// @Description  Revoke the current session and clear the cookie
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authUC.Logout(c, domain.SessionIDFromContext(c)); err != nil {
		c.Error(err)
		return
	}
	h.clearSessionCookie(c)
	response.Success(c, http.StatusOK, "Logged out", nil)
}

// Me godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=domain.User}
// @Failure      401  {object}  response.Response
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authUC.GetCurrentUser(c, domain.UserIDFromContext(c))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Current user", user)
}

// LookupAutoLogin godoc
// @Summary      Look up the post-checkout sign-in token
// @Description  Returns the pending auto-login token for a checkout session. 404 once it expired or was used.
// @Tags         auth
// @Produce      json
// @Param        session_id  query     string  true  "Checkout session id"
// @Success      200         {object}  response.Response
// @Failure      404         {object}  response.Response
// @Router       /auth/autologin [get]
func (h *AuthHandler) LookupAutoLogin(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.Error(apperror.BadRequest("session_id is required"))
		return
	}

	token, err := h.authUC.LookupAutoLogin(c, sessionID)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Auto-login token found", gin.H{"token": token})
}

// ExchangeAutoLogin godoc
// @Summary      Exchange an auto-login token
// @Description  Consumes a single-use token issued after checkout and opens a session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      AutoLoginExchangeRequest  true  "Token"
// @Success      200      {object}  response.Response{data=domain.AuthResult}
// @Failure      401      {object}  response.Response
// @Router       /auth/autologin [post]
func (h *AuthHandler) ExchangeAutoLogin(c *gin.Context) {
	var req AutoLoginExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	result, err := h.authUC.ExchangeAutoLogin(c, req.Token, clientMeta(c))
	if err != nil {
		c.Error(err)
		return
	}

	security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
		Event:        security.EventAutoLoginExchanged,
		SubjectType:  "user_id",
		SubjectValue: security.HashValue(result.User.ID),
		IP:           c.ClientIP(),
		RequestID:    c.GetString(middleware.RequestIDKey),
	})
	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	response.Success(c, http.StatusOK, "Signed in", result)
}

// ForgotPassword godoc
// @Summary      Request a password reset link
// @Description  Mails a single-use link to set a new password. Always 202 so the response does not reveal whether the email has an account.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      domain.ForgotPasswordRequest  true  "Email"
// @Success      202      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /auth/password/forgot [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req domain.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	if err := h.authUC.RequestPasswordReset(c, req.Email); err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusAccepted, "If an account exists for this email, a reset link has been sent", nil)
}

// ResetPassword godoc
// @Summary      Set a new password
// @Description  Redeems a reset link token, sets the password, revokes other sessions and opens a new one
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      domain.ResetPasswordRequest  true  "Token and new password"
// @Success      200      {object}  response.Response{data=domain.AuthResult}
// @Failure      400      {object}  response.Response
// @Router       /auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req domain.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	result, err := h.authUC.ResetPassword(c, &req, clientMeta(c))
	if err != nil {
		c.Error(err)
		return
	}

	security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
		Event:        security.EventPasswordReset,
		SubjectType:  "user_id",
		SubjectValue: security.HashValue(result.User.ID),
		IP:           c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		RequestID:    c.GetString(middleware.RequestIDKey),
	})
	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	response.Success(c, http.StatusOK, "Password updated", result)
}
