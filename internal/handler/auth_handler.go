package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"humormapper/internal/service"
)

// AuthCookieName must match the one in middleware.go
const AuthCookieName = "humor_auth"

type AuthHandler struct {
	service service.AuthService
}

func NewAuthHandler(service service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request/Response types

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string        `json:"token"`
	User      *service.User `json:"user"`
	ExpiresAt string        `json:"expiresAt"`
}

type signUpResponse struct {
	User    *service.User `json:"user"`
	Message string        `json:"message"`
}

// RegisterPublicRoutes registers routes that don't require authentication.
func (h *AuthHandler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/auth/signup", h.SignUp)
	g.POST("/auth/login", h.Login)
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *AuthHandler) RegisterProtectedRoutes(g *echo.Group) {
	g.GET("/auth/me", h.GetCurrentUser)
	g.POST("/auth/logout", h.Logout)
}

// SignUp creates a new account.
// @Summary Sign up
// @Description Create an account with email and password. The new user must sign in afterwards.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body credentialsRequest true "Account credentials"
// @Success 201 {object} signUpResponse
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	user, err := h.service.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.handleAuthError(c, err)
	}

	return c.JSON(http.StatusCreated, signUpResponse{
		User:    user,
		Message: "account created, please sign in",
	})
}

// Login authenticates a user.
// @Summary Login
// @Description Authenticate with email and password and get a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body credentialsRequest true "Login credentials"
// @Success 200 {object} authResponse
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	resp, err := h.service.SignIn(c.Request().Context(), req.Email, req.Password, c.Request().UserAgent())
	if err != nil {
		return h.handleAuthError(c, err)
	}

	// Cookie lets the browser UI stay signed in across reloads.
	setAuthCookie(c, resp.Token)

	return c.JSON(http.StatusOK, authResponse{
		Token:     resp.Token,
		User:      resp.User,
		ExpiresAt: resp.Session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// GetCurrentUser returns the current authenticated user.
// @Summary Get current user
// @Description Get the signed-in user's account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.User
// @Failure 401 {object} errorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetCurrentUser(c echo.Context) error {
	session := sessionFrom(c)
	if session == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
	}
	return c.JSON(http.StatusOK, &service.User{ID: session.UserID, Email: session.Email})
}

// Logout revokes the current session and clears the cookie.
// @Summary Logout
// @Description Revoke the session token and clear the authentication cookie
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} messageResponse
// @Failure 401 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.service.SignOut(c.Request().Context(), sessionFrom(c)); err != nil {
		return writeServiceError(c, err)
	}
	clearAuthCookie(c)
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *AuthHandler) handleAuthError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		return c.JSON(http.StatusConflict, errorResponse{Error: "email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid email or password"})
	case errors.Is(err, service.ErrEmailRequired),
		errors.Is(err, service.ErrEmailInvalid),
		errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// setAuthCookie sets the authentication cookie for the browser UI.
func setAuthCookie(c echo.Context, token string) {
	cookie := &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(service.SessionTTL.Seconds()),
	}
	c.SetCookie(cookie)
}

// clearAuthCookie clears the authentication cookie.
func clearAuthCookie(c echo.Context) {
	cookie := &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	}
	c.SetCookie(cookie)
}
