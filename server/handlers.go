package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/machsheltie/Equoria-sub009/services/auth"
	"github.com/machsheltie/Equoria-sub009/services/credential"
	"github.com/machsheltie/Equoria-sub009/services/jwt"
	"github.com/machsheltie/Equoria-sub009/services/logging"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
)

// signInAgainMessage is the one external message for every security
// rejection. Internally the rejections stay distinguishable for audit;
// externally they must not.
const signInAgainMessage = "please sign in again"

type AuthHandler struct {
	authService       *auth.Service
	credentialService *credential.Service
	jwtService        *jwt.Service
	logger            *logging.Service
}

func NewAuthHandler(authService *auth.Service, credentialService *credential.Service, jwtService *jwt.Service, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		authService:       authService,
		credentialService: credentialService,
		jwtService:        jwtService,
		logger:            logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.authService.Register(req.Email, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "email already registered"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, user)
}

// Login is the authentication event: it starts a new credential family.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.authService.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	issued, err := h.credentialService.Issue(user.ID, deviceInfo(c))
	if err != nil {
		h.logger.Error("failed to issue credential on login", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	accessToken, err := h.jwtService.GenerateToken(user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: issued.Secret,
		ExpiresAt:    issued.Credential.ExpiresAt,
	})
}

// Refresh exchanges a refresh credential for its successor plus a new
// access token. All four security rejections collapse to one 401 body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	result, err := h.credentialService.Rotate(req.RefreshToken, requestMeta(c))
	if err != nil {
		if credential.IsRejection(err) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": signInAgainMessage})
		}
		h.logger.Error("credential rotation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	accessToken, err := h.jwtService.GenerateToken(result.Credential.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: result.Secret,
		ExpiresAt:    result.Credential.ExpiresAt,
	})
}

// Logout revokes the presented credential's whole family.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if err := h.credentialService.RevokeBySecret(req.RefreshToken, requestMeta(c)); err != nil {
		if credential.IsRejection(err) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": signInAgainMessage})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.NoContent(http.StatusNoContent)
}

func requestMeta(c echo.Context) credential.RequestMeta {
	return credential.RequestMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func deviceInfo(c echo.Context) string {
	ua := useragent.Parse(c.Request().UserAgent())

	parts := make([]string, 0, 3)
	if ua.Name != "" {
		parts = append(parts, ua.Name)
	}
	if ua.OS != "" {
		parts = append(parts, ua.OS)
	}
	if ua.Device != "" {
		parts = append(parts, ua.Device)
	}

	return strings.Join(parts, " / ")
}
