package handler

import (
	"fmt"
	"lending-backoffice/internal/api/handler/dto"
	"lending-backoffice/internal/config"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

type AuthHandler struct {
	cfg    config.AuthConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(cfg config.AuthConfig, l *slog.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:    cfg,
		logger: l.With("component", "AuthHandler"),
		now:    time.Now,
	}
}

// GenerateBearerToken generates a JWT bearer token using the provided secret.
//
// @Summary Generate a JWT bearer token
// @Description Issues an HS256 token for back-office API clients. The token expires after the configured TTL.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "username"
// @Success 200 {object} dto.TokenResponse "Token successfully generated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request parameters"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/token [post]
func (h *AuthHandler) GenerateBearerToken(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request body", "error", err)
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		respondError(w, fmt.Errorf("%w: username is required", apperrors.ErrInvalidArgument))
		return
	}
	if h.cfg.JWTSecret == "" {
		h.logger.ErrorContext(r.Context(), "JWT secret is not configured")
		respondError(w, apperrors.ErrInternalServer)
		return
	}

	ttl := h.cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	expiresAt := h.now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"iat":      h.now().Unix(),
		"exp":      expiresAt.Unix(),
	})
	tokenString, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to sign token", "error", err)
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Issued bearer token", "username", username)
	respondJSON(w, http.StatusOK, dto.TokenResponse{
		Token:     "Bearer " + tokenString,
		ExpiresAt: expiresAt.UTC(),
	})
}
