package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/StrixzIV/adv-compro-finals/internal/apperr"
	"github.com/StrixzIV/adv-compro-finals/internal/auth"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
	"github.com/StrixzIV/adv-compro-finals/internal/users"
)

type UserService interface {
	Register(ctx context.Context, in users.Registration) (storage.User, error)
	Authenticate(ctx context.Context, email, password string) (storage.User, error)
}

type UserHandler struct {
	logger   *slog.Logger
	users    UserService
	secret   []byte
	tokenTTL time.Duration
}

func NewUserHandler(logger *slog.Logger, users UserService, secret []byte, tokenTTL time.Duration) *UserHandler {
	return &UserHandler{
		logger:   logger,
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request body must be a JSON object")
		return
	}

	user, err := h.users.Register(c.Request.Context(), users.Registration{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// CreateSession exchanges an email and password for a bearer token.
func (h *UserHandler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request body must be a JSON object")
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindForbidden) {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid email or password", false)
			return
		}
		writeError(c, h.logger, err)
		return
	}

	expiresAt := time.Now().Add(h.tokenTTL).UTC()
	token, err := auth.GenerateToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("session created", "userID", user.ID, "ip", c.ClientIP())
	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt,
		"user":       toUserResponse(user),
	})
}
