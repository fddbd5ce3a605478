package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/application/services"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// AuthHandlers contains all authentication-related HTTP handlers.
type AuthHandlers struct {
	authService *services.AuthService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAuthHandlers creates auth handlers with injected dependencies.
func NewAuthHandlers(authService *services.AuthService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// PostLogin handles POST /api/v1/auth/login - admin authentication.
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("post_login_request")
	defer marker.Complete()

	var loginReq struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		h.logger.Auth().Error("Login request JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	token, err := h.authService.Login(loginReq.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			marker.SetSuccess(false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Auth().Error("Login token generation failed", "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.logger.Auth().Info("Login succeeded", "duration", time.Since(start))
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}
