package handler

import (
	"errors"
	"net/http"

	"github.com/Strizzyy/LegalSaathi-sub001/config"
	"github.com/Strizzyy/LegalSaathi-sub001/middleware"
	"github.com/Strizzyy/LegalSaathi-sub001/pkg/logger"
	"github.com/Strizzyy/LegalSaathi-sub001/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	config  *config.Config
	experts *service.ExpertStore
}

func NewAuthHandler(cfg *config.Config, experts *service.ExpertStore) *AuthHandler {
	return &AuthHandler{config: cfg, experts: experts}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Success   bool     `json:"success"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	UID       string   `json:"uid"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	Specs     []string `json:"specializations,omitempty"`
}

// Login exchanges expert credentials for a bearer token. The registry is
// consulted so role changes and deactivations made by an admin apply at
// the next login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	account := h.config.FindExpert(req.Email)
	if account == nil || account.Password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid email or password"})
		return
	}

	expert, err := h.experts.Get(account.UID)
	if errors.Is(err, service.ErrExpertNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Expert account not registered"})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "expert lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to log in"})
		return
	}
	if !expert.Active {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Expert account is deactivated"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(expert.UID, expert.Email, expert.Role, &h.config.Auth)
	if err != nil {
		logger.Error(c.Request.Context(), "token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate token"})
		return
	}

	logger.Info(c.Request.Context(), "expert logged in", "uid", expert.UID, "role", expert.Role)

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt.Format("2006-01-02T15:04:05Z07:00"),
		UID:       expert.UID,
		Email:     expert.Email,
		Role:      expert.Role,
		Specs:     expert.Specializations,
	})
}

// Me returns the current expert claims. Clients use it as a cheap
// session-validity probe.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"uid":     middleware.GetUID(c),
		"email":   middleware.GetEmail(c),
		"role":    middleware.GetRole(c),
	})
}
