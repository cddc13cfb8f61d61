package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Strizzyy/LegalSaathi-sub001/model"
	"github.com/Strizzyy/LegalSaathi-sub001/pkg/logger"
	"github.com/Strizzyy/LegalSaathi-sub001/service"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	experts *service.ExpertStore
}

func NewAdminHandler(experts *service.ExpertStore) *AdminHandler {
	return &AdminHandler{experts: experts}
}

// ListExperts returns the full expert registry.
func (h *AdminHandler) ListExperts(c *gin.Context) {
	experts, err := h.experts.List()
	if err != nil {
		logger.Error(c.Request.Context(), "expert list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list experts"})
		return
	}

	if experts == nil {
		experts = []*model.ExpertUser{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "experts": experts})
}

type AssignRoleRequest struct {
	UserID          string   `json:"user_id"`
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	Specializations []string `json:"specializations,omitempty"`
}

// AssignRole creates or updates an expert role assignment.
func (h *AdminHandler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Please enter a user ID"})
		return
	}
	if !model.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unknown role: " + req.Role})
		return
	}
	if !ValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "A valid email address is required"})
		return
	}

	if err := h.experts.AssignRole(req.UserID, req.Email, req.Role, req.Specializations); err != nil {
		logger.Error(c.Request.Context(), "role assignment failed", "uid", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to assign role"})
		return
	}

	logger.Info(c.Request.Context(), "role assigned", "uid", req.UserID, "assigned_role", req.Role)
	c.JSON(http.StatusOK, gin.H{"success": true, "uid": req.UserID, "role": req.Role})
}

// RemoveRole deactivates an expert account.
func (h *AdminHandler) RemoveRole(c *gin.Context) {
	uid := c.Param("uid")

	err := h.experts.RemoveRole(uid)
	if errors.Is(err, service.ErrExpertNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Expert not found"})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "role removal failed", "uid", uid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to remove role"})
		return
	}

	logger.Info(c.Request.Context(), "role removed", "uid", uid)
	c.JSON(http.StatusOK, gin.H{"success": true, "uid": uid})
}
