package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/Strizzyy/LegalSaathi-sub001/middleware"
	"github.com/Strizzyy/LegalSaathi-sub001/model"
	"github.com/Strizzyy/LegalSaathi-sub001/pkg/logger"
	"github.com/Strizzyy/LegalSaathi-sub001/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultQueueLimit = 20
	maxQueueLimit     = 100
)

// DocumentArchive stores and retrieves submitted document text.
type DocumentArchive interface {
	StoreDocument(ctx context.Context, reviewID, content string) error
	FetchDocument(ctx context.Context, reviewID string) (string, error)
}

type ReviewHandler struct {
	store   *service.ReviewStore
	experts *service.ExpertStore
	archive DocumentArchive
}

func NewReviewHandler(store *service.ReviewStore, experts *service.ExpertStore, archive DocumentArchive) *ReviewHandler {
	return &ReviewHandler{
		store:   store,
		experts: experts,
		archive: archive,
	}
}

// SubmitRequest is the review-intake payload posted when a user accepts
// the low-confidence prompt.
type SubmitRequest struct {
	DocumentContent     string                     `json:"document_content"`
	AIAnalysis          *model.AnalysisResult      `json:"ai_analysis"`
	UserEmail           string                     `json:"user_email"`
	ConfidenceScore     float64                    `json:"confidence_score"`
	ConfidenceBreakdown *model.ConfidenceBreakdown `json:"confidence_breakdown,omitempty"`
	DocumentType        string                     `json:"document_type,omitempty"`
	ClientRef           string                     `json:"client_ref,omitempty"`
}

// Submit creates a review ticket from a low-confidence analysis.
// Repeated submissions with the same client_ref return the original ticket.
func (h *ReviewHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	if strings.TrimSpace(req.DocumentContent) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Document content is required"})
		return
	}
	if !ValidEmail(req.UserEmail) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "A valid email address is required"})
		return
	}
	if req.ConfidenceScore < 0 || req.ConfidenceScore > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Confidence score must be between 0 and 1"})
		return
	}

	priority := model.PriorityForConfidence(req.ConfidenceScore)
	ticket := &model.ReviewTicket{
		ReviewID:            uuid.New().String(),
		UserEmail:           req.UserEmail,
		ConfidenceScore:     req.ConfidenceScore,
		Priority:            priority,
		DocumentType:        req.DocumentType,
		ClientRef:           req.ClientRef,
		ConfidenceBreakdown: req.ConfidenceBreakdown,
		EstimatedHours:      model.EstimatedHoursForPriority(priority),
	}
	if req.AIAnalysis != nil {
		ticket.Summary = req.AIAnalysis.Summary
		ticket.RiskLevel = req.AIAnalysis.OverallRisk
		if ticket.ConfidenceBreakdown == nil {
			ticket.ConfidenceBreakdown = req.AIAnalysis.ConfidenceBreakdown
		}
	}

	saved, created, err := h.store.Submit(ticket)
	if err != nil {
		logger.Error(c.Request.Context(), "review intake failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to submit review request"})
		return
	}

	// The document is archived only for a freshly created ticket, after
	// the client_ref dedup, so duplicate submissions never write a second
	// object. A failed archival rolls the ticket back.
	if created {
		if err := h.archive.StoreDocument(c.Request.Context(), saved.ReviewID, req.DocumentContent); err != nil {
			logger.Error(c.Request.Context(), "document archival failed", "error", err)
			if derr := h.store.Discard(saved.ReviewID); derr != nil {
				logger.Error(c.Request.Context(), "failed to roll back review after archival failure",
					"review_id", saved.ReviewID, "error", derr)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to store document for review"})
			return
		}

		logger.Info(c.Request.Context(), "review submitted",
			"review_id", saved.ReviewID,
			"priority", saved.Priority,
			"confidence", saved.ConfidenceScore,
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                    true,
		"review_id":                  saved.ReviewID,
		"status":                     saved.Status,
		"priority":                   saved.Priority,
		"estimated_completion_hours": saved.EstimatedHours,
	})
}

// ListQueue returns pending and in-review tickets, most urgent first.
func (h *ReviewHandler) ListQueue(c *gin.Context) {
	limit := defaultQueueLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid limit"})
			return
		}
		limit = n
	}
	if limit > maxQueueLimit {
		limit = maxQueueLimit
	}

	tickets, err := h.store.ListActive(limit)
	if err != nil {
		logger.Error(c.Request.Context(), "queue list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list review queue"})
		return
	}

	if tickets == nil {
		tickets = []*model.ReviewTicket{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reviews": tickets})
}

// Next hands out the highest-priority oldest pending ticket. An empty
// queue is a successful response with no review, not an error.
func (h *ReviewHandler) Next(c *gin.Context) {
	ticket, err := h.store.NextPending()
	if err != nil {
		logger.Error(c.Request.Context(), "next review lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch next review"})
		return
	}

	if ticket == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"review":  nil,
			"message": "No pending reviews available",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "review": ticket})
}

// Assign claims a pending ticket for the calling expert. A claim lost to
// another expert returns 409 with the conflict message.
func (h *ReviewHandler) Assign(c *gin.Context) {
	reviewID := c.Param("id")
	uid := middleware.GetUID(c)

	ticket, err := h.store.Claim(reviewID, uid)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Review not found"})
		return
	case errors.Is(err, service.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Review already claimed by another expert"})
		return
	case err != nil:
		logger.Error(c.Request.Context(), "claim failed", "review_id", reviewID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to assign review"})
		return
	}

	logger.Info(c.Request.Context(), "review claimed", "review_id", reviewID)
	c.JSON(http.StatusOK, gin.H{"success": true, "review": ticket})
}

// Preview returns a condensed read-only view of a ticket. It never
// mutates the ticket, so experts can screen work before claiming it.
func (h *ReviewHandler) Preview(c *gin.Context) {
	reviewID := c.Param("id")

	ticket, err := h.store.Get(reviewID)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Review not found"})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "preview fetch failed", "review_id", reviewID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load preview"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"preview": gin.H{
			"review_id":                  ticket.ReviewID,
			"user_email":                 ticket.UserEmail,
			"confidence_score":           ticket.ConfidenceScore,
			"status":                     ticket.Status,
			"priority":                   ticket.Priority,
			"document_type":              ticket.DocumentType,
			"summary":                    ticket.Summary,
			"risk_level":                 ticket.RiskLevel,
			"confidence_breakdown":       ticket.ConfidenceBreakdown,
			"estimated_completion_hours": ticket.EstimatedHours,
			"created_at":                 ticket.CreatedAt,
		},
	})
}

// Document returns the archived document text for the full review screen.
func (h *ReviewHandler) Document(c *gin.Context) {
	reviewID := c.Param("id")

	if _, err := h.store.Get(reviewID); errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Review not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load review"})
		return
	}

	content, err := h.archive.FetchDocument(c.Request.Context(), reviewID)
	if err != nil {
		logger.Error(c.Request.Context(), "document fetch failed", "review_id", reviewID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "document_content": content})
}

// Complete marks an in-review ticket as completed and credits the
// assigned expert's counters.
func (h *ReviewHandler) Complete(c *gin.Context) {
	reviewID := c.Param("id")
	uid := middleware.GetUID(c)

	ticket, err := h.store.Complete(reviewID, uid)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Review not found"})
		return
	case errors.Is(err, service.ErrNotAssignee):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Review is assigned to another expert"})
		return
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Review is not in progress"})
		return
	case err != nil:
		logger.Error(c.Request.Context(), "completion failed", "review_id", reviewID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to complete review"})
		return
	}

	hours := ticket.UpdatedAt.Sub(ticket.CreatedAt).Hours()
	if err := h.experts.RecordCompletion(uid, hours); err != nil {
		logger.Warn(c.Request.Context(), "failed to record completion stats", "error", err)
	}

	logger.Info(c.Request.Context(), "review completed", "review_id", reviewID)
	c.JSON(http.StatusOK, gin.H{"success": true, "review": ticket})
}

// Cancel moves a pending or in-review ticket to cancelled.
func (h *ReviewHandler) Cancel(c *gin.Context) {
	reviewID := c.Param("id")

	ticket, err := h.store.Cancel(reviewID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Review not found"})
		return
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Review can no longer be cancelled"})
		return
	case err != nil:
		logger.Error(c.Request.Context(), "cancellation failed", "review_id", reviewID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to cancel review"})
		return
	}

	logger.Info(c.Request.Context(), "review cancelled", "review_id", reviewID)
	c.JSON(http.StatusOK, gin.H{"success": true, "review": ticket})
}

// Stats returns the aggregate queue snapshot.
func (h *ReviewHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats()
	if err != nil {
		logger.Error(c.Request.Context(), "stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to compute queue stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// ValidEmail performs the basic email-shape check used at intake.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject "Name <addr>" forms; only the bare address is accepted.
	return addr.Address == email
}
