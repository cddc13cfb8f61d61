package model

import (
	"time"
)

// ReviewTicket represents a queued request for human expert review
// of a low-confidence AI analysis.
type ReviewTicket struct {
	ReviewID            string               `json:"review_id"`
	UserEmail           string               `json:"user_email"`
	ConfidenceScore     float64              `json:"confidence_score"`
	Status              string               `json:"status"`   // pending, in_review, completed, cancelled
	Priority            string               `json:"priority"` // low, medium, high, urgent
	DocumentType        string               `json:"document_type,omitempty"`
	AssignedTo          string               `json:"assigned_to,omitempty"`
	ClientRef           string               `json:"client_ref,omitempty"`
	Summary             string               `json:"summary,omitempty"`
	RiskLevel           string               `json:"risk_level,omitempty"`
	ConfidenceBreakdown *ConfidenceBreakdown `json:"confidence_breakdown,omitempty"`
	EstimatedHours      int                  `json:"estimated_completion_hours"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// ReviewStatus constants
const (
	StatusPending   = "pending"
	StatusInReview  = "in_review"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Priority constants, lowest to highest
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// PriorityRank orders priorities for queue sorting; higher is more urgent.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// EscalatePriority returns the next tier up, or the same tier for urgent.
func EscalatePriority(priority string) string {
	switch priority {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	case PriorityHigh:
		return PriorityUrgent
	default:
		return priority
	}
}

// PriorityForConfidence derives the intake priority from the AI confidence.
func PriorityForConfidence(confidence float64) string {
	switch {
	case confidence < 0.3:
		return PriorityUrgent
	case confidence < 0.5:
		return PriorityHigh
	case confidence < 0.7:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// EstimatedHoursForPriority derives the completion estimate shown to users.
func EstimatedHoursForPriority(priority string) int {
	switch priority {
	case PriorityUrgent:
		return 2
	case PriorityHigh:
		return 8
	case PriorityMedium:
		return 24
	default:
		return 72
	}
}

// ValidTransition reports whether a status change is allowed.
// Transitions are monotonic: pending -> in_review -> completed, with
// cancelled reachable from pending or in_review.
func ValidTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusInReview || to == StatusCancelled
	case StatusInReview:
		return to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

// ConfidenceBreakdown decomposes an analysis's confidence score into
// named component weights and qualitative risk factors.
type ConfidenceBreakdown struct {
	OverallConfidence float64            `json:"overall_confidence"`
	Components        map[string]float64 `json:"components,omitempty"`
	RiskFactors       []string           `json:"risk_factors,omitempty"`
}

// ClauseAssessment is one per-clause risk entry of an analysis.
type ClauseAssessment struct {
	ClauseText  string `json:"clause_text"`
	RiskLevel   string `json:"risk_level"`
	Explanation string `json:"explanation,omitempty"`
}

// AnalysisResult is the AI output for one document, as produced by the
// analysis backend. Immutable from this module's perspective.
type AnalysisResult struct {
	AnalysisID          string               `json:"analysis_id"`
	OverallConfidence   float64              `json:"overall_confidence"`
	ShouldRouteToExpert bool                 `json:"should_route_to_expert"`
	ConfidenceBreakdown *ConfidenceBreakdown `json:"confidence_breakdown,omitempty"`
	Summary             string               `json:"summary"`
	OverallRisk         string               `json:"overall_risk,omitempty"`
	ClauseAssessments   []ClauseAssessment   `json:"analysis_results,omitempty"`
	Recommendations     []string             `json:"recommendations,omitempty"`
	DocumentText        string               `json:"document_text,omitempty"`
}

// ExpertUser is an authenticated reviewer record.
type ExpertUser struct {
	UID               string   `json:"uid"`
	Email             string   `json:"email"`
	Role              string   `json:"role"` // legal_expert, senior_expert, admin
	Specializations   []string `json:"specializations,omitempty"`
	Active            bool     `json:"active"`
	ReviewsCompleted  int      `json:"reviews_completed"`
	AverageReviewTime float64  `json:"average_review_time_hours"`
}

// Expert role constants
const (
	RoleLegalExpert  = "legal_expert"
	RoleSeniorExpert = "senior_expert"
	RoleAdmin        = "admin"
)

// ValidRole reports whether role is one of the known expert roles.
func ValidRole(role string) bool {
	return role == RoleLegalExpert || role == RoleSeniorExpert || role == RoleAdmin
}

// QueueStats is a read-only aggregate snapshot of the review queue.
type QueueStats struct {
	PendingItems          int     `json:"pending_items"`
	InReviewItems         int     `json:"in_review_items"`
	CompletedItems        int     `json:"completed_items"`
	AverageCompletionTime float64 `json:"average_completion_time_hours"`
	OldestPendingItem     string  `json:"oldest_pending_item,omitempty"`
}
