// Package client is the Go client for the expert-review API: review
// submission, the expert queue, session handling, and admin role
// management, plus the low-confidence prompt flow that feeds the queue.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/Strizzyy/LegalSaathi-sub001/model"
	"github.com/google/uuid"
)

const requestTimeout = 30 * time.Second

// Client calls the expert-review API. Authenticated calls read the bearer
// token from the session store on every request, so login and logout take
// effect without rebuilding the client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   SessionStore
}

// NewClient creates a client for the API at baseURL. sessions may be nil
// for a client that only submits reviews (the end-user surface).
func NewClient(baseURL string, sessions SessionStore) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		sessions:   sessions,
	}
}

// envelope is the common response wrapper; every endpoint returns a
// success flag plus either a payload or an error message. It is decoded
// exactly once, here; callers only ever see typed results or typed errors.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, authed bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if authed {
		if c.sessions == nil {
			return &AuthError{Message: "no session store configured"}
		}
		session, err := c.sessions.Load()
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if session == nil || session.Token == "" {
			return &AuthError{Message: "not logged in"}
		}
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{Message: errMessage(env, "session expired")}
	}
	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{Message: errMessage(env, "not found")}
	}
	if resp.StatusCode == http.StatusConflict {
		return &ClaimConflictError{Message: errMessage(env, "conflict")}
	}
	if resp.StatusCode >= 400 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response payload: %w", err)
		}
	}
	return nil
}

func errMessage(env envelope, fallback string) string {
	if env.Error != "" {
		return env.Error
	}
	return fallback
}

// ReviewSubmission is the payload posted when a user routes a
// low-confidence analysis to a human expert.
type ReviewSubmission struct {
	DocumentContent     string                     `json:"document_content"`
	AIAnalysis          *model.AnalysisResult      `json:"ai_analysis,omitempty"`
	UserEmail           string                     `json:"user_email"`
	ConfidenceScore     float64                    `json:"confidence_score"`
	ConfidenceBreakdown *model.ConfidenceBreakdown `json:"confidence_breakdown,omitempty"`
	DocumentType        string                     `json:"document_type,omitempty"`
	// ClientRef deduplicates accidental double submissions. Generated
	// automatically when empty.
	ClientRef string `json:"client_ref,omitempty"`
}

// SubmissionReceipt is the confirmation returned for an accepted review.
type SubmissionReceipt struct {
	ReviewID       string `json:"review_id"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	EstimatedHours int    `json:"estimated_completion_hours"`
}

// SubmitForExpertReview posts a review request. Validation failures are
// returned as ValidationError before any network call; server and network
// failures are returned as SubmissionError for the caller to surface as a
// retryable notification.
func (c *Client) SubmitForExpertReview(ctx context.Context, sub ReviewSubmission) (*SubmissionReceipt, error) {
	if strings.TrimSpace(sub.DocumentContent) == "" {
		return nil, &ValidationError{Field: "document_content", Message: "document content is required"}
	}
	if !validEmail(sub.UserEmail) {
		return nil, &ValidationError{Field: "user_email", Message: "a valid email address is required"}
	}
	if sub.ConfidenceScore < 0 || sub.ConfidenceScore > 1 {
		return nil, &ValidationError{Field: "confidence_score", Message: "confidence score must be between 0 and 1"}
	}
	if sub.ClientRef == "" {
		sub.ClientRef = uuid.New().String()
	}

	var receipt SubmissionReceipt
	if err := c.do(ctx, http.MethodPost, "/api/expert/review/submit", sub, &receipt, false); err != nil {
		return nil, &SubmissionError{Message: submissionMessage(err)}
	}
	return &receipt, nil
}

func submissionMessage(err error) string {
	if apiErr, ok := err.(*APIError); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	if _, ok := err.(*AuthError); ok {
		return err.Error()
	}
	return "Failed to submit review request. Please try again."
}

// ListQueue fetches up to limit pending and in-review tickets.
func (c *Client) ListQueue(ctx context.Context, limit int) ([]*model.ReviewTicket, error) {
	path := "/api/expert/queue/list"
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(fmt.Sprint(limit))
	}

	var out struct {
		Reviews []*model.ReviewTicket `json:"reviews"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Reviews, nil
}

// GetNextReview asks the server for the next unclaimed ticket by its own
// prioritization. An empty queue returns (nil, "", nil) plus the server's
// informational message; it is not an error.
func (c *Client) GetNextReview(ctx context.Context) (*model.ReviewTicket, string, error) {
	var out struct {
		Review  *model.ReviewTicket `json:"review"`
		Message string              `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/expert/queue/next", nil, &out, true); err != nil {
		return nil, "", err
	}
	return out.Review, out.Message, nil
}

// AssignToMe claims a pending ticket for the logged-in expert. A claim
// lost to another expert returns ClaimConflictError with the server's
// message; callers should refresh their list afterwards.
func (c *Client) AssignToMe(ctx context.Context, reviewID string) (*model.ReviewTicket, error) {
	if reviewID == "" {
		return nil, &ValidationError{Field: "review_id", Message: "review id is required"}
	}

	var out struct {
		Review *model.ReviewTicket `json:"review"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/expert/review/"+url.PathEscape(reviewID)+"/assign", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Review, nil
}

// ReviewPreview is the condensed ticket view shown before claiming.
type ReviewPreview struct {
	ReviewID            string                     `json:"review_id"`
	UserEmail           string                     `json:"user_email"`
	ConfidenceScore     float64                    `json:"confidence_score"`
	Status              string                     `json:"status"`
	Priority            string                     `json:"priority"`
	DocumentType        string                     `json:"document_type"`
	Summary             string                     `json:"summary"`
	RiskLevel           string                     `json:"risk_level"`
	ConfidenceBreakdown *model.ConfidenceBreakdown `json:"confidence_breakdown,omitempty"`
	EstimatedHours      int                        `json:"estimated_completion_hours"`
	CreatedAt           time.Time                  `json:"created_at"`
}

// LoadPreview fetches the condensed view of a ticket without claiming it.
// The call is read-only and safe to repeat.
func (c *Client) LoadPreview(ctx context.Context, reviewID string) (*ReviewPreview, error) {
	if reviewID == "" {
		return nil, &ValidationError{Field: "review_id", Message: "review id is required"}
	}

	var out struct {
		Preview *ReviewPreview `json:"preview"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/expert/review/"+url.PathEscape(reviewID)+"/preview", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Preview, nil
}

// FetchDocument retrieves the archived document text for a claimed review.
func (c *Client) FetchDocument(ctx context.Context, reviewID string) (string, error) {
	var out struct {
		DocumentContent string `json:"document_content"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/expert/review/"+url.PathEscape(reviewID)+"/document", nil, &out, true); err != nil {
		return "", err
	}
	return out.DocumentContent, nil
}

// CompleteReview marks a claimed review as completed.
func (c *Client) CompleteReview(ctx context.Context, reviewID string) (*model.ReviewTicket, error) {
	var out struct {
		Review *model.ReviewTicket `json:"review"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/expert/review/"+url.PathEscape(reviewID)+"/complete", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Review, nil
}

// CancelReview cancels a pending or in-review ticket.
func (c *Client) CancelReview(ctx context.Context, reviewID string) (*model.ReviewTicket, error) {
	var out struct {
		Review *model.ReviewTicket `json:"review"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/expert/review/"+url.PathEscape(reviewID)+"/cancel", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Review, nil
}

// GetQueueStats fetches the aggregate queue snapshot. Read-only.
func (c *Client) GetQueueStats(ctx context.Context) (*model.QueueStats, error) {
	var out struct {
		Stats *model.QueueStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/expert/queue/stats", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Stats, nil
}

// Login exchanges expert credentials for a session. The session is not
// saved; pass it to SessionGuard.Establish to persist it.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	if !validEmail(email) {
		return nil, &ValidationError{Field: "email", Message: "a valid email address is required"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "password is required"}
	}

	var out struct {
		Token           string   `json:"token"`
		ExpiresAt       string   `json:"expires_at"`
		UID             string   `json:"uid"`
		Email           string   `json:"email"`
		Role            string   `json:"role"`
		Specializations []string `json:"specializations"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/expert/auth/login",
		map[string]string{"email": email, "password": password}, &out, false); err != nil {
		return nil, err
	}

	session := &Session{
		Token: out.Token,
		Expert: model.ExpertUser{
			UID:             out.UID,
			Email:           out.Email,
			Role:            out.Role,
			Specializations: out.Specializations,
			Active:          true,
		},
	}
	if expires, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
		session.ExpiresAt = expires
	}
	return session, nil
}

// Me probes session validity and returns the current claims.
func (c *Client) Me(ctx context.Context) (uid, email, role string, err error) {
	var out struct {
		UID   string `json:"uid"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/expert/auth/me", nil, &out, true); err != nil {
		return "", "", "", err
	}
	return out.UID, out.Email, out.Role, nil
}

// ListExperts fetches the expert registry. Admin only.
func (c *Client) ListExperts(ctx context.Context) ([]*model.ExpertUser, error) {
	var out struct {
		Experts []*model.ExpertUser `json:"experts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/expert/admin/experts", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Experts, nil
}

// AssignRole creates or updates an expert role assignment. Admin only.
// An empty user id is rejected before any network call.
func (c *Client) AssignRole(ctx context.Context, userID, email, role string, specializations []string) error {
	if strings.TrimSpace(userID) == "" {
		return &ValidationError{Field: "user_id", Message: "Please enter a user ID"}
	}

	body := map[string]any{
		"user_id":         userID,
		"email":           email,
		"role":            role,
		"specializations": specializations,
	}
	return c.do(ctx, http.MethodPost, "/api/expert/admin/assign-role", body, nil, true)
}

// RemoveRole deactivates an expert account. Admin only.
func (c *Client) RemoveRole(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &ValidationError{Field: "user_id", Message: "Please enter a user ID"}
	}
	return c.do(ctx, http.MethodDelete, "/api/expert/admin/remove-role/"+url.PathEscape(userID), nil, nil, true)
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}
