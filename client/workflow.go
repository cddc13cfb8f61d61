package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Strizzyy/LegalSaathi-sub001/model"
	"github.com/google/uuid"
)

// ConfidenceEvaluator decides whether a finished analysis should surface
// the expert-review prompt. The prompt fires at most once per analysis,
// even when the same result is rendered again.
type ConfidenceEvaluator struct {
	mu       sync.Mutex
	prompted map[string]bool
}

func NewConfidenceEvaluator() *ConfidenceEvaluator {
	return &ConfidenceEvaluator{prompted: make(map[string]bool)}
}

// ShouldPrompt reports whether the prompt should be shown for result. It
// records the decision, so a second call for the same analysis id returns
// false.
func (e *ConfidenceEvaluator) ShouldPrompt(result *model.AnalysisResult) bool {
	if result == nil || !result.ShouldRouteToExpert {
		return false
	}
	if result.OverallConfidence <= 0 || result.OverallConfidence > 1 {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prompted[result.AnalysisID] {
		return false
	}
	e.prompted[result.AnalysisID] = true
	return true
}

// PopupState is one of the three mutually exclusive prompt states.
type PopupState string

const (
	// StateNone: no popup visible.
	StateNone PopupState = "none"
	// StateConfidencePopup: the low-confidence prompt is visible.
	StateConfidencePopup PopupState = "confidence_popup"
	// StateConfirmation: the submission-confirmed popup is visible.
	StateConfirmation PopupState = "submission_confirmed_popup"
)

// ErrInvalidPopupState is returned when an event fires in a state that
// does not accept it.
var ErrInvalidPopupState = errors.New("event not allowed in current popup state")

// PopupFlow sequences the low-confidence prompt: confidence popup, then
// either decline or accept-and-submit, then the confirmation popup with
// its dashboard/stay choice. At most one popup is visible at any time.
type PopupFlow struct {
	mu           sync.Mutex
	state        PopupState
	client       *Client
	dashboardURL string

	analysis  *model.AnalysisResult
	clientRef string
	receipt   *SubmissionReceipt
	lastErr   string
}

// NewPopupFlow creates a flow that submits through c and points the
// confirmation popup's dashboard link at dashboardURL.
func NewPopupFlow(c *Client, dashboardURL string) *PopupFlow {
	return &PopupFlow{
		state:        StateNone,
		client:       c,
		dashboardURL: dashboardURL,
	}
}

// State returns the currently visible popup state.
func (f *PopupFlow) State() PopupState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastError returns the message of the most recent failed submission, for
// display inside the still-open confidence popup.
func (f *PopupFlow) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Receipt returns the submission receipt shown by the confirmation popup.
func (f *PopupFlow) Receipt() *SubmissionReceipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt
}

// ShowPrompt opens the confidence popup for result. Only allowed when no
// popup is visible. The idempotency key for the eventual submission is
// fixed here, so a double-clicked accept cannot create two tickets.
func (f *PopupFlow) ShowPrompt(result *model.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateNone {
		return fmt.Errorf("%w: cannot open prompt from %s", ErrInvalidPopupState, f.state)
	}
	f.state = StateConfidencePopup
	f.analysis = result
	f.clientRef = uuid.New().String()
	f.receipt = nil
	f.lastErr = ""
	return nil
}

// Accept submits the analysis for expert review with the entered email.
// On success the confidence popup closes and the confirmation popup
// opens; on failure the confidence popup stays open with the error
// recorded for display, and the caller may retry.
func (f *PopupFlow) Accept(ctx context.Context, email string) (*SubmissionReceipt, error) {
	f.mu.Lock()
	if f.state != StateConfidencePopup {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot accept from %s", ErrInvalidPopupState, f.state)
	}
	analysis := f.analysis
	sub := ReviewSubmission{
		DocumentContent:     analysis.DocumentText,
		AIAnalysis:          analysis,
		UserEmail:           email,
		ConfidenceScore:     analysis.OverallConfidence,
		ConfidenceBreakdown: analysis.ConfidenceBreakdown,
		ClientRef:           f.clientRef,
	}
	f.mu.Unlock()

	// The network call runs outside the lock so a slow submission never
	// blocks state reads; the state cannot change underneath it because
	// every other transition out of the confidence popup goes through
	// Decline, which the UI disables while a submission is in flight.
	receipt, err := f.client.SubmitForExpertReview(ctx, sub)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.lastErr = err.Error()
		return nil, err
	}
	f.receipt = receipt
	f.lastErr = ""
	f.state = StateConfirmation
	return receipt, nil
}

// Decline closes the confidence popup without submitting.
func (f *PopupFlow) Decline() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateConfidencePopup {
		return fmt.Errorf("%w: cannot decline from %s", ErrInvalidPopupState, f.state)
	}
	f.reset()
	return nil
}

// GoToDashboard closes the confirmation popup and returns the expert
// queue URL for the caller to open in a new browsing context. The
// current analysis view is left untouched.
func (f *PopupFlow) GoToDashboard() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateConfirmation {
		return "", fmt.Errorf("%w: cannot open dashboard from %s", ErrInvalidPopupState, f.state)
	}
	f.reset()
	return f.dashboardURL, nil
}

// StayHere closes the confirmation popup and keeps the user on the
// current analysis view.
func (f *PopupFlow) StayHere() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateConfirmation {
		return fmt.Errorf("%w: cannot stay from %s", ErrInvalidPopupState, f.state)
	}
	f.reset()
	return nil
}

// reset must be called with the lock held.
func (f *PopupFlow) reset() {
	f.state = StateNone
	f.analysis = nil
	f.clientRef = ""
	f.receipt = nil
	f.lastErr = ""
}
