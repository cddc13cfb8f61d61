package service

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Strizzyy/LegalSaathi-sub001/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTicket(id string, confidence float64) *model.ReviewTicket {
	priority := model.PriorityForConfidence(confidence)
	return &model.ReviewTicket{
		ReviewID:        id,
		UserEmail:       "user@example.com",
		ConfidenceScore: confidence,
		Priority:        priority,
		DocumentType:    "rental_agreement",
		EstimatedHours:  model.EstimatedHoursForPriority(priority),
	}
}

func TestReviewStoreSubmitAndGet(t *testing.T) {
	store := NewReviewStore(newTestDB(t))

	ticket := newTicket("rev-1", 0.35)
	ticket.Summary = "High-risk rental agreement"
	ticket.ConfidenceBreakdown = &model.ConfidenceBreakdown{
		OverallConfidence: 0.35,
		Components:        map[string]float64{"clause_coverage": 0.4},
		RiskFactors:       []string{"unusual penalty clause"},
	}

	saved, created, err := store.Submit(ticket)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !created {
		t.Error("Expected first submission to create the ticket")
	}
	if saved.Status != model.StatusPending {
		t.Errorf("Expected status pending, got %s", saved.Status)
	}

	got, err := store.Get("rev-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserEmail != "user@example.com" {
		t.Errorf("Expected user@example.com, got %s", got.UserEmail)
	}
	if got.Priority != model.PriorityHigh {
		t.Errorf("Expected priority high, got %s", got.Priority)
	}
	if got.ConfidenceBreakdown == nil || got.ConfidenceBreakdown.Components["clause_coverage"] != 0.4 {
		t.Errorf("Expected confidence breakdown to round-trip, got %+v", got.ConfidenceBreakdown)
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReviewStoreSubmitIdempotentOnClientRef(t *testing.T) {
	store := NewReviewStore(newTestDB(t))

	first := newTicket("rev-1", 0.4)
	first.ClientRef = "ref-abc"
	if _, _, err := store.Submit(first); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// A second submission with the same client_ref returns the original
	second := newTicket("rev-2", 0.4)
	second.ClientRef = "ref-abc"
	saved, created, err := store.Submit(second)
	if err != nil {
		t.Fatalf("Second submit failed: %v", err)
	}
	if created {
		t.Error("Expected duplicate submission to report created=false")
	}
	if saved.ReviewID != "rev-1" {
		t.Errorf("Expected original review id rev-1, got %s", saved.ReviewID)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 ticket, got %d", count)
	}
}

func TestReviewStoreSubmitConcurrentClientRef(t *testing.T) {
	store := NewReviewStore(newTestDB(t))

	// Both racers must land on the same ticket, whichever insert wins.
	for i := 0; i < 100; i++ {
		ref := "ref-" + strconv.Itoa(i)
		results := make(chan *model.ReviewTicket, 2)
		errs := make(chan error, 2)

		var wg sync.WaitGroup
		for _, id := range []string{"rev-a-" + ref, "rev-b-" + ref} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				ticket := newTicket(id, 0.4)
				ticket.ClientRef = ref
				saved, _, err := store.Submit(ticket)
				if err != nil {
					errs <- err
					return
				}
				results <- saved
			}(id)
		}
		wg.Wait()
		close(results)
		close(errs)

		for err := range errs {
			t.Fatalf("Concurrent submit with shared client_ref errored: %v", err)
		}
		var ids []string
		for saved := range results {
			ids = append(ids, saved.ReviewID)
		}
		if len(ids) != 2 || ids[0] != ids[1] {
			t.Fatalf("Expected both submissions to resolve to one ticket, got %v", ids)
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 100 {
		t.Errorf("Expected one ticket per client_ref, got %d", count)
	}
}

func TestReviewStoreListActiveOrdering(t *testing.T) {
	store := NewReviewStore(newTestDB(t))

	// Insert out of priority order
	for _, tc := range []struct {
		id         string
		confidence float64
	}{
		{"rev-low", 0.9},
		{"rev-urgent", 0.1},
		{"rev-medium", 0.6},
		{"rev-high", 0.4},
	} {
		if _, _, err := store.Submit(newTicket(tc.id, tc.confidence)); err != nil {
			t.Fatalf("Submit %s failed: %v", tc.id, err)
		}
	}

	tickets, err := store.ListActive(10)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}

	expected := []string{"rev-urgent", "rev-high", "rev-medium", "rev-low"}
	if len(tickets) != len(expected) {
		t.Fatalf("Expected %d tickets, got %d", len(expected), len(tickets))
	}
	for i, id := range expected {
		if tickets[i].ReviewID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, tickets[i].ReviewID)
		}
	}

	// Limit is respected
	tickets, err = store.ListActive(2)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(tickets) != 2 {
		t.Errorf("Expected 2 tickets with limit, got %d", len(tickets))
	}
}

func TestReviewStoreNextPending(t *testing.T) {
	store := NewReviewStore(newTestDB(t))

	// Empty queue returns nil without error
	ticket, err := store.NextPending()
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if ticket != nil {
		t.Errorf("Expected nil for empty queue, got %+v", ticket)
	}

	store.Submit(newTicket("rev-medium", 0.6))
	store.Submit(newTicket("rev-urgent", 0.2))

	ticket, err = store.NextPending()
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if ticket == nil || ticket.ReviewID != "rev-urgent" {
		t.Errorf("Expected rev-urgent, got %+v", ticket)
	}

	// A claimed ticket is no longer handed out
	if _, err := store.Claim("rev-urgent", "exp-1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	ticket, _ = store.NextPending()
	if ticket == nil || ticket.ReviewID != "rev-medium" {
		t.Errorf("Expected rev-medium after claim, got %+v", ticket)
	}
}

func TestReviewStoreClaim(t *testing.T) {
	store := NewReviewStore(newTestDB(t))
	store.Submit(newTicket("rev-1", 0.5))

	ticket, err := store.Claim("rev-1", "exp-a")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if ticket.Status != model.StatusInReview {
		t.Errorf("Expected status in_review, got %s", ticket.Status)
	}
	if ticket.AssignedTo != "exp-a" {
		t.Errorf("Expected assignee exp-a, got %s", ticket.AssignedTo)
	}

	// Second claim loses the race
	if _, err := store.Claim("rev-1", "exp-b"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("Expected ErrAlreadyClaimed, got %v", err)
	}

	// The losing expert did not displace the winner
	ticket, _ = store.Get("rev-1")
	if ticket.AssignedTo != "exp-a" {
		t.Errorf("Expected assignee exp-a after lost claim, got %s", ticket.AssignedTo)
	}

	// Unknown id is distinguished from a lost race
	if _, err := store.Claim("missing", "exp-b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReviewStoreCompleteAndCancel(t *testing.T) {
	store := NewReviewStore(newTestDB(t))
	store.Submit(newTicket("rev-1", 0.5))

	// Completing before claiming is an invalid transition
	if _, err := store.Complete("rev-1", "exp-a"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	store.Claim("rev-1", "exp-a")

	// Only the assignee may complete
	if _, err := store.Complete("rev-1", "exp-b"); !errors.Is(err, ErrNotAssignee) {
		t.Errorf("Expected ErrNotAssignee, got %v", err)
	}

	ticket, err := store.Complete("rev-1", "exp-a")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if ticket.Status != model.StatusCompleted {
		t.Errorf("Expected status completed, got %s", ticket.Status)
	}

	// Completed tickets cannot be cancelled
	if _, err := store.Cancel("rev-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	// Pending and in-review tickets can be cancelled
	store.Submit(newTicket("rev-2", 0.5))
	ticket, err = store.Cancel("rev-2")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if ticket.Status != model.StatusCancelled {
		t.Errorf("Expected status cancelled, got %s", ticket.Status)
	}
}

func TestReviewStoreStats(t *testing.T) {
	store := NewReviewStore(newTestDB(t))

	// Empty store
	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingItems != 0 || stats.InReviewItems != 0 || stats.CompletedItems != 0 {
		t.Errorf("Expected zero counts, got %+v", stats)
	}
	if stats.OldestPendingItem != "" {
		t.Errorf("Expected empty oldest pending, got %s", stats.OldestPendingItem)
	}

	store.Submit(newTicket("rev-1", 0.5))
	store.Submit(newTicket("rev-2", 0.5))
	store.Claim("rev-2", "exp-a")
	store.Submit(newTicket("rev-3", 0.5))
	store.Claim("rev-3", "exp-a")
	store.Complete("rev-3", "exp-a")

	stats, err = store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingItems != 1 {
		t.Errorf("Expected 1 pending, got %d", stats.PendingItems)
	}
	if stats.InReviewItems != 1 {
		t.Errorf("Expected 1 in_review, got %d", stats.InReviewItems)
	}
	if stats.CompletedItems != 1 {
		t.Errorf("Expected 1 completed, got %d", stats.CompletedItems)
	}
	if stats.OldestPendingItem == "" {
		t.Error("Expected oldest pending timestamp")
	}
	if _, err := time.Parse(time.RFC3339, stats.OldestPendingItem); err != nil {
		t.Errorf("Expected RFC3339 oldest pending, got %s", stats.OldestPendingItem)
	}
}

func TestReviewStoreEscalateOlderThan(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db)

	store.Submit(newTicket("rev-old", 0.9))
	store.Submit(newTicket("rev-new", 0.9))

	// Age one ticket artificially
	if _, err := db.Exec(`UPDATE reviews SET created_at = ? WHERE review_id = 'rev-old'`,
		time.Now().UTC().Add(-48*time.Hour)); err != nil {
		t.Fatalf("Failed to age ticket: %v", err)
	}

	escalated, err := store.EscalateOlderThan(time.Now().UTC().Add(-12 * time.Hour))
	if err != nil {
		t.Fatalf("EscalateOlderThan failed: %v", err)
	}
	if escalated != 1 {
		t.Errorf("Expected 1 escalation, got %d", escalated)
	}

	old, _ := store.Get("rev-old")
	if old.Priority != model.PriorityMedium {
		t.Errorf("Expected rev-old bumped to medium, got %s", old.Priority)
	}
	fresh, _ := store.Get("rev-new")
	if fresh.Priority != model.PriorityLow {
		t.Errorf("Expected rev-new untouched at low, got %s", fresh.Priority)
	}
}

func TestReviewStorePurgeFinishedBefore(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db)

	store.Submit(newTicket("rev-done", 0.5))
	store.Claim("rev-done", "exp-a")
	store.Complete("rev-done", "exp-a")
	store.Submit(newTicket("rev-open", 0.5))

	// Age the finished ticket past retention
	if _, err := db.Exec(`UPDATE reviews SET updated_at = ? WHERE review_id = 'rev-done'`,
		time.Now().UTC().Add(-40*24*time.Hour)); err != nil {
		t.Fatalf("Failed to age ticket: %v", err)
	}

	purged, err := store.PurgeFinishedBefore(time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PurgeFinishedBefore failed: %v", err)
	}
	if len(purged) != 1 || purged[0] != "rev-done" {
		t.Errorf("Expected purged ids [rev-done], got %v", purged)
	}

	if _, err := store.Get("rev-done"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected rev-done purged, got %v", err)
	}
	if _, err := store.Get("rev-open"); err != nil {
		t.Errorf("Expected rev-open kept, got %v", err)
	}
}
