package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strizzyy/LegalSaathi-sub001/config"
	"github.com/Strizzyy/LegalSaathi-sub001/model"
)

type recordingPurger struct {
	mu      sync.Mutex
	deleted []string
	fail    bool
}

func (p *recordingPurger) DeleteDocument(_ context.Context, reviewID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("bucket unavailable")
	}
	p.deleted = append(p.deleted, reviewID)
	return nil
}

func TestEscalatorRunOnce(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db)

	store.Submit(newTicket("rev-aging", 0.9))
	store.Submit(newTicket("rev-fresh", 0.9))
	store.Submit(newTicket("rev-stale-done", 0.5))
	store.Claim("rev-stale-done", "exp-a")
	store.Complete("rev-stale-done", "exp-a")

	// Age the pending ticket past the escalation threshold and the
	// finished ticket past retention.
	if _, err := db.Exec(`UPDATE reviews SET created_at = ? WHERE review_id = 'rev-aging'`,
		time.Now().UTC().Add(-24*time.Hour)); err != nil {
		t.Fatalf("Failed to age ticket: %v", err)
	}
	if _, err := db.Exec(`UPDATE reviews SET updated_at = ? WHERE review_id = 'rev-stale-done'`,
		time.Now().UTC().AddDate(0, 0, -60)); err != nil {
		t.Fatalf("Failed to age ticket: %v", err)
	}

	purger := &recordingPurger{}
	escalator := NewEscalator(store, purger, &config.QueueConfig{
		EscalateAfterHours: 12,
		RetentionDays:      30,
	})
	escalator.RunOnce()

	aged, err := store.Get("rev-aging")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if aged.Priority != model.PriorityMedium {
		t.Errorf("Expected rev-aging escalated to medium, got %s", aged.Priority)
	}

	fresh, _ := store.Get("rev-fresh")
	if fresh.Priority != model.PriorityLow {
		t.Errorf("Expected rev-fresh untouched, got %s", fresh.Priority)
	}

	if _, err := store.Get("rev-stale-done"); err == nil {
		t.Error("Expected rev-stale-done purged")
	}

	// The purged ticket's archived document went with it
	if len(purger.deleted) != 1 || purger.deleted[0] != "rev-stale-done" {
		t.Errorf("Expected archived document deleted for [rev-stale-done], got %v", purger.deleted)
	}
}

func TestEscalatorRunOnceArchiveFailureKeepsPurging(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db)

	store.Submit(newTicket("rev-done", 0.5))
	store.Claim("rev-done", "exp-a")
	store.Complete("rev-done", "exp-a")
	if _, err := db.Exec(`UPDATE reviews SET updated_at = ? WHERE review_id = 'rev-done'`,
		time.Now().UTC().AddDate(0, 0, -60)); err != nil {
		t.Fatalf("Failed to age ticket: %v", err)
	}

	escalator := NewEscalator(store, &recordingPurger{fail: true}, &config.QueueConfig{
		EscalateAfterHours: 12,
		RetentionDays:      30,
	})
	escalator.RunOnce()

	// A failed document delete is logged, not fatal; the row is still gone
	if _, err := store.Get("rev-done"); err == nil {
		t.Error("Expected rev-done purged despite archive failure")
	}
}

func TestEscalatorStartInvalidSchedule(t *testing.T) {
	store := NewReviewStore(newTestDB(t))

	escalator := NewEscalator(store, &recordingPurger{}, &config.QueueConfig{
		EscalateSchedule:   "not a schedule",
		EscalateAfterHours: 12,
		RetentionDays:      30,
	})
	if escalator.Start() {
		t.Error("Expected Start to report failure for invalid schedule")
	}
	escalator.Stop()
}

func TestEscalatorStartAndStop(t *testing.T) {
	store := NewReviewStore(newTestDB(t))

	escalator := NewEscalator(store, &recordingPurger{}, &config.QueueConfig{
		EscalateSchedule:   "*/30 * * * *",
		EscalateAfterHours: 12,
		RetentionDays:      30,
	})
	if !escalator.Start() {
		t.Error("Expected Start to succeed")
	}
	escalator.Stop()
}
