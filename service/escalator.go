package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Strizzyy/LegalSaathi-sub001/config"
	"github.com/robfig/cron/v3"
)

// DocumentPurger removes a review's archived document.
type DocumentPurger interface {
	DeleteDocument(ctx context.Context, reviewID string) error
}

// Escalator periodically bumps the priority of aging pending tickets and
// purges finished tickets past retention, so the queue ordering reflects
// waiting time without any client involvement. Purged tickets have their
// archived documents deleted alongside the rows.
type Escalator struct {
	store   *ReviewStore
	archive DocumentPurger
	cfg     *config.QueueConfig
	cron    *cron.Cron
}

func NewEscalator(store *ReviewStore, archive DocumentPurger, cfg *config.QueueConfig) *Escalator {
	return &Escalator{store: store, archive: archive, cfg: cfg}
}

// Start schedules the escalation job. The schedule is a standard 5-field
// cron expression (minute hour day-of-month month day-of-week).
// Returns false when the schedule is invalid; the server keeps running
// without escalation in that case.
func (e *Escalator) Start() bool {
	schedule := strings.TrimSpace(e.cfg.EscalateSchedule)
	if schedule == "" {
		slog.Info("queue escalation disabled (escalate_schedule not set)")
		return false
	}

	e.cron = cron.New()
	if _, err := e.cron.AddFunc(schedule, e.RunOnce); err != nil {
		slog.Warn("invalid escalate_schedule, escalation disabled",
			"schedule", schedule, "error", err)
		e.cron = nil
		return false
	}

	e.cron.Start()
	slog.Info("queue escalation scheduled",
		"schedule", schedule,
		"escalate_after_hours", e.cfg.EscalateAfterHours,
		"retention_days", e.cfg.RetentionDays,
	)
	return true
}

// Stop halts the scheduler and waits for a running job to finish.
func (e *Escalator) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
}

// RunOnce performs a single escalation and retention pass.
func (e *Escalator) RunOnce() {
	now := time.Now().UTC()

	escalated, err := e.store.EscalateOlderThan(now.Add(-time.Duration(e.cfg.EscalateAfterHours) * time.Hour))
	if err != nil {
		slog.Error("priority escalation failed", "error", err)
	} else if escalated > 0 {
		slog.Info("escalated aging pending reviews", "count", escalated)
	}

	purged, err := e.store.PurgeFinishedBefore(now.AddDate(0, 0, -e.cfg.RetentionDays))
	if err != nil {
		slog.Error("retention purge failed", "error", err)
	} else if len(purged) > 0 {
		if e.archive != nil {
			for _, id := range purged {
				if err := e.archive.DeleteDocument(context.Background(), id); err != nil {
					slog.Warn("failed to delete archived document", "review_id", id, "error", err)
				}
			}
		}
		slog.Info("purged finished reviews past retention", "count", len(purged))
	}

	stats, err := e.store.Stats()
	if err != nil {
		slog.Error("queue stats snapshot failed", "error", err)
		return
	}
	slog.Info("queue depth",
		"pending", stats.PendingItems,
		"in_review", stats.InReviewItems,
		"completed", stats.CompletedItems,
	)
}
