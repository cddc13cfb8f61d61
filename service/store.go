package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Strizzyy/LegalSaathi-sub001/model"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Store errors returned to handlers, which map them to HTTP statuses.
var (
	ErrNotFound          = errors.New("review not found")
	ErrAlreadyClaimed    = errors.New("review already claimed by another expert")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotAssignee       = errors.New("review is assigned to another expert")
)

// OpenDB opens the SQLite database and bootstraps the schema.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS reviews (
		review_id       TEXT PRIMARY KEY,
		user_email      TEXT NOT NULL,
		confidence      REAL NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		priority        TEXT NOT NULL DEFAULT 'medium',
		document_type   TEXT DEFAULT '',
		assigned_to     TEXT DEFAULT '',
		client_ref      TEXT DEFAULT '',
		summary         TEXT DEFAULT '',
		risk_level      TEXT DEFAULT '',
		breakdown_json  TEXT DEFAULT '',
		estimated_hours INTEGER NOT NULL DEFAULT 24,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_status ON reviews(status);
	CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_client_ref ON reviews(client_ref) WHERE client_ref != '';

	CREATE TABLE IF NOT EXISTS experts (
		uid                  TEXT PRIMARY KEY,
		email                TEXT NOT NULL,
		role                 TEXT NOT NULL,
		specializations      TEXT DEFAULT '',
		active               INTEGER NOT NULL DEFAULT 1,
		reviews_completed    INTEGER NOT NULL DEFAULT 0,
		total_review_hours   REAL NOT NULL DEFAULT 0,
		created_at           DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at           DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_experts_email ON experts(email);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return db, nil
}

// ReviewStore persists review tickets and arbitrates claims.
type ReviewStore struct {
	db *sql.DB
}

func NewReviewStore(db *sql.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

// priorityOrder sorts by model.PriorityRank descending, oldest first
// within a tier. Built once from the rank function so SQL ordering and
// Go ordering cannot drift apart.
var priorityOrder = fmt.Sprintf(`CASE priority
	WHEN '%s' THEN %d
	WHEN '%s' THEN %d
	WHEN '%s' THEN %d
	ELSE %d END DESC, created_at ASC`,
	model.PriorityUrgent, model.PriorityRank(model.PriorityUrgent),
	model.PriorityHigh, model.PriorityRank(model.PriorityHigh),
	model.PriorityMedium, model.PriorityRank(model.PriorityMedium),
	model.PriorityRank(model.PriorityLow),
)

// Submit inserts a new pending ticket and reports whether it was created.
// If the ticket carries a client_ref that was already submitted, the
// existing ticket is returned with created=false instead of creating a
// duplicate. Two concurrent submissions with the same client_ref resolve
// through the unique index: the loser's INSERT collides and it returns
// the winner's ticket.
func (s *ReviewStore) Submit(ticket *model.ReviewTicket) (*model.ReviewTicket, bool, error) {
	if ticket.ClientRef != "" {
		existing, err := s.FindByClientRef(ticket.ClientRef)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	now := time.Now().UTC()
	ticket.Status = model.StatusPending
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	var breakdownJSON string
	if ticket.ConfidenceBreakdown != nil {
		data, err := json.Marshal(ticket.ConfidenceBreakdown)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal confidence breakdown: %w", err)
		}
		breakdownJSON = string(data)
	}

	_, err := s.db.Exec(
		`INSERT INTO reviews (review_id, user_email, confidence, status, priority, document_type,
			assigned_to, client_ref, summary, risk_level, breakdown_json, estimated_hours, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ReviewID, ticket.UserEmail, ticket.ConfidenceScore, ticket.Status, ticket.Priority,
		ticket.DocumentType, ticket.ClientRef, ticket.Summary, ticket.RiskLevel, breakdownJSON,
		ticket.EstimatedHours, ticket.CreatedAt, ticket.UpdatedAt,
	)
	if err != nil {
		// Lost the insert race against a duplicate client_ref; hand back
		// the ticket that won.
		var sqliteErr sqlite3.Error
		if ticket.ClientRef != "" && errors.As(err, &sqliteErr) &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			existing, findErr := s.FindByClientRef(ticket.ClientRef)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert review: %w", err)
	}

	return ticket, true, nil
}

// Discard hard-deletes a ticket. Used to roll back an intake whose
// document could not be archived.
func (s *ReviewStore) Discard(reviewID string) error {
	_, err := s.db.Exec(`DELETE FROM reviews WHERE review_id = ?`, reviewID)
	return err
}

const ticketColumns = `review_id, user_email, confidence, status, priority, document_type,
	assigned_to, client_ref, summary, risk_level, breakdown_json, estimated_hours, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*model.ReviewTicket, error) {
	var t model.ReviewTicket
	var breakdownJSON string
	err := row.Scan(&t.ReviewID, &t.UserEmail, &t.ConfidenceScore, &t.Status, &t.Priority,
		&t.DocumentType, &t.AssignedTo, &t.ClientRef, &t.Summary, &t.RiskLevel, &breakdownJSON,
		&t.EstimatedHours, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if breakdownJSON != "" {
		var b model.ConfidenceBreakdown
		if err := json.Unmarshal([]byte(breakdownJSON), &b); err == nil {
			t.ConfidenceBreakdown = &b
		}
	}
	return &t, nil
}

// Get returns a ticket by id.
func (s *ReviewStore) Get(reviewID string) (*model.ReviewTicket, error) {
	row := s.db.QueryRow(`SELECT `+ticketColumns+` FROM reviews WHERE review_id = ?`, reviewID)
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// FindByClientRef returns the ticket submitted with the given idempotency key.
func (s *ReviewStore) FindByClientRef(clientRef string) (*model.ReviewTicket, error) {
	row := s.db.QueryRow(`SELECT `+ticketColumns+` FROM reviews WHERE client_ref = ?`, clientRef)
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListActive returns pending and in-review tickets, most urgent and oldest first.
func (s *ReviewStore) ListActive(limit int) ([]*model.ReviewTicket, error) {
	rows, err := s.db.Query(
		`SELECT `+ticketColumns+` FROM reviews
		 WHERE status IN (?, ?)
		 ORDER BY `+priorityOrder+`
		 LIMIT ?`,
		model.StatusPending, model.StatusInReview, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*model.ReviewTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// NextPending returns the highest-priority oldest pending ticket, or nil
// when the queue is empty.
func (s *ReviewStore) NextPending() (*model.ReviewTicket, error) {
	row := s.db.QueryRow(
		`SELECT ` + ticketColumns + ` FROM reviews
		 WHERE status = 'pending'
		 ORDER BY ` + priorityOrder + `
		 LIMIT 1`,
	)
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Claim transitions a pending ticket to in_review for the given expert.
// The update is conditional on the current status, so concurrent claims
// against the same ticket resolve to exactly one winner.
func (s *ReviewStore) Claim(reviewID, expertUID string) (*model.ReviewTicket, error) {
	res, err := s.db.Exec(
		`UPDATE reviews SET status = ?, assigned_to = ?, updated_at = ?
		 WHERE review_id = ? AND status = ?`,
		model.StatusInReview, expertUID, time.Now().UTC(), reviewID, model.StatusPending,
	)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish a lost race from a bad id.
		if _, err := s.Get(reviewID); errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyClaimed
	}

	return s.Get(reviewID)
}

// Complete transitions an in_review ticket to completed. Only the expert
// the ticket is assigned to may complete it.
func (s *ReviewStore) Complete(reviewID, expertUID string) (*model.ReviewTicket, error) {
	ticket, err := s.Get(reviewID)
	if err != nil {
		return nil, err
	}
	if !model.ValidTransition(ticket.Status, model.StatusCompleted) {
		return nil, ErrInvalidTransition
	}
	if ticket.AssignedTo != expertUID {
		return nil, ErrNotAssignee
	}

	res, err := s.db.Exec(
		`UPDATE reviews SET status = ?, updated_at = ?
		 WHERE review_id = ? AND status = ? AND assigned_to = ?`,
		model.StatusCompleted, time.Now().UTC(), reviewID, model.StatusInReview, expertUID,
	)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrInvalidTransition
	}

	return s.Get(reviewID)
}

// Cancel moves a pending or in-review ticket to cancelled.
func (s *ReviewStore) Cancel(reviewID string) (*model.ReviewTicket, error) {
	ticket, err := s.Get(reviewID)
	if err != nil {
		return nil, err
	}
	if !model.ValidTransition(ticket.Status, model.StatusCancelled) {
		return nil, ErrInvalidTransition
	}

	res, err := s.db.Exec(
		`UPDATE reviews SET status = ?, updated_at = ?
		 WHERE review_id = ? AND status IN (?, ?)`,
		model.StatusCancelled, time.Now().UTC(), reviewID, model.StatusPending, model.StatusInReview,
	)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrInvalidTransition
	}

	return s.Get(reviewID)
}

// Stats computes the aggregate queue snapshot.
func (s *ReviewStore) Stats() (*model.QueueStats, error) {
	stats := &model.QueueStats{}

	err := s.db.QueryRow(
		`SELECT
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'in_review' THEN 1 END),
			COUNT(CASE WHEN status = 'completed' THEN 1 END)
		 FROM reviews`,
	).Scan(&stats.PendingItems, &stats.InReviewItems, &stats.CompletedItems)
	if err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	err = s.db.QueryRow(
		`SELECT AVG((julianday(updated_at) - julianday(created_at)) * 24.0)
		 FROM reviews WHERE status = 'completed'`,
	).Scan(&avg)
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		stats.AverageCompletionTime = avg.Float64
	}

	var oldest time.Time
	err = s.db.QueryRow(
		`SELECT created_at FROM reviews WHERE status = 'pending'
		 ORDER BY created_at ASC LIMIT 1`,
	).Scan(&oldest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		stats.OldestPendingItem = oldest.UTC().Format(time.RFC3339)
	}

	return stats, nil
}

// EscalateOlderThan bumps pending tickets created before cutoff one
// priority tier via model.EscalatePriority. Returns the number of
// escalated tickets.
func (s *ReviewStore) EscalateOlderThan(cutoff time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT review_id, priority FROM reviews
		 WHERE status = 'pending' AND created_at < ? AND priority != ?`,
		cutoff, model.PriorityUrgent,
	)
	if err != nil {
		return 0, err
	}

	type bump struct{ id, priority string }
	var bumps []bump
	for rows.Next() {
		var b bump
		if err := rows.Scan(&b.id, &b.priority); err != nil {
			rows.Close()
			return 0, err
		}
		bumps = append(bumps, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	now := time.Now().UTC()
	for _, b := range bumps {
		if _, err := tx.Exec(
			`UPDATE reviews SET priority = ?, updated_at = ? WHERE review_id = ?`,
			model.EscalatePriority(b.priority), now, b.id,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(bumps), nil
}

// PurgeFinishedBefore removes completed and cancelled tickets whose last
// update is older than cutoff. Returns the ids of the removed tickets so
// the caller can clean up their archived documents.
func (s *ReviewStore) PurgeFinishedBefore(cutoff time.Time) ([]string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT review_id FROM reviews WHERE status IN (?, ?) AND updated_at < ?`,
		model.StatusCompleted, model.StatusCancelled, cutoff,
	)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.Exec(
		`DELETE FROM reviews WHERE status IN (?, ?) AND updated_at < ?`,
		model.StatusCompleted, model.StatusCancelled, cutoff,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Count returns the total number of tickets in the store.
func (s *ReviewStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM reviews`).Scan(&n)
	return n, err
}
