package service

import (
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Strizzyy/LegalSaathi-sub001/config"
	"github.com/Strizzyy/LegalSaathi-sub001/model"
)

// ErrExpertNotFound is returned for unknown expert uids.
var ErrExpertNotFound = errors.New("expert not found")

// ExpertStore persists the expert registry in the same database as reviews.
type ExpertStore struct {
	db *sql.DB
}

func NewExpertStore(db *sql.DB) *ExpertStore {
	return &ExpertStore{db: db}
}

// Seed upserts the config-declared expert accounts so that logins and the
// admin list agree with the config file after a restart.
func (s *ExpertStore) Seed(experts []config.Expert) error {
	for _, e := range experts {
		role := e.Role
		if role == "" {
			role = model.RoleLegalExpert
		}
		if err := s.AssignRole(e.UID, e.Email, role, e.Specializations); err != nil {
			return err
		}
	}
	if len(experts) > 0 {
		slog.Info("expert registry seeded", "count", len(experts))
	}
	return nil
}

// AssignRole creates or updates an expert record and marks it active.
func (s *ExpertStore) AssignRole(uid, email, role string, specializations []string) error {
	_, err := s.db.Exec(
		`INSERT INTO experts (uid, email, role, specializations, active, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?)
		 ON CONFLICT(uid) DO UPDATE SET
			email = excluded.email,
			role = excluded.role,
			specializations = excluded.specializations,
			active = 1,
			updated_at = excluded.updated_at`,
		uid, email, role, strings.Join(specializations, ","), time.Now().UTC(),
	)
	return err
}

// RemoveRole deactivates an expert. The record is kept so completed-review
// history stays attributable.
func (s *ExpertStore) RemoveRole(uid string) error {
	res, err := s.db.Exec(
		`UPDATE experts SET active = 0, updated_at = ? WHERE uid = ?`,
		time.Now().UTC(), uid,
	)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrExpertNotFound
	}
	return nil
}

// Get returns one expert by uid.
func (s *ExpertStore) Get(uid string) (*model.ExpertUser, error) {
	row := s.db.QueryRow(
		`SELECT uid, email, role, specializations, active, reviews_completed, total_review_hours
		 FROM experts WHERE uid = ?`, uid,
	)
	expert, err := scanExpert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExpertNotFound
	}
	return expert, err
}

// List returns all expert records, active first, then by email.
func (s *ExpertStore) List() ([]*model.ExpertUser, error) {
	rows, err := s.db.Query(
		`SELECT uid, email, role, specializations, active, reviews_completed, total_review_hours
		 FROM experts ORDER BY active DESC, email ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var experts []*model.ExpertUser
	for rows.Next() {
		e, err := scanExpert(rows)
		if err != nil {
			return nil, err
		}
		experts = append(experts, e)
	}
	return experts, rows.Err()
}

// RecordCompletion increments an expert's completed-review counters.
func (s *ExpertStore) RecordCompletion(uid string, reviewHours float64) error {
	_, err := s.db.Exec(
		`UPDATE experts SET
			reviews_completed = reviews_completed + 1,
			total_review_hours = total_review_hours + ?,
			updated_at = ?
		 WHERE uid = ?`,
		reviewHours, time.Now().UTC(), uid,
	)
	return err
}

func scanExpert(row interface{ Scan(...any) error }) (*model.ExpertUser, error) {
	var e model.ExpertUser
	var specs string
	var totalHours float64
	if err := row.Scan(&e.UID, &e.Email, &e.Role, &specs, &e.Active, &e.ReviewsCompleted, &totalHours); err != nil {
		return nil, err
	}
	if specs != "" {
		e.Specializations = strings.Split(specs, ",")
	}
	if e.ReviewsCompleted > 0 {
		e.AverageReviewTime = totalHours / float64(e.ReviewsCompleted)
	}
	return &e, nil
}
