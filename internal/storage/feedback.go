// Package storage persists feedback rows through sqlx. The same queries run
// against PostgreSQL and SQLite; placeholders are rebound per driver.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/m3rciful/feedbot/core/logger"
	"github.com/m3rciful/feedbot/internal/feedback"
)

const component = "db"

// Row mirrors one feedback table row.
type Row struct {
	ID              string         `db:"id"`
	UserID          int64          `db:"tg_user_id"`
	Username        sql.NullString `db:"tg_username"`
	Category        string         `db:"category"`
	Comment         string         `db:"comment"`
	Usefulness      int            `db:"rating_usefulness"`
	Usability       int            `db:"rating_usability"`
	FollowupComment sql.NullString `db:"followup_comment"`
	ContactType     sql.NullString `db:"contact_type"`
	ContactValue    sql.NullString `db:"contact_value"`
}

// CategoryStats aggregates submissions of one category.
type CategoryStats struct {
	Category      string  `db:"category"`
	Total         int64   `db:"total"`
	AvgUsefulness float64 `db:"avg_usefulness"`
	AvgUsability  float64 `db:"avg_usability"`
}

// FeedbackRepository implements feedback.Repository on a sqlx handle.
type FeedbackRepository struct {
	db *sqlx.DB
	// newID is swapped in tests.
	newID func() string
}

// NewFeedbackRepository wraps an open database handle.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db, newID: uuid.NewString}
}

// Insert writes a completed submission and returns its generated id.
func (r *FeedbackRepository) Insert(ctx context.Context, sub feedback.Submission) (string, error) {
	id := r.newID()
	query := r.db.Rebind(`INSERT INTO feedback
		(id, tg_user_id, tg_username, category, comment, rating_usefulness, rating_usability)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		id, sub.UserID, nullable(sub.Username), string(sub.Category),
		sub.Comment, sub.Usefulness, sub.Usability,
	)
	if err != nil {
		return "", r.fail(ctx, "insert", start, err)
	}
	logger.Debug(ctx, component, "db.insert",
		slog.String("status", "ok"),
		slog.String("record_id", id),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return id, nil
}

// Update applies the non-nil fields of patch to the row. Repeating the same
// patch leaves the row unchanged.
func (r *FeedbackRepository) Update(ctx context.Context, id string, patch feedback.Patch) error {
	var (
		sets []string
		args []any
	)
	if patch.FollowupComment != nil {
		sets = append(sets, "followup_comment = ?")
		args = append(args, *patch.FollowupComment)
	}
	if patch.ContactType != nil {
		sets = append(sets, "contact_type = ?")
		args = append(args, string(*patch.ContactType))
	}
	if patch.ContactValue != nil {
		sets = append(sets, "contact_value = ?")
		args = append(args, *patch.ContactValue)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := r.db.Rebind("UPDATE feedback SET " + strings.Join(sets, ", ") + " WHERE id = ?")

	start := time.Now()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, "update", start, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.fail(ctx, "update", start, err)
	}
	if n == 0 {
		return feedback.NewPersistenceError("update", "not_found", fmt.Errorf("%w: %s", feedback.ErrNotFound, id))
	}
	logger.Debug(ctx, component, "db.update",
		slog.String("status", "ok"),
		slog.String("record_id", id),
		slog.Int("count", len(sets)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// Get loads a single row by id.
func (r *FeedbackRepository) Get(ctx context.Context, id string) (Row, error) {
	var row Row
	query := r.db.Rebind(`SELECT id, tg_user_id, tg_username, category, comment,
		rating_usefulness, rating_usability, followup_comment, contact_type, contact_value
		FROM feedback WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, feedback.ErrNotFound
		}
		return Row{}, feedback.NewPersistenceError("get", backendCode(err), err)
	}
	return row, nil
}

// Stats returns per-category counts and average ratings ordered by category.
func (r *FeedbackRepository) Stats(ctx context.Context) ([]CategoryStats, error) {
	var out []CategoryStats
	const query = `SELECT category,
		COUNT(*) AS total,
		AVG(rating_usefulness * 1.0) AS avg_usefulness,
		AVG(rating_usability * 1.0) AS avg_usability
		FROM feedback GROUP BY category ORDER BY category`
	start := time.Now()
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, r.fail(ctx, "stats", start, err)
	}
	return out, nil
}

func (r *FeedbackRepository) fail(ctx context.Context, op string, start time.Time, err error) error {
	code := backendCode(err)
	logger.Error(ctx, component, "db."+op,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
		slog.String("err_code", code),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return feedback.NewPersistenceError(op, code, err)
}

// backendCode extracts the driver error code: SQLSTATE for PostgreSQL and the
// extended result code for SQLite.
func backendCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return "sqlite_" + strconv.Itoa(liteErr.Code())
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "db_error"
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
