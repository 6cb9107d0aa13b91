package pgrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/somakids/engage/core"
	"github.com/somakids/engage/core/session"
)

const uniqueViolation = "23505"

type sessionRow struct {
	ID         string      `db:"id"`
	UserID     string      `db:"user_id"`
	LessonID   string      `db:"lesson_id"`
	DeviceInfo null.String `db:"device_info"`
	StartedAt  time.Time   `db:"started_at"`
	EndedAt    null.Time   `db:"ended_at"`
	Status     string      `db:"status"`
}

func (row sessionRow) toSession() session.Session {
	sess := session.Session{
		ID:         row.ID,
		UserID:     row.UserID,
		LessonID:   row.LessonID,
		DeviceInfo: row.DeviceInfo.String,
		StartedAt:  row.StartedAt.UTC(),
		Status:     row.Status,
	}
	if row.EndedAt.Valid {
		endedAt := row.EndedAt.Time.UTC()
		sess.EndedAt = &endedAt
	}
	return sess
}

func newSessionRow(sess session.Session) sessionRow {
	row := sessionRow{
		ID:         sess.ID,
		UserID:     sess.UserID,
		LessonID:   sess.LessonID,
		DeviceInfo: null.NewString(sess.DeviceInfo, sess.DeviceInfo != ""),
		StartedAt:  sess.StartedAt.UTC(),
		Status:     sess.Status,
	}
	if sess.EndedAt != nil {
		row.EndedAt = null.TimeFrom(sess.EndedAt.UTC())
	}
	return row
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(sess session.Session) (session.Session, error) {
	_, err := repo.db.NamedExec(
		`INSERT INTO sessions (id, user_id, lesson_id, device_info, started_at, ended_at, status)
		 VALUES (:id, :user_id, :lesson_id, :device_info, :started_at, :ended_at, :status)`,
		newSessionRow(sess),
	)
	if err != nil {
		// the partial unique index on open sessions turns a start race into a
		// retryable conflict instead of two open sessions
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return session.Session{}, session.StartConflictErr
		}
		return session.Session{}, core.NewUnavailableError(errors.Wrap(err, "creating session"))
	}
	return sess, nil
}

func (repo *sessionRepository) GetSession(id string) (session.Session, error) {
	var row sessionRow
	err := repo.db.Get(&row, `SELECT * FROM sessions WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.NotFoundErr
		}
		return session.Session{}, core.NewUnavailableError(errors.Wrap(err, "getting session"))
	}
	return row.toSession(), nil
}

func (repo *sessionRepository) GetOpenSession(userID, lessonID string) (session.Session, error) {
	var row sessionRow
	err := repo.db.Get(&row,
		`SELECT * FROM sessions WHERE user_id = $1 AND lesson_id = $2 AND status = 'open'`,
		userID, lessonID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.NotFoundErr
		}
		return session.Session{}, core.NewUnavailableError(errors.Wrap(err, "getting open session"))
	}
	return row.toSession(), nil
}

func (repo *sessionRepository) UpdateSession(sess session.Session) (session.Session, error) {
	res, err := repo.db.NamedExec(
		`UPDATE sessions SET ended_at = :ended_at, status = :status WHERE id = :id`,
		newSessionRow(sess),
	)
	if err != nil {
		return session.Session{}, core.NewUnavailableError(errors.Wrap(err, "updating session"))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.Session{}, session.NotFoundErr
	}
	return sess, nil
}
