package pgrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somakids/engage/core"
	"github.com/somakids/engage/core/progress"
)

type progressRow struct {
	UserID      string    `db:"user_id"`
	LessonID    string    `db:"lesson_id"`
	PositionSec int       `db:"position_sec"`
	DurationSec int       `db:"duration_sec"`
	Completed   bool      `db:"completed"`
	LastPingAt  time.Time `db:"last_ping_at"`
}

func (row progressRow) toRecord() progress.Record {
	return progress.Record{
		UserID:      row.UserID,
		LessonID:    row.LessonID,
		PositionSec: row.PositionSec,
		DurationSec: row.DurationSec,
		Completed:   row.Completed,
		LastPingAt:  row.LastPingAt.UTC(),
	}
}

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetRecord(userID, lessonID string) (progress.Record, error) {
	var row progressRow
	err := repo.db.Get(&row,
		`SELECT * FROM progress WHERE user_id = $1 AND lesson_id = $2`,
		userID, lessonID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return progress.Record{}, progress.NotFoundErr
		}
		return progress.Record{}, core.NewUnavailableError(errors.Wrap(err, "getting progress record"))
	}
	return row.toRecord(), nil
}

func (repo *progressRepository) UpsertRecord(rec progress.Record) (progress.Record, error) {
	// the merge is decided upstream; GREATEST/OR make the write itself refuse
	// to regress even under a replayed upsert
	var row progressRow
	err := repo.db.Get(&row,
		`INSERT INTO progress (user_id, lesson_id, position_sec, duration_sec, completed, last_ping_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, lesson_id) DO UPDATE SET
			position_sec = GREATEST(progress.position_sec, EXCLUDED.position_sec),
			duration_sec = CASE
				WHEN EXCLUDED.duration_sec > 0
					AND (EXCLUDED.position_sec > progress.position_sec
						OR (EXCLUDED.completed AND NOT progress.completed))
				THEN EXCLUDED.duration_sec
				ELSE progress.duration_sec
			END,
			completed    = progress.completed OR EXCLUDED.completed,
			last_ping_at = EXCLUDED.last_ping_at
		 RETURNING *`,
		rec.UserID, rec.LessonID, rec.PositionSec, rec.DurationSec, rec.Completed, rec.LastPingAt.UTC(),
	)
	if err != nil {
		return progress.Record{}, core.NewUnavailableError(errors.Wrap(err, "upserting progress record"))
	}
	return row.toRecord(), nil
}

// lessonDirectory answers lesson existence from the content system's lessons
// table. The table is owned elsewhere; we only read it.
type lessonDirectory struct {
	db *sqlx.DB
}

var _ progress.LessonDirectory = (*lessonDirectory)(nil)

func NewLessonDirectory(db *sqlx.DB) *lessonDirectory {
	return &lessonDirectory{db: db}
}

func (dir *lessonDirectory) LessonExists(lessonID string) (bool, error) {
	var exists bool
	err := dir.db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM lessons WHERE id = $1)`, lessonID)
	if err != nil {
		return false, core.NewUnavailableError(errors.Wrap(err, "checking lesson"))
	}
	return exists, nil
}
