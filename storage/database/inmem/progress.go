package inmemdb

import (
	"github.com/somakids/engage/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) GetRecord(userID, lessonID string) (progress.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[progressKey(userID, lessonID)]; ok {
		return *rec, nil
	}
	return progress.Record{}, progress.NotFoundErr
}

func (repo *progressRepository) UpsertRecord(rec progress.Record) (progress.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := progressKey(rec.UserID, rec.LessonID)

	// the merge is decided upstream; the store still refuses to regress
	if stored, ok := repo.db.table[key]; ok {
		if rec.PositionSec < stored.PositionSec {
			rec.PositionSec = stored.PositionSec
		}
		if stored.Completed {
			rec.Completed = true
		}
	}

	repo.db.table[key] = &rec
	return rec, nil
}

// lessonDirectory is the in-memory stand-in for the lesson content system.
type lessonDirectory struct {
	db *lessonTable
}

var _ progress.LessonDirectory = (*lessonDirectory)(nil)

func NewLessonDirectory(db *DB) *lessonDirectory {
	return &lessonDirectory{db: db.lesson}
}

func (dir *lessonDirectory) LessonExists(lessonID string) (bool, error) {
	dir.db.mutex.RLock()
	defer dir.db.mutex.RUnlock()

	_, ok := dir.db.table[lessonID]
	return ok, nil
}

func (dir *lessonDirectory) AddLesson(lessonID string) {
	dir.db.mutex.Lock()
	defer dir.db.mutex.Unlock()

	dir.db.table[lessonID] = struct{}{}
}
