package inmemdb

import (
	"github.com/somakids/engage/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(sess session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if sess.IsOpen() {
		for _, other := range repo.db.table {
			if other.IsOpen() && other.UserID == sess.UserID && other.LessonID == sess.LessonID {
				return session.Session{}, session.StartConflictErr
			}
		}
	}

	repo.db.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) GetSession(id string) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.NotFoundErr
}

func (repo *sessionRepository) GetOpenSession(userID, lessonID string) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sess := range repo.db.table {
		if sess.IsOpen() && sess.UserID == userID && sess.LessonID == lessonID {
			return *sess, nil
		}
	}
	return session.Session{}, session.NotFoundErr
}

func (repo *sessionRepository) UpdateSession(sess session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[sess.ID]; !ok {
		return session.Session{}, session.NotFoundErr
	}
	repo.db.table[sess.ID] = &sess
	return sess, nil
}
