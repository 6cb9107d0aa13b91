package inmemdb

import (
	"sync"

	"github.com/somakids/engage/core/progress"
	"github.com/somakids/engage/core/session"
)

type (
	sessionTable struct {
		mutex sync.RWMutex
		table map[string]*session.Session
	}

	progressTable struct {
		mutex sync.RWMutex
		table map[string]*progress.Record // keyed by userID + "\x00" + lessonID
	}

	lessonTable struct {
		mutex sync.RWMutex
		table map[string]struct{}
	}

	// DB is a mutex-guarded in-memory store, used by tests and local dev.
	DB struct {
		session  *sessionTable
		progress *progressTable
		lesson   *lessonTable
	}
)

func Open() (*DB, error) {
	db := &DB{
		session:  &sessionTable{table: make(map[string]*session.Session)},
		progress: &progressTable{table: make(map[string]*progress.Record)},
		lesson:   &lessonTable{table: make(map[string]struct{})},
	}
	return db, nil
}

func progressKey(userID, lessonID string) string {
	return userID + "\x00" + lessonID
}
