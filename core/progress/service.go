package progress

import (
	"errors"
	"time"

	"github.com/somakids/engage/core"
)

var (
	// errors
	NotFoundErr       = errors.New("progress record not found")
	LessonNotFoundErr = errors.New("lesson not found")
)

type (
	Repository interface {
		GetRecord(userID, lessonID string) (Record, error)
		UpsertRecord(rec Record) (Record, error)
	}

	// LessonDirectory reports whether a lesson exists. Lesson content is
	// owned by the surrounding system; this is the only question we ask it.
	LessonDirectory interface {
		LessonExists(lessonID string) (bool, error)
	}

	Service struct {
		repo    Repository
		lessons LessonDirectory
		locks   core.KeyedMutex

		nowFn func() time.Time
	}
)

func NewService(repo Repository, lessons LessonDirectory) *Service {
	return &Service{
		repo:    repo,
		lessons: lessons,
		nowFn:   time.Now,
	}
}

// ApplyPing merges one progress report into the stored record. The record
// advances only when the ping strictly advances state (greater position, or
// first completion); anything else is accepted as a no-op acknowledgement and
// returns the stored record unchanged, which makes retries and replays safe.
// LastPingAt is always refreshed: stale-liveness tracking is useful even when
// the position does not move.
func (svc *Service) ApplyPing(userID string, ping Ping) (Record, error) {
	ping.LessonID = core.CleanString(ping.LessonID)

	ok, err := svc.lessons.LessonExists(ping.LessonID)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, LessonNotFoundErr
	}

	unlock := svc.locks.Lock(userID + "\x00" + ping.LessonID)
	defer unlock()

	now := svc.nowFn().UTC()

	rec, err := svc.repo.GetRecord(userID, ping.LessonID)
	switch err {
	case nil:
		advanced := false
		if ping.PositionSec > rec.PositionSec {
			rec.PositionSec = ping.PositionSec
			advanced = true
		}
		if ping.Completed && !rec.Completed {
			rec.Completed = true
			advanced = true
		}
		// a stale ping is a no-op acknowledgement; it never rewrites duration
		if advanced && ping.DurationSec > 0 {
			rec.DurationSec = ping.DurationSec
		}
	case NotFoundErr:
		rec = Record{
			UserID:      userID,
			LessonID:    ping.LessonID,
			PositionSec: ping.PositionSec,
			DurationSec: ping.DurationSec,
			Completed:   ping.Completed,
		}
	default:
		return Record{}, err
	}
	rec.LastPingAt = now

	return svc.repo.UpsertRecord(rec)
}

func (svc *Service) Get(userID, lessonID string) (Record, error) {
	return svc.repo.GetRecord(userID, core.CleanString(lessonID))
}
