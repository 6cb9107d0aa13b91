package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/somakids/engage/core"
)

var (
	// errors
	NotFoundErr      = errors.New("session not found")
	StartConflictErr = errors.New("another session was opened concurrently; retry")
)

type (
	Repository interface {
		CreateSession(sess Session) (Session, error)
		GetSession(id string) (Session, error)
		// GetOpenSession returns the single open session for (userID, lessonID),
		// or NotFoundErr when none is open.
		GetOpenSession(userID, lessonID string) (Session, error)
		UpdateSession(sess Session) (Session, error)
	}

	// EngagementDiscarder drops per-session aggregation state once a session
	// is no longer open. Implemented by telemetry.Aggregator.
	EngagementDiscarder interface {
		Discard(sessionID string)
	}

	Service struct {
		repo  Repository
		agg   EngagementDiscarder
		locks core.KeyedMutex

		nowFn func() time.Time
	}
)

func NewService(repo Repository, agg EngagementDiscarder) *Service {
	return &Service{
		repo:  repo,
		agg:   agg,
		nowFn: time.Now,
	}
}

// Start opens a new session for (userID, ns.LessonID). An already-open
// session for the same pair is implicitly closed first (abandonment) so that
// exactly one session is ever open per learner and lesson. Start calls for
// the same pair are serialized; concurrent starts cannot both leave a session
// open.
func (svc *Service) Start(userID string, ns NewSession) (Session, error) {
	ns.LessonID = core.CleanString(ns.LessonID)
	if ns.LessonID == "" {
		return Session{}, core.NewValidationError(
			errors.New("lesson_id is required"),
			core.FieldError{Field: "lesson_id", Error: "this field is required"},
		)
	}

	unlock := svc.locks.Lock(userID + "\x00" + ns.LessonID)
	defer unlock()

	now := svc.nowFn().UTC()

	// abandon the previous open session, if any
	if prev, err := svc.repo.GetOpenSession(userID, ns.LessonID); err == nil {
		if _, err = svc.close(prev, now); err != nil {
			return Session{}, err
		}
	} else if err != NotFoundErr {
		return Session{}, err
	}

	sess := Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		LessonID:   ns.LessonID,
		DeviceInfo: ns.DeviceInfo,
		StartedAt:  now,
		Status:     StatusOpen,
	}
	return svc.repo.CreateSession(sess)
}

// End closes a session. Ending an already-closed session returns the existing
// record unchanged; duplicate end calls are routine under client retries.
func (svc *Service) End(id string) (Session, error) {
	sess, err := svc.repo.GetSession(id)
	if err != nil {
		return Session{}, err
	}
	if !sess.IsOpen() {
		return sess, nil
	}

	unlock := svc.locks.Lock(sess.UserID + "\x00" + sess.LessonID)
	defer unlock()

	// re-read under the lock; a concurrent End may have won
	if sess, err = svc.repo.GetSession(id); err != nil {
		return Session{}, err
	}
	if !sess.IsOpen() {
		return sess, nil
	}
	return svc.close(sess, svc.nowFn().UTC())
}

func (svc *Service) Get(id string) (Session, error) {
	return svc.repo.GetSession(id)
}

func (svc *Service) close(sess Session, now time.Time) (Session, error) {
	sess.EndedAt = &now
	sess.Status = StatusClosed
	sess, err := svc.repo.UpdateSession(sess)
	if err != nil {
		return Session{}, err
	}
	svc.agg.Discard(sess.ID)
	return sess, nil
}
