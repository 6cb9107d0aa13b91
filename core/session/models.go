package session

import (
	"time"

	"github.com/somakids/engage/core"
)

// Statuses
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Session is one continuous attempt by a learner at a lesson, bounded by
// start/end. At most one Session is open per (UserID, LessonID); Closed is
// terminal and a session is never reopened.
type Session struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	LessonID   string     `json:"lesson_id"`
	DeviceInfo string     `json:"device_info,omitempty"`
	StartedAt  time.Time  `json:"started_at"` // UTC
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `json:"status"`
}

func (s Session) IsOpen() bool {
	return s.Status == StatusOpen
}

// NewSession contains information needed to open a new Session.
type NewSession struct {
	LessonID   string `json:"lesson_id" validate:"required,notblank"`
	DeviceInfo string `json:"device_info"`
}

func (ns *NewSession) Validate() error {
	ns.LessonID = core.CleanString(ns.LessonID)
	ns.DeviceInfo = core.CleanString(ns.DeviceInfo)
	return core.Validate.Struct(ns)
}
