package progress

import (
	"time"

	"github.com/somakids/engage/core"
)

// Record is the durable, server-authoritative position of a learner within a
// lesson. One record exists per (UserID, LessonID); PositionSec never
// decreases across accepted pings and Completed never reverts to false.
type Record struct {
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	PositionSec int       `json:"position_sec"`
	DurationSec int       `json:"duration_sec"`
	Completed   bool      `json:"completed"`
	LastPingAt  time.Time `json:"last_ping_at"` // UTC
}

// Ping is a client-reported progress report. Pings arrive over intermittent
// connectivity: duplicated, out of order, and retried.
type Ping struct {
	LessonID    string `json:"lesson_id" validate:"required,notblank"`
	PositionSec int    `json:"position_sec" validate:"gte=0"`
	DurationSec int    `json:"duration_sec" validate:"gte=0"`
	Completed   bool   `json:"completed"`
}

func (p *Ping) Validate() error {
	p.LessonID = core.CleanString(p.LessonID)
	return core.Validate.Struct(p)
}
