package telemetry

import (
	"time"

	"github.com/somakids/engage/core"
)

// Break reasons
const (
	ReasonNone           = ""
	ReasonLowAttention   = "low_attention"
	ReasonConsecutiveLow = "consecutive_low"
)

// Decision is the per-sample outcome of the micro-break policy. It is a
// transient value, never stored.
type Decision struct {
	ShouldBreak bool   `json:"should_break"`
	Reason      string `json:"reason,omitempty"`
}

// Policy decides, from smoothed engagement state, whether a micro-break is
// due. It is pure given its inputs; all aggregation bookkeeping lives in
// Aggregator so thresholds stay swappable.
type Policy struct {
	LowThreshold        float64
	ConsecutiveLowLimit int
	CooldownDuration    time.Duration
	EMAAlpha            float64
}

func DefaultPolicy() Policy {
	return Policy{
		LowThreshold:        0.4,
		ConsecutiveLowLimit: 3,
		CooldownDuration:    5 * time.Minute,
		EMAAlpha:            0.3,
	}
}

// NewPolicy builds a Policy from configuration, falling back to defaults for
// out-of-range values.
func NewPolicy(conf core.EngagementConfig) Policy {
	pol := DefaultPolicy()
	if conf.LowThreshold > 0 && conf.LowThreshold < 1 {
		pol.LowThreshold = conf.LowThreshold
	}
	if conf.ConsecutiveLowLimit >= 1 {
		pol.ConsecutiveLowLimit = conf.ConsecutiveLowLimit
	}
	if conf.CooldownDuration >= 0 {
		pol.CooldownDuration = conf.CooldownDuration
	}
	if conf.EMAAlpha > 0 && conf.EMAAlpha < 1 {
		pol.EMAAlpha = conf.EMAAlpha
	}
	return pol
}

// Evaluate returns the break decision for the given post-fold state.
// A session in cooldown never breaks, regardless of scores; this prevents
// break-spam right after a break has been shown.
func (pol Policy) Evaluate(st EngagementState, now time.Time) Decision {
	if !st.BreakCooldownUntil.IsZero() && now.Before(st.BreakCooldownUntil) {
		return Decision{ShouldBreak: false}
	}
	if st.EMAAttention < pol.LowThreshold {
		return Decision{ShouldBreak: true, Reason: ReasonLowAttention}
	}
	if st.ConsecutiveLowCount >= pol.ConsecutiveLowLimit {
		return Decision{ShouldBreak: true, Reason: ReasonConsecutiveLow}
	}
	return Decision{ShouldBreak: false}
}
