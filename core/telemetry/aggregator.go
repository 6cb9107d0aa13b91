package telemetry

import (
	"sync"
	"time"
)

// dedupeWindow bounds the per-session set of recently folded sample
// timestamps used to suppress duplicates. Eviction is FIFO.
const dedupeWindow = 64

// EngagementState is the per-open-session smoothing state. It is mutated
// only by the Aggregator and destroyed when the session closes.
type EngagementState struct {
	SessionID           string    `json:"session_id"`
	EMAAttention        float64   `json:"ema_attention"`
	ConsecutiveLowCount int       `json:"consecutive_low_count"`
	LastBreakAt         time.Time `json:"last_break_at,omitempty"`
	BreakCooldownUntil  time.Time `json:"break_cooldown_until,omitempty"`
	SampleCount         int       `json:"sample_count"`
	LastSampleTS        time.Time `json:"last_sample_ts,omitempty"`
}

type sessionState struct {
	mu sync.Mutex

	st        EngagementState
	seen      map[int64]struct{} // unix nanos of folded sample timestamps
	seenOrder []int64
}

// Aggregator folds a stream of telemetry samples into per-session engagement
// state and break decisions. Samples are folded in arrival order: engagement
// is a live signal, not a replayable time series, so sample timestamps are
// used for bookkeeping and duplicate suppression only, never for reordering.
// Ingestion for the same session is serialized; different sessions proceed
// in parallel.
type Aggregator struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	policy Policy
	nowFn  func() time.Time
}

func NewAggregator(policy Policy) *Aggregator {
	return &Aggregator{
		sessions: make(map[string]*sessionState),
		policy:   policy,
		nowFn:    time.Now,
	}
}

func (agg *Aggregator) state(sessionID string) *sessionState {
	agg.mu.Lock()
	defer agg.mu.Unlock()

	ss, ok := agg.sessions[sessionID]
	if !ok {
		ss = &sessionState{
			st:   EngagementState{SessionID: sessionID},
			seen: make(map[int64]struct{}, dedupeWindow),
		}
		agg.sessions[sessionID] = ss
	}
	return ss
}

// Ingest folds one decoded sample and returns the break decision for it.
// A sample whose (sessionID, ts) was already folded is skipped entirely so
// retransmitted batches cannot double-penalize or double-reward the EMA.
func (agg *Aggregator) Ingest(smp Sample) Decision {
	ss := agg.state(smp.SessionID)

	ss.mu.Lock()
	defer ss.mu.Unlock()

	key := smp.TS.UnixNano()
	if _, dup := ss.seen[key]; dup {
		return Decision{ShouldBreak: false}
	}
	ss.remember(key)

	st := &ss.st
	if st.SampleCount == 0 {
		st.EMAAttention = smp.AttentionScore // seed; no bias toward zero
	} else {
		alpha := agg.policy.EMAAlpha
		st.EMAAttention = alpha*smp.AttentionScore + (1-alpha)*st.EMAAttention
	}
	st.SampleCount++
	if smp.AttentionScore < agg.policy.LowThreshold {
		st.ConsecutiveLowCount++
	} else {
		st.ConsecutiveLowCount = 0
	}
	if smp.TS.After(st.LastSampleTS) {
		st.LastSampleTS = smp.TS
	}

	now := agg.nowFn().UTC()
	dec := agg.policy.Evaluate(*st, now)
	if dec.ShouldBreak {
		st.LastBreakAt = now
		st.BreakCooldownUntil = now.Add(agg.policy.CooldownDuration)
		// fresh observation window after the break; otherwise a stale count
		// re-trips the instant the cooldown expires
		st.ConsecutiveLowCount = 0
	}
	return dec
}

// Snapshot returns a copy of the current state for a session, if any. Used to
// flush a final reading when the session closes.
func (agg *Aggregator) Snapshot(sessionID string) (EngagementState, bool) {
	agg.mu.Lock()
	ss, ok := agg.sessions[sessionID]
	agg.mu.Unlock()
	if !ok {
		return EngagementState{}, false
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.st, true
}

// Discard drops all aggregation state for a session. Called by the session
// manager on end and on implicit abandonment.
func (agg *Aggregator) Discard(sessionID string) {
	agg.mu.Lock()
	defer agg.mu.Unlock()
	delete(agg.sessions, sessionID)
}

func (ss *sessionState) remember(key int64) {
	if len(ss.seenOrder) >= dedupeWindow {
		oldest := ss.seenOrder[0]
		ss.seenOrder = ss.seenOrder[1:]
		delete(ss.seen, oldest)
	}
	ss.seen[key] = struct{}{}
	ss.seenOrder = append(ss.seenOrder, key)
}
