package telemetry

import (
	"errors"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/somakids/engage/core"
)

var (
	// errors
	MalformedSampleErr = errors.New("malformed telemetry sample")
)

// Sample is one timestamped emotion/attention reading produced by the
// external inference process. Samples are ephemeral: only aggregator state
// derived from them is retained.
type Sample struct {
	SessionID         string
	TS                time.Time // UTC
	EmotionLabel      string
	EmotionConfidence float64 // [0, 1]
	AttentionScore    float64 // [0, 1]
	RawSignals        map[string]interface{}
}

// RawSample is the wire form of a Sample, before validation/normalization.
type RawSample struct {
	SessionID         string                 `json:"session_id"`
	TS                string                 `json:"ts"`
	EmotionLabel      string                 `json:"emotion_label"`
	EmotionConfidence float64                `json:"emotion_confidence"`
	AttentionScore    float64                `json:"attention_score"`
	RawSignals        map[string]interface{} `json:"raw_signals,omitempty"`
}

// Decode validates and normalizes a raw reading before it enters the
// pipeline. Out-of-range scores are clamped rather than rejected (upstream
// model noise is expected) and unknown emotion labels pass through as-is for
// forward compatibility. Only a missing session id or an unparseable
// timestamp reject the sample.
func Decode(raw RawSample) (Sample, error) {
	sessionID := core.CleanString(raw.SessionID)
	if sessionID == "" {
		return Sample{}, pkgerrors.Wrap(MalformedSampleErr, "missing session_id")
	}

	ts, err := parseTimestamp(raw.TS)
	if err != nil {
		return Sample{}, pkgerrors.Wrapf(MalformedSampleErr, "unparseable ts %q", raw.TS)
	}

	return Sample{
		SessionID:         sessionID,
		TS:                ts.UTC(),
		EmotionLabel:      core.CleanString(raw.EmotionLabel),
		EmotionConfidence: core.ClampUnit(raw.EmotionConfidence),
		AttentionScore:    core.ClampUnit(raw.AttentionScore),
		RawSignals:        raw.RawSignals,
	}, nil
}

// parseTimestamp accepts RFC3339 (the usual form) and, for older clients,
// unix epoch in seconds or milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	s = core.CleanString(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}

	epoch, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	// heuristic: anything past year ~33658 in seconds is milliseconds
	if epoch > 1e12 {
		return time.Unix(epoch/1000, (epoch%1000)*int64(time.Millisecond)), nil
	}
	return time.Unix(epoch, 0), nil
}
