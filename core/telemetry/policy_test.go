package telemetry

import (
	"testing"
	"time"

	"github.com/somakids/engage/core"
)

func Test_Policy_Evaluate(t *testing.T) {
	pol := DefaultPolicy()
	now := time.Date(2021, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		st   EngagementState
		want Decision
	}{
		{
			name: "engaged",
			st:   EngagementState{EMAAttention: 0.8},
			want: Decision{ShouldBreak: false},
		},
		{
			name: "ema below threshold",
			st:   EngagementState{EMAAttention: 0.35},
			want: Decision{ShouldBreak: true, Reason: ReasonLowAttention},
		},
		{
			name: "consecutive low with healthy ema",
			st:   EngagementState{EMAAttention: 0.55, ConsecutiveLowCount: 3},
			want: Decision{ShouldBreak: true, Reason: ReasonConsecutiveLow},
		},
		{
			name: "low ema wins over consecutive count for the reason",
			st:   EngagementState{EMAAttention: 0.1, ConsecutiveLowCount: 5},
			want: Decision{ShouldBreak: true, Reason: ReasonLowAttention},
		},
		{
			name: "cooldown suppresses everything",
			st:   EngagementState{EMAAttention: 0.05, ConsecutiveLowCount: 10, BreakCooldownUntil: now.Add(time.Minute)},
			want: Decision{ShouldBreak: false},
		},
		{
			name: "expired cooldown no longer suppresses",
			st:   EngagementState{EMAAttention: 0.05, BreakCooldownUntil: now.Add(-time.Second)},
			want: Decision{ShouldBreak: true, Reason: ReasonLowAttention},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pol.Evaluate(tt.st, now); got != tt.want {
				t.Errorf("Evaluate() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func Test_NewPolicy(t *testing.T) {
	t.Run("valid config is taken as-is", func(t *testing.T) {
		pol := NewPolicy(core.EngagementConfig{
			LowThreshold:        0.25,
			ConsecutiveLowLimit: 5,
			CooldownDuration:    time.Minute,
			EMAAlpha:            0.5,
		})
		want := Policy{LowThreshold: 0.25, ConsecutiveLowLimit: 5, CooldownDuration: time.Minute, EMAAlpha: 0.5}
		if pol != want {
			t.Errorf("NewPolicy() = %+v; want %+v", pol, want)
		}
	})

	t.Run("out-of-range values fall back to defaults", func(t *testing.T) {
		pol := NewPolicy(core.EngagementConfig{
			LowThreshold:        1.5,
			ConsecutiveLowLimit: 0,
			CooldownDuration:    -time.Minute,
			EMAAlpha:            0,
		})
		if pol != DefaultPolicy() {
			t.Errorf("NewPolicy() = %+v; want defaults %+v", pol, DefaultPolicy())
		}
	})
}
