package game

import (
	"testing"
	"time"
)

func TestEvaluateCooldown(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		endsAt  time.Time
		canPlay bool
	}{
		{"absent", time.Time{}, true},
		{"in future", now.Add(time.Hour), false},
		{"in past", now.Add(-time.Hour), true},
		{"exactly now", now, false},
	}
	for _, tc := range tests {
		got := EvaluateCooldown(tc.endsAt, now)
		if got.CanPlay != tc.canPlay {
			t.Fatalf("%s: can_play=%v want %v", tc.name, got.CanPlay, tc.canPlay)
		}
	}
}
