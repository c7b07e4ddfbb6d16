package game

import "time"

// CooldownStatus is the outcome of the cooldown policy; callers decide what
// to do with it.
type CooldownStatus struct {
	CanPlay bool
	EndsAt  time.Time
}

// EvaluateCooldown is pure: a customer may play iff no cooldown is recorded
// or the recorded end is strictly in the past.
func EvaluateCooldown(endsAt time.Time, now time.Time) CooldownStatus {
	if endsAt.IsZero() {
		return CooldownStatus{CanPlay: true}
	}
	return CooldownStatus{CanPlay: endsAt.Before(now), EndsAt: endsAt}
}
