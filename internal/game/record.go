package game

import "time"

// AttributeKey is the top-level key the game-progress document lives under in
// a customer's attribute map.
const AttributeKey = "game"

// Progress is the durable per-customer game state. LastNonce closes the
// replay window: a consumed session identifier must never be accepted twice.
type Progress struct {
	LastPlayedAt   time.Time
	CooldownEndsAt time.Time
	LastNonce      string
	TotalWins      int64
}

// DecodeProgress reads the game document out of an attribute map. A customer
// who has never played decodes to the zero Progress.
func DecodeProgress(attrs map[string]any) Progress {
	doc, ok := attrs[AttributeKey].(map[string]any)
	if !ok {
		return Progress{}
	}
	return Progress{
		LastPlayedAt:   asTime(doc["last_played_at"]),
		CooldownEndsAt: asTime(doc["cooldown_ends_at"]),
		LastNonce:      asString(doc["last_nonce"]),
		TotalWins:      asInt64(doc["total_wins"]),
	}
}

func (p Progress) Encode() map[string]any {
	doc := map[string]any{
		"last_nonce": p.LastNonce,
		"total_wins": p.TotalWins,
	}
	if !p.LastPlayedAt.IsZero() {
		doc["last_played_at"] = p.LastPlayedAt.UTC().Format(time.RFC3339)
	}
	if !p.CooldownEndsAt.IsZero() {
		doc["cooldown_ends_at"] = p.CooldownEndsAt.UTC().Format(time.RFC3339)
	}
	return doc
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
