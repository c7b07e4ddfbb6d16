package game

import (
	"time"

	"petal/internal/loyalty"
)

// SessionStart is everything a caller needs to play and later redeem: the
// shuffled deck plus the full signed token. The server persists none of it.
type SessionStart struct {
	Deck        []string  `json:"deck"`
	Nonce       string    `json:"nonce"`
	IssuedAt    time.Time `json:"issued_at"`
	Fingerprint string    `json:"fingerprint"`
	Signature   string    `json:"signature"`
}

// CompletionInput is the token presented back at redemption together with the
// claimed solution. CustomerID is the token's declared holder, which may
// differ from the authenticated caller when a token is being reused across
// accounts.
type CompletionInput struct {
	CustomerID   string
	Nonce        string
	IssuedAt     time.Time
	Fingerprint  string
	Signature    string
	MatchedPairs [][2]int
}

type CompletionResult struct {
	AwardedPoints   int64        `json:"awarded_points"`
	NewBalance      int64        `json:"new_balance"`
	Tier            loyalty.Tier `json:"tier"`
	DiscountPercent int          `json:"discount_percent"`
	TotalWins       int64        `json:"total_wins"`
}

type Status struct {
	CanPlay         bool         `json:"can_play"`
	CooldownEndsAt  *time.Time   `json:"cooldown_ends_at,omitempty"`
	LastPlayedAt    *time.Time   `json:"last_played_at,omitempty"`
	TotalWins       int64        `json:"total_wins"`
	Balance         int64        `json:"balance"`
	Tier            loyalty.Tier `json:"tier"`
	DiscountPercent int          `json:"discount_percent"`
}
