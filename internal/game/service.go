package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"petal/internal/config"
	"petal/internal/loyalty"
	"petal/internal/store"

	"github.com/google/uuid"
)

var (
	ErrInvalidSignature  = errors.New("invalid token signature")
	ErrIdentityMismatch  = errors.New("token issued for a different customer")
	ErrReplayRejected    = errors.New("session already redeemed")
	ErrTokenExpired      = errors.New("session token expired")
	ErrImplausibleTiming = errors.New("solve time below plausible minimum")
	ErrCooldownActive    = errors.New("cooldown active")
	ErrWrongSolution     = errors.New("claimed solution does not match deck")
	ErrConcurrentUpdate  = errors.New("concurrent update, retry completion")
)

// CooldownActiveError carries the cooldown end so the denial can explain
// itself. errors.Is(err, ErrCooldownActive) still holds.
type CooldownActiveError struct {
	EndsAt time.Time
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active until %s", e.EndsAt.Format(time.RFC3339))
}

func (e *CooldownActiveError) Unwrap() error { return ErrCooldownActive }

// ReplayError carries the already-recorded outcome, so a transport retrying
// an uncertain delivery can confirm the award landed without a second write.
type ReplayError struct {
	TotalWins int64
	Balance   int64
}

func (e *ReplayError) Error() string { return ErrReplayRejected.Error() }

func (e *ReplayError) Unwrap() error { return ErrReplayRejected }

// Service issues sessions and validates completions. It holds no session
// state; every fact it needs is in the signed token or the customer record.
type Service struct {
	store        store.Store
	signer       *Signer
	log          *slog.Logger
	cfg          config.GameConfig
	storeTimeout time.Duration
}

func NewService(st store.Store, signer *Signer, logger *slog.Logger, cfg config.GameConfig, storeTimeout time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, signer: signer, log: logger, cfg: cfg, storeTimeout: storeTimeout}
}

// Start issues a playable session: cooldown gate, fresh nonce, shuffled deck,
// signed token. Nothing durable changes on issuance; only completion mutates
// the record.
func (s *Service) Start(ctx context.Context, customerID string, now time.Time) (SessionStart, error) {
	rec, err := s.find(ctx, customerID)
	if err != nil {
		return SessionStart{}, err
	}

	prog := DecodeProgress(rec.Attributes)
	if cd := EvaluateCooldown(prog.CooldownEndsAt, now); !cd.CanPlay {
		return SessionStart{}, &CooldownActiveError{EndsAt: cd.EndsAt}
	}

	nonce := uuid.NewString()
	deck, err := NewDeck(s.cfg.DeckPairs, nonce)
	if err != nil {
		return SessionStart{}, err
	}

	token := Token{Nonce: nonce, IssuedAt: now, Fingerprint: deck.Fingerprint, CustomerID: customerID}
	out := SessionStart{
		Deck:        deck.Tiles,
		Nonce:       nonce,
		IssuedAt:    now,
		Fingerprint: deck.Fingerprint,
		Signature:   s.signer.Sign(token),
	}
	s.log.Info("session issued", "customer", customerID, "nonce", noncePrefix(nonce))
	return out, nil
}

// Complete validates a claimed win and, if everything holds, applies the
// award in one version-guarded write. Check order: signature, identity,
// replay, expiry, timing plausibility, cooldown, solution.
func (s *Service) Complete(ctx context.Context, customerID string, in CompletionInput, now time.Time) (CompletionResult, error) {
	token := Token{Nonce: in.Nonce, IssuedAt: in.IssuedAt, Fingerprint: in.Fingerprint, CustomerID: in.CustomerID}
	if !s.signer.Verify(token, in.Signature) {
		s.rejected(customerID, in.Nonce, "invalid_signature")
		return CompletionResult{}, ErrInvalidSignature
	}
	if in.CustomerID != customerID {
		s.rejected(customerID, in.Nonce, "identity_mismatch")
		return CompletionResult{}, ErrIdentityMismatch
	}

	rec, err := s.find(ctx, customerID)
	if err != nil {
		return CompletionResult{}, err
	}
	prog := DecodeProgress(rec.Attributes)
	led, ok := loyalty.Decode(rec.Attributes)
	if !ok {
		led = loyalty.NewRecord(now)
	}
	// Externally seeded ledgers may carry balances without a cycle start;
	// the reconciliation job ignores open-ended cycles, so the first award
	// must open one or the balance would accrue forever.
	if led.CycleStart.IsZero() {
		led.CycleStart = now.UTC()
	}

	if prog.LastNonce != "" && prog.LastNonce == in.Nonce {
		s.rejected(customerID, in.Nonce, "replay")
		return CompletionResult{}, &ReplayError{TotalWins: prog.TotalWins, Balance: led.CurrentBalance}
	}

	age := now.Sub(in.IssuedAt)
	if age > s.cfg.TokenLifetime {
		s.rejected(customerID, in.Nonce, "expired")
		return CompletionResult{}, ErrTokenExpired
	}
	if age < s.cfg.MinSolveTime() {
		s.rejected(customerID, in.Nonce, "implausible_timing")
		return CompletionResult{}, ErrImplausibleTiming
	}

	if cd := EvaluateCooldown(prog.CooldownEndsAt, now); !cd.CanPlay {
		s.rejected(customerID, in.Nonce, "cooldown_active")
		return CompletionResult{}, &CooldownActiveError{EndsAt: cd.EndsAt}
	}

	if FingerprintPairs(in.Nonce, in.MatchedPairs) != in.Fingerprint {
		s.rejected(customerID, in.Nonce, "wrong_solution")
		return CompletionResult{}, ErrWrongSolution
	}

	prog.TotalWins++
	prog.LastPlayedAt = now
	prog.CooldownEndsAt = now.Add(s.cfg.Cooldown)
	prog.LastNonce = in.Nonce
	led = led.Award(s.cfg.WinAwardPoints)

	patch := map[string]any{
		AttributeKey:         prog.Encode(),
		loyalty.AttributeKey: led.Encode(),
	}
	if err := s.update(ctx, customerID, rec.Version, patch); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			s.rejected(customerID, in.Nonce, "concurrent_update")
			return CompletionResult{}, ErrConcurrentUpdate
		}
		return CompletionResult{}, err
	}

	s.log.Info("session completed", "customer", customerID,
		"nonce", noncePrefix(in.Nonce), "awarded", s.cfg.WinAwardPoints,
		"balance", led.CurrentBalance, "tier", led.Tier)
	return CompletionResult{
		AwardedPoints:   s.cfg.WinAwardPoints,
		NewBalance:      led.CurrentBalance,
		Tier:            led.Tier,
		DiscountPercent: led.DiscountPercent,
		TotalWins:       prog.TotalWins,
	}, nil
}

// Status reports playability and the customer's loyalty snapshot.
func (s *Service) Status(ctx context.Context, customerID string, now time.Time) (Status, error) {
	rec, err := s.find(ctx, customerID)
	if err != nil {
		return Status{}, err
	}
	prog := DecodeProgress(rec.Attributes)
	led, _ := loyalty.Decode(rec.Attributes)
	tier, discount := loyalty.TierOf(led.CurrentBalance)

	cd := EvaluateCooldown(prog.CooldownEndsAt, now)
	out := Status{
		CanPlay:         cd.CanPlay,
		TotalWins:       prog.TotalWins,
		Balance:         led.CurrentBalance,
		Tier:            tier,
		DiscountPercent: discount,
	}
	if !cd.EndsAt.IsZero() {
		ends := cd.EndsAt
		out.CooldownEndsAt = &ends
	}
	if !prog.LastPlayedAt.IsZero() {
		played := prog.LastPlayedAt
		out.LastPlayedAt = &played
	}
	return out, nil
}

func (s *Service) find(ctx context.Context, customerID string) (store.Record, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.FindByExternalID(ctx, customerID)
}

func (s *Service) update(ctx context.Context, customerID string, version int64, patch map[string]any) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.UpdateAttributes(ctx, customerID, version, patch)
}

// storeCtx bounds every external-store call so issuance and completion fail
// closed on a slow store instead of hanging the request.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *Service) rejected(customerID, nonce, reason string) {
	s.log.Warn("completion rejected", "customer", customerID, "nonce", noncePrefix(nonce), "reason", reason)
}

// noncePrefix keeps logs correlatable without writing full session
// identifiers into them.
func noncePrefix(nonce string) string {
	if len(nonce) <= 8 {
		return nonce
	}
	return nonce[:8]
}
