package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"petal/internal/game"
	"petal/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const customerContextKey contextKey = "customer"

// identityHeader carries the verified caller identity set by the upstream
// gateway. Authentication itself happens outside this service.
const identityHeader = "X-Customer-ID"

type Server struct {
	log  *slog.Logger
	game *game.Service
	mux  *chi.Mux
}

func New(logger *slog.Logger, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:  logger,
		game: gameSvc,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.identityMiddleware)
			r.Post("/game/session", s.handleStartSession)
			r.Post("/game/session/complete", s.handleCompleteSession)
			r.Get("/game/status", s.handleStatus)
		})
	})
}

func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(identityHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing caller identity")
			return
		}
		ctx := context.WithValue(r.Context(), customerContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func customerFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(customerContextKey).(string)
	if !ok || id == "" {
		return "", errors.New("missing caller identity")
	}
	return id, nil
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	customerID, err := customerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		return
	}
	out, err := s.game.Start(r.Context(), customerID, time.Now().UTC())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	customerID, err := customerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		return
	}
	var in struct {
		CustomerID   string    `json:"customer_id"`
		Nonce        string    `json:"nonce"`
		IssuedAt     time.Time `json:"issued_at"`
		Fingerprint  string    `json:"fingerprint"`
		Signature    string    `json:"signature"`
		MatchedPairs [][2]int  `json:"matched_pairs"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(in.CustomerID) == "" {
		in.CustomerID = customerID
	}
	out, err := s.game.Complete(r.Context(), customerID, game.CompletionInput{
		CustomerID:   in.CustomerID,
		Nonce:        in.Nonce,
		IssuedAt:     in.IssuedAt,
		Fingerprint:  in.Fingerprint,
		Signature:    in.Signature,
		MatchedPairs: in.MatchedPairs,
	}, time.Now().UTC())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	customerID, err := customerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		return
	}
	out, err := s.game.Status(r.Context(), customerID, time.Now().UTC())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var cooldown *game.CooldownActiveError
	var replay *game.ReplayError
	switch {
	case errors.As(err, &cooldown):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":            "cooldown active",
			"code":             "COOLDOWN_ACTIVE",
			"cooldown_ends_at": cooldown.EndsAt.UTC().Format(time.RFC3339),
		})
	case errors.As(err, &replay):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "session already redeemed",
			"code":       "REPLAY_REJECTED",
			"total_wins": replay.TotalWins,
			"balance":    replay.Balance,
		})
	case errors.Is(err, game.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", err.Error())
	case errors.Is(err, game.ErrIdentityMismatch):
		writeError(w, http.StatusForbidden, "IDENTITY_MISMATCH", err.Error())
	case errors.Is(err, game.ErrReplayRejected):
		writeError(w, http.StatusConflict, "REPLAY_REJECTED", err.Error())
	case errors.Is(err, game.ErrTokenExpired):
		writeError(w, http.StatusGone, "TOKEN_EXPIRED", err.Error())
	case errors.Is(err, game.ErrImplausibleTiming):
		writeError(w, http.StatusUnprocessableEntity, "IMPLAUSIBLE_TIMING", err.Error())
	case errors.Is(err, game.ErrWrongSolution):
		writeError(w, http.StatusUnprocessableEntity, "WRONG_SOLUTION", err.Error())
	case errors.Is(err, game.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, "CONCURRENT_UPDATE", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "STORE_TIMEOUT", "customer store timed out")
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message), "code": code})
}
