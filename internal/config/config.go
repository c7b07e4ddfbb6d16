package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr          string
	DatabaseURL   string
	SessionSecret string
	Game          GameConfig
	StoreTimeout  time.Duration
	DBMaxConns    int32
	DBMinConns    int32
}

type WorkerConfig struct {
	DatabaseURL    string
	RunEvery       time.Duration
	CycleDays      int
	PageSize       int
	MaxPagesPerRun int
	StoreTimeout   time.Duration
	DBMaxConns     int32
	DBMinConns     int32
}

// GameConfig carries the tunables the protocol leaves to deployment:
// award size, cooldown length, and the timing windows.
type GameConfig struct {
	DeckPairs       int
	WinAwardPoints  int64
	Cooldown        time.Duration
	TokenLifetime   time.Duration
	MinSolvePerPair time.Duration
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("PETAL_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:          addr,
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SessionSecret: strings.TrimSpace(os.Getenv("PETAL_SESSION_SECRET")),
		Game:          loadGameFromEnv(),
		StoreTimeout:  envDurationDefault("PETAL_STORE_TIMEOUT", 5*time.Second),
		DBMaxConns:    int32(envIntDefault("PETAL_DB_MAX_CONNS", 20)),
		DBMinConns:    int32(envIntDefault("PETAL_DB_MIN_CONNS", 2)),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		return cfg, fmt.Errorf("PETAL_SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 32 {
		return cfg, fmt.Errorf("PETAL_SESSION_SECRET must be at least 32 bytes")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RunEvery:       envDurationDefault("PETAL_RECONCILE_EVERY", 24*time.Hour),
		CycleDays:      envIntDefault("PETAL_CYCLE_DAYS", 30),
		PageSize:       envIntDefault("PETAL_RECONCILE_PAGE_SIZE", 100),
		MaxPagesPerRun: envIntDefault("PETAL_RECONCILE_MAX_PAGES", 10_000),
		StoreTimeout:   envDurationDefault("PETAL_STORE_TIMEOUT", 5*time.Second),
		DBMaxConns:     int32(envIntDefault("PETAL_DB_MAX_CONNS", 4)),
		DBMinConns:     int32(envIntDefault("PETAL_DB_MIN_CONNS", 1)),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CycleDays < 1 {
		return cfg, fmt.Errorf("PETAL_CYCLE_DAYS must be >= 1")
	}
	if cfg.PageSize < 1 {
		return cfg, fmt.Errorf("PETAL_RECONCILE_PAGE_SIZE must be >= 1")
	}
	return cfg, nil
}

func loadGameFromEnv() GameConfig {
	return GameConfig{
		DeckPairs:       envIntDefault("PETAL_DECK_PAIRS", 8),
		WinAwardPoints:  int64(envIntDefault("PETAL_WIN_AWARD_POINTS", 25)),
		Cooldown:        envDurationDefault("PETAL_COOLDOWN", 4*time.Hour),
		TokenLifetime:   envDurationDefault("PETAL_TOKEN_LIFETIME", 30*time.Minute),
		MinSolvePerPair: envDurationDefault("PETAL_MIN_SOLVE_PER_PAIR", 1500*time.Millisecond),
	}
}

// MinSolveTime is the implausibility floor for a full deck solve.
func (g GameConfig) MinSolveTime() time.Duration {
	return time.Duration(g.DeckPairs) * g.MinSolvePerPair
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
