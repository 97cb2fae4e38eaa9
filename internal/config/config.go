package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chess-against-engine/internal/chess/game"
)

type AppConfig struct {
	// EnginePath overrides the enginePath preference when set.
	EnginePath string

	ThinkingTime time.Duration
	EvalTime     time.Duration
	ReplyGrace   time.Duration
	// ThinkingTimeSet reports that ENGINE_THINKING_MS overrides the preference.
	ThinkingTimeSet bool

	ClockTime      time.Duration
	ClockIncrement time.Duration

	StartFEN  string
	PrefsFile string

	RedisURL    string
	DatabaseURL string
	ArchiveTTL  time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ThinkingTime: 1000 * time.Millisecond,
		EvalTime:     300 * time.Millisecond,
		ReplyGrace:   3000 * time.Millisecond,
		ClockTime:    60 * time.Second,
		StartFEN:     game.StandardFEN,
		ArchiveTTL:   7 * 24 * time.Hour,
	}

	cfg.EnginePath = strings.TrimSpace(os.Getenv("ENGINE_PATH"))
	cfg.PrefsFile = strings.TrimSpace(os.Getenv("PREFS_FILE"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("ENGINE_THINKING_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ThinkingTime = time.Duration(n) * time.Millisecond
			cfg.ThinkingTimeSet = true
		}
	}
	// 0이면 평가 갱신 비활성화
	if v := strings.TrimSpace(os.Getenv("ENGINE_EVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.EvalTime = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_REPLY_GRACE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReplyGrace = time.Duration(n) * time.Millisecond
		}
	}
	// 0이면 시계 없이 movetime 으로 탐색
	if v := strings.TrimSpace(os.Getenv("CLOCK_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ClockTime = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("CLOCK_INCREMENT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ClockIncrement = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARCHIVE_TTL_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ArchiveTTL = time.Duration(n) * time.Hour
		}
	}
	if v := strings.TrimSpace(os.Getenv("START_FEN")); v != "" {
		cfg.StartFEN = v
	}

	if _, err := game.ValidatePosition(cfg.StartFEN); err != nil {
		return nil, fmt.Errorf("START_FEN: %w", err)
	}
	if cfg.ClockIncrement > 0 && cfg.ClockTime == 0 {
		return nil, errors.New("CLOCK_INCREMENT_SECONDS requires CLOCK_SECONDS")
	}

	return cfg, nil
}
