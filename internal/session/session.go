package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/park285/chess-against-engine/internal/archive"
	"github.com/park285/chess-against-engine/internal/chess/clock"
	"github.com/park285/chess-against-engine/internal/chess/coordinator"
	"github.com/park285/chess-against-engine/internal/chess/game"
	"github.com/park285/chess-against-engine/internal/chess/uci"
	"github.com/park285/chess-against-engine/internal/config"
	"github.com/park285/chess-against-engine/internal/prefs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const archiveTimeout = 5 * time.Second

// Session owns everything one operator needs to play against the engine: preferences,
// the engine process, the clock, the game and the coordinator on top of them.
type Session struct {
	ID          string
	Prefs       *prefs.Store
	Engine      *uci.Adapter
	Clock       *clock.Clock
	Game        *game.Manager
	Coordinator *coordinator.Coordinator

	logger   *zap.Logger
	cfg      *config.AppConfig
	store    *archive.Store
	repo     *archive.Repository
	archiver *archive.Archiver

	mu        sync.Mutex
	listener  func(coordinator.Event)
	startedAt time.Time
	players   [2]game.PlayerType
	archived  *archive.Record
}

// New builds a session from cfg. A missing or broken engine is not fatal: the session
// starts without one and engine sides are refused until StartEngine succeeds. Archive
// backends are optional, but a configured one that cannot be reached is an error.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := prefs.Open(cfg.PrefsFile)
	if err != nil {
		return nil, fmt.Errorf("open preferences: %w", err)
	}

	s := &Session{
		ID:     uuid.NewString(),
		Prefs:  store,
		logger: logger,
		cfg:    cfg,
	}
	s.logger = logger.With(zap.String("session_id", s.ID))

	if strings.TrimSpace(cfg.RedisURL) != "" {
		s.store, err = archive.NewStore(cfg.RedisURL, cfg.ArchiveTTL)
		if err != nil {
			return nil, fmt.Errorf("init archive store: %w", err)
		}
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		s.repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			s.store.Close()
			return nil, fmt.Errorf("init archive repository: %w", err)
		}
	}
	s.archiver = archive.NewArchiver(s.logger, s.store, s.repo)

	s.Game = game.NewManager(s.logger)
	if err := s.Game.SetStartPosition(cfg.StartFEN); err != nil {
		s.closeArchive()
		return nil, fmt.Errorf("start position: %w", err)
	}
	s.Clock = clock.New(s.logger, cfg.ClockTime, cfg.ClockIncrement)
	s.Engine = uci.NewAdapter(s.logger)
	s.Coordinator = coordinator.New(s.logger, s.Game, s.Engine, s.Clock, coordinator.Config{
		ThinkingTime: s.thinkingTime(),
		EvalTime:     cfg.EvalTime,
		ReplyGrace:   cfg.ReplyGrace,
	})
	s.Coordinator.SetListener(s.handleEvent)

	if path := s.EnginePath(); path != "" {
		if err := s.StartEngine(ctx); err != nil {
			s.logger.Warn("engine_start_failed", zap.String("path", path), zap.Error(err))
		}
	} else {
		s.logger.Info("engine_not_configured")
	}
	return s, nil
}

func (s *Session) thinkingTime() time.Duration {
	if s.cfg.ThinkingTimeSet {
		return s.cfg.ThinkingTime
	}
	return time.Duration(s.Prefs.Values().EngineThinkingTimeMs) * time.Millisecond
}

// Configure applies a new time control and engine thinking time for the next game. Zero
// allocated time plays without a clock. It is refused while a game is running.
func (s *Session) Configure(allocated, increment, thinking time.Duration) error {
	if s.Coordinator.Snapshot().InProgress {
		return coordinator.ErrGameInProgress
	}
	if err := s.Clock.Configure(allocated, increment); err != nil {
		return err
	}
	if err := s.Coordinator.SetThinkingTime(thinking); err != nil {
		return err
	}
	s.logger.Info("session_configured",
		zap.Duration("clock", allocated),
		zap.Duration("increment", increment),
		zap.Duration("thinking_time", s.Coordinator.ThinkingTime()),
	)
	return nil
}

// ApplyPreferences re-reads the engine thinking time from the preferences unless
// ENGINE_THINKING_MS pins it. The clock is left as configured.
func (s *Session) ApplyPreferences() error {
	if s.Coordinator.Snapshot().InProgress {
		return coordinator.ErrGameInProgress
	}
	return s.Coordinator.SetThinkingTime(s.thinkingTime())
}

// EnginePath is ENGINE_PATH when set, otherwise the enginePath preference.
func (s *Session) EnginePath() string {
	if p := strings.TrimSpace(s.cfg.EnginePath); p != "" {
		return p
	}
	return strings.TrimSpace(s.Prefs.Values().EnginePath)
}

// StartEngine (re)launches the engine at EnginePath.
func (s *Session) StartEngine(ctx context.Context) error {
	if s.Engine.Running() {
		s.Coordinator.StopGame()
		s.Engine.Stop()
	}
	path := s.EnginePath()
	if err := s.Engine.Start(ctx, path); err != nil {
		return err
	}
	s.logger.Info("engine_started", zap.String("path", path))
	return nil
}

// SetListener registers the front end's event listener.
func (s *Session) SetListener(fn func(coordinator.Event)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// NewGame starts a game and remembers who plays each side for the archive.
func (s *Session) NewGame(fen string, white, black game.PlayerType) error {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.players = [2]game.PlayerType{white, black}
	s.archived = nil
	s.mu.Unlock()
	return s.Coordinator.NewGame(fen, white, black)
}

// SetPlayerType hands a side over mid-game. A side the engine touched stays recorded as
// the engine's.
func (s *Session) SetPlayerType(side nchess.Color, pt game.PlayerType) error {
	if err := s.Coordinator.SetPlayerType(side, pt); err != nil {
		return err
	}
	s.mu.Lock()
	if pt == game.PlayerEngine {
		s.players[sideIndex(side)] = pt
	}
	s.mu.Unlock()
	return nil
}

// LastArchived returns the record written for the most recent finished game, if any.
func (s *Session) LastArchived() *archive.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archived
}

// Recent lists archived games from the Redis store, newest first.
func (s *Session) Recent(ctx context.Context, limit int) ([]archive.Record, error) {
	if s.store == nil {
		return nil, errors.New("archive store not configured")
	}
	return s.store.Recent(ctx, limit)
}

// LoadArchived replays an archived game into the coordinator for navigation.
func (s *Session) LoadArchived(ctx context.Context, id string) error {
	if s.store == nil {
		return errors.New("archive store not configured")
	}
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("archived game %s not found", id)
	}
	return s.Coordinator.LoadHistory(rec.StartFEN, rec.MovesUCI)
}

func (s *Session) handleEvent(ev coordinator.Event) {
	if ev.Kind == coordinator.EventGameOver {
		s.archive()
	}
	s.mu.Lock()
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (s *Session) archive() {
	s.mu.Lock()
	startedAt := s.startedAt
	white, black := s.players[0].String(), s.players[1].String()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	rec, err := s.archiver.Archive(ctx, s.Coordinator.Snapshot(), white, black, startedAt)
	if err != nil {
		s.logger.Warn("archive_failed", zap.Error(err))
	}
	if rec != nil {
		s.mu.Lock()
		s.archived = rec
		s.mu.Unlock()
	}
}

// Close stops the game and the engine and releases the archive connections.
func (s *Session) Close() error {
	s.Coordinator.StopGame()
	s.Clock.Stop()
	s.Engine.Stop()
	return s.closeArchive()
}

func (s *Session) closeArchive() error {
	return multierr.Combine(s.store.Close(), s.repo.Close())
}

func sideIndex(side nchess.Color) int {
	if side == nchess.Black {
		return 1
	}
	return 0
}
