package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-against-engine/internal/chess/clock"
	"github.com/park285/chess-against-engine/internal/chess/game"
	"github.com/park285/chess-against-engine/internal/chess/uci"
	"go.uber.org/zap"
)

var (
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrNotHumanTurn      = errors.New("not a human turn")
	ErrPromotionPending  = errors.New("promotion pending")
	ErrGameInProgress    = errors.New("game in progress")
)

type State int

const (
	StateHumanToMove State = iota
	StateEngineThinking
	StatePendingPromotion
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateHumanToMove:
		return "human_to_move"
	case StateEngineThinking:
		return "engine_thinking"
	case StatePendingPromotion:
		return "pending_promotion"
	default:
		return "game_over"
	}
}

// Engine is the part of the protocol adapter the coordinator drives.
type Engine interface {
	Search(fen, goCmd string, purpose uci.Purpose) (uci.SearchID, error)
	Cancel(id uci.SearchID) error
	SetBestMoveCallback(fn func(uci.BestMove))
	SetScoreCallback(fn func(uci.Score))
	Done() <-chan struct{}
	Running() bool
}

type Config struct {
	ThinkingTime time.Duration
	// EvalTime is the length of the evaluation refresh issued on human turns. Zero disables it.
	EvalTime   time.Duration
	ReplyGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.ThinkingTime <= 0 {
		c.ThinkingTime = time.Second
	}
	if c.ReplyGrace <= 0 {
		c.ReplyGrace = 3 * time.Second
	}
	return c
}

type EventKind int

const (
	EventPositionChanged EventKind = iota + 1
	EventEngineThinking
	EventScore
	EventGameOver
	EventPromotionPending
	EventEngineUnavailable
)

func (k EventKind) String() string {
	switch k {
	case EventPositionChanged:
		return "position_changed"
	case EventEngineThinking:
		return "engine_thinking"
	case EventScore:
		return "score"
	case EventGameOver:
		return "game_over"
	case EventPromotionPending:
		return "promotion_pending"
	case EventEngineUnavailable:
		return "engine_unavailable"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Side nchess.Color
	// Move is the SAN of the applied move for EventPositionChanged.
	Move string
	// Score is in pawns from White's point of view.
	Score       float64
	Termination game.Termination
	Result      game.Result
	Err         error
}

// Coordinator sequences human and engine moves over one game.Manager. Engine replies and
// clock expiry arrive on other goroutines; every state change happens under one mutex and
// events are delivered to the listener after it is released.
type Coordinator struct {
	logger *zap.Logger
	cfg    Config
	engine Engine
	clock  *clock.Clock
	game   *game.Manager

	mu         sync.Mutex
	state      State
	decision   uci.SearchID
	evaluation uci.SearchID
	thinking   nchess.Color
	watchStop  chan struct{}
	ended      bool
	listener   func(Event)
	queued     []Event
}

// New wires the coordinator to its collaborators. engine may be nil when no engine is
// configured; clk may be nil to play without a clock.
func New(logger *zap.Logger, mgr *game.Manager, engine Engine, clk *clock.Clock, cfg Config) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New(logger, 0, 0)
	}
	c := &Coordinator{
		logger: logger,
		cfg:    cfg.withDefaults(),
		engine: engine,
		clock:  clk,
		game:   mgr,
		state:  StateGameOver,
	}
	if engine != nil {
		engine.SetBestMoveCallback(c.onBestMove)
		engine.SetScoreCallback(c.onScore)
	}
	clk.OnTimeout(c.onTimeout)
	return c
}

// SetListener replaces the single event listener.
func (c *Coordinator) SetListener(fn func(Event)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// run executes fn under the lock and then delivers the events it queued.
func (c *Coordinator) run(fn func() error) error {
	c.mu.Lock()
	err := fn()
	events := c.queued
	c.queued = nil
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		for _, ev := range events {
			listener(ev)
		}
	}
	return err
}

func (c *Coordinator) emit(ev Event) {
	c.queued = append(c.queued, ev)
}

// SetThinkingTime changes the per-move budget of unclocked engine searches. It is refused
// while a game is running; zero or less restores the default.
func (c *Coordinator) SetThinkingTime(d time.Duration) error {
	return c.run(func() error {
		if c.game.InProgress() {
			return ErrGameInProgress
		}
		c.cfg.ThinkingTime = d
		c.cfg = c.cfg.withDefaults()
		c.logger.Info("thinking_time_changed", zap.Duration("thinking_time", c.cfg.ThinkingTime))
		return nil
	})
}

// ThinkingTime returns the per-move budget of unclocked engine searches.
func (c *Coordinator) ThinkingTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ThinkingTime
}

func (c *Coordinator) engineReady() bool {
	return c.engine != nil && c.engine.Running()
}

// NewGame resets the board to fen (empty for the remembered start position) and assigns
// both sides. Asking for an engine side without a running engine fails before anything
// changes.
func (c *Coordinator) NewGame(fen string, white, black game.PlayerType) error {
	return c.run(func() error {
		if (white == game.PlayerEngine || black == game.PlayerEngine) && !c.engineReady() {
			return ErrEngineUnavailable
		}
		if err := c.game.ResetGame(fen); err != nil {
			return err
		}
		c.cancelSearches()
		c.game.SetPlayerType(nchess.White, white)
		c.game.SetPlayerType(nchess.Black, black)
		c.clock.Reset(c.game.Turn())
		c.clock.Start()
		c.state = StateHumanToMove
		c.logger.Info("game_started",
			zap.String("fen", c.game.FEN()),
			zap.String("white", white.String()),
			zap.String("black", black.String()),
		)
		c.emit(Event{Kind: EventPositionChanged, Side: c.game.Turn()})
		c.advance()
		return nil
	})
}

// PlayMove submits a human move. Illegal squares are a silent no-op: the result is not
// applied and the error is nil.
func (c *Coordinator) PlayMove(from, to nchess.Square) (game.MoveResult, error) {
	var res game.MoveResult
	err := c.run(func() error {
		switch {
		case !c.game.InProgress():
			return game.ErrGameNotInProgress
		case c.state == StatePendingPromotion:
			return ErrPromotionPending
		case c.state != StateHumanToMove, c.game.PlayerType(c.game.Turn()) != game.PlayerHuman:
			return ErrNotHumanTurn
		}
		res = c.game.PlayMove(from, to, c.callbacks())
		switch {
		case res.PendingPromotion:
			c.state = StatePendingPromotion
			c.emit(Event{Kind: EventPromotionPending, Side: c.game.Turn()})
		case res.Applied:
			c.afterMove(res)
		}
		return nil
	})
	return res, err
}

func (c *Coordinator) CommitPromotion(piece nchess.PieceType) (game.MoveResult, error) {
	var res game.MoveResult
	err := c.run(func() error {
		if c.state != StatePendingPromotion {
			return game.ErrNoPendingPromotion
		}
		var err error
		res, err = c.game.CommitPromotion(piece, c.callbacks())
		if err != nil {
			return err
		}
		c.state = StateHumanToMove
		c.afterMove(res)
		return nil
	})
	return res, err
}

func (c *Coordinator) CancelPromotion() {
	_ = c.run(func() error {
		if c.state != StatePendingPromotion {
			return nil
		}
		c.game.CancelPromotion()
		c.state = StateHumanToMove
		c.emit(Event{Kind: EventPositionChanged, Side: c.game.Turn()})
		return nil
	})
}

// SetPlayerType hands a side to the human or the engine during a live game. Taking a
// thinking side away from the engine stops its search and drops the eventual reply.
func (c *Coordinator) SetPlayerType(side nchess.Color, pt game.PlayerType) error {
	return c.run(func() error {
		if !c.game.InProgress() {
			return game.ErrGameNotInProgress
		}
		if pt == game.PlayerEngine && !c.engineReady() {
			return ErrEngineUnavailable
		}
		if c.game.PlayerType(side) == pt {
			return nil
		}
		c.game.SetPlayerType(side, pt)
		c.logger.Info("player_type_changed", zap.String("side", side.String()), zap.String("player", pt.String()))

		if c.state == StateEngineThinking && c.thinking == side && pt != game.PlayerEngine {
			c.cancelSearches()
			c.state = StateHumanToMove
		}
		if c.state == StateHumanToMove {
			c.advance()
		}
		return nil
	})
}

// StopGame aborts the running game and any search.
func (c *Coordinator) StopGame() {
	_ = c.run(func() error {
		if !c.game.InProgress() {
			return nil
		}
		c.game.StopGame()
		c.gameOver()
		return nil
	})
}

// LoadHistory replaces the session with a finished game replayed from fen and moves.
func (c *Coordinator) LoadHistory(fen string, moves []string) error {
	return c.run(func() error {
		c.cancelSearches()
		if err := c.game.LoadHistory(fen, moves); err != nil {
			return err
		}
		c.clock.Stop()
		c.state = StateGameOver
		c.emit(Event{Kind: EventPositionChanged, Side: c.game.Turn()})
		return nil
	})
}

func (c *Coordinator) GotoPrevious() bool { return c.navigate(c.game.GotoPrevious) }
func (c *Coordinator) GotoNext() bool     { return c.navigate(c.game.GotoNext) }
func (c *Coordinator) GotoFirst() bool    { return c.navigate(c.game.GotoFirst) }
func (c *Coordinator) GotoLast() bool     { return c.navigate(c.game.GotoLast) }

func (c *Coordinator) RequestPosition(index int) bool {
	return c.navigate(func() bool { return c.game.RequestPosition(index) })
}

func (c *Coordinator) navigate(step func() bool) bool {
	var ok bool
	_ = c.run(func() error {
		ok = step()
		if ok {
			c.emit(Event{Kind: EventPositionChanged, Side: c.game.Turn()})
		}
		return nil
	})
	return ok
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Snapshot() game.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game.Snapshot()
}

// Remaining returns the clock time left for side.
func (c *Coordinator) Remaining(side nchess.Color) time.Duration {
	return c.clock.Remaining(side)
}

// callbacks mark the end of the game; afterMove finishes it once the move is published.
func (c *Coordinator) callbacks() game.Callbacks {
	over := func() { c.ended = true }
	return game.Callbacks{
		OnCheckmate:            func(nchess.Color) { over() },
		OnStalemate:            over,
		OnThreefoldRepetition:  over,
		OnInsufficientMaterial: over,
		OnFiftyMoveRule:        over,
		OnOtherTermination:     func(game.Termination) { over() },
	}
}

func (c *Coordinator) afterMove(res game.MoveResult) {
	c.evaluation = 0
	c.emit(Event{Kind: EventPositionChanged, Side: c.game.Turn(), Move: res.SAN})
	if c.ended {
		c.ended = false
		c.gameOver()
		return
	}
	c.clock.Switch()
	c.advance()
}

// advance decides who moves next: an engine side gets a decision search, a human side
// gets an optional evaluation refresh.
func (c *Coordinator) advance() {
	if !c.game.InProgress() {
		return
	}
	turn := c.game.Turn()
	if c.game.PlayerType(turn) == game.PlayerEngine {
		c.startDecision(turn)
		return
	}
	c.state = StateHumanToMove
	c.requestEvaluation()
}

func (c *Coordinator) gameOver() {
	c.cancelSearches()
	c.clock.Stop()
	c.state = StateGameOver
	c.emit(Event{
		Kind:        EventGameOver,
		Termination: c.game.Termination(),
		Result:      c.game.Result(),
	})
}

func (c *Coordinator) onTimeout(loser nchess.Color) {
	_ = c.run(func() error {
		if !c.game.InProgress() {
			return nil
		}
		reason := c.game.TimeForfeit(loser)
		c.logger.Info("time_forfeit", zap.String("loser", loser.String()), zap.String("reason", reason.String()))
		c.gameOver()
		return nil
	})
}

func engineError(reason string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEngineUnavailable, reason, err)
	}
	return fmt.Errorf("%w: %s", ErrEngineUnavailable, reason)
}
