package coordinator

import (
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-against-engine/internal/chess/game"
	"github.com/park285/chess-against-engine/internal/chess/uci"
	"go.uber.org/zap"
)

func (c *Coordinator) goCommand() (string, time.Duration) {
	if !c.clock.Enabled() {
		return uci.GoMoveTime(int(c.cfg.ThinkingTime.Milliseconds())), c.cfg.ThinkingTime
	}
	white := c.clock.Remaining(nchess.White)
	black := c.clock.Remaining(nchess.Black)
	inc := int(c.clock.Increment().Milliseconds())
	limits := uci.ClockLimits{
		WhiteMillis:    int(white.Milliseconds()),
		BlackMillis:    int(black.Milliseconds()),
		WhiteIncMillis: inc,
		BlackIncMillis: inc,
	}
	budget := white
	if c.game.Turn() == nchess.Black {
		budget = black
	}
	return uci.GoClock(limits), budget
}

func (c *Coordinator) startDecision(side nchess.Color) {
	if !c.engineReady() {
		c.engineFailed(side, engineError("not running", nil))
		return
	}
	goCmd, budget := c.goCommand()
	id, err := c.engine.Search(c.game.FEN(), goCmd, uci.PurposeDecision)
	if err != nil {
		c.engineFailed(side, engineError("search", err))
		return
	}
	c.evaluation = 0
	c.decision = id
	c.thinking = side
	c.state = StateEngineThinking
	c.armWatchdog(id, budget+c.cfg.ReplyGrace)
	c.emit(Event{Kind: EventEngineThinking, Side: side})
}

func (c *Coordinator) requestEvaluation() {
	if c.cfg.EvalTime <= 0 || !c.engineReady() {
		return
	}
	id, err := c.engine.Search(c.game.FEN(), uci.GoMoveTime(int(c.cfg.EvalTime.Milliseconds())), uci.PurposeEvaluation)
	if err != nil {
		c.logger.Warn("evaluation_request_failed", zap.Error(err))
		return
	}
	c.evaluation = id
}

// cancelSearches stops the open decision and evaluation searches; their replies are
// dropped by the adapter.
func (c *Coordinator) cancelSearches() {
	c.disarmWatchdog()
	for _, id := range []uci.SearchID{c.decision, c.evaluation} {
		if id == 0 || c.engine == nil {
			continue
		}
		if err := c.engine.Cancel(id); err != nil {
			c.logger.Warn("engine_cancel_failed", zap.Uint64("id", uint64(id)), zap.Error(err))
		}
	}
	c.decision = 0
	c.evaluation = 0
}

// armWatchdog fails the decision search when no reply arrives within limit or when the
// engine process exits first.
func (c *Coordinator) armWatchdog(id uci.SearchID, limit time.Duration) {
	c.disarmWatchdog()
	stop := make(chan struct{})
	c.watchStop = stop
	exited := c.engine.Done()
	side := c.thinking

	go func() {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		var reason string
		select {
		case <-stop:
			return
		case <-timer.C:
			reason = "no reply"
		case <-exited:
			reason = "process exited"
		}
		_ = c.run(func() error {
			if c.decision != id {
				return nil
			}
			c.logger.Warn("engine_unavailable",
				zap.Uint64("search", uint64(id)),
				zap.String("reason", reason),
				zap.Duration("limit", limit),
			)
			c.engineFailed(side, engineError(reason, nil))
			return nil
		})
	}()
}

func (c *Coordinator) disarmWatchdog() {
	if c.watchStop != nil {
		close(c.watchStop)
		c.watchStop = nil
	}
}

// engineFailed drops the decision search and gives side back to the human.
func (c *Coordinator) engineFailed(side nchess.Color, err error) {
	c.cancelSearches()
	if c.game.InProgress() {
		c.game.SetPlayerType(side, game.PlayerHuman)
		c.state = StateHumanToMove
	}
	c.emit(Event{Kind: EventEngineUnavailable, Side: side, Err: err})
}

func (c *Coordinator) onBestMove(bm uci.BestMove) {
	_ = c.run(func() error {
		if bm.Purpose != uci.PurposeDecision || bm.ID != c.decision || c.state != StateEngineThinking {
			c.logger.Debug("bestmove_ignored",
				zap.Uint64("search", uint64(bm.ID)),
				zap.String("purpose", bm.Purpose.String()),
				zap.String("move", bm.Move),
			)
			return nil
		}
		side := c.thinking
		c.disarmWatchdog()
		c.decision = 0

		if bm.Move == "" {
			c.engineFailed(side, engineError("no move", nil))
			return nil
		}
		res, err := c.game.ProcessEngineMove(bm.Move, c.callbacks())
		if err != nil {
			c.engineFailed(side, engineError("bad move", err))
			return nil
		}
		c.state = StateHumanToMove
		c.afterMove(res)
		return nil
	})
}

// onScore publishes scores of the current searches from White's point of view.
func (c *Coordinator) onScore(s uci.Score) {
	_ = c.run(func() error {
		if s.ID == 0 || (s.ID != c.decision && s.ID != c.evaluation) {
			return nil
		}
		pawns := s.Pawns
		if c.game.Turn() == nchess.Black {
			pawns = -pawns
		}
		c.emit(Event{Kind: EventScore, Side: c.game.Turn(), Score: pawns})
		return nil
	})
}
