package uci

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Purpose tells a decision search (the move to play) from an evaluation refresh.
type Purpose int

const (
	PurposeDecision Purpose = iota
	PurposeEvaluation
)

func (p Purpose) String() string {
	if p == PurposeEvaluation {
		return "evaluation"
	}
	return "decision"
}

// SearchID identifies one issued "go" command. Zero is never used.
type SearchID uint64

type BestMove struct {
	ID      SearchID
	Purpose Purpose
	Move    string
}

type Score struct {
	ID      SearchID
	Purpose Purpose
	Pawns   float64
}

type search struct {
	id        SearchID
	purpose   Purpose
	discarded bool
}

// Adapter speaks the engine protocol over a Channel. Searches are answered in the order
// they were issued, so every bestmove line closes the oldest open search. Searches that
// were superseded or cancelled still consume their bestmove, which is then dropped.
type Adapter struct {
	logger  *zap.Logger
	channel *Channel
	send    func(string) error

	mu         sync.Mutex
	onBestMove func(BestMove)
	onScore    func(Score)
	open       []*search
	lastID     SearchID
}

func NewAdapter(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{logger: logger}
	a.channel = NewChannel(logger, a.HandleLine)
	a.send = a.channel.Send
	return a
}

// Start launches the engine and sends the "uci" and "isready" handshake.
func (a *Adapter) Start(ctx context.Context, path string) error {
	a.reset()
	if err := a.channel.Start(ctx, path); err != nil {
		return err
	}
	for _, cmd := range []string{CmdUCI, CmdIsReady} {
		if err := a.send(cmd); err != nil {
			a.channel.Stop()
			return fmt.Errorf("%w: handshake: %v", ErrEngineSpawn, err)
		}
	}
	return nil
}

func (a *Adapter) Stop() {
	a.channel.Stop()
	a.reset()
}

func (a *Adapter) Done() <-chan struct{} { return a.channel.Done() }

func (a *Adapter) Running() bool { return a.channel.Running() }

func (a *Adapter) reset() {
	a.mu.Lock()
	a.open = nil
	a.mu.Unlock()
}

// SetBestMoveCallback replaces the single best-move listener.
func (a *Adapter) SetBestMoveCallback(fn func(BestMove)) {
	a.mu.Lock()
	a.onBestMove = fn
	a.mu.Unlock()
}

// SetScoreCallback replaces the single score listener.
func (a *Adapter) SetScoreCallback(fn func(Score)) {
	a.mu.Lock()
	a.onScore = fn
	a.mu.Unlock()
}

// Search sends the position and go command and returns the id of the new search. A
// search that is still running is stopped first and its answer will be dropped.
func (a *Adapter) Search(fen, goCmd string, purpose Purpose) (SearchID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.open); n > 0 && !a.open[n-1].discarded {
		if err := a.send(CmdStop); err != nil {
			return 0, err
		}
		for _, s := range a.open {
			s.discarded = true
		}
	}
	if err := a.send(PositionCommand(fen)); err != nil {
		return 0, err
	}
	if err := a.send(goCmd); err != nil {
		return 0, err
	}
	a.lastID++
	a.open = append(a.open, &search{id: a.lastID, purpose: purpose})
	a.logger.Debug("engine_search",
		zap.Uint64("id", uint64(a.lastID)),
		zap.String("purpose", purpose.String()),
		zap.String("go", goCmd),
	)
	return a.lastID, nil
}

// Cancel sends "stop" for an open search and marks its answer to be dropped. Unknown or
// already answered ids are ignored.
func (a *Adapter) Cancel(id SearchID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.open {
		if s.id != id || s.discarded {
			continue
		}
		s.discarded = true
		return a.send(CmdStop)
	}
	return nil
}

// Pending reports the number of searches still waiting for a bestmove line.
func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open)
}

// HandleLine classifies one stdout line and dispatches it. It runs on the reader goroutine.
func (a *Adapter) HandleLine(line string) {
	res := Classify(line)
	switch res.Kind {
	case ResponseBestMove:
		a.handleBestMove(res)
	case ResponseScore:
		a.handleScore(res)
	}
}

func (a *Adapter) handleBestMove(res Response) {
	a.mu.Lock()
	if len(a.open) == 0 {
		a.mu.Unlock()
		a.logger.Debug("engine_bestmove_unexpected", zap.String("line", res.Line))
		return
	}
	head := a.open[0]
	a.open = a.open[1:]
	fn := a.onBestMove
	a.mu.Unlock()

	if head.discarded {
		a.logger.Debug("engine_bestmove_dropped", zap.Uint64("id", uint64(head.id)), zap.String("move", res.Move))
		return
	}
	if fn != nil {
		fn(BestMove{ID: head.id, Purpose: head.purpose, Move: res.Move})
	}
}

func (a *Adapter) handleScore(res Response) {
	a.mu.Lock()
	if len(a.open) == 0 || a.open[0].discarded {
		a.mu.Unlock()
		return
	}
	head := a.open[0]
	fn := a.onScore
	a.mu.Unlock()

	if fn != nil {
		fn(Score{ID: head.id, Purpose: head.purpose, Pawns: res.Pawns})
	}
}
