package game

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"
)

// Manager owns the authoritative position, move history and navigation cursor of one
// session. It is not safe for concurrent use; callers serialize access.
type Manager struct {
	logger *zap.Logger

	game        *nchess.Game
	startFEN    string
	history     []HistoryItem
	occurrences map[string]int
	selected    int
	lastMove    *LastMove
	pending     *PendingPromotion
	white       PlayerType
	black       PlayerType
	inProgress  bool
	result      Result
	termination Termination
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	game, _ := newGameFromFEN(StandardFEN)
	return &Manager{
		logger:      logger,
		game:        game,
		startFEN:    StandardFEN,
		occurrences: map[string]int{RepetitionKey(StandardFEN): 1},
		selected:    -1,
		result:      ResultOngoing,
	}
}

// SetStartPosition remembers the position used by the next ResetGame with an empty text.
// Invalid text leaves the previous start position in place.
func (m *Manager) SetStartPosition(fen string) error {
	game, err := ValidatePosition(fen)
	if err != nil {
		return err
	}
	m.startFEN = game.FEN()
	return nil
}

func (m *Manager) StartPosition() string { return m.startFEN }

// ResetGame starts a new game from fen, or from the remembered start position when fen is
// empty. On error nothing changes.
func (m *Manager) ResetGame(fen string) error {
	if fen == "" {
		fen = m.startFEN
	}
	game, err := ValidatePosition(fen)
	if err != nil {
		return err
	}
	start := game.FEN()
	pos := game.Position()

	m.game = game
	m.startFEN = start
	m.occurrences = map[string]int{RepetitionKey(start): 1}
	m.history = []HistoryItem{{
		Kind:   HistoryMoveNumber,
		Number: fullMoveNumber(start),
		Side:   pos.Turn(),
	}}
	m.white = PlayerHuman
	m.black = PlayerHuman
	m.pending = nil
	m.lastMove = nil
	m.selected = -1
	m.result = ResultOngoing
	m.termination = TerminationNone
	m.inProgress = true

	m.logger.Debug("game_reset", zap.String("fen", start))
	return nil
}

// PlayMove applies the legal move from..to. When only a promotion matches, the move is
// parked as a pending promotion and the position is untouched. Illegal attempts do nothing.
func (m *Manager) PlayMove(from, to nchess.Square, cb Callbacks) MoveResult {
	if !m.inProgress || m.pending != nil {
		return MoveResult{}
	}
	if m.legalMove(from, to, nchess.NoPieceType) {
		return m.apply(from, to, nchess.NoPieceType, cb)
	}
	if m.legalMove(from, to, nchess.Queen) {
		m.pending = &PendingPromotion{Side: m.game.Position().Turn(), From: from, To: to}
		return MoveResult{PendingPromotion: true}
	}
	return MoveResult{}
}

func (m *Manager) CancelPromotion() {
	m.pending = nil
}

// CommitPromotion resolves the pending promotion with piece.
func (m *Manager) CommitPromotion(piece nchess.PieceType, cb Callbacks) (MoveResult, error) {
	if m.pending == nil {
		return MoveResult{}, ErrNoPendingPromotion
	}
	if !IsPromotionPiece(piece) {
		return MoveResult{}, fmt.Errorf("%w: promotion piece %v", ErrMalformedMove, piece)
	}
	from, to := m.pending.From, m.pending.To
	if !m.legalMove(from, to, piece) {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, coordinateText(from, to, piece))
	}
	m.pending = nil
	return m.apply(from, to, piece, cb), nil
}

// ProcessEngineMove applies a coordinate move such as "e2e4" or "e7e8q" sent by the engine.
func (m *Manager) ProcessEngineMove(text string, cb Callbacks) (MoveResult, error) {
	if !m.inProgress {
		return MoveResult{}, ErrGameNotInProgress
	}
	from, to, promo, err := ParseCoordinateMove(text)
	if err != nil {
		return MoveResult{}, err
	}
	if !m.legalMove(from, to, promo) {
		m.logger.Warn("engine_illegal_move", zap.String("move", text), zap.String("fen", m.game.FEN()))
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalEngineMove, text)
	}
	m.pending = nil
	return m.apply(from, to, promo, cb), nil
}

func (m *Manager) legalMove(from, to nchess.Square, promo nchess.PieceType) bool {
	for _, mv := range m.game.ValidMoves() {
		if mv.S1() == from && mv.S2() == to && mv.Promo() == promo {
			return true
		}
	}
	return false
}

func (m *Manager) apply(from, to nchess.Square, promo nchess.PieceType, cb Callbacks) MoveResult {
	before := m.game.Position()
	mover := before.Turn()
	moveText := coordinateText(from, to, promo)
	if err := m.game.PushNotationMove(moveText, nchess.UCINotation{}, nil); err != nil {
		m.logger.Error("oracle_rejected_legal_move", zap.String("move", moveText), zap.Error(err))
		return MoveResult{}
	}
	san := moveText
	if last := lastMove(m.game); last != nil {
		san = nchess.AlgebraicNotation{}.Encode(before, last)
	}
	fen := m.game.FEN()

	if mover == nchess.White && m.hasMoveRecord() {
		m.history = append(m.history, HistoryItem{
			Kind:   HistoryMoveNumber,
			Number: fullMoveNumber(fen),
			Side:   nchess.White,
		})
	}
	m.history = append(m.history, HistoryItem{
		Kind:   HistoryMove,
		Number: fullMoveNumber(before.String()),
		Side:   mover,
		SAN:    san,
		FEN:    fen,
		From:   from,
		To:     to,
		Promo:  promo,
	})
	m.lastMove = &LastMove{From: from, To: to}
	m.occurrences[RepetitionKey(fen)]++

	res := MoveResult{Applied: true, SAN: san, UCI: moveText}
	res.Termination = m.evaluateTermination(cb)
	return res
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func (m *Manager) hasMoveRecord() bool {
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].Kind == HistoryMove {
			return true
		}
	}
	return false
}

// evaluateTermination checks, in order: checkmate, stalemate, threefold repetition,
// insufficient material, the fifty-move rule and last any terminal state the move
// generator reports on its own.
func (m *Manager) evaluateTermination(cb Callbacks) Termination {
	pos := m.game.Position()
	fen := m.game.FEN()
	turn := pos.Turn()
	noMoves := len(m.game.ValidMoves()) == 0

	switch {
	case noMoves && kingAttacked(pos.Board(), turn):
		winner := turn.Other()
		m.finish(TerminationCheckmate, winResult(winner))
		if cb.OnCheckmate != nil {
			cb.OnCheckmate(winner)
		}
	case noMoves:
		m.finish(TerminationStalemate, ResultDraw)
		if cb.OnStalemate != nil {
			cb.OnStalemate()
		}
	case m.occurrences[RepetitionKey(fen)] >= 3:
		m.finish(TerminationThreefoldRepetition, ResultDraw)
		if cb.OnThreefoldRepetition != nil {
			cb.OnThreefoldRepetition()
		}
	case InsufficientMaterial(pos.Board()):
		m.finish(TerminationInsufficientMaterial, ResultDraw)
		if cb.OnInsufficientMaterial != nil {
			cb.OnInsufficientMaterial()
		}
	case halfMoveClock(fen) >= 100:
		m.finish(TerminationFiftyMoveRule, ResultDraw)
		if cb.OnFiftyMoveRule != nil {
			cb.OnFiftyMoveRule()
		}
	case m.game.Outcome() != nchess.NoOutcome:
		reason := terminationForMethod(m.game.Method())
		m.finish(reason, resultForOutcome(m.game.Outcome()))
		if cb.OnOtherTermination != nil {
			cb.OnOtherTermination(reason)
		}
	default:
		return TerminationNone
	}
	return m.termination
}

// terminationForMethod names the outcome method reported by the move generator.
func terminationForMethod(method nchess.Method) Termination {
	switch method {
	case nchess.Checkmate:
		return TerminationCheckmate
	case nchess.Stalemate:
		return TerminationStalemate
	case nchess.ThreefoldRepetition:
		return TerminationThreefoldRepetition
	case nchess.FivefoldRepetition:
		return TerminationFivefoldRepetition
	case nchess.FiftyMoveRule:
		return TerminationFiftyMoveRule
	case nchess.SeventyFiveMoveRule:
		return TerminationSeventyFiveMoveRule
	case nchess.InsufficientMaterial:
		return TerminationInsufficientMaterial
	default:
		return TerminationOther
	}
}

func resultForOutcome(outcome nchess.Outcome) Result {
	switch outcome {
	case nchess.WhiteWon:
		return ResultWhiteWins
	case nchess.BlackWon:
		return ResultBlackWins
	default:
		return ResultDraw
	}
}

func winResult(winner nchess.Color) Result {
	if winner == nchess.White {
		return ResultWhiteWins
	}
	return ResultBlackWins
}

func (m *Manager) finish(reason Termination, result Result) {
	m.inProgress = false
	m.white = PlayerNone
	m.black = PlayerNone
	m.pending = nil
	m.result = result
	m.termination = reason
	m.history = append(m.history, HistoryItem{Kind: HistoryTermination, Result: result, Reason: reason})
	m.selectLastMoveRecord()
	m.logger.Info("game_over",
		zap.String("reason", reason.String()),
		zap.String("result", string(result)),
		zap.String("fen", m.game.FEN()),
	)
}

// StopGame aborts the running game. It is a no-op when no game is in progress.
func (m *Manager) StopGame() {
	if !m.inProgress {
		return
	}
	m.finish(TerminationAborted, ResultOngoing)
}

// TimeForfeit ends the game because loser ran out of time. The game is drawn when the
// opponent cannot mate.
func (m *Manager) TimeForfeit(loser nchess.Color) Termination {
	if !m.inProgress {
		return TerminationNone
	}
	if LacksMatingMaterial(m.game.Position().Board(), loser.Other()) {
		m.finish(TerminationTimeoutInsufficientMaterial, ResultDraw)
	} else {
		m.finish(TerminationTimeForfeit, winResult(loser.Other()))
	}
	return m.termination
}

func (m *Manager) SetPlayerType(side nchess.Color, pt PlayerType) {
	if side == nchess.White {
		m.white = pt
	} else {
		m.black = pt
	}
}

func (m *Manager) PlayerType(side nchess.Color) PlayerType {
	if side == nchess.White {
		return m.white
	}
	return m.black
}

func (m *Manager) InProgress() bool           { return m.inProgress }
func (m *Manager) Turn() nchess.Color         { return m.game.Position().Turn() }
func (m *Manager) FEN() string                { return m.game.FEN() }
func (m *Manager) Board() *nchess.Board       { return m.game.Position().Board() }
func (m *Manager) Pending() *PendingPromotion { return m.pending }
func (m *Manager) Termination() Termination   { return m.termination }
func (m *Manager) Result() Result             { return m.result }

// Selected returns the history index of the selected move record, if any.
func (m *Manager) Selected() (int, bool) {
	return m.selected, m.selected >= 0
}

// History returns a copy of the history items.
func (m *Manager) History() []HistoryItem {
	return append([]HistoryItem(nil), m.history...)
}

func (m *Manager) Snapshot() Snapshot {
	s := Snapshot{
		FEN:         m.game.FEN(),
		StartFEN:    m.startFEN,
		Turn:        m.game.Position().Turn(),
		InProgress:  m.inProgress,
		White:       m.white,
		Black:       m.black,
		Selected:    m.selected,
		History:     m.History(),
		Result:      m.result,
		Termination: m.termination,
	}
	if m.pending != nil {
		p := *m.pending
		s.Pending = &p
	}
	if m.lastMove != nil {
		lm := *m.lastMove
		s.LastMove = &lm
	}
	return s
}

// LoadHistory replays coordinate moves from fen and leaves the result as a finished,
// navigable game. The current session is untouched when a move does not apply.
func (m *Manager) LoadHistory(fen string, moves []string) error {
	next := NewManager(m.logger)
	if err := next.ResetGame(fen); err != nil {
		return err
	}
	for i, mv := range moves {
		if !next.inProgress {
			return fmt.Errorf("move %d (%s) after game end", i+1, mv)
		}
		if _, err := next.ProcessEngineMove(mv, Callbacks{}); err != nil {
			return fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	if next.inProgress {
		next.inProgress = false
		next.white = PlayerNone
		next.black = PlayerNone
		next.selectLastMoveRecord()
	}
	*m = *next
	return nil
}
