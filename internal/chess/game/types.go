package game

import (
	nchess "github.com/corentings/chess/v2"
)

const (
	StandardFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	EmptyFEN    = "8/8/8/8/8/8/8/8 w - - 0 1"
)

// PlayerType tells who drives a side.
type PlayerType uint8

const (
	PlayerNone PlayerType = iota
	PlayerHuman
	PlayerEngine
)

func (p PlayerType) String() string {
	switch p {
	case PlayerHuman:
		return "human"
	case PlayerEngine:
		return "engine"
	default:
		return "none"
	}
}

// Result is the PGN result token of a game.
type Result string

const (
	ResultOngoing   Result = "*"
	ResultWhiteWins Result = "1-0"
	ResultBlackWins Result = "0-1"
	ResultDraw      Result = "1/2-1/2"
)

// Termination is the reason a game stopped.
type Termination uint8

const (
	TerminationNone Termination = iota
	TerminationCheckmate
	TerminationStalemate
	TerminationThreefoldRepetition
	TerminationInsufficientMaterial
	TerminationFiftyMoveRule
	TerminationTimeForfeit
	TerminationTimeoutInsufficientMaterial
	TerminationAborted
	TerminationFivefoldRepetition
	TerminationSeventyFiveMoveRule
	TerminationOther
)

func (t Termination) String() string {
	switch t {
	case TerminationCheckmate:
		return "checkmate"
	case TerminationStalemate:
		return "stalemate"
	case TerminationThreefoldRepetition:
		return "threefold_repetition"
	case TerminationInsufficientMaterial:
		return "insufficient_material"
	case TerminationFiftyMoveRule:
		return "fifty_move_rule"
	case TerminationTimeForfeit:
		return "time_forfeit"
	case TerminationTimeoutInsufficientMaterial:
		return "timeout_insufficient_material"
	case TerminationAborted:
		return "aborted"
	case TerminationFivefoldRepetition:
		return "fivefold_repetition"
	case TerminationSeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case TerminationOther:
		return "other"
	default:
		return "none"
	}
}

// HistoryKind discriminates HistoryItem variants.
type HistoryKind uint8

const (
	HistoryMoveNumber HistoryKind = iota + 1
	HistoryMove
	HistoryTermination
)

// HistoryItem is one entry of the move list. Only the fields of its Kind are set:
//   - HistoryMoveNumber: Number, Side (side to move at the marker)
//   - HistoryMove: SAN, FEN (resulting position), From, To, Promo, Side (side that moved)
//   - HistoryTermination: Result, Reason
type HistoryItem struct {
	Kind   HistoryKind
	Number int
	Side   nchess.Color

	SAN   string
	FEN   string
	From  nchess.Square
	To    nchess.Square
	Promo nchess.PieceType

	Result Result
	Reason Termination
}

// UCI returns the coordinate text of a move record.
func (h HistoryItem) UCI() string {
	if h.Kind != HistoryMove {
		return ""
	}
	return coordinateText(h.From, h.To, h.Promo)
}

// PendingPromotion remembers a pawn move waiting for its promotion piece.
type PendingPromotion struct {
	Side nchess.Color
	From nchess.Square
	To   nchess.Square
}

// LastMove marks the squares of the most recently applied or navigated move.
type LastMove struct {
	From nchess.Square
	To   nchess.Square
}

// Callbacks are invoked on termination, at most one per applied move.
type Callbacks struct {
	OnCheckmate            func(winner nchess.Color)
	OnStalemate            func()
	OnThreefoldRepetition  func()
	OnInsufficientMaterial func()
	OnFiftyMoveRule        func()
	// OnOtherTermination covers terminal states found by the move generator that none
	// of the checks above matched.
	OnOtherTermination     func(reason Termination)
}

// MoveResult reports what a move request did.
type MoveResult struct {
	Applied          bool
	PendingPromotion bool
	SAN              string
	UCI              string
	Termination      Termination
}

// Snapshot is a copy of the session state safe to hand to presentation code.
type Snapshot struct {
	FEN         string
	StartFEN    string
	Turn        nchess.Color
	InProgress  bool
	White       PlayerType
	Black       PlayerType
	Pending     *PendingPromotion
	Selected    int
	LastMove    *LastMove
	History     []HistoryItem
	Result      Result
	Termination Termination
}

// MoveRecords returns only the move entries of the history, in order.
func (s Snapshot) MoveRecords() []HistoryItem {
	out := make([]HistoryItem, 0, len(s.History))
	for _, item := range s.History {
		if item.Kind == HistoryMove {
			out = append(out, item)
		}
	}
	return out
}
