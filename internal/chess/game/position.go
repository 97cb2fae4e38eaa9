package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrWrongFieldsCount    = errors.New("position text must have 6 fields")
	ErrOppositeKingInCheck = errors.New("king of the side not to move is in check")
	ErrInvalidPosition     = errors.New("invalid position text")
	ErrMalformedMove       = errors.New("malformed coordinate move")
	ErrIllegalEngineMove   = errors.New("illegal engine move")
	ErrIllegalMove         = errors.New("illegal move")
	ErrNoPendingPromotion  = errors.New("no pending promotion")
	ErrGameNotInProgress   = errors.New("game not in progress")
)

// FieldsCountError carries the field count of a rejected position text.
type FieldsCountError struct {
	Count int
}

func (e *FieldsCountError) Error() string {
	return fmt.Sprintf("position text has %d fields, want 6", e.Count)
}

func (e *FieldsCountError) Unwrap() error { return ErrWrongFieldsCount }

// ValidatePosition checks a start position text and returns the oracle game built from it.
func ValidatePosition(fen string) (*nchess.Game, error) {
	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return nil, &FieldsCountError{Count: len(fields)}
	}
	game, err := newGameFromFEN(strings.Join(fields, " "))
	if err != nil {
		return nil, err
	}
	pos := game.Position()
	if kingAttacked(pos.Board(), pos.Turn().Other()) {
		return nil, ErrOppositeKingInCheck
	}
	return game, nil
}

func newGameFromFEN(fen string) (*nchess.Game, error) {
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return nchess.NewGame(option), nil
}

// RepetitionKey reduces a position text to board, side, castling and en-passant fields.
func RepetitionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

func halfMoveClock(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 5 {
		return 0
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return n
}

func fullMoveNumber(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParseSquare converts "e4" into a square.
func ParseSquare(text string) (nchess.Square, error) {
	if len(text) != 2 {
		return nchess.NoSquare, fmt.Errorf("%w: square %q", ErrMalformedMove, text)
	}
	file := text[0]
	rank := text[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return nchess.NoSquare, fmt.Errorf("%w: square %q", ErrMalformedMove, text)
	}
	return nchess.NewSquare(nchess.File(file-'a'), nchess.Rank(rank-'1')), nil
}

// ParseCoordinateMove splits "e7e8q" into squares and an optional promotion piece.
func ParseCoordinateMove(text string) (nchess.Square, nchess.Square, nchess.PieceType, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if len(text) != 4 && len(text) != 5 {
		return nchess.NoSquare, nchess.NoSquare, nchess.NoPieceType, fmt.Errorf("%w: %q", ErrMalformedMove, text)
	}
	from, err := ParseSquare(text[0:2])
	if err != nil {
		return nchess.NoSquare, nchess.NoSquare, nchess.NoPieceType, err
	}
	to, err := ParseSquare(text[2:4])
	if err != nil {
		return nchess.NoSquare, nchess.NoSquare, nchess.NoPieceType, err
	}
	promo := nchess.NoPieceType
	if len(text) == 5 {
		promo = promotionFromLetter(text[4])
		if promo == nchess.NoPieceType {
			return nchess.NoSquare, nchess.NoSquare, nchess.NoPieceType, fmt.Errorf("%w: promotion %q", ErrMalformedMove, text[4:])
		}
	}
	return from, to, promo, nil
}

func promotionFromLetter(c byte) nchess.PieceType {
	switch c {
	case 'q':
		return nchess.Queen
	case 'r':
		return nchess.Rook
	case 'b':
		return nchess.Bishop
	case 'n':
		return nchess.Knight
	default:
		return nchess.NoPieceType
	}
}

func promotionLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}

func coordinateText(from, to nchess.Square, promo nchess.PieceType) string {
	return from.String() + to.String() + promotionLetter(promo)
}

// IsPromotionPiece reports whether a pawn may promote to pt.
func IsPromotionPiece(pt nchess.PieceType) bool {
	return promotionLetter(pt) != ""
}
