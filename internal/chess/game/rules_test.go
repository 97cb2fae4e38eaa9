package game

import (
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func boardOf(t *testing.T, fen string) *nchess.Board {
	t.Helper()
	game, err := newGameFromFEN(fen)
	if err != nil {
		t.Fatalf("fen %q: %v", fen, err)
	}
	return game.Position().Board()
}

func TestInsufficientMaterial(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want bool
	}{
		{"bare kings", "8/8/4k3/8/8/8/8/K7 w - - 0 1", true},
		{"king and knight", "8/8/4k3/8/8/2N5/8/K7 w - - 0 1", true},
		{"king and bishop", "8/8/4k3/8/8/2B5/8/K7 w - - 0 1", true},
		{"same colored bishops", "8/8/4k3/4b3/8/2B5/8/K7 w - - 0 1", true},
		{"opposite colored bishops", "8/8/4k3/5b2/8/2B5/8/K7 w - - 0 1", false},
		{"two knights", "8/8/4k3/8/8/2NN4/8/K7 w - - 0 1", false},
		{"knight each", "8/8/4k3/3n4/8/2N5/8/K7 w - - 0 1", false},
		{"lone pawn", "8/8/4k3/8/8/8/P7/K7 w - - 0 1", false},
		{"rook", "8/8/4k3/8/8/8/R7/K7 w - - 0 1", false},
		{"start", StandardFEN, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InsufficientMaterial(boardOf(t, tt.fen)); got != tt.want {
				t.Fatalf("InsufficientMaterial(%s) = %v, want %v", tt.fen, got, tt.want)
			}
		})
	}
}

func TestLacksMatingMaterial(t *testing.T) {
	board := boardOf(t, "8/8/4k3/3n4/8/2N5/P7/K7 w - - 0 1")
	if LacksMatingMaterial(board, nchess.White) {
		t.Fatalf("white has a pawn and should be able to mate")
	}
	if !LacksMatingMaterial(board, nchess.Black) {
		t.Fatalf("black with a lone knight cannot mate")
	}
}

func TestKingAttacked(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		color nchess.Color
		want  bool
	}{
		{"rook on file", "4k3/8/8/8/8/8/4R3/4K3 w - - 0 1", nchess.Black, true},
		{"rook blocked", "4k3/4p3/8/8/8/8/4R3/4K3 w - - 0 1", nchess.Black, false},
		{"bishop diagonal", "4k3/8/8/1B6/8/8/8/4K3 b - - 0 1", nchess.Black, true},
		{"knight", "4k3/8/3N4/8/8/8/8/4K3 b - - 0 1", nchess.Black, true},
		{"white pawn", "4k3/3P4/8/8/8/8/8/4K3 b - - 0 1", nchess.Black, true},
		{"black pawn", "4k3/8/8/8/8/8/3p4/4K3 w - - 0 1", nchess.White, true},
		{"pawn ahead does not attack", "4k3/4P3/8/8/8/8/8/4K3 b - - 0 1", nchess.Black, false},
		{"start", StandardFEN, nchess.White, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kingAttacked(boardOf(t, tt.fen), tt.color); got != tt.want {
				t.Fatalf("kingAttacked(%s, %v) = %v, want %v", tt.fen, tt.color, got, tt.want)
			}
		})
	}
}

func TestRepetitionKey(t *testing.T) {
	a := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	b := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 8 5"
	if RepetitionKey(a) != RepetitionKey(b) {
		t.Fatalf("move counters must not affect the repetition key")
	}
	c := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w Kkq - 0 1"
	if RepetitionKey(a) == RepetitionKey(c) {
		t.Fatalf("castling rights must affect the repetition key")
	}
}

func TestParseCoordinateMove(t *testing.T) {
	from, to, promo, err := ParseCoordinateMove("E7E8N")
	if err != nil {
		t.Fatalf("ParseCoordinateMove: %v", err)
	}
	if from != nchess.E7 || to != nchess.E8 || promo != nchess.Knight {
		t.Fatalf("got %v %v %v", from, to, promo)
	}
	if _, _, _, err := ParseCoordinateMove("e7e8k"); err == nil {
		t.Fatalf("king promotion must be rejected")
	}
}
