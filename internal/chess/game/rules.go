package game

import (
	nchess "github.com/corentings/chess/v2"
)

type grid [8][8]nchess.Piece

var (
	knightSteps   = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps     = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	diagonalSteps = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	straightSteps = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
)

func gridOf(board *nchess.Board) grid {
	var g grid
	for sq, piece := range board.SquareMap() {
		g[sq.File()][sq.Rank()] = piece
	}
	return g
}

func (g *grid) at(file, rank int) (nchess.Piece, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return nchess.NoPiece, false
	}
	return g[file][rank], true
}

func (g *grid) holds(file, rank int, color nchess.Color, types ...nchess.PieceType) bool {
	piece, ok := g.at(file, rank)
	if !ok || piece == nchess.NoPiece || piece.Color() != color {
		return false
	}
	for _, pt := range types {
		if piece.Type() == pt {
			return true
		}
	}
	return false
}

// attacked reports whether any piece of color by attacks the given file/rank.
func (g *grid) attacked(file, rank int, by nchess.Color) bool {
	pawnRank := rank - 1
	if by == nchess.Black {
		pawnRank = rank + 1
	}
	if g.holds(file-1, pawnRank, by, nchess.Pawn) || g.holds(file+1, pawnRank, by, nchess.Pawn) {
		return true
	}
	for _, s := range knightSteps {
		if g.holds(file+s[0], rank+s[1], by, nchess.Knight) {
			return true
		}
	}
	for _, s := range kingSteps {
		if g.holds(file+s[0], rank+s[1], by, nchess.King) {
			return true
		}
	}
	if g.rayHit(file, rank, by, diagonalSteps[:], nchess.Bishop, nchess.Queen) {
		return true
	}
	return g.rayHit(file, rank, by, straightSteps[:], nchess.Rook, nchess.Queen)
}

func (g *grid) rayHit(file, rank int, by nchess.Color, steps [][2]int, sliders ...nchess.PieceType) bool {
	for _, s := range steps {
		f, r := file+s[0], rank+s[1]
		for {
			piece, ok := g.at(f, r)
			if !ok {
				break
			}
			if piece != nchess.NoPiece {
				if g.holds(f, r, by, sliders...) {
					return true
				}
				break
			}
			f, r = f+s[0], r+s[1]
		}
	}
	return false
}

// kingAttacked reports whether the king of color is attacked by the other side.
// A board without that king is never in check.
func kingAttacked(board *nchess.Board, color nchess.Color) bool {
	g := gridOf(board)
	for file := 0; file < 8; file++ {
		for rank := 0; rank < 8; rank++ {
			if g.holds(file, rank, color, nchess.King) {
				return g.attacked(file, rank, color.Other())
			}
		}
	}
	return false
}

type material struct {
	queens, rooks, pawns, knights int
	bishops                       int
	lightBishops                  int
}

func (m material) minors() int { return m.knights + m.bishops }

func (m material) heavy() bool { return m.queens > 0 || m.rooks > 0 || m.pawns > 0 }

func countMaterial(board *nchess.Board) map[nchess.Color]*material {
	counts := map[nchess.Color]*material{
		nchess.White: {},
		nchess.Black: {},
	}
	for sq, piece := range board.SquareMap() {
		m, ok := counts[piece.Color()]
		if !ok {
			continue
		}
		switch piece.Type() {
		case nchess.Queen:
			m.queens++
		case nchess.Rook:
			m.rooks++
		case nchess.Pawn:
			m.pawns++
		case nchess.Knight:
			m.knights++
		case nchess.Bishop:
			m.bishops++
			if (int(sq.File())+int(sq.Rank()))%2 == 1 {
				m.lightBishops++
			}
		}
	}
	return counts
}

// InsufficientMaterial reports a dead position: no queen, rook or pawn on the board and
// either one side bare against at most one minor piece, or a lone bishop each on the same
// square color.
func InsufficientMaterial(board *nchess.Board) bool {
	counts := countMaterial(board)
	white, black := counts[nchess.White], counts[nchess.Black]
	if white.heavy() || black.heavy() {
		return false
	}
	if (white.minors() == 0 && black.minors() <= 1) || (black.minors() == 0 && white.minors() <= 1) {
		return true
	}
	if white.knights == 0 && black.knights == 0 && white.bishops == 1 && black.bishops == 1 {
		return white.lightBishops == black.lightBishops
	}
	return false
}

// LacksMatingMaterial reports whether color alone cannot deliver mate: a bare king or a
// king with a single minor piece.
func LacksMatingMaterial(board *nchess.Board, color nchess.Color) bool {
	m := countMaterial(board)[color]
	if m == nil {
		return true
	}
	return !m.heavy() && m.minors() <= 1
}
