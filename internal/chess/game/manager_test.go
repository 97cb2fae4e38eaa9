package game

import (
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/go-cmp/cmp"
)

func newTestManager(t *testing.T, fen string) *Manager {
	t.Helper()
	m := NewManager(nil)
	if err := m.ResetGame(fen); err != nil {
		t.Fatalf("ResetGame(%q): %v", fen, err)
	}
	return m
}

func play(t *testing.T, m *Manager, moves ...string) MoveResult {
	t.Helper()
	var res MoveResult
	for _, mv := range moves {
		from, to, _, err := ParseCoordinateMove(mv)
		if err != nil {
			t.Fatalf("parse %q: %v", mv, err)
		}
		res = m.PlayMove(from, to, Callbacks{})
		if !res.Applied {
			t.Fatalf("move %s not applied (fen=%s)", mv, m.FEN())
		}
	}
	return res
}

func fenField(fen string, i int) string {
	return strings.Fields(fen)[i]
}

func TestResetGame_RejectsWrongFieldCount(t *testing.T) {
	m := NewManager(nil)
	err := m.ResetGame("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0")
	if !errors.Is(err, ErrWrongFieldsCount) {
		t.Fatalf("expected ErrWrongFieldsCount, got %v", err)
	}
	var fce *FieldsCountError
	if !errors.As(err, &fce) || fce.Count != 5 {
		t.Fatalf("expected FieldsCountError{5}, got %#v", err)
	}
	if m.InProgress() {
		t.Fatalf("failed reset must not start a game")
	}
}

func TestResetGame_RejectsOppositeKingInCheck(t *testing.T) {
	m := newTestManager(t, "")
	before := m.Snapshot()
	err := m.ResetGame("4k3/8/8/8/8/8/4R3/4K3 w - - 0 1")
	if !errors.Is(err, ErrOppositeKingInCheck) {
		t.Fatalf("expected ErrOppositeKingInCheck, got %v", err)
	}
	if diff := cmp.Diff(before, m.Snapshot()); diff != "" {
		t.Fatalf("state changed after rejected reset (-want +got):\n%s", diff)
	}
}

func TestResetGame_SeedsSession(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	s := m.Snapshot()
	if !s.InProgress || s.White != PlayerHuman || s.Black != PlayerHuman {
		t.Fatalf("unexpected session flags: %+v", s)
	}
	want := []HistoryItem{{Kind: HistoryMoveNumber, Number: 1, Side: nchess.White}}
	if diff := cmp.Diff(want, s.History); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
	if s.Pending != nil || s.Selected != -1 {
		t.Fatalf("expected no pending promotion and no selection")
	}
}

func TestPlayMove_PawnDoubleStep(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	res := play(t, m, "e2e4")
	if res.SAN != "e4" {
		t.Fatalf("SAN = %q, want e4", res.SAN)
	}
	fen := m.FEN()
	if m.Turn() != nchess.Black || fenField(fen, 1) != "b" {
		t.Fatalf("expected black to move, fen=%s", fen)
	}
	if got := fenField(fen, 3); got != "e3" {
		t.Fatalf("en passant target = %q, want e3", got)
	}
}

func TestPlayMove_IllegalIsNoop(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	before := m.Snapshot()
	res := m.PlayMove(nchess.E2, nchess.E5, Callbacks{})
	if res.Applied || res.PendingPromotion {
		t.Fatalf("illegal move reported as applied: %+v", res)
	}
	if diff := cmp.Diff(before, m.Snapshot()); diff != "" {
		t.Fatalf("illegal move changed state (-want +got):\n%s", diff)
	}
}

func TestPromotion_CommitKnight(t *testing.T) {
	m := newTestManager(t, "8/4P3/8/p7/8/8/k7/4K3 w - - 0 1")
	fenBefore := m.FEN()
	res := m.PlayMove(nchess.E7, nchess.E8, Callbacks{})
	if !res.PendingPromotion || res.Applied {
		t.Fatalf("expected pending promotion, got %+v", res)
	}
	p := m.Pending()
	if p == nil || p.Side != nchess.White || p.From != nchess.E7 || p.To != nchess.E8 {
		t.Fatalf("unexpected pending state %+v", p)
	}
	if m.FEN() != fenBefore {
		t.Fatalf("position changed while promotion pending")
	}

	res, err := m.CommitPromotion(nchess.Knight, Callbacks{})
	if err != nil || !res.Applied {
		t.Fatalf("CommitPromotion: res=%+v err=%v", res, err)
	}
	if piece := m.Board().Piece(nchess.E8); piece != nchess.WhiteKnight {
		t.Fatalf("e8 holds %v, want white knight", piece)
	}
	if m.Pending() != nil {
		t.Fatalf("pending promotion not cleared")
	}
}

func TestPromotion_Cancel(t *testing.T) {
	m := newTestManager(t, "8/4P3/8/p7/8/8/k7/4K3 w - - 0 1")
	m.PlayMove(nchess.E7, nchess.E8, Callbacks{})
	m.CancelPromotion()
	if m.Pending() != nil {
		t.Fatalf("pending promotion not cleared")
	}
	if _, err := m.CommitPromotion(nchess.Queen, Callbacks{}); !errors.Is(err, ErrNoPendingPromotion) {
		t.Fatalf("expected ErrNoPendingPromotion, got %v", err)
	}
}

func TestPromotion_CommitIllegalIsNotAnEngineError(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	m.pending = &PendingPromotion{Side: nchess.White, From: nchess.E2, To: nchess.E5}
	_, err := m.CommitPromotion(nchess.Queen, Callbacks{})
	if !errors.Is(err, ErrIllegalMove) || errors.Is(err, ErrIllegalEngineMove) {
		t.Fatalf("CommitPromotion err=%v, want ErrIllegalMove only", err)
	}
	if m.FEN() != StandardFEN {
		t.Fatalf("rejected promotion changed position: %s", m.FEN())
	}
}

func TestProcessEngineMove_QueenPromotion(t *testing.T) {
	m := newTestManager(t, "8/4P3/8/p7/8/8/k7/4K3 w - - 0 1")
	m.PlayMove(nchess.E7, nchess.E8, Callbacks{})
	res, err := m.ProcessEngineMove("e7e8q", Callbacks{})
	if err != nil || !res.Applied {
		t.Fatalf("ProcessEngineMove: res=%+v err=%v", res, err)
	}
	if piece := m.Board().Piece(nchess.E8); piece != nchess.WhiteQueen {
		t.Fatalf("e8 holds %v, want white queen", piece)
	}
	if m.Pending() != nil {
		t.Fatalf("pending promotion not cleared")
	}
}

func TestProcessEngineMove_Rejects(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	tests := []struct {
		move string
		want error
	}{
		{"e2", ErrMalformedMove},
		{"e2e4x", ErrMalformedMove},
		{"i2i4", ErrMalformedMove},
		{"e2e5", ErrIllegalEngineMove},
	}
	for _, tt := range tests {
		if _, err := m.ProcessEngineMove(tt.move, Callbacks{}); !errors.Is(err, tt.want) {
			t.Fatalf("ProcessEngineMove(%q) err=%v, want %v", tt.move, err, tt.want)
		}
	}
	if m.FEN() != StandardFEN {
		t.Fatalf("rejected engine moves changed position: %s", m.FEN())
	}
}

func TestHistory_MoveNumberMarkers(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	play(t, m, "e2e4", "e7e5", "g1f3")
	got := m.History()
	kinds := make([]HistoryKind, 0, len(got))
	for _, item := range got {
		kinds = append(kinds, item.Kind)
	}
	want := []HistoryKind{HistoryMoveNumber, HistoryMove, HistoryMove, HistoryMoveNumber, HistoryMove}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("history kinds (-want +got):\n%s", diff)
	}
	if got[3].Number != 2 || got[3].Side != nchess.White {
		t.Fatalf("second marker = %+v, want move 2 white", got[3])
	}
	if got[4].SAN != "Nf3" || got[4].UCI() != "g1f3" {
		t.Fatalf("third record = %+v", got[4])
	}
}

func TestHistory_BlackStartsNoExtraMarker(t *testing.T) {
	m := newTestManager(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	play(t, m, "e7e5", "g1f3")
	got := m.History()
	if len(got) != 4 {
		t.Fatalf("history len = %d, want 4: %+v", len(got), got)
	}
	if got[0].Kind != HistoryMoveNumber || got[0].Side != nchess.Black {
		t.Fatalf("seed marker = %+v", got[0])
	}
	if got[2].Kind != HistoryMoveNumber || got[2].Number != 2 {
		t.Fatalf("white marker = %+v", got[2])
	}
}

func TestTermination_Checkmate(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	play(t, m, "f2f3", "e7e5", "g2g4")
	var winner nchess.Color = nchess.NoColor
	res := m.PlayMove(nchess.D8, nchess.H4, Callbacks{
		OnCheckmate: func(w nchess.Color) { winner = w },
	})
	if res.Termination != TerminationCheckmate || winner != nchess.Black {
		t.Fatalf("termination=%v winner=%v", res.Termination, winner)
	}
	s := m.Snapshot()
	if s.InProgress || s.White != PlayerNone || s.Black != PlayerNone {
		t.Fatalf("game not stopped: %+v", s)
	}
	if s.Result != ResultBlackWins {
		t.Fatalf("result = %s", s.Result)
	}
	if idx, ok := m.Selected(); !ok || s.History[idx].UCI() != "d8h4" {
		t.Fatalf("selected node should be the mating move, got %d", idx)
	}
	if last := s.History[len(s.History)-1]; last.Kind != HistoryTermination {
		t.Fatalf("expected termination marker, got %+v", last)
	}
}

func TestTermination_Stalemate(t *testing.T) {
	m := newTestManager(t, "7k/4Q3/6K1/8/8/8/8/8 w - - 0 1")
	called := false
	res := m.PlayMove(nchess.E7, nchess.F7, Callbacks{OnStalemate: func() { called = true }})
	if res.Termination != TerminationStalemate || !called {
		t.Fatalf("termination=%v called=%v", res.Termination, called)
	}
}

func TestTermination_ThreefoldFiresOnThirdOccurrence(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	calls := 0
	cb := Callbacks{OnThreefoldRepetition: func() { calls++ }}
	cycle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	for round := 0; round < 2; round++ {
		for i, mv := range cycle {
			from, to, _, _ := ParseCoordinateMove(mv)
			res := m.PlayMove(from, to, cb)
			if !res.Applied {
				t.Fatalf("round %d move %s not applied", round, mv)
			}
			last := round == 1 && i == len(cycle)-1
			if last && res.Termination != TerminationThreefoldRepetition {
				t.Fatalf("expected threefold on third occurrence, got %v", res.Termination)
			}
			if !last && res.Termination != TerminationNone {
				t.Fatalf("early termination %v at round %d move %s", res.Termination, round, mv)
			}
		}
	}
	if calls != 1 {
		t.Fatalf("callback calls = %d, want 1", calls)
	}
	if res := m.PlayMove(nchess.G1, nchess.F3, cb); res.Applied || calls != 1 {
		t.Fatalf("moves after game end must be ignored")
	}
}

func TestTermination_InsufficientMaterial(t *testing.T) {
	m := newTestManager(t, "8/8/4k3/3r4/8/2N5/8/K7 w - - 0 1")
	called := false
	res := m.PlayMove(nchess.C3, nchess.D5, Callbacks{OnInsufficientMaterial: func() { called = true }})
	if res.Termination != TerminationInsufficientMaterial || !called {
		t.Fatalf("termination=%v called=%v", res.Termination, called)
	}
	if m.Result() != ResultDraw {
		t.Fatalf("result = %s", m.Result())
	}
}

func TestTermination_FiftyMoveRule(t *testing.T) {
	m := newTestManager(t, "4k3/8/8/8/8/8/8/R3K3 w - - 99 80")
	called := false
	res := m.PlayMove(nchess.A1, nchess.A2, Callbacks{OnFiftyMoveRule: func() { called = true }})
	if res.Termination != TerminationFiftyMoveRule || !called {
		t.Fatalf("termination=%v called=%v", res.Termination, called)
	}
}

func TestTerminationForMethod(t *testing.T) {
	tests := []struct {
		method nchess.Method
		want   Termination
		text   string
	}{
		{nchess.Checkmate, TerminationCheckmate, "checkmate"},
		{nchess.Stalemate, TerminationStalemate, "stalemate"},
		{nchess.ThreefoldRepetition, TerminationThreefoldRepetition, "threefold_repetition"},
		{nchess.FivefoldRepetition, TerminationFivefoldRepetition, "fivefold_repetition"},
		{nchess.FiftyMoveRule, TerminationFiftyMoveRule, "fifty_move_rule"},
		{nchess.SeventyFiveMoveRule, TerminationSeventyFiveMoveRule, "seventy_five_move_rule"},
		{nchess.InsufficientMaterial, TerminationInsufficientMaterial, "insufficient_material"},
		{nchess.DrawOffer, TerminationOther, "other"},
		{nchess.Resignation, TerminationOther, "other"},
	}
	for _, tt := range tests {
		got := terminationForMethod(tt.method)
		if got != tt.want || got.String() != tt.text {
			t.Fatalf("terminationForMethod(%v) = %v (%s), want %v (%s)", tt.method, got, got, tt.want, tt.text)
		}
	}

	results := map[nchess.Outcome]Result{
		nchess.WhiteWon: ResultWhiteWins,
		nchess.BlackWon: ResultBlackWins,
		nchess.Draw:     ResultDraw,
	}
	for outcome, want := range results {
		if got := resultForOutcome(outcome); got != want {
			t.Fatalf("resultForOutcome(%v) = %s, want %s", outcome, got, want)
		}
	}
}

func TestTimeForfeit(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	if got := m.TimeForfeit(nchess.White); got != TerminationTimeForfeit || m.Result() != ResultBlackWins {
		t.Fatalf("forfeit=%v result=%s", got, m.Result())
	}

	m = newTestManager(t, "8/8/4k3/8/8/8/PPP5/K7 b - - 0 1")
	if got := m.TimeForfeit(nchess.White); got != TerminationTimeoutInsufficientMaterial || m.Result() != ResultDraw {
		t.Fatalf("forfeit against bare king=%v result=%s", got, m.Result())
	}
}

func TestNavigation_RoundTrip(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	play(t, m, "e2e4", "e7e5", "g1f3", "b8c6")
	if m.GotoFirst() || m.GotoPrevious() || m.RequestPosition(1) {
		t.Fatalf("navigation must be refused during a live game")
	}
	m.StopGame()
	live := m.FEN()

	for idx, item := range m.History() {
		if item.Kind != HistoryMove {
			continue
		}
		if !m.RequestPosition(idx) {
			t.Fatalf("RequestPosition(%d) refused", idx)
		}
		if m.FEN() != item.FEN {
			t.Fatalf("position at %d = %s, want %s", idx, m.FEN(), item.FEN)
		}
		for m.GotoNext() {
		}
		if m.FEN() != live {
			t.Fatalf("forward from %d reached %s, want %s", idx, m.FEN(), live)
		}
	}

	if !m.GotoFirst() || m.FEN() != StandardFEN {
		t.Fatalf("GotoFirst did not restore the start position: %s", m.FEN())
	}
	if _, ok := m.Selected(); ok {
		t.Fatalf("cursor should be cleared at the start position")
	}
	if !m.GotoLast() || m.FEN() != live {
		t.Fatalf("GotoLast = %s, want %s", m.FEN(), live)
	}
}

func TestNavigation_PreviousSkipsMarkersAndReachesStart(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	play(t, m, "d2d4", "d7d5", "c2c4")
	m.StopGame()
	steps := 0
	for {
		if _, ok := m.Selected(); !ok {
			break
		}
		if !m.GotoPrevious() {
			t.Fatalf("GotoPrevious refused with a selection")
		}
		steps++
	}
	if steps != 3 || m.FEN() != StandardFEN || m.Snapshot().LastMove != nil {
		t.Fatalf("steps=%d fen=%s", steps, m.FEN())
	}
}

func TestLoadHistory(t *testing.T) {
	m := newTestManager(t, StandardFEN)
	if err := m.LoadHistory("", []string{"e2e4", "e7e5", "d1h5", "b8c6", "f1c4", "g8f6", "h5f7"}); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if m.InProgress() || m.Termination() != TerminationCheckmate || m.Result() != ResultWhiteWins {
		t.Fatalf("loaded game state: inProgress=%v termination=%v result=%s", m.InProgress(), m.Termination(), m.Result())
	}
	if !m.GotoFirst() {
		t.Fatalf("loaded game should be navigable")
	}

	before := m.Snapshot()
	if err := m.LoadHistory("", []string{"e2e4", "e2e4"}); err == nil {
		t.Fatalf("expected error for illegal replay")
	}
	if diff := cmp.Diff(before, m.Snapshot()); diff != "" {
		t.Fatalf("failed load changed state (-want +got):\n%s", diff)
	}
}

func TestSetStartPosition(t *testing.T) {
	m := NewManager(nil)
	fen := "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1"
	if err := m.SetStartPosition(fen); err != nil {
		t.Fatalf("SetStartPosition: %v", err)
	}
	if err := m.SetStartPosition("bad"); err == nil {
		t.Fatalf("expected error for bad start position")
	}
	if err := m.ResetGame(""); err != nil {
		t.Fatalf("ResetGame: %v", err)
	}
	if RepetitionKey(m.FEN()) != RepetitionKey(fen) {
		t.Fatalf("reset used %s, want %s", m.FEN(), fen)
	}
}
