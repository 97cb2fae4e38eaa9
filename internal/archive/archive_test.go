package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/park285/chess-against-engine/internal/chess/game"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s, err := NewStore(fmt.Sprintf("redis://%s/0", mr.Addr()), time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func finishedSnapshot(t *testing.T, fen string, moves ...string) game.Snapshot {
	t.Helper()
	m := game.NewManager(nil)
	if err := m.LoadHistory(fen, moves); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	return m.Snapshot()
}

func TestNewRecord(t *testing.T) {
	snap := finishedSnapshot(t, "", "e2e4", "e7e5", "g1f3", "b8c6")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := NewRecord(snap, "human", "engine", start, start.Add(time.Minute))

	if rec.ID == "" || rec.StartFEN != game.StandardFEN {
		t.Fatalf("record header %+v", rec)
	}
	if diff := cmp.Diff([]string{"e2e4", "e7e5", "g1f3", "b8c6"}, rec.MovesUCI); diff != "" {
		t.Fatalf("uci moves (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"e4", "e5", "Nf3", "Nc6"}, rec.MovesSAN); diff != "" {
		t.Fatalf("san moves (-want +got):\n%s", diff)
	}
	moves := snap.MoveRecords()
	if rec.FinalFEN != moves[len(moves)-1].FEN {
		t.Fatalf("final fen %s", rec.FinalFEN)
	}
	if !strings.HasPrefix(rec.ECOCode, "C") || rec.ECOTitle == "" {
		t.Fatalf("eco = %q %q", rec.ECOCode, rec.ECOTitle)
	}
}

func TestRecordPGN(t *testing.T) {
	rec := Record{
		StartFEN:    "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		White:       "human",
		Black:       `engine "x"`,
		MovesSAN:    []string{"e5", "Nf3", "Nc6"},
		Result:      "*",
		Termination: "aborted",
		EndedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	pgn := rec.PGN()
	for _, want := range []string{
		`[Date "2026.03.01"]`,
		`[Black "engine 'x'"]`,
		`[SetUp "1"]`,
		`[Termination "aborted"]`,
		"1... e5 2. Nf3 Nc6 *",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
}

func TestStoreSaveLoadRecent(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	first := NewRecord(finishedSnapshot(t, "", "d2d4"), "human", "engine", time.Now(), time.Now())
	second := NewRecord(finishedSnapshot(t, "", "e2e4"), "engine", "human", time.Now(), time.Now())
	for _, rec := range []Record{first, second} {
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := s.Load(ctx, first.ID)
	if err != nil || got == nil {
		t.Fatalf("Load: %v %v", got, err)
	}
	if diff := cmp.Diff(first, *got); diff != "" {
		t.Fatalf("loaded record (-want +got):\n%s", diff)
	}
	if ttl := mr.TTL(keyPrefix + first.ID); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != second.ID || recent[1].ID != first.ID {
		t.Fatalf("recent order wrong: %+v", recent)
	}

	mr.Del(keyPrefix + second.ID)
	recent, _ = s.Recent(ctx, 10)
	if len(recent) != 1 {
		t.Fatalf("expired entries should be skipped, got %d", len(recent))
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s, _ := newTestStore(t)
	rec, err := s.Load(context.Background(), "nope")
	if rec != nil || err != nil {
		t.Fatalf("expected nil, nil; got %v, %v", rec, err)
	}
}

func TestNewStoreRejectsBadURL(t *testing.T) {
	if _, err := NewStore("", time.Hour); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewStore("http://localhost:6379", time.Hour); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions("rediss://:secret@cache.internal/2")
	if err != nil {
		t.Fatalf("redisOptions: %v", err)
	}
	if opts.Addr != "cache.internal:6379" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("addr=%q db=%d password=%q", opts.Addr, opts.DB, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.ServerName != "cache.internal" {
		t.Fatalf("rediss should enable TLS, got %+v", opts.TLSConfig)
	}

	opts, err = redisOptions("redis://localhost")
	if err != nil {
		t.Fatalf("redisOptions: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 0 || opts.TLSConfig != nil {
		t.Fatalf("addr=%q db=%d tls=%v", opts.Addr, opts.DB, opts.TLSConfig != nil)
	}
}

type failingRepo struct{ calls int }

func (f *failingRepo) SaveRecord(context.Context, Record) error {
	f.calls++
	return errors.New("db down")
}

func TestArchiverWritesAllBackends(t *testing.T) {
	s, _ := newTestStore(t)
	repo := &failingRepo{}
	a := NewArchiver(nil, s, nil)
	a.repo = repo

	snap := finishedSnapshot(t, "", "f2f3", "e7e5", "g2g4", "d8h4")
	rec, err := a.Archive(context.Background(), snap, "human", "engine", time.Now())
	if err == nil || repo.calls != 1 {
		t.Fatalf("repository error should be reported, err=%v calls=%d", err, repo.calls)
	}
	if rec == nil || rec.Result != string(game.ResultBlackWins) || rec.Termination != "checkmate" {
		t.Fatalf("record = %+v", rec)
	}
	stored, _ := s.Load(context.Background(), rec.ID)
	if stored == nil {
		t.Fatalf("store write skipped after repository failure")
	}
}

func TestArchiverSkipsEmptyGames(t *testing.T) {
	a := NewArchiver(nil, nil, nil)
	m := game.NewManager(nil)
	if err := m.ResetGame(""); err != nil {
		t.Fatalf("ResetGame: %v", err)
	}
	m.StopGame()
	rec, err := a.Archive(context.Background(), m.Snapshot(), "human", "human", time.Now())
	if rec != nil || err != nil {
		t.Fatalf("expected nothing archived, got %v %v", rec, err)
	}
}

func TestUpsertArgs(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	args, err := upsertArgs(Record{ID: "g1", StartedAt: start, EndedAt: start.Add(-time.Second), Result: "*"})
	if err != nil {
		t.Fatalf("upsertArgs: %v", err)
	}
	if len(args) != 15 || args[9] != "[]" || args[14] != int64(0) {
		t.Fatalf("args = %#v", args)
	}
}
