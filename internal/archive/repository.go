package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS engine_games (
    game_id     TEXT PRIMARY KEY,
    start_fen   TEXT NOT NULL,
    final_fen   TEXT NOT NULL,
    white       TEXT NOT NULL,
    black       TEXT NOT NULL,
    result      TEXT NOT NULL,
    termination TEXT NOT NULL,
    eco_code    TEXT NOT NULL DEFAULT '',
    eco_title   TEXT NOT NULL DEFAULT '',
    moves_uci   JSONB NOT NULL,
    moves_san   JSONB NOT NULL,
    pgn         TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
)`

// Repository persists finished games in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveRecord upserts rec keyed by its id.
func (r *Repository) SaveRecord(ctx context.Context, rec Record) error {
	if r == nil || r.db == nil {
		return nil
	}
	args, err := upsertArgs(rec)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertQuery, args...)
	return err
}

const upsertQuery = `INSERT INTO engine_games (
    game_id, start_fen, final_fen, white, black, result, termination,
    eco_code, eco_title, moves_uci, moves_san, pgn, started_at, ended_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
  ) ON CONFLICT (game_id) DO UPDATE SET
    final_fen=EXCLUDED.final_fen,
    result=EXCLUDED.result,
    termination=EXCLUDED.termination,
    eco_code=EXCLUDED.eco_code,
    eco_title=EXCLUDED.eco_title,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    pgn=EXCLUDED.pgn,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

func upsertArgs(rec Record) ([]any, error) {
	movesUCI, err := json.Marshal(nonNil(rec.MovesUCI))
	if err != nil {
		return nil, err
	}
	movesSAN, err := json.Marshal(nonNil(rec.MovesSAN))
	if err != nil {
		return nil, err
	}
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	return []any{
		rec.ID, rec.StartFEN, rec.FinalFEN, rec.White, rec.Black, rec.Result, rec.Termination,
		rec.ECOCode, rec.ECOTitle, string(movesUCI), string(movesSAN), rec.PGN(),
		rec.StartedAt, rec.EndedAt, duration,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
