package archive

import (
	"context"
	"time"

	"github.com/park285/chess-against-engine/internal/chess/game"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type recordStore interface {
	Save(ctx context.Context, rec Record) error
}

type recordRepository interface {
	SaveRecord(ctx context.Context, rec Record) error
}

// Archiver writes finished games to whichever backends are configured. With none it
// only logs the game.
type Archiver struct {
	logger *zap.Logger
	store  recordStore
	repo   recordRepository
	now    func() time.Time
}

func NewArchiver(logger *zap.Logger, store *Store, repo *Repository) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Archiver{logger: logger, now: time.Now}
	// 타입 있는 nil 포인터가 인터페이스에 들어가지 않도록 분기
	if store != nil {
		a.store = store
	}
	if repo != nil {
		a.repo = repo
	}
	return a
}

// Archive stores the game in snap. Games without a single move are skipped.
func (a *Archiver) Archive(ctx context.Context, snap game.Snapshot, white, black string, startedAt time.Time) (*Record, error) {
	if len(snap.MoveRecords()) == 0 {
		return nil, nil
	}
	rec := NewRecord(snap, white, black, startedAt, a.now())

	var err error
	if a.store != nil {
		err = multierr.Append(err, a.store.Save(ctx, rec))
	}
	if a.repo != nil {
		err = multierr.Append(err, a.repo.SaveRecord(ctx, rec))
	}
	a.logger.Info("game_archived",
		zap.String("id", rec.ID),
		zap.String("result", rec.Result),
		zap.String("termination", rec.Termination),
		zap.String("eco_code", rec.ECOCode),
		zap.Int("plies", len(rec.MovesUCI)),
	)
	return &rec, err
}
