package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-against-engine/internal/adapter/termview"
	"github.com/park285/chess-against-engine/internal/archive"
	"github.com/park285/chess-against-engine/internal/chess/coordinator"
	"github.com/park285/chess-against-engine/internal/chess/game"
	"github.com/park285/chess-against-engine/internal/prefs"
	"github.com/park285/chess-against-engine/internal/session"
)

// shell maps command lines onto session operations.
type shell struct {
	ctx       context.Context
	sess      *session.Session
	out       *termview.Presenter
	formatter *termview.Formatter
}

func newShell(ctx context.Context, sess *session.Session, out *termview.Presenter) *shell {
	return &shell{ctx: ctx, sess: sess, out: out, formatter: termview.NewFormatter()}
}

func (s *shell) prompt() string {
	switch s.sess.Coordinator.State() {
	case coordinator.StateEngineThinking:
		return "chess (thinking)> "
	case coordinator.StatePendingPromotion:
		return "chess (promote)> "
	case coordinator.StateHumanToMove:
		if s.sess.Coordinator.Snapshot().Turn == nchess.Black {
			return "chess (black)> "
		}
		return "chess (white)> "
	default:
		return "chess> "
	}
}

// execute runs one command line and reports whether the loop should end.
func (s *shell) execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	var err error
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		s.out.Message(s.formatter.Help())
	case "new":
		err = s.newGame(args)
	case "move", "m":
		if len(args) != 1 {
			err = errors.New("usage: move e2e4")
			break
		}
		err = s.move(args[0])
	case "promote":
		err = s.promote(args)
	case "cancel":
		s.sess.Coordinator.CancelPromotion()
	case "white", "black":
		err = s.setPlayer(cmd, args)
	case "stop":
		s.sess.Coordinator.StopGame()
	case "prev":
		s.navigate(s.sess.Coordinator.GotoPrevious())
	case "next":
		s.navigate(s.sess.Coordinator.GotoNext())
	case "first":
		s.navigate(s.sess.Coordinator.GotoFirst())
	case "last":
		s.navigate(s.sess.Coordinator.GotoLast())
	case "goto":
		err = s.gotoIndex(args)
	case "board":
		s.out.Board()
	case "fen":
		s.out.Message(s.sess.Coordinator.Snapshot().FEN)
	case "history":
		s.out.Message(s.formatter.History(s.sess.Coordinator.Snapshot()))
	case "clock":
		if len(args) == 0 {
			s.showClock()
			break
		}
		err = s.configureClock(args)
	case "pgn":
		s.showPGN()
	case "load":
		err = s.load(args)
	case "archive":
		err = s.listArchive(args)
	case "replay":
		if len(args) != 1 {
			err = errors.New("usage: replay <id>")
			break
		}
		err = s.sess.LoadArchived(s.ctx, args[0])
	case "engine":
		err = s.engine(args)
	case "prefs":
		err = s.prefs(args)
	default:
		// 명령어 없이 좌표만 입력하면 수로 처리
		if _, _, _, perr := game.ParseCoordinateMove(cmd); perr == nil {
			err = s.move(cmd)
			break
		}
		err = fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	if err != nil {
		s.out.Message("error: " + err.Error())
	}
	return false
}

func parsePlayer(text string) (game.PlayerType, error) {
	switch strings.ToLower(text) {
	case "human", "h":
		return game.PlayerHuman, nil
	case "engine", "e", "computer", "c":
		return game.PlayerEngine, nil
	default:
		return game.PlayerNone, fmt.Errorf("unknown player %q (human|engine)", text)
	}
}

// newGame parses "new [white X] [black Y] [fen ...]". Both sides default to the human.
func (s *shell) newGame(args []string) error {
	white, black := game.PlayerHuman, game.PlayerHuman
	fen := ""
	for i := 0; i < len(args); i++ {
		switch strings.ToLower(args[i]) {
		case "white", "black":
			if i+1 >= len(args) {
				return fmt.Errorf("missing player after %s", args[i])
			}
			pt, err := parsePlayer(args[i+1])
			if err != nil {
				return err
			}
			if strings.ToLower(args[i]) == "white" {
				white = pt
			} else {
				black = pt
			}
			i++
		case "fen":
			fen = strings.Join(args[i+1:], " ")
			i = len(args)
		default:
			return fmt.Errorf("unexpected argument %q", args[i])
		}
	}
	return s.sess.NewGame(fen, white, black)
}

func (s *shell) move(text string) error {
	from, to, promo, err := game.ParseCoordinateMove(text)
	if err != nil {
		return err
	}
	res, err := s.sess.Coordinator.PlayMove(from, to)
	if err != nil {
		return err
	}
	if res.PendingPromotion && promo != nchess.NoPieceType {
		_, err = s.sess.Coordinator.CommitPromotion(promo)
		return err
	}
	if !res.Applied && !res.PendingPromotion {
		return fmt.Errorf("illegal move %s", text)
	}
	return nil
}

func (s *shell) promote(args []string) error {
	if len(args) != 1 || len(args[0]) != 1 {
		return errors.New("usage: promote q|r|b|n")
	}
	var piece nchess.PieceType
	switch strings.ToLower(args[0]) {
	case "q":
		piece = nchess.Queen
	case "r":
		piece = nchess.Rook
	case "b":
		piece = nchess.Bishop
	case "n":
		piece = nchess.Knight
	default:
		return fmt.Errorf("cannot promote to %q", args[0])
	}
	_, err := s.sess.Coordinator.CommitPromotion(piece)
	return err
}

func (s *shell) setPlayer(side string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s human|engine", side)
	}
	pt, err := parsePlayer(args[0])
	if err != nil {
		return err
	}
	color := nchess.White
	if side == "black" {
		color = nchess.Black
	}
	return s.sess.SetPlayerType(color, pt)
}

func (s *shell) navigate(ok bool) {
	if !ok {
		s.out.Message("nothing to navigate (only finished games can be browsed)")
	}
}

func (s *shell) gotoIndex(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: goto <history index>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad index %q", args[0])
	}
	s.navigate(s.sess.Coordinator.RequestPosition(n))
	return nil
}

func (s *shell) showClock() {
	text := s.formatter.Clock(
		s.sess.Coordinator.Remaining(nchess.White),
		s.sess.Coordinator.Remaining(nchess.Black),
		s.sess.Clock.Enabled(),
	)
	if text == "" {
		text = "no clock"
	}
	s.out.Message(text)
}

// configureClock parses "clock <seconds> [increment seconds]" and applies it to the next game.
func (s *shell) configureClock(args []string) error {
	if len(args) > 2 {
		return errors.New("usage: clock <seconds> [increment]")
	}
	secs := make([]int, 2)
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			return fmt.Errorf("bad seconds %q", a)
		}
		secs[i] = n
	}
	allocated := time.Duration(secs[0]) * time.Second
	increment := time.Duration(secs[1]) * time.Second
	if err := s.sess.Configure(allocated, increment, s.sess.Coordinator.ThinkingTime()); err != nil {
		return err
	}
	s.showClock()
	return nil
}

func (s *shell) showPGN() {
	if rec := s.sess.LastArchived(); rec != nil && !s.sess.Coordinator.Snapshot().InProgress {
		s.out.Message(rec.PGN())
		return
	}
	snap := s.sess.Coordinator.Snapshot()
	now := time.Now()
	s.out.Message(archive.NewRecord(snap, snap.White.String(), snap.Black.String(), now, now).PGN())
}

// load replays "load <fen|start> [moves...]"; the fen may contain spaces, so moves
// follow a literal "moves" keyword when a fen is given.
func (s *shell) load(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: load start [moves...] | load <fen> moves [moves...]")
	}
	fen := ""
	var moves []string
	if strings.EqualFold(args[0], "start") {
		moves = args[1:]
	} else {
		idx := len(args)
		for i, a := range args {
			if strings.EqualFold(a, "moves") {
				idx = i
				break
			}
		}
		fen = strings.Join(args[:idx], " ")
		if idx < len(args) {
			moves = args[idx+1:]
		}
	}
	return s.sess.Coordinator.LoadHistory(fen, moves)
}

func (s *shell) listArchive(args []string) error {
	limit := 10
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad limit %q", args[0])
		}
		limit = n
	}
	recs, err := s.sess.Recent(s.ctx, limit)
	if err != nil {
		return err
	}
	s.out.Message(s.formatter.Recent(recs))
	return nil
}

func (s *shell) engine(args []string) error {
	if len(args) != 1 || (args[0] != "start" && args[0] != "restart") {
		return errors.New("usage: engine start")
	}
	if err := s.sess.StartEngine(s.ctx); err != nil {
		return err
	}
	s.out.Message("engine: " + s.sess.EnginePath())
	return nil
}

func (s *shell) prefs(args []string) error {
	store := s.sess.Prefs
	if len(args) == 0 {
		v := store.Values()
		s.out.Message(fmt.Sprintf("enginePath=%s\nengineThinkingTimeMs=%d\nloadPgnFolder=%s\nsavePgnFolder=%s\nfile=%s",
			v.EnginePath, v.EngineThinkingTimeMs, v.LoadPgnFolder, v.SavePgnFolder, store.Path()))
		return nil
	}
	switch args[0] {
	case "save":
		if err := store.Save(); err != nil {
			return err
		}
		s.out.Message("saved " + store.Path())
		s.applyPreferences()
		return nil
	case "set":
		if len(args) < 3 {
			return errors.New("usage: prefs set <key> <value>")
		}
		key, value := args[1], strings.Join(args[2:], " ")
		var setErr error
		store.Update(func(v *prefs.Values) {
			switch key {
			case "enginePath":
				v.EnginePath = value
			case "engineThinkingTimeMs":
				n, err := strconv.Atoi(value)
				if err != nil || n <= 0 {
					setErr = fmt.Errorf("engineThinkingTimeMs must be a positive integer")
					return
				}
				v.EngineThinkingTimeMs = n
			case "loadPgnFolder":
				v.LoadPgnFolder = value
			case "savePgnFolder":
				v.SavePgnFolder = value
			default:
				setErr = fmt.Errorf("unknown preference %q", key)
			}
		})
		if setErr == nil && key == "engineThinkingTimeMs" {
			s.applyPreferences()
		}
		return setErr
	default:
		return errors.New("usage: prefs [set <key> <value> | save]")
	}
}

// applyPreferences pushes the thinking time into the session. A running game keeps its
// own; "prefs save" after the game applies the stored value.
func (s *shell) applyPreferences() {
	switch err := s.sess.ApplyPreferences(); {
	case errors.Is(err, coordinator.ErrGameInProgress):
		s.out.Message("thinking time unchanged while a game runs; run 'prefs save' after it ends")
	case err != nil:
		s.out.Message("error: " + err.Error())
	}
}
