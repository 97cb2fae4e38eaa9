package termview

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-against-engine/internal/archive"
	"github.com/park285/chess-against-engine/internal/chess/coordinator"
	"github.com/park285/chess-against-engine/internal/chess/game"
)

const (
	boardFooter      = "   a b c d e f g h"
	recentTimeLayout = "2006-01-02 15:04"
)

// Formatter renders session state as plain terminal text.
type Formatter struct{}

func NewFormatter() *Formatter { return &Formatter{} }

// Board draws the displayed position with White at the bottom.
func (f *Formatter) Board(snap game.Snapshot) string {
	var sb strings.Builder
	placement := strings.Fields(snap.FEN)
	rows := []string{}
	if len(placement) > 0 {
		rows = strings.Split(placement[0], "/")
	}
	for i, row := range rows {
		sb.WriteString(fmt.Sprintf("%d  ", 8-i))
		cells := make([]string, 0, 8)
		for _, c := range row {
			if c >= '1' && c <= '8' {
				for n := 0; n < int(c-'0'); n++ {
					cells = append(cells, ".")
				}
				continue
			}
			cells = append(cells, string(c))
		}
		sb.WriteString(strings.Join(cells, " "))
		sb.WriteString("\n")
	}
	sb.WriteString(boardFooter)
	sb.WriteString("\n")
	sb.WriteString(f.Status(snap))
	return sb.String()
}

// Status is the one-line summary shown under the board.
func (f *Formatter) Status(snap game.Snapshot) string {
	parts := []string{}
	if snap.InProgress {
		parts = append(parts, fmt.Sprintf("%s to move", sideName(snap.Turn)))
		parts = append(parts, fmt.Sprintf("white=%s black=%s", snap.White, snap.Black))
	} else {
		parts = append(parts, formatOutcome(snap.Result, snap.Termination))
	}
	if snap.LastMove != nil {
		parts = append(parts, fmt.Sprintf("last %s%s", snap.LastMove.From, snap.LastMove.To))
	}
	if snap.Pending != nil {
		parts = append(parts, fmt.Sprintf("promotion %s%s pending (q/r/b/n)", snap.Pending.From, snap.Pending.To))
	}
	return strings.Join(parts, " | ")
}

// History lists the move text with history indexes; the selected record is bracketed.
func (f *Formatter) History(snap game.Snapshot) string {
	var sb strings.Builder
	for i, item := range snap.History {
		switch item.Kind {
		case game.HistoryMoveNumber:
			if item.Side == nchess.Black {
				sb.WriteString(fmt.Sprintf("%d... ", item.Number))
			} else {
				sb.WriteString(fmt.Sprintf("%d. ", item.Number))
			}
		case game.HistoryMove:
			text := fmt.Sprintf("%s(%d)", item.SAN, i)
			if i == snap.Selected {
				text = "[" + text + "]"
			}
			sb.WriteString(text)
			sb.WriteString(" ")
		case game.HistoryTermination:
			sb.WriteString(fmt.Sprintf("{%s} %s", item.Reason, item.Result))
		}
	}
	return strings.TrimSpace(sb.String())
}

// Event turns a coordinator event into a notice line. Position changes return "" since
// the caller redraws the board for them.
func (f *Formatter) Event(ev coordinator.Event) string {
	switch ev.Kind {
	case coordinator.EventEngineThinking:
		return fmt.Sprintf("engine thinking for %s...", sideName(ev.Side))
	case coordinator.EventScore:
		return fmt.Sprintf("eval %+.2f", ev.Score)
	case coordinator.EventGameOver:
		return formatOutcome(ev.Result, ev.Termination)
	case coordinator.EventPromotionPending:
		return "choose promotion piece: promote q|r|b|n (or cancel)"
	case coordinator.EventEngineUnavailable:
		if ev.Err != nil {
			return fmt.Sprintf("engine unavailable (%v); %s is now played by the human", ev.Err, sideName(ev.Side))
		}
		return fmt.Sprintf("engine unavailable; %s is now played by the human", sideName(ev.Side))
	default:
		return ""
	}
}

// Clock formats both remaining times, or "" when the game has no clock.
func (f *Formatter) Clock(white, black time.Duration, enabled bool) string {
	if !enabled {
		return ""
	}
	return fmt.Sprintf("clock white %s | black %s", formatClock(white), formatClock(black))
}

func (f *Formatter) Recent(records []archive.Record) string {
	if len(records) == 0 {
		return "no archived games"
	}
	var sb strings.Builder
	for i, rec := range records {
		sb.WriteString(fmt.Sprintf("%d. %s %s vs %s %s (%s, %d plies)",
			i+1, formatShortTime(rec.EndedAt), rec.White, rec.Black, rec.Result, rec.Termination, len(rec.MovesUCI)))
		if rec.ECOCode != "" {
			sb.WriteString(fmt.Sprintf(" %s %s", rec.ECOCode, rec.ECOTitle))
		}
		sb.WriteString(fmt.Sprintf("\n   id %s", rec.ID))
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (f *Formatter) Help() string {
	lines := []string{
		"new [white human|engine] [black human|engine] [fen ...]  start a game",
		"move e2e4 | e2e4                 play a move (e7e8q promotes directly)",
		"promote q|r|b|n, cancel          finish or abandon a pending promotion",
		"white|black human|engine         hand a side over",
		"stop                             abort the game",
		"prev, next, first, last, goto N  navigate a finished game",
		"board, fen, history, pgn, clock  show state",
		"clock <sec> [inc]                set the time control for the next game (0 = none)",
		"load <fen|start> [moves...]      replay a game for navigation",
		"archive [N], replay <id>         list or replay archived games",
		"engine start                     (re)start the engine",
		"prefs, prefs set <key> <value>, prefs save",
		"quit",
	}
	return strings.Join(lines, "\n")
}

func formatOutcome(result game.Result, reason game.Termination) string {
	switch result {
	case game.ResultWhiteWins:
		return fmt.Sprintf("white wins by %s (1-0)", reasonText(reason))
	case game.ResultBlackWins:
		return fmt.Sprintf("black wins by %s (0-1)", reasonText(reason))
	case game.ResultDraw:
		return fmt.Sprintf("draw by %s (1/2-1/2)", reasonText(reason))
	}
	if reason == game.TerminationAborted {
		return "game aborted"
	}
	return "no game in progress"
}

func reasonText(reason game.Termination) string {
	return strings.ReplaceAll(reason.String(), "_", " ")
}

func sideName(side nchess.Color) string {
	if side == nchess.Black {
		return "black"
	}
	return "white"
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(100 * time.Millisecond)
	minutes := int(d / time.Minute)
	seconds := d % time.Minute
	return fmt.Sprintf("%d:%04.1f", minutes, seconds.Seconds())
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(recentTimeLayout)
}
