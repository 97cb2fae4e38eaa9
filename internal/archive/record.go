package archive

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/google/uuid"
	"github.com/park285/chess-against-engine/internal/chess/game"
)

// Record is a finished game as stored in Redis and Postgres.
type Record struct {
	ID          string    `json:"id"`
	StartFEN    string    `json:"start_fen"`
	FinalFEN    string    `json:"final_fen"`
	White       string    `json:"white"`
	Black       string    `json:"black"`
	MovesUCI    []string  `json:"moves_uci"`
	MovesSAN    []string  `json:"moves_san"`
	Result      string    `json:"result"`
	Termination string    `json:"termination"`
	ECOCode     string    `json:"eco_code,omitempty"`
	ECOTitle    string    `json:"eco_title,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// NewRecord builds a record from a session snapshot. white and black name who played
// each side, since the snapshot of a finished game no longer carries player types.
func NewRecord(snap game.Snapshot, white, black string, startedAt, endedAt time.Time) Record {
	rec := Record{
		ID:          uuid.NewString(),
		StartFEN:    snap.StartFEN,
		FinalFEN:    snap.StartFEN,
		White:       white,
		Black:       black,
		Result:      string(snap.Result),
		Termination: snap.Termination.String(),
		StartedAt:   startedAt.UTC(),
		EndedAt:     endedAt.UTC(),
	}
	for _, item := range snap.MoveRecords() {
		rec.MovesUCI = append(rec.MovesUCI, item.UCI())
		rec.MovesSAN = append(rec.MovesSAN, item.SAN)
		rec.FinalFEN = item.FEN
	}
	if rec.Result == "" {
		rec.Result = string(game.ResultOngoing)
	}
	rec.ECOCode, rec.ECOTitle = ecoLabel(rec.StartFEN, rec.MovesUCI)
	return rec
}

// ecoLabel names the opening of games that began from the standard position.
func ecoLabel(startFEN string, moves []string) (string, string) {
	if game.RepetitionKey(startFEN) != game.RepetitionKey(game.StandardFEN) || len(moves) == 0 {
		return "", ""
	}
	g := nchess.NewGame()
	for _, mv := range moves {
		if err := g.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return "", ""
		}
	}
	book := opening.NewBookECO()
	if book == nil {
		return "", ""
	}
	if eco := book.Find(g.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

// PGN renders the record with a seven-tag roster plus FEN and ECO tags when known.
func (r Record) PGN() string {
	var b strings.Builder
	date := r.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Casual game\"]\n")
	b.WriteString("[Site \"?\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString("[Round \"-\"]\n")
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(r.White)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(r.Black)))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n", r.Result))
	if game.RepetitionKey(r.StartFEN) != game.RepetitionKey(game.StandardFEN) {
		b.WriteString("[SetUp \"1\"]\n")
		b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", r.StartFEN))
	}
	if r.ECOCode != "" {
		b.WriteString(fmt.Sprintf("[ECO \"%s\"]\n", r.ECOCode))
	}
	if r.Termination != "" && r.Termination != game.TerminationNone.String() {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(r.Termination)))
	}
	b.WriteString("\n")

	number, blackFirst := startNumbering(r.StartFEN)
	for i, san := range r.MovesSAN {
		whiteToMove := (i%2 == 0) != blackFirst
		switch {
		case i == 0 && blackFirst:
			b.WriteString(fmt.Sprintf("%d... ", number))
		case whiteToMove:
			b.WriteString(fmt.Sprintf("%d. ", number))
		}
		b.WriteString(strings.TrimSpace(san))
		b.WriteString(" ")
		if !whiteToMove {
			number++
		}
	}
	b.WriteString(r.Result)
	return b.String()
}

func startNumbering(fen string) (int, bool) {
	fields := strings.Fields(fen)
	number := 1
	if len(fields) == 6 {
		fmt.Sscanf(fields[5], "%d", &number)
	}
	if number < 1 {
		number = 1
	}
	return number, len(fields) > 1 && fields[1] == "b"
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
