package uci

import (
	"strconv"
	"strings"
)

// Outbound commands without arguments.
const (
	CmdUCI     = "uci"
	CmdIsReady = "isready"
	CmdStop    = "stop"
)

// ClockLimits feeds the remaining times and increments of both sides to "go".
type ClockLimits struct {
	WhiteMillis    int
	BlackMillis    int
	WhiteIncMillis int
	BlackIncMillis int
}

// PositionCommand builds "position fen <fen>" with optional trailing moves.
func PositionCommand(fen string, moves ...string) string {
	var sb strings.Builder
	sb.WriteString("position fen ")
	sb.WriteString(strings.Join(strings.Fields(fen), " "))
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return sb.String()
}

func GoMoveTime(ms int) string {
	if ms < 1 {
		ms = 1
	}
	return "go movetime " + strconv.Itoa(ms)
}

func GoClock(l ClockLimits) string {
	args := []string{
		"go",
		"wtime", strconv.Itoa(max(l.WhiteMillis, 0)),
		"btime", strconv.Itoa(max(l.BlackMillis, 0)),
		"winc", strconv.Itoa(max(l.WhiteIncMillis, 0)),
		"binc", strconv.Itoa(max(l.BlackIncMillis, 0)),
	}
	return strings.Join(args, " ")
}

type ResponseKind int

const (
	ResponseOther ResponseKind = iota
	ResponseBestMove
	ResponseScore
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseBestMove:
		return "bestmove"
	case ResponseScore:
		return "score"
	default:
		return "other"
	}
}

// Response is the typed form of one engine output line.
type Response struct {
	Kind ResponseKind
	// Move is the coordinate move of a bestmove line. Empty when the engine
	// reports no move ("(none)", "0000" or nothing at all).
	Move string
	// Pawns is the centipawn score divided by 100, relative to the side to move.
	Pawns float64
	Line  string
}

const scoreToken = "score cp "

// Classify maps one line to exactly one response kind. Lines are never combined.
func Classify(line string) Response {
	line = strings.TrimSpace(line)
	res := Response{Kind: ResponseOther, Line: line}

	if strings.HasPrefix(line, "bestmove") {
		parts := strings.Fields(line)
		if parts[0] != "bestmove" {
			return res
		}
		// 수 없는 bestmove도 대기 중인 탐색을 닫아야 함
		res.Kind = ResponseBestMove
		if len(parts) >= 2 && parts[1] != "(none)" && parts[1] != "0000" {
			res.Move = parts[1]
		}
		return res
	}

	idx := strings.Index(line, scoreToken)
	if idx < 0 {
		return res
	}
	rest := strings.Fields(line[idx+len(scoreToken):])
	if len(rest) == 0 {
		return res
	}
	cp, err := strconv.Atoi(rest[0])
	if err != nil {
		return res
	}
	res.Kind = ResponseScore
	res.Pawns = float64(cp) / 100
	return res
}
