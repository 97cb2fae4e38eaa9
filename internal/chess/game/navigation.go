package game

import (
	"go.uber.org/zap"
)

// Navigation is only allowed once the game is over; moving the cursor during a live game
// would desync the engine from the current line. Every step loads the stored position of
// a move record instead of replaying moves.

func (m *Manager) GotoPrevious() bool {
	if m.inProgress || m.selected < 0 {
		return false
	}
	for i := m.selected - 1; i >= 0; i-- {
		if m.history[i].Kind == HistoryMove {
			return m.selectRecord(i)
		}
	}
	return m.selectStart()
}

func (m *Manager) GotoNext() bool {
	if m.inProgress {
		return false
	}
	for i := m.selected + 1; i < len(m.history); i++ {
		if m.history[i].Kind == HistoryMove {
			return m.selectRecord(i)
		}
	}
	return false
}

func (m *Manager) GotoFirst() bool {
	if m.inProgress {
		return false
	}
	return m.selectStart()
}

func (m *Manager) GotoLast() bool {
	if m.inProgress {
		return false
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].Kind == HistoryMove {
			return m.selectRecord(i)
		}
	}
	return true
}

// RequestPosition jumps to the move record at history index.
func (m *Manager) RequestPosition(index int) bool {
	if m.inProgress || index < 0 || index >= len(m.history) {
		return false
	}
	if m.history[index].Kind != HistoryMove {
		return false
	}
	return m.selectRecord(index)
}

func (m *Manager) selectRecord(index int) bool {
	item := m.history[index]
	game, err := newGameFromFEN(item.FEN)
	if err != nil {
		m.logger.Error("history_position_invalid", zap.Int("index", index), zap.Error(err))
		return false
	}
	m.game = game
	m.selected = index
	m.lastMove = &LastMove{From: item.From, To: item.To}
	return true
}

func (m *Manager) selectStart() bool {
	game, err := newGameFromFEN(m.startFEN)
	if err != nil {
		m.logger.Error("start_position_invalid", zap.Error(err))
		return false
	}
	m.game = game
	m.selected = -1
	m.lastMove = nil
	return true
}

func (m *Manager) selectLastMoveRecord() {
	m.selected = -1
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].Kind == HistoryMove {
			m.selected = i
			return
		}
	}
}
