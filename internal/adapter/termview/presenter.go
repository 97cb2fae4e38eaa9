package termview

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/park285/chess-against-engine/internal/chess/coordinator"
	"github.com/park285/chess-against-engine/internal/chess/game"
)

// Presenter writes formatted output without coupling to the command loop. Engine and
// clock events arrive on other goroutines, so writes are serialised.
type Presenter struct {
	mu        sync.Mutex
	out       io.Writer
	formatter *Formatter
	snapshot  func() game.Snapshot
}

func NewPresenter(out io.Writer, formatter *Formatter, snapshot func() game.Snapshot) *Presenter {
	if formatter == nil {
		formatter = NewFormatter()
	}
	return &Presenter{out: out, formatter: formatter, snapshot: snapshot}
}

// Message prints text followed by a newline. Blank text is skipped.
func (p *Presenter) Message(text string) {
	if p == nil || strings.TrimSpace(text) == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, text)
}

func (p *Presenter) Board() {
	if p == nil || p.snapshot == nil {
		return
	}
	p.Message(p.formatter.Board(p.snapshot()))
}

// HandleEvent is the coordinator listener of the terminal front end.
func (p *Presenter) HandleEvent(ev coordinator.Event) {
	if ev.Kind == coordinator.EventPositionChanged {
		if ev.Move != "" {
			p.Message(fmt.Sprintf("%s played %s", sideName(ev.Side.Other()), ev.Move))
		}
		p.Board()
		return
	}
	p.Message(p.formatter.Event(ev))
}
