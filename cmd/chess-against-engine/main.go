package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/chzyer/readline"
	"github.com/park285/chess-against-engine/internal/adapter/termview"
	appcfg "github.com/park285/chess-against-engine/internal/config"
	"github.com/park285/chess-against-engine/internal/obslog"
	"github.com/park285/chess-against-engine/internal/session"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chess-against-engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := obslog.InitFromEnv(); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := session.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "chess> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	presenter := termview.NewPresenter(rl.Stdout(), termview.NewFormatter(), sess.Coordinator.Snapshot)
	sess.SetListener(presenter.HandleEvent)
	shell := newShell(ctx, sess, presenter)

	presenter.Message("chess against engine, type 'help' for commands")
	if sess.Engine.Running() {
		presenter.Message("engine: " + sess.EnginePath())
	} else {
		presenter.Message("no engine running; only human sides are available")
	}

	// 시그널 수신 시 readline 블로킹을 해제한다
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		rl.SetPrompt(shell.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err == io.EOF || ctx.Err() != nil {
			break
		}
		if err != nil {
			logger.Warn("readline_failed", zap.Error(err))
			break
		}
		if quit := shell.execute(line); quit {
			break
		}
	}
	logger.Info("session_closed", zap.String("session_id", sess.ID))
	return nil
}

func historyFile() string {
	p, err := xdg.StateFile(filepath.Join("chess-against-engine", "history"))
	if err != nil {
		return ""
	}
	return p
}
