package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrEngineSpawn      = errors.New("engine spawn failed")
	ErrEngineNotRunning = errors.New("engine not running")
)

const defaultStopGrace = 50 * time.Millisecond

// Channel owns one engine subprocess and its standard streams. Stdout lines are handed to
// the line handler from a reader goroutine; stderr lines are only logged.
type Channel struct {
	logger *zap.Logger
	onLine func(string)
	grace  time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writer  *bufio.Writer
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	writeMu sync.Mutex
}

func NewChannel(logger *zap.Logger, onLine func(line string)) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	close(done)
	return &Channel{
		logger: logger,
		onLine: onLine,
		grace:  defaultStopGrace,
		done:   done,
	}
}

// Start spawns the executable at path. An empty path or a failed spawn returns an error
// wrapping ErrEngineSpawn and leaves no process behind. Cancelling ctx stops the engine.
func (c *Channel) Start(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: empty engine path", ErrEngineSpawn)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("%w: engine already running", ErrEngineSpawn)
	}

	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: create stdin pipe: %v", ErrEngineSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("%w: create stdout pipe: %v", ErrEngineSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("%w: create stderr pipe: %v", ErrEngineSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("%w: %v", ErrEngineSpawn, err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cmd = cmd
	c.stdin = stdin
	c.writer = bufio.NewWriter(stdin)
	c.cancel = cancel
	c.done = done
	c.running = true

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		c.readLines(readCtx, stdout, c.deliver)
	}()
	go func() {
		defer readers.Done()
		c.readLines(readCtx, stderr, func(line string) {
			c.logger.Debug("engine_stderr", zap.String("line", line))
		})
	}()
	go func() {
		readers.Wait()
		err := cmd.Wait()
		c.logger.Info("engine_exited", zap.String("path", path), zap.Error(err))
		c.release(done)
		close(done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-done:
		}
	}()

	c.logger.Info("engine_started", zap.String("path", path), zap.Int("pid", cmd.Process.Pid))
	return nil
}

// release drops the handles of a process that exited on its own.
func (c *Channel) release(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.done != done {
		return
	}
	c.running = false
	c.cancel()
	c.stdin.Close()
	c.cmd, c.stdin, c.writer, c.cancel = nil, nil, nil, nil
}

func (c *Channel) deliver(line string) {
	if c.onLine != nil {
		c.onLine(line)
	}
}

// readLines ends silently on EOF, a closed pipe or cancellation.
func (c *Channel) readLines(ctx context.Context, r io.Reader, handle func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			continue
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		handle(line)
	}
}

// Send writes one line and flushes it.
func (c *Channel) Send(line string) error {
	c.mu.Lock()
	running, writer := c.running, c.writer
	c.mu.Unlock()
	if !running {
		return ErrEngineNotRunning
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	line = strings.TrimRight(line, "\n")
	if _, err := writer.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %q: %w", line, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush %q: %w", line, err)
	}
	c.logger.Debug("engine_command", zap.String("cmd", line))
	return nil
}

// Stop cancels the readers, closes stdin, waits a short grace period and kills the process
// if it is still alive. Safe to call repeatedly and concurrently.
func (c *Channel) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cmd, stdin, cancel, done := c.cmd, c.stdin, c.cancel, c.done
	c.cmd, c.stdin, c.writer, c.cancel = nil, nil, nil, nil
	c.mu.Unlock()

	cancel()
	c.writeMu.Lock()
	stdin.Close()
	c.writeMu.Unlock()

	select {
	case <-done:
		return
	case <-time.After(c.grace):
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.logger.Warn("engine_kill_failed", zap.Error(err))
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		c.logger.Warn("engine_exit_timeout")
	}
}

// Done is closed once the current process has exited. It is already closed while no
// process runs.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Channel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
