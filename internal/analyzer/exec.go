package analyzer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"fluxscp/internal/config"
	"fluxscp/internal/logging"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures an Exec capturer.
type Option func(*Exec)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(e *Exec) {
		if executor != nil {
			e.exec = executor
		}
	}
}

// WithWorkDir sets the parent directory for per-track export scratch dirs.
func WithWorkDir(dir string) Option {
	return func(e *Exec) {
		e.workDir = dir
	}
}

// Exec captures tracks by running the analyzer export command.
type Exec struct {
	binary  string
	args    []string
	pattern string
	timeout time.Duration
	workDir string
	exec    Executor
	logger  *slog.Logger
}

// NewExec constructs an Exec capturer from the analyzer settings.
func NewExec(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Exec, error) {
	binary := strings.TrimSpace(cfg.Analyzer.Command)
	if binary == "" {
		return nil, errors.New("analyzer command required")
	}
	e := &Exec{
		binary:  binary,
		args:    append([]string(nil), cfg.Analyzer.Args...),
		pattern: cfg.Analyzer.FilePattern,
		timeout: time.Duration(cfg.Analyzer.TimeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logger, "analyzer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Capture runs the export command for one track and returns its output file.
// {head} expands to the drive side, {track} to the physical index.
func (e *Exec) Capture(ctx context.Context, track Track) ([]byte, error) {
	cylinder, side := track.Cylinder, track.Side
	workDir, err := os.MkdirTemp(e.workDir, "fluxscp-capture-")
	if err != nil {
		return nil, fmt.Errorf("analyzer: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	output := filepath.Join(workDir, FileName(e.pattern, cylinder, side))
	args := expandArgs(e.args, map[string]string{
		"{output}":   output,
		"{cylinder}": strconv.Itoa(cylinder),
		"{head}":     strconv.Itoa(side),
		"{track}":    strconv.FormatUint(uint64(track.Physical), 10),
	})

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	logger := e.logger.With(logging.Args(logging.TrackAttrs(cylinder, side, track.Physical)...)...)
	logger.DebugContext(ctx, "running analyzer export",
		logging.String("command", e.binary),
		logging.String("args", strings.Join(args, " ")),
	)
	forward := func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			logger.DebugContext(ctx, "analyzer output", logging.String("line", line))
		}
	}
	if err := e.exec.Run(runCtx, e.binary, args, forward); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("analyzer: export timed out after %s: %w", e.timeout, err)
		}
		return nil, fmt.Errorf("analyzer: export c%02d h%d: %w", cylinder, side, err)
	}

	data, err := os.ReadFile(output)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s was not written", ErrNoCapture, filepath.Base(output))
	}
	if err != nil {
		return nil, fmt.Errorf("analyzer: read export: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoCapture, filepath.Base(output))
	}
	return data, nil
}

func expandArgs(args []string, values map[string]string) []string {
	pairs := make([]string, 0, len(values)*2)
	for placeholder, value := range values {
		pairs = append(pairs, placeholder, value)
	}
	replacer := strings.NewReplacer(pairs...)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// stderrTailLines bounds the stderr attached to a failed export.
const stderrTailLines = 20

// lineTail keeps the most recent lines written to it.
type lineTail struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newLineTail(n int) *lineTail {
	return &lineTail{lines: make([]string, n)}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return strings.Join(t.lines[:t.next], "\n")
	}
	ordered := append(append([]string(nil), t.lines[t.next:]...), t.lines[:t.next]...)
	return strings.Join(ordered, "\n")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg      sync.WaitGroup
		scanErr error
		once    sync.Once
		tail    = newLineTail(stderrTailLines)
	)

	scan := func(r io.Reader, keep bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if onOutput != nil {
				onOutput(line)
			}
			if keep {
				tail.add(line)
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, false)
	go scan(stderr, true)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(tail.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
