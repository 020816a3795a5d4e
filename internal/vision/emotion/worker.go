// Package emotion classifies face crops by talking to a python DeepFace
// worker over its stdin and stdout.
package emotion

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"sessionwatch/internal/logging"
)

// ErrWorkerStopped is returned once the worker process is gone.
var ErrWorkerStopped = errors.New("emotion worker stopped")

const (
	defaultTimeout = 2 * time.Second
	stopGrace      = 2 * time.Second
)

// Config describes how to launch the worker process.
type Config struct {
	Python string
	Script string
	// Timeout bounds one request round trip. Defaults to two seconds.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Worker is a Classifier backed by one worker process. Requests are
// serialised; responses are matched to requests by sequence number.
type Worker struct {
	mu        sync.Mutex
	stdin     io.WriteCloser
	responses chan Response
	done      chan struct{}
	seq       uint64
	timeout   time.Duration
	logger    *slog.Logger

	cmd      *exec.Cmd
	exited   chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
}

// Start launches the worker process.
func Start(ctx context.Context, cfg Config) (*Worker, error) {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Script == "" {
		return nil, errors.New("emotion worker script is required")
	}
	logger := logging.NewComponentLogger(cfg.Logger, "emotion")

	cmd := exec.CommandContext(ctx, cfg.Python, "-u", cfg.Script)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start emotion worker: %w", err)
	}
	logger.Info("emotion worker spawned", logging.Args(
		logging.Int("pid", cmd.Process.Pid),
		logging.String("script", cfg.Script),
	)...)

	worker := newWorker(stdin, stdout, cfg.Timeout, logger)
	worker.cmd = cmd
	worker.exited = make(chan struct{})
	go worker.logStderr(stderr)
	go worker.waitProcess(ctx)
	return worker, nil
}

func newWorker(stdin io.WriteCloser, stdout io.Reader, timeout time.Duration, logger *slog.Logger) *Worker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	worker := &Worker{
		stdin:     stdin,
		responses: make(chan Response, 4),
		done:      make(chan struct{}),
		timeout:   timeout,
		logger:    logger,
	}
	go worker.readResponses(stdout)
	return worker
}

// Classify sends face to the worker and returns the dominant emotion label.
func (worker *Worker) Classify(ctx context.Context, face image.Image) (string, error) {
	worker.mu.Lock()
	defer worker.mu.Unlock()

	select {
	case <-worker.done:
		return "", ErrWorkerStopped
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, worker.timeout)
	defer cancel()

	worker.seq++
	seq := worker.seq
	data, width, height := PackRGB(face)
	if err := worker.send(ctx, Request{Seq: seq, Width: width, Height: height, Image: data}); err != nil {
		return "", err
	}

	for {
		select {
		case response, ok := <-worker.responses:
			if !ok {
				return "", ErrWorkerStopped
			}
			if response.Seq != seq {
				worker.logger.Debug("discarding stale worker response", logging.Args(
					logging.Uint64("seq", response.Seq),
					logging.Uint64("want", seq),
				)...)
				continue
			}
			return response.Dominant()
		case <-ctx.Done():
			return "", fmt.Errorf("await worker response: %w", ctx.Err())
		}
	}
}

// send writes one request. A write that cannot finish in time leaves the
// stream in an unknown state, so the worker is stopped.
func (worker *Worker) send(ctx context.Context, request Request) error {
	written := make(chan error, 1)
	go func() {
		written <- WriteMessage(worker.stdin, request)
	}()
	select {
	case err := <-written:
		if err != nil {
			worker.Stop()
			return fmt.Errorf("%w: %v", ErrWorkerStopped, err)
		}
		return nil
	case <-ctx.Done():
		worker.logger.Warn("emotion worker write timed out, stopping worker")
		go worker.Stop()
		return fmt.Errorf("write to worker: %w", ctx.Err())
	}
}

func (worker *Worker) readResponses(stdout io.Reader) {
	defer close(worker.responses)
	for {
		var response Response
		if err := ReadMessage(stdout, &response); err != nil {
			if !errors.Is(err, io.EOF) {
				worker.logger.Warn("emotion worker stream failed", logging.Args(logging.Error(err))...)
			}
			worker.markDone()
			return
		}
		select {
		case worker.responses <- response:
		case <-worker.done:
			return
		}
	}
}

func (worker *Worker) logStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"), strings.HasPrefix(line, "Traceback"):
			worker.logger.Error("emotion worker error", logging.Args(logging.String("log", line))...)
		case strings.Contains(line, "[WARNING]"):
			worker.logger.Warn("emotion worker warning", logging.Args(logging.String("log", line))...)
		default:
			worker.logger.Debug("emotion worker log", logging.Args(logging.String("log", line))...)
		}
	}
}

func (worker *Worker) waitProcess(ctx context.Context) {
	defer close(worker.exited)
	err := worker.cmd.Wait()
	worker.markDone()
	if err != nil && ctx.Err() == nil {
		worker.logger.Warn("emotion worker exited", logging.Args(logging.Error(err))...)
		return
	}
	worker.logger.Debug("emotion worker exited")
}

func (worker *Worker) markDone() {
	worker.doneOnce.Do(func() { close(worker.done) })
}

// Done is closed once the worker can no longer serve requests.
func (worker *Worker) Done() <-chan struct{} {
	return worker.done
}

// Stop closes the worker's stdin and waits briefly for the process to exit
// before killing it. It is safe to call more than once.
func (worker *Worker) Stop() {
	worker.stopOnce.Do(func() {
		if err := worker.stdin.Close(); err != nil {
			worker.logger.Debug("close worker stdin", logging.Args(logging.Error(err))...)
		}
		if worker.cmd == nil || worker.exited == nil {
			worker.markDone()
			return
		}
		select {
		case <-worker.exited:
		case <-time.After(stopGrace):
			worker.logger.Warn("emotion worker did not exit, killing it")
			if err := worker.cmd.Process.Kill(); err != nil {
				worker.logger.Debug("kill worker", logging.Args(logging.Error(err))...)
			}
			<-worker.exited
		}
	})
}
