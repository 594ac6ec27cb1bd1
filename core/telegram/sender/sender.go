// Package sender runs outbound Telegram calls on a bounded worker pool with
// retries, so slow API responses never block update handling.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"groupbot/core/logger"
	"groupbot/core/telegram/netutil"
)

var (
	// ErrClosed is returned when Push is called after Close.
	ErrClosed = errors.New("sender: closed")
	// ErrFull indicates the queue is saturated and the job was dropped.
	ErrFull = errors.New("sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options tunes the outbound sender.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the total time spent on one job including retries.
	MaxDuration time.Duration
}

type job struct {
	ctx    context.Context
	action string
	run    func() error
}

// Sender executes outbound Telegram calls asynchronously.
type Sender struct {
	opts Options
	jobs chan job
	// mu orders Push sends against Close so a racing Push cannot hit the
	// closed jobs channel.
	mu     sync.Mutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// New starts a sender; zeroed options get working defaults.
func New(opts Options) *Sender {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	s := &Sender{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}
	s.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go s.worker()
	}
	return s
}

// Push schedules run for asynchronous execution. The closure must be
// idempotent if retries are desired.
func (s *Sender) Push(ctx context.Context, action string, run func() error) error {
	if run == nil {
		return errors.New("sender: nil run function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	select {
	case s.jobs <- job{ctx: ctx, action: action, run: run}:
		return nil
	default:
		return ErrFull
	}
}

// ErrorCount returns the number of jobs that exhausted their retries.
func (s *Sender) ErrorCount() uint64 {
	return s.errs.Load()
}

// Close stops accepting jobs and drains the queue.
func (s *Sender) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.jobs)
		s.mu.Unlock()
		s.wg.Wait()
	})
}

func (s *Sender) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		s.handle(j)
	}
}

func (s *Sender) handle(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, s.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := s.opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := deadlineCtx.Err(); err != nil {
			lastErr = err
			break
		}

		err := j.run()
		if err == nil {
			s.logOutcome(ctx, j, slog.LevelDebug, "send.success", attempt, time.Since(start), nil)
			return
		}
		lastErr = err
		if !retryable(err) || attempt == attempts {
			break
		}

		timer := time.NewTimer(s.opts.RetryBackoff * time.Duration(attempt))
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			lastErr = deadlineCtx.Err()
			attempt = attempts
		case <-timer.C:
		}
	}

	s.errs.Add(1)
	s.logOutcome(ctx, j, slog.LevelError, "send.fail", attempts, time.Since(start), lastErr)
}

func (s *Sender) logOutcome(ctx context.Context, j job, level slog.Level, event string, attempt int, elapsed time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("action", j.action),
		slog.Int64("elapsed_ms", logger.RoundMS(elapsed).Milliseconds()),
	}
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempts", attempt))
	}
	if updateID := logger.UpdateIDFrom(ctx); updateID != 0 {
		attrs = append(attrs, slog.Int("update_id", updateID))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	if userID := logger.UserIDFrom(ctx); userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	if handler := logger.HandlerFrom(ctx); handler != "" {
		attrs = append(attrs, slog.String("handler", handler))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", redactToken(err)),
			slog.String("error_kind", classify(err)),
		)
	}
	logger.Event(ctx, "tg.sender", level, event, attrs...)
}

// retryable treats Telegram flood control and server errors as transient on
// top of the network-level classification.
func retryable(err error) bool {
	if netutil.ShouldRetry(err) {
		return true
	}
	status := httpStatus(err)
	return status == http.StatusTooManyRequests || status >= 500
}

func classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if netutil.ShouldRetry(err) {
		return "network"
	}
	switch status := httpStatus(err); {
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

func httpStatus(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}

	// telebot formats unknown API errors as "... (code)".
	msg := err.Error()
	lastOpen, lastClose := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if lastOpen >= 0 && lastClose > lastOpen+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[lastOpen+1 : lastClose])); convErr == nil {
			return code
		}
	}
	return 0
}

// redactToken keeps bot tokens out of log lines.
func redactToken(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
