package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/linkgrab/linkgrab/internal/infrastructure"
	"github.com/linkgrab/linkgrab/pkg/logger"
	"github.com/linkgrab/linkgrab/pkg/metrics"
)

// DownloadEngine runs download sessions on a bounded worker pool
type DownloadEngine struct {
	fetcher     domain.Fetcher
	config      *domain.DownloadConfig
	notifier    *infrastructure.NotificationService
	multiLogger *logger.MultiLogger
	logger      *zap.Logger
	freeSpace   func(path string) (uint64, error)
}

// NewDownloadEngine creates a new download engine
func NewDownloadEngine(
	fetcher domain.Fetcher,
	config *domain.DownloadConfig,
	notifier *infrastructure.NotificationService,
	multiLogger *logger.MultiLogger,
	logger *zap.Logger,
) *DownloadEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadEngine{
		fetcher:     fetcher,
		config:      config,
		notifier:    notifier,
		multiLogger: multiLogger,
		logger:      logger,
		freeSpace:   infrastructure.FreeSpace,
	}
}

// Run downloads the session items into the destination directory. Item failures
// are recorded in the result and never abort the session. Cancelling ctx stops
// the session: no further item starts and the in-flight items are rolled back.
// The returned error is non-nil only when the session could not start.
func (e *DownloadEngine) Run(ctx context.Context, session *domain.Session, emit func(domain.ProgressEvent)) (*domain.SessionResult, error) {
	if emit == nil {
		emit = func(domain.ProgressEvent) {}
	}

	dir := session.DestinationDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, e.setupFailed(session, &domain.FilesystemError{Op: "create directory", Path: dir, Cause: err})
	}
	if err := e.checkFreeSpace(dir); err != nil {
		return nil, e.setupFailed(session, err)
	}

	workers := session.Workers
	if workers < 1 {
		workers = 1
	}
	total := len(session.Items)

	e.logger.Info("Starting download session",
		zap.String("session_id", session.ID),
		zap.String("destination", dir),
		zap.Int("items", total),
		zap.Int("workers", workers))
	if e.multiLogger != nil {
		e.multiLogger.LogDownloadEvent("session_started",
			zap.String("session_id", session.ID),
			zap.String("destination", dir),
			zap.Int("items", total),
			zap.Int("workers", workers))
	}

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	// stop is called by the first cancelled item so idle workers do not start new ones
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	outcomes := make([]*domain.Outcome, total)
	var (
		mu        sync.Mutex
		processed int
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, item := range session.Items {
		if runCtx.Err() != nil {
			break
		}
		i, item := i, item
		g.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}
			outcome := e.fetchOne(runCtx, item, dir)
			if outcome.Status == domain.OutcomeCancelled {
				stop()
			}

			mu.Lock()
			defer mu.Unlock()
			outcomes[i] = outcome
			processed++
			emit(domain.ProgressEvent{
				SessionID: session.ID,
				Message:   progressMessage(outcome),
				Processed: processed,
				Total:     total,
				Outcome:   outcome,
			})
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.SessionResult{SessionID: session.ID, Total: total}
	for _, o := range outcomes {
		if o != nil {
			result.Add(o)
		}
	}
	if result.Outcomes == nil {
		result.Outcomes = []*domain.Outcome{}
	}
	if ctx.Err() != nil && result.Attempted < total {
		result.Cancelled = true
	}

	e.logger.Info("Download session finished",
		zap.String("session_id", session.ID),
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Bool("cancelled", result.Cancelled))
	if e.multiLogger != nil {
		e.multiLogger.LogDownloadEvent("session_finished",
			zap.String("session_id", session.ID),
			zap.Int("total", result.Total),
			zap.Int("attempted", result.Attempted),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Bool("cancelled", result.Cancelled),
			zap.Int64("bytes", result.Bytes))
	}

	if result.Cancelled {
		e.notifier.NotifySessionCancelled(result)
	} else {
		e.notifier.NotifySessionCompleted(result)
	}

	return result, nil
}

// fetchOne downloads a single item and turns the fetch error into an outcome
func (e *DownloadEngine) fetchOne(ctx context.Context, item domain.DiscoveredFile, dir string) *domain.Outcome {
	start := time.Now()
	res, err := e.fetcher.Fetch(ctx, item, dir)
	outcome := &domain.Outcome{URL: item.URL, Duration: time.Since(start)}

	switch {
	case err == nil:
		outcome.Status = domain.OutcomeSuccess
		outcome.Path = res.Path
		outcome.Bytes = res.Bytes
	case domain.IsCancelled(err):
		outcome.Status = domain.OutcomeCancelled
		outcome.Error = err.Error()
	default:
		outcome.Status = domain.OutcomeFailed
		outcome.StatusCode = failureStatus(err)
		outcome.Error = err.Error()
	}

	metrics.DownloadItems.WithLabelValues(string(outcome.Status)).Inc()
	metrics.DownloadItemDuration.Observe(outcome.Duration.Seconds())
	metrics.DownloadBytes.Add(float64(outcome.Bytes))

	fields := []zap.Field{
		zap.String("url", item.URL),
		zap.String("status", string(outcome.Status)),
		zap.Duration("duration", outcome.Duration),
	}
	if outcome.Path != "" {
		fields = append(fields, zap.String("path", outcome.Path), zap.Int64("bytes", outcome.Bytes))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if e.multiLogger != nil {
		e.multiLogger.LogDownloadEvent("item_"+string(outcome.Status), fields...)
	}
	if outcome.Status == domain.OutcomeFailed {
		e.logger.Warn("Download failed", fields...)
	} else {
		e.logger.Debug("Download item finished", fields...)
	}

	return outcome
}

// setupFailed logs an error that aborts a session before any item starts
func (e *DownloadEngine) setupFailed(session *domain.Session, err error) error {
	if e.multiLogger != nil {
		e.multiLogger.LogAppError("Download session could not start",
			zap.String("session_id", session.ID),
			zap.String("destination", session.DestinationDir),
			zap.Error(err))
	} else {
		e.logger.Error("Download session could not start",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
	return err
}

// checkFreeSpace enforces download.min_free_bytes on the destination filesystem
func (e *DownloadEngine) checkFreeSpace(dir string) error {
	if e.config == nil || e.config.MinFreeBytes == 0 || e.freeSpace == nil {
		return nil
	}
	free, err := e.freeSpace(dir)
	if err != nil {
		e.logger.Warn("Could not determine free disk space",
			zap.String("path", dir),
			zap.Error(err))
		return nil
	}
	if free < e.config.MinFreeBytes {
		return &domain.FilesystemError{
			Op:    "check free space",
			Path:  dir,
			Cause: fmt.Errorf("%d bytes free, %d required", free, e.config.MinFreeBytes),
		}
	}
	return nil
}

// progressMessage renders the log line shown for a processed item
func progressMessage(o *domain.Outcome) string {
	switch o.Status {
	case domain.OutcomeSuccess:
		return "Downloaded: " + filepath.Base(o.Path)
	case domain.OutcomeCancelled:
		return "Cancelled: " + o.URL
	}
	if o.StatusCode > 0 {
		return fmt.Sprintf("Failed (HTTP %d): %s", o.StatusCode, o.URL)
	}
	return fmt.Sprintf("Failed: %s (%s)", o.URL, o.Error)
}

// failureStatus extracts the HTTP status of an item failure, or 0
func failureStatus(err error) int {
	var statusErr *domain.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// SessionRun is a download session executing in the background
type SessionRun struct {
	events chan domain.ProgressEvent
	cancel context.CancelFunc
	done   chan struct{}
	result *domain.SessionResult
	err    error
}

// Start runs the session in a new goroutine. Events is buffered for every item,
// so callers that only need the aggregate may call Wait without draining it.
func (e *DownloadEngine) Start(ctx context.Context, session *domain.Session) *SessionRun {
	ctx, cancel := context.WithCancel(ctx)
	run := &SessionRun{
		events: make(chan domain.ProgressEvent, len(session.Items)+1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(run.done)
		defer close(run.events)
		defer cancel()

		run.result, run.err = e.Run(ctx, session, func(ev domain.ProgressEvent) {
			run.events <- ev
		})
	}()

	return run
}

// Events returns the progress stream; it is closed when the session ends
func (r *SessionRun) Events() <-chan domain.ProgressEvent {
	return r.events
}

// Cancel requests cooperative cancellation
func (r *SessionRun) Cancel() {
	r.cancel()
}

// Done is closed when the session has finished
func (r *SessionRun) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the session finishes and returns its aggregate
func (r *SessionRun) Wait() (*domain.SessionResult, error) {
	<-r.done
	return r.result, r.err
}
