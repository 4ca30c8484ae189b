package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/linkgrab/linkgrab/internal/infrastructure"
	"github.com/linkgrab/linkgrab/pkg/logger"
	"github.com/linkgrab/linkgrab/pkg/metrics"
)

// DiscoveryService runs page discoveries against the category table
type DiscoveryService struct {
	discoverer      domain.Discoverer
	table           *domain.CategoryTable
	defaultCategory string
	notifier        *infrastructure.NotificationService
	multiLogger     *logger.MultiLogger
	logger          *zap.Logger
	flight          singleflight.Group
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(
	discoverer domain.Discoverer,
	table *domain.CategoryTable,
	defaultCategory string,
	notifier *infrastructure.NotificationService,
	multiLogger *logger.MultiLogger,
	logger *zap.Logger,
) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryService{
		discoverer:      discoverer,
		table:           table,
		defaultCategory: defaultCategory,
		notifier:        notifier,
		multiLogger:     multiLogger,
		logger:          logger,
	}
}

// Table returns the category table used for classification
func (s *DiscoveryService) Table() *domain.CategoryTable {
	return s.table
}

// DefaultCategory returns the category used when a request names none
func (s *DiscoveryService) DefaultCategory() string {
	return s.defaultCategory
}

// Categories returns the category rows in order followed by the AllFileTypes entry
func (s *DiscoveryService) Categories() []domain.Category {
	cats := s.table.Categories()
	return append(cats, domain.Category{Name: domain.AllFileTypes, Extensions: []string{}})
}

// ResolveCategory maps an empty name to the default category and rejects unknown ones
func (s *DiscoveryService) ResolveCategory(category string) (string, error) {
	if category == "" {
		category = s.defaultCategory
	}
	if !s.table.Has(category) {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	return category, nil
}

// Discover fetches pageURL and returns every candidate file with Selected preset
// for category. Events are passed to emit as they happen; emit may be nil.
func (s *DiscoveryService) Discover(ctx context.Context, pageURL, category string, emit func(domain.DiscoveryEvent)) (*domain.DiscoveryResult, error) {
	category, err := s.ResolveCategory(category)
	if err != nil {
		return nil, err
	}
	if emit == nil {
		emit = func(domain.DiscoveryEvent) {}
	}

	start := time.Now()
	result, err := s.discoverer.Discover(ctx, pageURL, category, emit)
	metrics.DiscoveryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "failed"
		if domain.IsCancelled(err) || errors.Is(err, context.Canceled) {
			outcome = "cancelled"
		}
		metrics.DiscoveryRuns.WithLabelValues(outcome).Inc()

		emit(domain.DiscoveryEvent{Kind: domain.DiscoveryFailed, Message: "Error: " + err.Error()})
		s.logger.Warn("Discovery failed",
			zap.String("url", pageURL),
			zap.String("outcome", outcome),
			zap.Error(err))
		if s.multiLogger != nil {
			s.multiLogger.LogDiscoveryEvent("discovery_failed",
				zap.String("url", pageURL),
				zap.String("category", category),
				zap.String("outcome", outcome),
				zap.Error(err))
		}
		if outcome == "failed" {
			s.notifier.NotifyDiscoveryFailed(pageURL, err)
		}
		return nil, err
	}

	metrics.DiscoveryRuns.WithLabelValues("success").Inc()
	metrics.DiscoveredFiles.Add(float64(len(result.Files)))

	if s.multiLogger != nil {
		s.multiLogger.LogDiscoveryEvent("discovery_completed",
			zap.String("url", pageURL),
			zap.String("final_url", result.Page.FinalURL),
			zap.String("category", category),
			zap.Int("status", result.Page.StatusCode),
			zap.Int("files", len(result.Files)),
			zap.Int("selected", len(domain.SelectedFiles(result.Files))),
			zap.Duration("duration", time.Since(start)))
	}
	s.notifier.NotifyDiscoveryCompleted(pageURL, len(result.Files))

	return result, nil
}

// DiscoverShared is Discover without events; identical concurrent requests share
// one page fetch. Each caller receives its own copy of the result.
func (s *DiscoveryService) DiscoverShared(ctx context.Context, pageURL, category string) (*domain.DiscoveryResult, error) {
	category, err := s.ResolveCategory(category)
	if err != nil {
		return nil, err
	}

	// the shared fetch must outlive any single caller giving up
	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(pageURL+"|"+category, func() (interface{}, error) {
		return s.Discover(shared, pageURL, category, nil)
	})

	select {
	case <-ctx.Done():
		return nil, &domain.DiscoveryError{URL: pageURL, Cause: fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.DiscoveryResult).Clone(), nil
	}
}

// DiscoveryRun is a discovery executing in the background
type DiscoveryRun struct {
	events chan domain.DiscoveryEvent
	cancel context.CancelFunc
	done   chan struct{}
	result *domain.DiscoveryResult
	err    error
}

// Start runs Discover in a new goroutine. The caller should drain Events until it
// is closed; the last event is either DiscoveryCompleted or DiscoveryFailed.
// After Cancel, events the caller no longer reads are dropped.
func (s *DiscoveryService) Start(ctx context.Context, pageURL, category string) *DiscoveryRun {
	ctx, cancel := context.WithCancel(ctx)
	run := &DiscoveryRun{
		events: make(chan domain.DiscoveryEvent, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(run.done)
		defer close(run.events)
		defer cancel()

		emit := func(ev domain.DiscoveryEvent) {
			select {
			case run.events <- ev:
				return
			default:
			}
			select {
			case run.events <- ev:
			case <-ctx.Done():
			}
		}

		run.result, run.err = s.Discover(ctx, pageURL, category, emit)
		if run.err != nil && errors.Is(run.err, domain.ErrUnknownCategory) {
			emit(domain.DiscoveryEvent{Kind: domain.DiscoveryFailed, Message: "Error: " + run.err.Error()})
		}
	}()

	return run
}

// Events returns the event stream of the run
func (r *DiscoveryRun) Events() <-chan domain.DiscoveryEvent {
	return r.events
}

// Cancel requests cooperative cancellation
func (r *DiscoveryRun) Cancel() {
	r.cancel()
}

// Done is closed when the run has finished
func (r *DiscoveryRun) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes and returns its outcome
func (r *DiscoveryRun) Wait() (*domain.DiscoveryResult, error) {
	<-r.done
	return r.result, r.err
}
