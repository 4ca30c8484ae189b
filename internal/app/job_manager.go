package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/linkgrab/linkgrab/internal/infrastructure"
	"github.com/linkgrab/linkgrab/pkg/logger"
	"github.com/linkgrab/linkgrab/pkg/metrics"
)

// DownloadRequest describes a download job. Either Files lists the URLs to fetch,
// or PageURL is discovered first and its selection (category, optionally narrowed
// to Extensions) is downloaded.
type DownloadRequest struct {
	PageURL        string   `json:"page_url,omitempty"`
	Category       string   `json:"category,omitempty"`
	Extensions     []string `json:"extensions,omitempty"`
	Files          []string `json:"files,omitempty"`
	DestinationDir string   `json:"destination,omitempty"`
	Workers        int      `json:"workers,omitempty"`
}

// JobManager runs discovery and download jobs submitted to the server
type JobManager struct {
	repo           domain.JobRepository
	discovery      *DiscoveryService
	engine         *DownloadEngine
	hub            *EventHub
	config         *domain.JobsConfig
	downloadConfig *domain.DownloadConfig
	multiLogger    *logger.MultiLogger
	logger         *zap.Logger

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wake     chan struct{}
	slots    chan struct{}
	baseCtx  context.Context
	stopJobs context.CancelFunc
	queued   map[string]*DownloadRequest // nil request for discovery jobs
	cancels  map[string]context.CancelFunc
	workerWg sync.WaitGroup
}

// NewJobManager creates a new job manager
func NewJobManager(
	repo domain.JobRepository,
	discovery *DiscoveryService,
	engine *DownloadEngine,
	hub *EventHub,
	config *domain.JobsConfig,
	downloadConfig *domain.DownloadConfig,
	multiLogger *logger.MultiLogger,
	logger *zap.Logger,
) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &JobManager{
		repo:           repo,
		discovery:      discovery,
		engine:         engine,
		hub:            hub,
		config:         config,
		downloadConfig: downloadConfig,
		multiLogger:    multiLogger,
		logger:         logger,
		stopChan:       make(chan struct{}),
		wake:           make(chan struct{}, 1),
		slots:          make(chan struct{}, maxConcurrent),
		queued:         make(map[string]*DownloadRequest),
		cancels:        make(map[string]context.CancelFunc),
	}
}

// Start starts the job dispatcher
func (jm *JobManager) Start(ctx context.Context) error {
	jm.mu.Lock()
	if jm.running {
		jm.mu.Unlock()
		return fmt.Errorf("job manager already running")
	}
	jm.running = true
	jm.baseCtx, jm.stopJobs = context.WithCancel(ctx)
	jm.mu.Unlock()

	jm.logJobEvent("manager_started", zap.Int("max_concurrent", cap(jm.slots)))

	jm.workerWg.Add(1)
	go jm.dispatch(jm.baseCtx)

	return nil
}

// Stop cancels running jobs and waits for them to finish
func (jm *JobManager) Stop() error {
	jm.mu.Lock()
	if !jm.running {
		jm.mu.Unlock()
		return fmt.Errorf("job manager not running")
	}
	jm.running = false
	jm.mu.Unlock()

	jm.logJobEvent("manager_stopped")
	close(jm.stopChan)
	jm.stopJobs()
	jm.workerWg.Wait()

	return nil
}

// IsRunning returns whether the job manager is running
func (jm *JobManager) IsRunning() bool {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.running
}

// SubmitDiscovery queues a discovery of pageURL
func (jm *JobManager) SubmitDiscovery(pageURL, category string) (*domain.Job, error) {
	if _, err := infrastructure.ParsePageURL(pageURL); err != nil {
		return nil, err
	}
	category, err := jm.discovery.ResolveCategory(category)
	if err != nil {
		return nil, err
	}

	job := domain.NewJob(domain.JobKindDiscovery, strings.TrimSpace(pageURL))
	job.Category = category
	return job, jm.enqueue(job, nil)
}

// SubmitDownload queues a download session
func (jm *JobManager) SubmitDownload(req DownloadRequest) (*domain.Job, error) {
	if len(req.Files) == 0 && strings.TrimSpace(req.PageURL) == "" {
		return nil, fmt.Errorf("either files or page_url is required")
	}
	for _, raw := range req.Files {
		if _, err := infrastructure.ParsePageURL(raw); err != nil {
			return nil, err
		}
	}

	if len(req.Files) == 0 {
		if _, err := infrastructure.ParsePageURL(req.PageURL); err != nil {
			return nil, err
		}
		category, err := jm.discovery.ResolveCategory(req.Category)
		if err != nil {
			return nil, err
		}
		req.Category = category
	}

	dest, err := resolveDestination(jm.downloadConfig.BaseDir, req.DestinationDir)
	if err != nil {
		return nil, err
	}
	req.DestinationDir = dest
	if req.Workers < 1 {
		req.Workers = jm.downloadConfig.Workers
	}

	job := domain.NewJob(domain.JobKindDownload, strings.TrimSpace(req.PageURL))
	job.Category = req.Category
	job.DestinationDir = req.DestinationDir
	job.Workers = req.Workers
	job.Total = len(req.Files)
	return job, jm.enqueue(job, &req)
}

// resolveDestination confines a requested directory to baseDir. Relative paths
// are taken from baseDir; an empty one means baseDir itself.
func resolveDestination(baseDir, dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return baseDir, nil
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(baseDir, dest)
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidDestination, dest)
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidDestination, dest)
	}
	return abs, nil
}

func (jm *JobManager) enqueue(job *domain.Job, req *DownloadRequest) error {
	if err := jm.repo.Create(job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	jm.mu.Lock()
	jm.queued[job.ID] = req
	jm.mu.Unlock()

	metrics.Jobs.WithLabelValues(string(job.Kind), string(job.Status)).Inc()
	jm.logJobEvent("job_submitted",
		zap.String("id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("page_url", job.PageURL),
		zap.String("category", job.Category))

	select {
	case jm.wake <- struct{}{}:
	default:
	}
	return nil
}

// GetJob retrieves a job by ID
func (jm *JobManager) GetJob(id string) (*domain.Job, error) {
	return jm.repo.FindByID(id)
}

// ListJobs lists jobs with optional filters, newest first
func (jm *JobManager) ListJobs(filters map[string]interface{}) ([]*domain.Job, error) {
	return jm.repo.FindAll(filters)
}

// GetStats returns job statistics
func (jm *JobManager) GetStats() (*domain.JobStats, error) {
	return jm.repo.GetStats()
}

// CancelJob cancels a queued or running job. A queued job is cancelled at once;
// a running job stops at its next cancellation point.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	if _, ok := jm.queued[id]; ok {
		delete(jm.queued, id)
		jm.mu.Unlock()

		job, err := jm.repo.FindByID(id)
		if err != nil {
			return err
		}
		job.MarkCancelled()
		jm.finish(job)
		return nil
	}
	if cancel, ok := jm.cancels[id]; ok {
		jm.mu.Unlock()
		cancel()
		jm.logJobEvent("job_cancel_requested", zap.String("id", id))
		return nil
	}
	jm.mu.Unlock()

	job, err := jm.repo.FindByID(id)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return domain.ErrJobTerminal
	}
	return fmt.Errorf("job %s is not managed by this server", id)
}

// DeleteJob removes a finished job
func (jm *JobManager) DeleteJob(id string) error {
	job, err := jm.repo.FindByID(id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return domain.ErrJobActive
	}
	if err := jm.repo.Delete(id); err != nil {
		return err
	}
	jm.logJobEvent("job_deleted", zap.String("id", id))
	return nil
}

// Subscribe returns the current state of a job and a stream of its events. The
// stream is closed when the job ends; for a finished job it is already closed.
func (jm *JobManager) Subscribe(id string) (*domain.Job, <-chan domain.JobEvent, func(), error) {
	events, unsubscribe := jm.hub.Subscribe(id)

	job, err := jm.repo.FindByID(id)
	if err != nil {
		unsubscribe()
		return nil, nil, nil, err
	}
	if job.IsTerminal() {
		unsubscribe()
	}
	return job, events, unsubscribe, nil
}

// dispatch starts queued jobs while slots are free
func (jm *JobManager) dispatch(ctx context.Context) {
	defer jm.workerWg.Done()

	interval := jm.config.CheckInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			jm.logJobEvent("dispatcher_stopped", zap.String("reason", "context_cancelled"))
			return
		case <-jm.stopChan:
			jm.logJobEvent("dispatcher_stopped", zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
		case <-jm.wake:
		}

		active, err := jm.repo.FindActive()
		if err != nil {
			if jm.multiLogger != nil {
				jm.multiLogger.LogAppError("Failed to fetch queued jobs", zap.Error(err))
			}
			continue
		}

	jobs:
		for _, job := range active {
			if job.Status != domain.JobQueued {
				continue
			}
			select {
			case jm.slots <- struct{}{}:
			default:
				// all slots busy; a finishing job wakes the dispatcher
				break jobs
			}

			req, jobCtx, ok := jm.claim(ctx, job.ID)
			if !ok {
				<-jm.slots
				continue
			}

			jm.workerWg.Add(1)
			go jm.runJob(jobCtx, job, req)
		}
	}
}

// claim moves a queued job to the running set
func (jm *JobManager) claim(ctx context.Context, id string) (*DownloadRequest, context.Context, bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	req, ok := jm.queued[id]
	if !ok {
		return nil, nil, false
	}
	delete(jm.queued, id)

	jobCtx, cancel := context.WithCancel(ctx)
	jm.cancels[id] = cancel
	return req, jobCtx, true
}

// runJob executes one job and records its terminal state
func (jm *JobManager) runJob(ctx context.Context, job *domain.Job, req *DownloadRequest) {
	defer jm.workerWg.Done()
	defer func() {
		jm.mu.Lock()
		if cancel, ok := jm.cancels[job.ID]; ok {
			cancel()
			delete(jm.cancels, job.ID)
		}
		jm.mu.Unlock()
		<-jm.slots
		select {
		case jm.wake <- struct{}{}:
		default:
		}
	}()

	job.MarkRunning()
	if err := jm.repo.Update(job); err != nil {
		jm.logger.Error("Failed to update job status", zap.String("id", job.ID), zap.Error(err))
	}
	jm.publishStatus(job, "Job started")
	jm.logJobEvent("job_started",
		zap.String("id", job.ID),
		zap.String("kind", string(job.Kind)))

	var err error
	switch job.Kind {
	case domain.JobKindDiscovery:
		err = jm.runDiscovery(ctx, job)
	case domain.JobKindDownload:
		err = jm.runDownload(ctx, job, req)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	switch {
	case job.IsTerminal():
	case err == nil:
		job.MarkCompleted()
	case domain.IsCancelled(err) || errors.Is(err, context.Canceled):
		job.MarkCancelled()
	default:
		job.MarkFailed(err)
	}
	jm.finish(job)
}

// runDiscovery discovers the job page and stores the result
func (jm *JobManager) runDiscovery(ctx context.Context, job *domain.Job) error {
	result, err := jm.discovery.Discover(ctx, job.PageURL, job.Category, jm.discoveryEmitter(job))
	if err != nil {
		return err
	}
	job.Total = len(result.Files)
	job.Processed = len(result.Files)
	return job.SetResult(result)
}

// runDownload resolves the request into a session and runs it
func (jm *JobManager) runDownload(ctx context.Context, job *domain.Job, req *DownloadRequest) error {
	if req == nil {
		return fmt.Errorf("download job %s has no request", job.ID)
	}

	var items []domain.DiscoveredFile
	if len(req.Files) > 0 {
		table := jm.discovery.Table()
		for _, raw := range req.Files {
			raw = strings.TrimSpace(raw)
			items = append(items, domain.NewDiscoveredFile(raw, domain.ResolveExtension(raw), table, domain.AllFileTypes))
		}
	} else {
		discovered, err := jm.discovery.Discover(ctx, req.PageURL, req.Category, jm.discoveryEmitter(job))
		if err != nil {
			return err
		}
		if len(req.Extensions) > 0 {
			domain.SelectExtensions(discovered.Files, req.Extensions)
		}
		items = domain.SelectedFiles(discovered.Files)
	}

	job.Total = len(items)
	if err := jm.repo.Update(job); err != nil {
		jm.logger.Warn("Failed to update job total", zap.String("id", job.ID), zap.Error(err))
	}

	session := domain.NewSession(req.DestinationDir, items, req.Workers)
	result, err := jm.engine.Run(ctx, session, func(ev domain.ProgressEvent) {
		job.ApplyProgress(ev)
		if err := jm.repo.Update(job); err != nil {
			jm.logger.Warn("Failed to update job progress", zap.String("id", job.ID), zap.Error(err))
		}
		jm.hub.Publish(domain.JobEvent{
			JobID:     job.ID,
			Type:      domain.JobEventProgress,
			Status:    job.Status,
			Message:   ev.Message,
			Processed: ev.Processed,
			Total:     ev.Total,
			Outcome:   ev.Outcome,
		})
	})
	if err != nil {
		return err
	}

	job.Succeeded = result.Succeeded
	job.Failed = result.Failed
	job.Processed = result.Attempted
	if err := job.SetResult(result); err != nil {
		return err
	}
	if result.Cancelled {
		job.MarkCancelled()
	}
	return nil
}

func (jm *JobManager) discoveryEmitter(job *domain.Job) func(domain.DiscoveryEvent) {
	return func(ev domain.DiscoveryEvent) {
		jm.hub.Publish(domain.JobEvent{
			JobID:   job.ID,
			Type:    domain.JobEventDiscovery,
			Status:  job.Status,
			Message: ev.Message,
			File:    ev.File,
		})
	}
}

// finish persists a terminal job, notifies subscribers and closes their streams
func (jm *JobManager) finish(job *domain.Job) {
	if err := jm.repo.Update(job); err != nil {
		jm.logger.Error("Failed to update job status", zap.String("id", job.ID), zap.Error(err))
	}

	metrics.Jobs.WithLabelValues(string(job.Kind), string(job.Status)).Inc()

	fields := []zap.Field{
		zap.String("id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("status", string(job.Status)),
		zap.Int("total", job.Total),
		zap.Int("processed", job.Processed),
	}
	if job.ErrorMessage != "" {
		fields = append(fields, zap.String("error", job.ErrorMessage))
	}
	jm.logJobEvent("job_"+string(job.Status), fields...)

	jm.publishStatus(job, "Job "+string(job.Status))
	jm.hub.Close(job.ID)
}

func (jm *JobManager) publishStatus(job *domain.Job, message string) {
	snapshot := *job
	jm.hub.Publish(domain.JobEvent{
		JobID:     job.ID,
		Type:      domain.JobEventStatus,
		Status:    job.Status,
		Message:   message,
		Processed: job.Processed,
		Total:     job.Total,
		Job:       &snapshot,
	})
}

func (jm *JobManager) logJobEvent(event string, fields ...zap.Field) {
	if jm.multiLogger != nil {
		jm.multiLogger.LogJobEvent(event, fields...)
	}
	jm.logger.Debug(event, fields...)
}
