package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/bindery/internal/doc"
	"github.com/jackzampolin/bindery/internal/ghostwriter"
	"github.com/jackzampolin/bindery/internal/home"
	"github.com/jackzampolin/bindery/internal/images"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 64

	// rescanInterval bounds how long a queued job can sit unnoticed if
	// a dispatch notification was dropped.
	rescanInterval = 5 * time.Second
)

// ControllerConfig wires a Controller's dependencies.
type ControllerConfig struct {
	Store     *Store
	Home      *home.Dir
	Producer  ghostwriter.Producer
	Extractor *images.Extractor
	Logger    *slog.Logger

	Workers   int
	QueueSize int

	// MaxDegradedImages fails a job whose render pass degraded more
	// than this many images. Zero disables the check.
	MaxDegradedImages int
}

// Controller accepts generation requests, drives them through the
// pipeline on a worker pool and answers status queries from the store.
type Controller struct {
	store       *Store
	home        *home.Dir
	producer    ghostwriter.Producer
	extractor   *images.Extractor
	logger      *slog.Logger
	workers     int
	maxDegraded int

	queue  chan string
	notify chan struct{}
}

// NewController creates a controller. Start must be called before
// submitted jobs make progress.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Home == nil {
		return nil, fmt.Errorf("home directory is required")
	}
	if cfg.Producer == nil {
		return nil, fmt.Errorf("content producer is required")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = images.NewExtractor(images.ExtractorConfig{Logger: cfg.Logger})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	return &Controller{
		store:       cfg.Store,
		home:        cfg.Home,
		producer:    cfg.Producer,
		extractor:   cfg.Extractor,
		logger:      cfg.Logger.With("component", "jobs"),
		workers:     cfg.Workers,
		maxDegraded: cfg.MaxDegradedImages,
		queue:       make(chan string, cfg.QueueSize),
		notify:      make(chan struct{}, 1),
	}, nil
}

// Start runs the dispatcher and worker pool until ctx is cancelled.
// It blocks, so callers run it in a goroutine.
func (c *Controller) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.runWorker(ctx, worker)
		}(i)
	}

	c.logger.Info("job controller started", "workers", c.workers, "producer", c.producer.Name())
	c.dispatch(ctx)
	wg.Wait()
	c.logger.Info("job controller stopped")
}

// dispatch feeds queued job ids onto the worker channel. It scans the
// store on every notification and on a timer, so jobs queued before a
// restart are picked up without resubmission.
func (c *Controller) dispatch(ctx context.Context) {
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()

	c.enqueueQueued(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
			c.enqueueQueued(ctx)
		case <-ticker.C:
			c.enqueueQueued(ctx)
		}
	}
}

func (c *Controller) enqueueQueued(ctx context.Context) {
	ids, err := c.store.QueuedIDs(ctx)
	if err != nil {
		c.logger.Error("failed to scan queued jobs", "error", err)
		return
	}
	for _, id := range ids {
		select {
		case c.queue <- id:
		case <-ctx.Done():
			return
		default:
			// Queue is full. The next scan will retry; Claim keeps
			// duplicate enqueues harmless.
			return
		}
	}
}

func (c *Controller) runWorker(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-c.queue:
			claimed, err := c.store.Claim(ctx, id)
			if err != nil {
				c.logger.Error("failed to claim job", "id", id, "error", err)
				continue
			}
			if !claimed {
				continue
			}
			c.logger.Info("job started", "id", id, "worker", worker)
			c.run(ctx, id)
		}
	}
}

// Submit persists a request as a queued job and nudges the dispatcher.
func (c *Controller) Submit(ctx context.Context, req doc.Request) (string, error) {
	rec, err := c.store.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to submit job: %w", err)
	}
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return rec.ID, nil
}

// Status returns the current record for a job.
func (c *Controller) Status(ctx context.Context, id string) (*Record, error) {
	return c.store.Get(ctx, id)
}

// List returns recent jobs, optionally filtered by state.
func (c *Controller) List(ctx context.Context, state State, limit int) ([]*Record, error) {
	return c.store.List(ctx, state, limit)
}

// Artifact returns the on-disk path of a completed job's output in the
// requested format ("docx" or "pdf").
func (c *Controller) Artifact(ctx context.Context, id, format string) (string, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.State != StateCompleted {
		return "", fmt.Errorf("%w: job %s is %s", ErrNotReady, id, rec.State)
	}
	switch format {
	case "docx":
		return rec.DOCXPath, nil
	case "pdf":
		return rec.PDFPath, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Cancel cancels a queued job immediately and flags a running job for
// cooperative cancellation at its next checkpoint.
func (c *Controller) Cancel(ctx context.Context, id string) (*Record, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch rec.State {
	case StateQueued:
		if err := c.store.MarkCancelled(ctx, id); err != nil {
			return nil, err
		}
	case StateRunning:
		if err := c.store.RequestCancel(ctx, id); err != nil {
			return nil, err
		}
	default:
		// Terminal states are left as they are.
	}

	return c.store.Get(ctx, id)
}
