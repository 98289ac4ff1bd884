package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Publisher announces completed refreshes to other processes.
type Publisher interface {
	PublishRefresh(ctx context.Context, observations, categories int) error
}

// RefreshProcessorConfig holds configuration for the refresh processor
type RefreshProcessorConfig struct {
	// Interval is how often to re-download the CPI table (default: 6h)
	Interval time.Duration

	// RunOnStart triggers an immediate refresh when the loop starts
	RunOnStart bool
}

// DefaultRefreshProcessorConfig returns sensible defaults
func DefaultRefreshProcessorConfig() RefreshProcessorConfig {
	return RefreshProcessorConfig{
		Interval:   6 * time.Hour,
		RunOnStart: true,
	}
}

// RefreshProcessor periodically re-downloads the CPI table and
// announces the new dataset over AMQP.
type RefreshProcessor struct {
	dataset   *DatasetService
	publisher Publisher
	config    RefreshProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRefreshProcessor creates a new refresh processor. publisher may
// be nil when AMQP is not configured.
func NewRefreshProcessor(dataset *DatasetService, publisher Publisher, config RefreshProcessorConfig) *RefreshProcessor {
	return &RefreshProcessor{
		dataset:   dataset,
		publisher: publisher,
		config:    config,
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (p *RefreshProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("refresh processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Refresh processor started",
		"interval", p.config.Interval,
		"run_on_start", p.config.RunOnStart)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *RefreshProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Refresh processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Refresh processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *RefreshProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RefreshProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if p.config.RunOnStart {
		p.refreshOnce(ctx)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshOnce(ctx)
		}
	}
}

// refreshOnce downloads a fresh table and publishes the notification.
// Failures are logged and retried on the next tick.
func (p *RefreshProcessor) refreshOnce(ctx context.Context) {
	table, err := p.dataset.Refresh(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled refresh failed", "error", err)
		return
	}

	if p.publisher == nil {
		return
	}

	categories := len(table.Categories())
	if err := p.publisher.PublishRefresh(ctx, len(table), categories); err != nil {
		slog.ErrorContext(ctx, "Failed to publish refresh notification", "error", err)
	}
}
