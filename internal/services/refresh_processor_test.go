package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePublisher struct {
	mu           sync.Mutex
	observations int
	categories   int
	calls        int
	err          error
}

func (p *fakePublisher) PublishRefresh(ctx context.Context, observations, categories int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.observations = observations
	p.categories = categories
	return p.err
}

func newTestDataset() (*DatasetService, *fakeLoader) {
	loader := &fakeLoader{observations: testObservations()}
	return NewDatasetService(&fakeStore{}, loader, 24*time.Hour), loader
}

func TestRefreshProcessorPublishesAfterRefresh(t *testing.T) {
	dataset, loader := newTestDataset()
	publisher := &fakePublisher{}
	proc := NewRefreshProcessor(dataset, publisher, DefaultRefreshProcessorConfig())

	proc.refreshOnce(context.Background())

	if loader.calls != 1 {
		t.Errorf("loader called %d times, want 1", loader.calls)
	}
	if publisher.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", publisher.calls)
	}
	if publisher.observations != 24 || publisher.categories != 1 {
		t.Errorf("published counts = %d/%d, want 24/1", publisher.observations, publisher.categories)
	}
}

func TestRefreshProcessorSkipsPublishOnFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("statcan unreachable")}
	dataset := NewDatasetService(&fakeStore{}, loader, 24*time.Hour)
	publisher := &fakePublisher{}
	proc := NewRefreshProcessor(dataset, publisher, DefaultRefreshProcessorConfig())

	proc.refreshOnce(context.Background())

	if publisher.calls != 0 {
		t.Errorf("publisher called %d times after failed refresh, want 0", publisher.calls)
	}
}

func TestRefreshProcessorNilPublisher(t *testing.T) {
	dataset, _ := newTestDataset()
	proc := NewRefreshProcessor(dataset, nil, DefaultRefreshProcessorConfig())

	// Must not panic without a publisher.
	proc.refreshOnce(context.Background())
}

func TestRefreshProcessorLifecycle(t *testing.T) {
	dataset, _ := newTestDataset()
	config := RefreshProcessorConfig{Interval: time.Hour, RunOnStart: false}
	proc := NewRefreshProcessor(dataset, &fakePublisher{}, config)
	ctx := context.Background()

	if proc.IsRunning() {
		t.Fatal("processor running before Start")
	}
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !proc.IsRunning() {
		t.Fatal("processor not running after Start")
	}
	if err := proc.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := proc.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if proc.IsRunning() {
		t.Error("processor still running after Stop")
	}

	// Stop is idempotent.
	if err := proc.Stop(stopCtx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
