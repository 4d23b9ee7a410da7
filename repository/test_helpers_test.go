package repository

import (
	"context"
	"sync"

	"raffle/domain/events"
)

// recordingPublisher captures flushed events for assertions
type recordingPublisher struct {
	mu        sync.Mutex
	pending   []events.Event
	published []events.Event
	discarded int
}

func (p *recordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, event)
	return nil
}

func (p *recordingPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, p.pending...)
	p.pending = nil
	return nil
}

func (p *recordingPublisher) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discarded += len(p.pending)
	p.pending = nil
}
