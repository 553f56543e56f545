package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*DecodedTransactionEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*DecodedTransactionEvent, 0),
	}
}

// PublishDecoded records the event and returns any configured error.
func (m *MockPublisher) PublishDecoded(ctx context.Context, event *DecodedTransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishDecodedBatch records the events, or records none of them and
// returns the configured error.
func (m *MockPublisher) PublishDecodedBatch(ctx context.Context, events []*DecodedTransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, events...)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns a copy of all published events.
func (m *MockPublisher) GetPublishedEvents() []*DecodedTransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*DecodedTransactionEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventCount returns the number of published events.
func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.publishedEvents)
}

// GetPublishedEventsForSubject returns events published under the given subject prefix.
func (m *MockPublisher) GetPublishedEventsForSubject(prefix string) []*DecodedTransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*DecodedTransactionEvent, 0)
	for _, event := range m.publishedEvents {
		if event.SubjectPrefix() == prefix {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

var _ Publisher = (*MockPublisher)(nil)
var _ Publisher = (*JetStreamPublisher)(nil)
