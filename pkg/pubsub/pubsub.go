// Package pubsub fans messages out to topic subscribers.
//
// Unlike a best-effort broadcaster, delivery here is lossless and ordered per
// subscription: each subscription owns an unbounded queue drained by one
// goroutine that invokes its handler, so a slow handler delays only its own
// subscription and never the publisher.
package pubsub

import (
	"context"
	"errors"
	"sync"
)

// ErrShutdown is returned when subscribing to a PubSub that has been shut down.
var ErrShutdown = errors.New("pubsub: shut down")

// Handler receives published messages.
type Handler func(message any)

// PubSub provides publish/subscribe delivery between in-process components
type PubSub struct {
	subscribers map[string]map[*Subscription]bool
	mu          sync.RWMutex
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
}

// Subscription represents a subscription to a topic
type Subscription struct {
	topic   string
	ps      *PubSub
	handler Handler

	mu      sync.Mutex
	queue   []any
	closed  bool
	signal  chan struct{}
	stopped chan struct{}
}

// NewPubSub creates a new PubSub instance
func NewPubSub() *PubSub {
	return &PubSub{
		subscribers: make(map[string]map[*Subscription]bool),
		shutdown:    make(chan struct{}),
	}
}

// Subscribe registers handler for topic. The subscription ends when ctx is
// done, Unsubscribe is called or the PubSub shuts down.
func (ps *PubSub) Subscribe(ctx context.Context, topic string, handler Handler) (*Subscription, error) {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return nil, ErrShutdown
	}

	sub := &Subscription{
		topic:   topic,
		ps:      ps,
		handler: handler,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}

	ps.mu.Lock()
	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[*Subscription]bool)
	}
	ps.subscribers[topic][sub] = true
	ps.mu.Unlock()
	ps.shutdownMu.Unlock()

	go sub.run()
	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-ps.shutdown:
		case <-sub.stopped:
		}
	}()

	return sub, nil
}

// Publish queues message for every current subscriber of topic and returns
// how many subscribers it was queued for. Messages published by one goroutine
// reach each subscriber in publish order.
func (ps *PubSub) Publish(topic string, message any) int {
	ps.mu.RLock()
	topicSubs := ps.subscribers[topic]
	subs := make([]*Subscription, 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}
	ps.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if sub.enqueue(message) {
			delivered++
		}
	}
	return delivered
}

// GetSubscriberCount returns the number of subscribers for a topic
func (ps *PubSub) GetSubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.subscribers[topic])
}

// Shutdown closes all subscriptions and shuts down the PubSub. Messages
// already queued are dropped.
func (ps *PubSub) Shutdown() {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return
	}
	ps.isShutdown = true
	close(ps.shutdown)
	ps.shutdownMu.Unlock()

	ps.mu.Lock()
	for topic, subs := range ps.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(ps.subscribers, topic)
	}
	ps.mu.Unlock()
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription. It does not wait for a handler that is
// currently running.
func (s *Subscription) Unsubscribe() {
	s.ps.mu.Lock()
	if s.ps.subscribers[s.topic] != nil {
		delete(s.ps.subscribers[s.topic], s)
		if len(s.ps.subscribers[s.topic]) == 0 {
			delete(s.ps.subscribers, s.topic)
		}
	}
	s.ps.mu.Unlock()

	s.close()
}

func (s *Subscription) enqueue(message any) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, message)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	close(s.stopped)
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.stopped:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if s.closed || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			message := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.handler(message)
		}
	}
}
