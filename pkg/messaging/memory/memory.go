// Package memory is an in-process messaging.Broker for tests and single-node runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jwalitptl/medreminder/pkg/messaging"
)

type subscriber struct {
	ch  chan []byte
	ctx context.Context
}

type Broker struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	closed bool
}

var _ messaging.Broker = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]*subscriber)}
}

func (b *Broker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("broker closed")
	}

	for _, s := range b.subs[channel] {
		select {
		case s.ch <- payload:
		case <-s.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("broker closed")
	}

	s := &subscriber{ch: make(chan []byte, 100), ctx: ctx}
	b.subs[channel] = append(b.subs[channel], s)

	go func() {
		<-ctx.Done()
		b.remove(channel, s)
	}()

	return s.ch, nil
}

func (b *Broker) remove(channel string, s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[channel]
	for i, candidate := range subs {
		if candidate == s {
			b.subs[channel] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subs {
		for _, s := range subs {
			close(s.ch)
		}
		delete(b.subs, channel)
	}
	return nil
}
