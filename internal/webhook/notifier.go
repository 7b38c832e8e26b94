// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dotandev/lockup/internal/eventbus"
	"github.com/dotandev/lockup/internal/logger"
)

// NotifierConfig contains configuration for the notifier
type NotifierConfig struct {
	Webhooks  []Config
	QueueSize int
}

// Notifier forwards sale events to webhooks from a single background
// worker. Publishing never blocks: when the queue is full the notice is
// dropped and logged.
type Notifier struct {
	clients []*Client
	queue   chan Notice
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func NewNotifier(config NotifierConfig) (*Notifier, error) {
	if len(config.Webhooks) == 0 {
		return nil, fmt.Errorf("no webhooks configured")
	}

	clients := make([]*Client, 0, len(config.Webhooks))
	for _, wh := range config.Webhooks {
		c, err := NewClient(wh)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}

	size := config.QueueSize
	if size <= 0 {
		size = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		clients: clients,
		queue:   make(chan Notice, size),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go n.run()
	return n, nil
}

// Attach subscribes the notifier to every topic on bus.
func (n *Notifier) Attach(bus *eventbus.Bus) eventbus.HandlerID {
	return bus.SubscribeAll(n.Handle)
}

// Handle queues ev for delivery.
func (n *Notifier) Handle(ev eventbus.Event) {
	notice, ok := NoticeFromEvent(ev)
	if !ok {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- notice:
	default:
		logger.Logger.Warn("Webhook queue full, dropping notice", "event", notice.Event, "receipt", notice.ID)
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for notice := range n.queue {
		for _, c := range n.clients {
			if err := c.Send(n.ctx, notice); err != nil {
				logger.Logger.Error("Failed to send webhook notification", "type", c.Type(), "receipt", notice.ID, "error", err)
			}
		}
	}
}

// Close stops accepting notices and waits for the queue to drain. When ctx
// ends first, in-flight deliveries are abandoned.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		select {
		case <-n.done:
		case <-time.After(time.Second):
		}
		return ctx.Err()
	}
}

func (n *Notifier) ClientCount() int {
	return len(n.clients)
}
