// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/dotandev/lockup/internal/logger"
	"github.com/dotandev/lockup/internal/shutdown"
)

const shutdownTimeout = 5 * time.Second

var shutdownState struct {
	mu          sync.RWMutex
	coordinator *shutdown.Coordinator
}

// installShutdownCoordinator makes c the target of registerShutdownHook
// and returns a func restoring the previous one.
func installShutdownCoordinator(c *shutdown.Coordinator) (restore func()) {
	shutdownState.mu.Lock()
	prev := shutdownState.coordinator
	shutdownState.coordinator = c
	shutdownState.mu.Unlock()

	return func() {
		shutdownState.mu.Lock()
		shutdownState.coordinator = prev
		shutdownState.mu.Unlock()
	}
}

// registerShutdownHook is a no-op outside Execute, e.g. in unit tests that
// call a command body directly.
func registerShutdownHook(name string, fn shutdown.HookFunc) {
	shutdownState.mu.RLock()
	c := shutdownState.coordinator
	shutdownState.mu.RUnlock()
	if c == nil {
		logger.Logger.Debug("No shutdown coordinator, hook not registered", "hook", name)
		return
	}
	c.Register(name, fn)
}

func runShutdownHooksWithTimeout(c *shutdown.Coordinator, timeout time.Duration) {
	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		logger.Logger.Warn("Shutdown hooks completed with errors", "error", err)
	}
}

type closer interface {
	Close() error
}

func registerCloseHook(name string, c closer) {
	if c == nil {
		return
	}
	registerShutdownHook(name, func(context.Context) error {
		return c.Close()
	})
}
