// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dotandev/lockup/internal/logger"
)

type HookFunc func(context.Context) error

type hook struct {
	name string
	fn   HookFunc
}

// Coordinator releases daemon resources in reverse order of acquisition.
// Hooks run at most once; hooks registered after Run are ignored.
type Coordinator struct {
	mu    sync.Mutex
	hooks []hook
	done  bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

func (c *Coordinator) Register(name string, fn HookFunc) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		logger.Logger.Warn("Shutdown hook registered too late", "hook", name)
		return
	}
	c.hooks = append(c.hooks, hook{name: name, fn: fn})
}

// Len reports how many hooks are pending.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return 0
	}
	return len(c.hooks)
}

// Run executes hooks newest first, splitting what is left of ctx's deadline
// evenly across the hooks still to run. Every hook runs even if an earlier
// one failed.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return nil
	}
	c.done = true
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		hookCtx, cancel := perHookContext(ctx, i+1)
		began := time.Now()
		err := h.fn(hookCtx)
		cancel()

		if err != nil {
			logger.Logger.Error("Shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		logger.Logger.Debug("Shutdown hook done", "hook", h.name, "took", time.Since(began))
	}

	return errors.Join(errs...)
}

func perHookContext(ctx context.Context, hooksRemaining int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || hooksRemaining <= 0 {
		return ctx, func() {}
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return context.WithTimeout(ctx, time.Millisecond)
	}
	return context.WithTimeout(ctx, remaining/time.Duration(hooksRemaining))
}
