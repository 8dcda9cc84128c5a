// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package testenv

import (
	"context"
	"fmt"
)

// RunWorkload blocks until the workload emitter exits, bounded by the
// workload timeout. The emitter must exit zero; any other exit code
// is an error carrying the emitter's log tail.
func (c *Controller) RunWorkload(ctx context.Context) error {
	if err := c.require(StateRunning); err != nil {
		return err
	}
	name := c.Environment().TestApp
	c.options.Logger.Info("waiting for workload emitter",
		"container", name, "timeout", c.options.WorkloadTimeout)

	// docker wait blocks in the CLI process, so the timeout races it
	// on the injected clock and cancels the wait when it loses.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	type exit struct {
		code int
		err  error
	}
	done := make(chan exit, 1)
	go func() {
		code, err := c.options.Docker.Wait(waitCtx, name)
		done <- exit{code, err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.options.Clock.After(c.options.WorkloadTimeout):
		return fmt.Errorf("workload emitter still running after %s", c.options.WorkloadTimeout)
	case result := <-done:
		if result.err != nil {
			return fmt.Errorf("waiting for workload emitter: %w", result.err)
		}
		if result.code != 0 {
			return fmt.Errorf("workload emitter exited %d: %s",
				result.code, c.logsTail(ctx, name))
		}
	}

	c.mu.Lock()
	c.workloadOK = true
	c.mu.Unlock()
	c.options.Logger.Info("workload emitter completed", "container", name)
	return nil
}

// Settle waits the configured delay so asynchronous ingestion can
// drain before anything reads the log server's stored events.
func (c *Controller) Settle(ctx context.Context) error {
	if err := c.require(StateRunning); err != nil {
		return err
	}
	c.options.Logger.Info("settling", "delay", c.options.SettleDelay)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.options.Clock.After(c.options.SettleDelay):
		return nil
	}
}
