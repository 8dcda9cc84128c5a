// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package testenv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Stop tears the environment down: containers in reverse start order,
// then the network. It is safe after a partial start, where resources
// the daemon reports as absent count as already released, and it is
// idempotent; only the first call performs work.
//
// Callers on a failure path should pass a context that is still live.
// context.WithoutCancel over the run context is appropriate when the
// run itself was cancelled.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.torn || c.env.Network == "" {
		c.mu.Unlock()
		return nil
	}
	c.torn = true
	stopping := StateStoppingAfterFailure
	if c.workloadOK {
		stopping = StateStoppingAfterSuccess
	}
	c.state = stopping
	env := c.env
	c.mu.Unlock()

	c.options.Logger.Info("stopping environment", "state", stopping.String())

	var errs []error
	release := func(err error, what string) {
		if err := ignoreAbsent(err); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
	}

	// The emitter exits on its own after the workload; a straight
	// force-remove covers the failure paths where it is still
	// running. The log server and the ingester get a graceful stop
	// first so they can flush.
	if env.TestApp != "" {
		release(c.options.Docker.RemoveForce(ctx, env.TestApp), "removing workload emitter")
	}
	if env.Sqelf != "" {
		release(c.options.Docker.Stop(ctx, env.Sqelf, c.options.StopTimeout), "stopping ingester")
		release(c.options.Docker.RemoveForce(ctx, env.Sqelf), "removing ingester")
	}
	if env.Seq != "" {
		release(c.options.Docker.Stop(ctx, env.Seq, c.options.StopTimeout), "stopping log server")
		release(c.options.Docker.RemoveForce(ctx, env.Seq), "removing log server")
	}
	release(c.options.Docker.NetworkRemove(ctx, env.Network), "removing network")

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("environment teardown incomplete: %w", err)
	}
	c.options.Logger.Info("environment stopped")
	return nil
}

// ignoreAbsent filters the errors docker reports when asked to stop
// or remove something that does not exist, which teardown after a
// partial start routinely hits.
func ignoreAbsent(err error) error {
	if err == nil {
		return nil
	}
	message := err.Error()
	for _, marker := range []string{"No such container", "No such network", "not found"} {
		if strings.Contains(message, marker) {
			return nil
		}
	}
	return err
}
