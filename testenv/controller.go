// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package testenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/datalust/sqelf-pipeline/lib/clock"
	"github.com/datalust/sqelf-pipeline/lib/dockercli"
	"github.com/datalust/sqelf-pipeline/staging"
)

// sqelfReadyMarker appears in the ingester's log once its listener
// socket is bound. The full line names the protocol ("Setting up for
// UDP" or "Setting up for TCP"); matching the common prefix covers
// both.
const sqelfReadyMarker = "Setting up for"

// seqHealthPath is the log server's liveness endpoint on its API
// port.
const seqHealthPath = "/health"

// seqIngestPort is the log server's CLEF ingestion port inside the
// network. The ingester forwards to it; it is never published on the
// host.
const seqIngestPort = 5341

// httpTimeout bounds each probe and export request so a wedged log
// server cannot stall the run past its readiness deadline.
const httpTimeout = 10 * time.Second

// ErrStartupTimeout marks a component that did not become ready
// within the readiness window.
var ErrStartupTimeout = errors.New("testenv: startup timeout")

// Options configures a Controller.
type Options struct {
	// Docker drives the container daemon.
	Docker *dockercli.Client

	// Area is the staging area that log spools and the CLEF export
	// land in.
	Area *staging.Area

	// Clock paces readiness polls and timed waits. Nil means the real
	// clock.
	Clock clock.Clock

	// Logger receives progress events. Nil discards them.
	Logger *slog.Logger

	// Prefix namespaces the network and container names so that
	// concurrent runs on one host cannot collide.
	Prefix string

	// SeqImage is the log server image.
	SeqImage string

	// SqelfImage is the ingester image under test, as tagged by the
	// image build.
	SqelfImage string

	// TestAppImage is the base image the workload emitter runs in.
	// The emitter binary is bind-mounted, so any minimal image works.
	TestAppImage string

	// TestAppBinary is the host path to the workload emitter binary.
	TestAppBinary string

	// ScenarioPath optionally bind-mounts a scenario definition for
	// the emitter. Empty runs the emitter's built-in scenario.
	ScenarioPath string

	// GELFPort is the ingester's listener port inside the network.
	GELFPort int

	// SeqAPIPort is the log server's API port inside the container.
	// It is published on an ephemeral host port for probes and the
	// CLEF export.
	SeqAPIPort int

	// ReadinessTimeout bounds each component's readiness wait.
	ReadinessTimeout time.Duration

	// ReadinessPoll is the interval between readiness checks.
	ReadinessPoll time.Duration

	// SettleDelay is the Settle duration.
	SettleDelay time.Duration

	// WorkloadTimeout bounds RunWorkload.
	WorkloadTimeout time.Duration

	// StopTimeout is how long containers get to stop gracefully
	// before the daemon kills them.
	StopTimeout time.Duration
}

func (o Options) networkName() string { return o.Prefix + "-net" }
func (o Options) seqName() string     { return o.Prefix + "-seq" }
func (o Options) sqelfName() string   { return o.Prefix + "-sqelf" }
func (o Options) testAppName() string { return o.Prefix + "-testapp" }

// Environment is a snapshot of the component handles a Controller has
// created so far. Name fields are empty until the corresponding
// resource has been requested from the daemon.
type Environment struct {
	// Network is the isolated docker network.
	Network string

	// Seq, Sqelf and TestApp are container names.
	Seq     string
	Sqelf   string
	TestApp string

	// SeqAPIHostPort is the ephemeral host port the log server API
	// was published on.
	SeqAPIHostPort int
}

// Controller owns the test topology lifecycle. Methods are safe for
// concurrent use, though a run drives them sequentially.
type Controller struct {
	options    Options
	httpClient *http.Client

	mu         sync.Mutex
	state      State
	env        Environment
	workloadOK bool
	torn       bool
}

// New validates the options and returns a stopped Controller.
func New(options Options) (*Controller, error) {
	var errs []error
	if options.Docker == nil {
		errs = append(errs, fmt.Errorf("docker client is required"))
	}
	if options.Area == nil {
		errs = append(errs, fmt.Errorf("staging area is required"))
	}
	required := func(value, name string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	required(options.Prefix, "container prefix")
	required(options.SeqImage, "log server image")
	required(options.SqelfImage, "ingester image")
	required(options.TestAppImage, "workload emitter image")
	required(options.TestAppBinary, "workload emitter binary")
	port := func(value int, name string) {
		if value < 1 || value > 65535 {
			errs = append(errs, fmt.Errorf("%s out of range: %d", name, value))
		}
	}
	port(options.GELFPort, "GELF port")
	port(options.SeqAPIPort, "log server API port")
	positive := func(value time.Duration, name string) {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, value))
		}
	}
	positive(options.ReadinessTimeout, "readiness timeout")
	positive(options.ReadinessPoll, "readiness poll")
	positive(options.SettleDelay, "settle delay")
	positive(options.WorkloadTimeout, "workload timeout")
	positive(options.StopTimeout, "stop timeout")
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("testenv: %w", err)
	}

	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		options:    options,
		httpClient: &http.Client{Timeout: httpTimeout},
	}, nil
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Environment returns a snapshot of the handles created so far.
func (c *Controller) Environment() Environment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.env
}

// Start brings the topology up in dependency order: the network, the
// log server gated on its health endpoint, the ingester gated on its
// listener log marker, then the workload emitter. The emitter begins
// sending as soon as it starts; RunWorkload waits for it to finish.
//
// On failure the controller stays in Starting with the partially
// created handles recorded; Stop releases them.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.transition(StateStopped, StateStarting); err != nil {
		return err
	}
	logger := c.options.Logger

	network := c.options.networkName()
	c.record(func(e *Environment) { e.Network = network })
	if err := c.options.Docker.NetworkCreate(ctx, network); err != nil {
		return fmt.Errorf("creating network %s: %w", network, err)
	}
	logger.Info("network created", "name", network)

	seq := c.options.seqName()
	c.record(func(e *Environment) { e.Seq = seq })
	_, err := c.options.Docker.RunDetached(ctx, dockercli.ContainerSpec{
		Name:    seq,
		Image:   c.options.SeqImage,
		Network: network,
		Env:     map[string]string{"ACCEPT_EULA": "Y"},
		Publish: []dockercli.PortMapping{{ContainerPort: c.options.SeqAPIPort, Protocol: "tcp"}},
	})
	if err != nil {
		return fmt.Errorf("starting log server: %w", err)
	}
	apiPort, err := c.options.Docker.Port(ctx, seq, dockercli.PortMapping{
		ContainerPort: c.options.SeqAPIPort,
		Protocol:      "tcp",
	})
	if err != nil {
		return fmt.Errorf("resolving log server API port: %w", err)
	}
	c.record(func(e *Environment) { e.SeqAPIHostPort = apiPort })
	if err := c.waitSeqReady(ctx, apiPort); err != nil {
		return err
	}

	sqelf := c.options.sqelfName()
	c.record(func(e *Environment) { e.Sqelf = sqelf })
	_, err = c.options.Docker.RunDetached(ctx, dockercli.ContainerSpec{
		Name:    sqelf,
		Image:   c.options.SqelfImage,
		Network: network,
		Env: map[string]string{
			"SEQ_ADDRESS":   fmt.Sprintf("http://%s:%d", seq, seqIngestPort),
			"SQELF_ADDRESS": fmt.Sprintf("udp://0.0.0.0:%d", c.options.GELFPort),
		},
	})
	if err != nil {
		return fmt.Errorf("starting ingester: %w", err)
	}
	if err := c.waitSqelfReady(ctx, sqelf); err != nil {
		return err
	}

	testApp := c.options.testAppName()
	c.record(func(e *Environment) { e.TestApp = testApp })
	target := fmt.Sprintf("udp://%s:%d", sqelf, c.options.GELFPort)
	args := []string{"/sqelf-testapp", "--target", target}
	mounts := []dockercli.Mount{{
		HostPath:      c.options.TestAppBinary,
		ContainerPath: "/sqelf-testapp",
		ReadOnly:      true,
	}}
	if c.options.ScenarioPath != "" {
		mounts = append(mounts, dockercli.Mount{
			HostPath:      c.options.ScenarioPath,
			ContainerPath: "/scenario.json",
			ReadOnly:      true,
		})
		args = append(args, "--scenario", "/scenario.json")
	}
	_, err = c.options.Docker.RunDetached(ctx, dockercli.ContainerSpec{
		Name:    testApp,
		Image:   c.options.TestAppImage,
		Network: network,
		Mounts:  mounts,
		Args:    args,
	})
	if err != nil {
		return fmt.Errorf("starting workload emitter: %w", err)
	}
	logger.Info("workload emitter started", "container", testApp, "target", target)

	return c.transition(StateStarting, StateRunning)
}

// waitSeqReady polls the log server's health endpoint until it
// answers 200 or the readiness window closes.
func (c *Controller) waitSeqReady(ctx context.Context, apiPort int) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", apiPort, seqHealthPath)
	deadline := c.options.Clock.Now().Add(c.options.ReadinessTimeout)
	for {
		healthy, detail := c.probe(ctx, url)
		if healthy {
			c.options.Logger.Info("log server healthy", "url", url)
			return nil
		}
		if !c.options.Clock.Now().Before(deadline) {
			return fmt.Errorf("%w: log server not healthy within %s (last probe: %s)",
				ErrStartupTimeout, c.options.ReadinessTimeout, detail)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.options.Clock.After(c.options.ReadinessPoll):
		}
	}
}

// probe issues one health request. It reports success and, on
// failure, a short reason for the readiness error message.
func (c *Controller) probe(ctx context.Context, url string) (bool, string) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err.Error()
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return false, err.Error()
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("status %d", response.StatusCode)
	}
	return true, ""
}

// waitSqelfReady polls the ingester until its listener marker appears
// in the container log. An ingester that exits first failed to start,
// no matter how much readiness window remains.
func (c *Controller) waitSqelfReady(ctx context.Context, name string) error {
	deadline := c.options.Clock.Now().Add(c.options.ReadinessTimeout)
	for {
		running, err := c.options.Docker.Running(ctx, name)
		if err != nil {
			return fmt.Errorf("inspecting ingester: %w", err)
		}
		if !running {
			return fmt.Errorf("ingester exited before becoming ready: %s", c.logsTail(ctx, name))
		}
		logs, err := c.options.Docker.Logs(ctx, name)
		if err == nil && bytes.Contains(logs, []byte(sqelfReadyMarker)) {
			c.options.Logger.Info("ingester ready", "container", name)
			return nil
		}
		if !c.options.Clock.Now().Before(deadline) {
			return fmt.Errorf("%w: ingester produced no listener marker within %s",
				ErrStartupTimeout, c.options.ReadinessTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.options.Clock.After(c.options.ReadinessPoll):
		}
	}
}

// logsTail fetches the last stretch of a container's log for error
// messages. Best effort; fetch problems degrade to a placeholder.
func (c *Controller) logsTail(ctx context.Context, name string) string {
	logs, err := c.options.Docker.Logs(ctx, name)
	if err != nil || len(logs) == 0 {
		return "no logs available"
	}
	const limit = 2048
	if len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return strings.TrimSpace(string(logs))
}

// transition moves the state machine, failing if the controller is
// not in the expected phase.
func (c *Controller) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return fmt.Errorf("testenv: cannot move %s -> %s", c.state, to)
	}
	c.state = to
	c.options.Logger.Debug("environment state change", "from", from.String(), "to", to.String())
	return nil
}

// require fails unless the controller is in the given phase.
func (c *Controller) require(state State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != state {
		return fmt.Errorf("testenv: environment is %s, not %s", c.state, state)
	}
	return nil
}

// record updates the environment snapshot. Handles are recorded
// before the daemon call that creates them so that Stop can release
// resources a failed call may still have created.
func (c *Controller) record(update func(*Environment)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.env)
}
