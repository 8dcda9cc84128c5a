// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package dockercli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
)

// errorTailLimit bounds how much captured stderr is carried into an
// error message. Build output is streamed live separately; the error
// only needs the trailing diagnostic.
const errorTailLimit = 4096

// Client issues docker CLI commands through a cmdrun.Runner.
type Client struct {
	runner cmdrun.Runner
	logger *slog.Logger
}

// New returns a Client that runs the docker CLI through runner. A nil
// logger discards operational messages.
func New(runner cmdrun.Runner, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{runner: runner, logger: logger}
}

// BuildSpec describes a docker image build.
type BuildSpec struct {
	// ContextDir is the build context directory.
	ContextDir string

	// Dockerfile is the path to the Dockerfile, relative to
	// ContextDir or absolute. Empty uses the context default.
	Dockerfile string

	// Tag is applied to the built image.
	Tag string

	// BuildArgs are passed as --build-arg NAME=VALUE, in sorted
	// order for reproducible invocations.
	BuildArgs map[string]string

	// Stream, when non-nil, receives live build output.
	Stream io.Writer
}

// Build runs docker build.
func (c *Client) Build(ctx context.Context, spec BuildSpec) error {
	args := []string{"build"}
	if spec.Dockerfile != "" {
		args = append(args, "--file", spec.Dockerfile)
	}
	args = append(args, "--tag", spec.Tag)
	for _, name := range sortedKeys(spec.BuildArgs) {
		args = append(args, "--build-arg", name+"="+spec.BuildArgs[name])
	}
	args = append(args, spec.ContextDir)
	return c.exec(ctx, args, nil, spec.Stream)
}

// NetworkCreate creates a bridge network with the given name.
func (c *Client) NetworkCreate(ctx context.Context, name string) error {
	return c.exec(ctx, []string{"network", "create", name}, nil, nil)
}

// NetworkRemove removes a network. Removing an absent network is an
// error; teardown callers treat it as already-released.
func (c *Client) NetworkRemove(ctx context.Context, name string) error {
	return c.exec(ctx, []string{"network", "rm", name}, nil, nil)
}

// PortMapping publishes a container port on an ephemeral host port.
type PortMapping struct {
	// ContainerPort is the port inside the container.
	ContainerPort int

	// Protocol is "tcp" or "udp". Empty means tcp.
	Protocol string
}

func (p PortMapping) spec() string {
	protocol := p.Protocol
	if protocol == "" {
		protocol = "tcp"
	}
	return fmt.Sprintf("%d/%s", p.ContainerPort, protocol)
}

// Mount binds a host path into a container.
type Mount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// ContainerSpec describes a detached container run.
type ContainerSpec struct {
	// Name is the container name. Required: teardown removes
	// containers by name so that a crashed start can still release
	// them.
	Name string

	// Image is the image reference to run.
	Image string

	// Network attaches the container to a named network.
	Network string

	// Env holds container environment variables, passed in sorted
	// order.
	Env map[string]string

	// Publish exposes container ports on ephemeral host ports.
	Publish []PortMapping

	// Mounts binds host paths into the container.
	Mounts []Mount

	// Args are appended after the image as the container command.
	Args []string
}

// RunDetached starts a container with docker run -d and returns the
// container ID.
func (c *Client) RunDetached(ctx context.Context, spec ContainerSpec) (string, error) {
	args := []string{"run", "--detach", "--name", spec.Name}
	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}
	for _, name := range sortedKeys(spec.Env) {
		args = append(args, "--env", name+"="+spec.Env[name])
	}
	for _, port := range spec.Publish {
		args = append(args, "--publish", port.spec())
	}
	for _, mount := range spec.Mounts {
		bind := mount.HostPath + ":" + mount.ContainerPath
		if mount.ReadOnly {
			bind += ":ro"
		}
		args = append(args, "--volume", bind)
	}
	args = append(args, spec.Image)
	args = append(args, spec.Args...)

	result, err := c.run(ctx, args, nil, nil)
	if err != nil {
		return "", err
	}
	containerID := strings.TrimSpace(string(result.Stdout))
	c.logger.Info("container started", "name", spec.Name, "id", containerID)
	return containerID, nil
}

// Wait blocks until the named container exits and returns its exit
// code.
func (c *Client) Wait(ctx context.Context, name string) (int, error) {
	result, err := c.run(ctx, []string{"wait", name}, nil, nil)
	if err != nil {
		return 0, err
	}
	code, err := strconv.Atoi(strings.TrimSpace(string(result.Stdout)))
	if err != nil {
		return 0, fmt.Errorf("docker wait %s: unparseable exit code %q", name, result.Stdout)
	}
	return code, nil
}

// Stop sends the container's stop signal and waits up to timeout
// before the daemon force-kills it.
func (c *Client) Stop(ctx context.Context, name string, timeout time.Duration) error {
	seconds := int(timeout / time.Second)
	return c.exec(ctx, []string{"stop", "--time", strconv.Itoa(seconds), name}, nil, nil)
}

// RemoveForce removes a container and its anonymous volumes,
// force-killing it if still running. Removing an absent container is
// an error; teardown callers treat it as already-released.
func (c *Client) RemoveForce(ctx context.Context, name string) error {
	return c.exec(ctx, []string{"rm", "--force", "--volumes", name}, nil, nil)
}

// Running reports whether the named container is currently running.
// Inspecting an absent container is an error.
func (c *Client) Running(ctx context.Context, name string) (bool, error) {
	result, err := c.run(ctx, []string{"inspect", "--format", "{{.State.Running}}", name}, nil, nil)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(result.Stdout)) == "true", nil
}

// Logs fetches a container's output, stdout and stderr interleaved in
// docker's order.
func (c *Client) Logs(ctx context.Context, name string) ([]byte, error) {
	result, err := c.run(ctx, []string{"logs", name}, nil, nil)
	if err != nil {
		return nil, err
	}
	// docker logs replays the container's stdout on stdout and its
	// stderr on stderr. Verification scans both.
	combined := make([]byte, 0, len(result.Stdout)+len(result.Stderr))
	combined = append(combined, result.Stdout...)
	combined = append(combined, result.Stderr...)
	return combined, nil
}

// Port resolves the host port an exposed container port was published
// on.
func (c *Client) Port(ctx context.Context, name string, mapping PortMapping) (int, error) {
	result, err := c.run(ctx, []string{"port", name, mapping.spec()}, nil, nil)
	if err != nil {
		return 0, err
	}
	// Output is one line per bound host address, e.g.
	// "0.0.0.0:32768" and "[::]:32768". Any line yields the port.
	for line := range strings.Lines(string(result.Stdout)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		index := strings.LastIndex(line, ":")
		if index < 0 {
			continue
		}
		port, err := strconv.Atoi(line[index+1:])
		if err != nil {
			continue
		}
		return port, nil
	}
	return 0, fmt.Errorf("docker port %s %s: no bound port in %q", name, mapping.spec(), result.Stdout)
}

// Tag applies an additional tag to an existing image.
func (c *Client) Tag(ctx context.Context, source, target string) error {
	return c.exec(ctx, []string{"tag", source, target}, nil, nil)
}

// Push uploads an image tag to its registry.
func (c *Client) Push(ctx context.Context, tag string, stream io.Writer) error {
	return c.exec(ctx, []string{"push", tag}, nil, stream)
}

// Login authenticates the docker client against a registry. The token
// is read from the reader and passed on stdin; it never appears in
// the argument vector.
func (c *Client) Login(ctx context.Context, registry, username string, token io.Reader) error {
	args := []string{"login", "--username", username, "--password-stdin"}
	if registry != "" {
		args = append(args, registry)
	}
	return c.exec(ctx, args, token, nil)
}

// SaveTo exports an image to a tar archive at path.
func (c *Client) SaveTo(ctx context.Context, tag, path string) error {
	return c.exec(ctx, []string{"save", "--output", path, tag}, nil, nil)
}

// exec runs a docker command and discards its output, converting a
// non-zero exit into an error.
func (c *Client) exec(ctx context.Context, args []string, stdin io.Reader, stream io.Writer) error {
	_, err := c.run(ctx, args, stdin, stream)
	return err
}

// run executes docker with args and fails on non-zero exit, carrying
// the stderr tail in the error.
func (c *Client) run(ctx context.Context, args []string, stdin io.Reader, stream io.Writer) (cmdrun.Result, error) {
	result, err := c.runner.Run(ctx, cmdrun.Spec{
		Program: "docker",
		Args:    args,
		Stdin:   stdin,
		Stream:  stream,
	})
	if err != nil {
		return result, fmt.Errorf("docker %s: %w", args[0], err)
	}
	if result.ExitCode != 0 {
		return result, fmt.Errorf("docker %s: exit code %d: %s", args[0], result.ExitCode, tailOf(result.Stderr))
	}
	return result, nil
}

// tailOf returns the trailing portion of captured stderr, trimmed for
// inclusion in an error message.
func tailOf(stderr []byte) string {
	tail := bytes.TrimSpace(stderr)
	if len(tail) > errorTailLimit {
		tail = tail[len(tail)-errorTailLimit:]
	}
	return string(tail)
}

// sortedKeys returns the map's keys in sorted order so that generated
// argument vectors are stable run to run.
func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
