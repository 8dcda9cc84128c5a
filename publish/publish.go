// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
	"github.com/datalust/sqelf-pipeline/lib/dockercli"
	"github.com/datalust/sqelf-pipeline/staging"
)

// Secrets carries the publish credentials. They arrive through the
// environment at the publish boundary and are never logged or
// persisted.
type Secrets struct {
	// RegistryToken authenticates the container registry push.
	RegistryToken string

	// PackageAPIKey authenticates the package feed push.
	PackageAPIKey string
}

// SecretsFromEnv reads the publish credentials from the process
// environment.
func SecretsFromEnv() Secrets {
	return Secrets{
		RegistryToken: os.Getenv("SQELF_REGISTRY_TOKEN"),
		PackageAPIKey: os.Getenv("SQELF_PACKAGE_API_KEY"),
	}
}

// Decision is the publish-or-skip verdict for a run.
type Decision struct {
	// Publish is true when the run should push its artifacts.
	Publish bool

	// Reason explains the verdict for the run report.
	Reason string
}

// Decide gates publication: the build must be flagged as a published
// build and the branch must match one of the configured patterns.
func Decide(publishedBuild bool, branch string, patterns []string) Decision {
	if !publishedBuild {
		return Decision{Reason: "not a published build"}
	}
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, branch)
		if err != nil {
			continue
		}
		if matched {
			return Decision{
				Publish: true,
				Reason:  fmt.Sprintf("branch %q matches publish pattern %q", branch, pattern),
			}
		}
	}
	return Decision{Reason: fmt.Sprintf("branch %q matches no publish pattern", branch)}
}

// Publisher pushes artifacts to the distribution targets.
type Publisher struct {
	// Docker pushes container images.
	Docker *dockercli.Client

	// Runner executes the package push tool.
	Runner cmdrun.Runner

	// Logger receives publish progress. Nil discards.
	Logger *slog.Logger

	// Branches are the publish branch patterns, in doublestar
	// syntax.
	Branches []string

	// Registry is the container registry host. Empty uses the
	// docker client's default.
	Registry string

	// Username authenticates the registry login.
	Username string

	// PackageSource is the package feed URL.
	PackageSource string
}

// Input describes what one run offers for publication.
type Input struct {
	// Artifacts is the run's full artifact set. The publisher
	// selects the image tags and packages from it.
	Artifacts []staging.Artifact

	// Version is the run's short version.
	Version string

	// Branch is the branch under build.
	Branch string

	// PublishedBuild is the CI published-build flag.
	PublishedBuild bool
}

// Report summarizes a publish stage.
type Report struct {
	// Skipped is true when the gate decided against publishing.
	Skipped bool

	// Reason is the gate's explanation.
	Reason string

	// PushedImages lists the image tags pushed.
	PushedImages []string

	// PushedPackages lists the package files pushed.
	PushedPackages []string
}

// Run publishes the run's artifacts, or skips without a single
// network call when the gate decides against it. Push failures are
// collected rather than aborting, so one failed tag does not abandon
// the rest of the artifact set; the joined error reports them all.
func (p *Publisher) Run(ctx context.Context, input Input, secrets Secrets) (Report, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	decision := Decide(input.PublishedBuild, input.Branch, p.Branches)
	if !decision.Publish {
		logger.Info("publish skipped", "reason", decision.Reason)
		return Report{Skipped: true, Reason: decision.Reason}, nil
	}
	logger.Info("publishing", "reason", decision.Reason, "version", input.Version)

	report := Report{Reason: decision.Reason}
	var problems []error

	images := staging.ByKind(input.Artifacts, staging.KindContainerImage)
	if len(images) > 0 {
		if err := p.login(ctx, secrets); err != nil {
			problems = append(problems, err)
		} else {
			for _, image := range images {
				pushed, err := p.pushImage(ctx, image.Reference)
				report.PushedImages = append(report.PushedImages, pushed...)
				if err != nil {
					problems = append(problems, err)
				}
			}
		}
	}

	for _, pkg := range staging.ByKind(input.Artifacts, staging.KindPackage) {
		if err := p.pushPackage(ctx, pkg.Reference, secrets); err != nil {
			problems = append(problems, err)
			continue
		}
		report.PushedPackages = append(report.PushedPackages, pkg.Reference)
		logger.Info("package pushed", "package", pkg.Reference, "source", p.PackageSource)
	}

	if err := errors.Join(problems...); err != nil {
		return report, fmt.Errorf("publish: %w", err)
	}
	return report, nil
}

// login authenticates the registry when credentials are configured.
// The token travels to the docker client over stdin only.
func (p *Publisher) login(ctx context.Context, secrets Secrets) error {
	if p.Username == "" || secrets.RegistryToken == "" {
		return nil
	}
	if err := p.Docker.Login(ctx, p.Registry, p.Username, strings.NewReader(secrets.RegistryToken)); err != nil {
		return fmt.Errorf("registry login: %w", err)
	}
	return nil
}

// pushImage pushes a version tag and its floating latest alias,
// returning whichever tags made it.
func (p *Publisher) pushImage(ctx context.Context, tag string) ([]string, error) {
	var pushed []string
	if err := p.Docker.Push(ctx, tag, nil); err != nil {
		return pushed, fmt.Errorf("pushing %s: %w", tag, err)
	}
	pushed = append(pushed, tag)

	latest := latestAlias(tag)
	if latest == "" || latest == tag {
		return pushed, nil
	}
	if err := p.Docker.Tag(ctx, tag, latest); err != nil {
		return pushed, fmt.Errorf("tagging %s: %w", latest, err)
	}
	if err := p.Docker.Push(ctx, latest, nil); err != nil {
		return pushed, fmt.Errorf("pushing %s: %w", latest, err)
	}
	return append(pushed, latest), nil
}

// latestAlias rewrites an image tag's version to latest.
func latestAlias(tag string) string {
	index := strings.LastIndex(tag, ":")
	if index < 0 {
		return ""
	}
	return tag[:index] + ":latest"
}

// pushPackage pushes one package file to the feed. The API key is a
// command argument: the push tool offers no other channel, and the
// runner never logs argument values.
func (p *Publisher) pushPackage(ctx context.Context, path string, secrets Secrets) error {
	args := []string{"push", path, "-Source", p.PackageSource, "-NonInteractive"}
	if secrets.PackageAPIKey != "" {
		args = append(args, "-ApiKey", secrets.PackageAPIKey)
	}
	result, err := p.Runner.Run(ctx, cmdrun.Spec{Program: "nuget", Args: args})
	if err != nil {
		return fmt.Errorf("pushing package %s: %w", path, err)
	}
	if result.ExitCode != 0 {
		tail := bytes.TrimSpace(result.Stderr)
		return fmt.Errorf("pushing package %s: nuget exited %d: %s", path, result.ExitCode, tail)
	}
	return nil
}
