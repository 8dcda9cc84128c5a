// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the pipeline.
//
// Configuration is loaded from a single YAML file specified by:
//   - SQELF_PIPELINE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// When neither is present the built-in defaults apply unchanged, which
// is the normal CI case. There is no automatic discovery and
// environment variables do not override individual values; the only
// expansion performed is ${VAR} / ${VAR:-default} in path fields for
// portability across CI hosts.
//
// Credentials are deliberately absent from this file. The registry
// token and package API key reach the pipeline only through the
// SQELF_REGISTRY_TOKEN and SQELF_PACKAGE_API_KEY environment
// variables, read at the publish boundary and never persisted.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/bmatcuk/doublestar"
	"gopkg.in/yaml.v3"
)

// Config is the master configuration for a pipeline run.
type Config struct {
	// Staging configures the output/staging directory tree.
	Staging StagingConfig `yaml:"staging"`

	// Build configures the native and container builders.
	Build BuildConfig `yaml:"build"`

	// Environment configures the containerized test topology.
	Environment EnvironmentConfig `yaml:"environment"`

	// Workload configures the synthetic GELF workload.
	Workload WorkloadConfig `yaml:"workload"`

	// Publish configures the conditional distribution stage.
	Publish PublishConfig `yaml:"publish"`

	// History configures the local run ledger.
	History HistoryConfig `yaml:"history"`
}

// StagingConfig configures the staging directory.
type StagingConfig struct {
	// Root is the staging root. The initializer recreates it clean on
	// every run; nothing outside it is touched.
	Root string `yaml:"root"`
}

// BuildConfig configures the build stages.
type BuildConfig struct {
	// CheckoutDir is the source checkout to build. Defaults to the
	// working directory.
	CheckoutDir string `yaml:"checkout_dir"`

	// LinuxTarget is the Rust target triple for the Linux release
	// binary.
	LinuxTarget string `yaml:"linux_target"`

	// ImageRepository is the container image repository. The build
	// tags the image <image_repository>:<shortver>.
	ImageRepository string `yaml:"image_repository"`

	// Dockerfile is the path to the image Dockerfile, relative to
	// the checkout.
	Dockerfile string `yaml:"dockerfile"`

	// PackageID is the Windows package identifier.
	PackageID string `yaml:"package_id"`
}

// EnvironmentConfig configures the test environment topology and its
// waits. Duration fields are strings in Go duration syntax ("30s",
// "500ms"); Waits parses them.
type EnvironmentConfig struct {
	// ContainerPrefix namespaces the network and container names so
	// that concurrent runs on one host cannot collide.
	ContainerPrefix string `yaml:"container_prefix"`

	// SeqImage is the log server image.
	SeqImage string `yaml:"seq_image"`

	// TestAppImage is the base image the workload emitter binary runs
	// in. The emitter is bind-mounted, so any minimal image works.
	TestAppImage string `yaml:"test_app_image"`

	// TestAppBinary is the path to the workload emitter binary.
	// Empty resolves to a sqelf-testapp binary next to the running
	// executable.
	TestAppBinary string `yaml:"test_app_binary"`

	// GELFPort is the ingestion listener port inside the topology.
	GELFPort int `yaml:"gelf_port"`

	// SeqAPIPort is the log server API port inside the container.
	// The controller publishes it on an ephemeral host port for
	// readiness probes and the CLEF export.
	SeqAPIPort int `yaml:"seq_api_port"`

	// ReadinessTimeout bounds the wait for a container to report
	// healthy. Exceeding it is a startup-timeout failure.
	ReadinessTimeout string `yaml:"readiness_timeout"`

	// ReadinessPoll is the interval between readiness probes.
	ReadinessPoll string `yaml:"readiness_poll"`

	// SettleDelay is the wait after workload completion before
	// verification reads, covering asynchronous ingestion.
	SettleDelay string `yaml:"settle_delay"`

	// WorkloadTimeout bounds the wait for the emitter to finish.
	WorkloadTimeout string `yaml:"workload_timeout"`

	// StopTimeout is how long containers get to stop gracefully
	// before the daemon kills them.
	StopTimeout string `yaml:"stop_timeout"`
}

// WorkloadConfig configures the synthetic workload.
type WorkloadConfig struct {
	// ScenarioFile is an optional JSONC scenario definition. Empty
	// uses the built-in default scenario.
	ScenarioFile string `yaml:"scenario_file"`
}

// PublishConfig configures the distribution stage. Secrets are not
// part of this struct; see the package comment.
type PublishConfig struct {
	// Branches are glob patterns; publishing requires the current
	// branch to match one of them (in addition to the published-build
	// flag).
	Branches []string `yaml:"branches"`

	// Registry is the container registry host. Empty means the
	// docker client's default registry.
	Registry string `yaml:"registry"`

	// Username authenticates the registry login. The token arrives
	// via SQELF_REGISTRY_TOKEN.
	Username string `yaml:"username"`

	// PackageSource is the package feed URL for Windows package
	// pushes. The API key arrives via SQELF_PACKAGE_API_KEY.
	PackageSource string `yaml:"package_source"`

	// UploadGlobs select files under the staging root for the
	// surrounding CI system to collect, in doublestar syntax.
	UploadGlobs []string `yaml:"upload_globs"`
}

// HistoryConfig configures the run ledger.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables the ledger.
	Path string `yaml:"path"`
}

// Waits holds the parsed duration knobs of EnvironmentConfig.
type Waits struct {
	Readiness time.Duration
	Poll      time.Duration
	Settle    time.Duration
	Workload  time.Duration
	Stop      time.Duration
}

// Default returns the default configuration. CI runs typically use it
// unchanged.
func Default() *Config {
	return &Config{
		Staging: StagingConfig{
			Root: "target/pipeline",
		},
		Build: BuildConfig{
			CheckoutDir:     ".",
			LinuxTarget:     "x86_64-unknown-linux-musl",
			ImageRepository: "datalust/sqelf",
			Dockerfile:      "Dockerfile",
			PackageID:       "Seq.Input.Gelf",
		},
		Environment: EnvironmentConfig{
			ContainerPrefix:  "sqelf-ci",
			SeqImage:         "datalust/seq:latest",
			TestAppImage:     "alpine:3.22",
			TestAppBinary:    "",
			GELFPort:         12201,
			SeqAPIPort:       80,
			ReadinessTimeout: "30s",
			ReadinessPoll:    "500ms",
			SettleDelay:      "5s",
			WorkloadTimeout:  "2m",
			StopTimeout:      "30s",
		},
		Workload: WorkloadConfig{
			ScenarioFile: "",
		},
		Publish: PublishConfig{
			Branches:      []string{"main", "dev"},
			Registry:      "",
			Username:      "",
			PackageSource: "https://api.nuget.org/v3/index.json",
			UploadGlobs: []string{
				"report.jsonl",
				"manifest.json",
				"diagnostics.tar.zst",
				"output/**/*.clef",
				"logs/**",
				"images/*.tar.lz4",
				"pkg/*.nupkg",
			},
		},
		History: HistoryConfig{
			Path: "${HOME}/.cache/sqelf-pipeline/history.db",
		},
	}
}

// Load loads configuration from SQELF_PIPELINE_CONFIG, or returns the
// defaults when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("SQELF_PIPELINE_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging over
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	c.Staging.Root = expandVars(c.Staging.Root)
	c.Build.CheckoutDir = expandVars(c.Build.CheckoutDir)
	c.Environment.TestAppBinary = expandVars(c.Environment.TestAppBinary)
	c.Workload.ScenarioFile = expandVars(c.Workload.ScenarioFile)
	c.History.Path = expandVars(c.History.Path)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns against the
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Waits parses the environment duration fields.
func (c *EnvironmentConfig) Waits() (Waits, error) {
	var waits Waits
	var errs []error

	parse := func(name, value string, out *time.Duration) {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("environment.%s: invalid duration %q", name, value))
			return
		}
		if parsed <= 0 {
			errs = append(errs, fmt.Errorf("environment.%s: duration must be positive, got %q", name, value))
			return
		}
		*out = parsed
	}

	parse("readiness_timeout", c.ReadinessTimeout, &waits.Readiness)
	parse("readiness_poll", c.ReadinessPoll, &waits.Poll)
	parse("settle_delay", c.SettleDelay, &waits.Settle)
	parse("workload_timeout", c.WorkloadTimeout, &waits.Workload)
	parse("stop_timeout", c.StopTimeout, &waits.Stop)

	if len(errs) > 0 {
		return Waits{}, errors.Join(errs...)
	}
	return waits, nil
}

// Validate checks the configuration for errors, reporting all problems
// at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Staging.Root == "" {
		errs = append(errs, fmt.Errorf("staging.root is required"))
	}
	if c.Build.CheckoutDir == "" {
		errs = append(errs, fmt.Errorf("build.checkout_dir is required"))
	}
	if c.Build.LinuxTarget == "" {
		errs = append(errs, fmt.Errorf("build.linux_target is required"))
	}
	if c.Build.ImageRepository == "" {
		errs = append(errs, fmt.Errorf("build.image_repository is required"))
	}
	if c.Build.PackageID == "" {
		errs = append(errs, fmt.Errorf("build.package_id is required"))
	}
	if c.Environment.ContainerPrefix == "" {
		errs = append(errs, fmt.Errorf("environment.container_prefix is required"))
	}
	if c.Environment.SeqImage == "" {
		errs = append(errs, fmt.Errorf("environment.seq_image is required"))
	}
	if c.Environment.TestAppImage == "" {
		errs = append(errs, fmt.Errorf("environment.test_app_image is required"))
	}
	if c.Environment.GELFPort < 1 || c.Environment.GELFPort > 65535 {
		errs = append(errs, fmt.Errorf("environment.gelf_port out of range: %d", c.Environment.GELFPort))
	}
	if c.Environment.SeqAPIPort < 1 || c.Environment.SeqAPIPort > 65535 {
		errs = append(errs, fmt.Errorf("environment.seq_api_port out of range: %d", c.Environment.SeqAPIPort))
	}

	if _, err := c.Environment.Waits(); err != nil {
		errs = append(errs, err)
	}

	for _, pattern := range c.Publish.Branches {
		if _, err := doublestar.Match(pattern, "probe"); err != nil {
			errs = append(errs, fmt.Errorf("publish.branches: invalid pattern %q", pattern))
		}
	}
	for _, pattern := range c.Publish.UploadGlobs {
		if _, err := doublestar.Match(pattern, "probe"); err != nil {
			errs = append(errs, fmt.Errorf("publish.upload_globs: invalid pattern %q", pattern))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
