// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/datalust/sqelf-pipeline/builder"
	"github.com/datalust/sqelf-pipeline/history"
	"github.com/datalust/sqelf-pipeline/lib/clock"
	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
	"github.com/datalust/sqelf-pipeline/lib/config"
	"github.com/datalust/sqelf-pipeline/lib/dockercli"
	"github.com/datalust/sqelf-pipeline/publish"
	"github.com/datalust/sqelf-pipeline/staging"
	"github.com/datalust/sqelf-pipeline/testenv"
	"github.com/datalust/sqelf-pipeline/toolchain"
	"github.com/datalust/sqelf-pipeline/verify"
	"github.com/datalust/sqelf-pipeline/workload"
)

// Driver executes one pipeline run end to end.
type Driver struct {
	// Config is the validated run configuration.
	Config *config.Config

	// Build is the run's identity.
	Build BuildContext

	// Runner executes build tools and the package push.
	Runner cmdrun.Runner

	// Docker drives the container daemon.
	Docker *dockercli.Client

	// Clock paces waits and stamps durations. Nil means the real
	// clock.
	Clock clock.Clock

	// Logger receives run progress. Nil discards.
	Logger *slog.Logger

	// Ledger optionally records the run in the history database.
	// Ledger writes are best-effort; a failed write never fails the
	// run.
	Ledger *history.Store

	// Secrets carries the publish credentials. Read only inside the
	// publish stage.
	Secrets publish.Secrets

	// Stream, when non-nil, receives live compiler and image build
	// output.
	Stream io.Writer
}

// runState accumulates what the deferred finalizer needs: the report,
// the ledger rows, and the upload set.
type runState struct {
	report    *Report
	stages    []history.Stage
	index     int
	startedAt time.Time
	uploads   []string
}

// Execute runs the pipeline: toolchain verification, staging
// preparation, native build, then on linux the image build and the
// containerized verification run, then the manifest and the
// conditional publish. The first fatal failure aborts the remainder;
// a started environment is torn down on every exit path before
// Execute returns.
func (d *Driver) Execute(ctx context.Context) (err error) {
	if d.Config == nil {
		return errors.New("pipeline: configuration is required")
	}
	if err := d.Build.Validate(); err != nil {
		return err
	}
	if err := d.Config.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	// Validated above.
	waits, _ := d.Config.Environment.Waits()

	state := &runState{report: NewReport(logger), startedAt: clk.Now()}
	defer state.report.Close()
	state.report.Start(d.Build, d.stageCount(), state.startedAt)
	logger.Info("pipeline starting",
		"version", d.Build.ShortVersion,
		"platform", d.Build.Platform,
		"branch", d.Build.Branch,
		"published_build", d.Build.IsPublishedBuild)

	defer func() {
		duration := clk.Now().Sub(state.startedAt)
		d.finalize(state, err, duration, logger)
	}()

	// Stage 1: toolchain verification, before anything that would
	// invoke a tool.
	tools := toolchain.LinuxTools
	if d.Build.Platform == "windows" {
		tools = toolchain.WindowsTools
	}
	err = d.stage(ctx, state, logger, clk, "verify-toolchain", KindToolchainMissing,
		func(ctx context.Context) (string, error) {
			verified, err := toolchain.Verify(ctx, d.Runner, logger, tools)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d tools verified", len(verified)), nil
		})
	if err != nil {
		return err
	}

	// Stage 2: a clean staging tree. The run report lives inside it,
	// so the report attaches here and replays the buffered lines.
	var area *staging.Area
	err = d.stage(ctx, state, logger, clk, "init-staging", KindFilesystemError,
		func(ctx context.Context) (string, error) {
			initialized, err := staging.Initialize(d.Config.Staging.Root)
			if err != nil {
				return "", err
			}
			area = initialized
			if err := state.report.AttachFile(initialized.ReportPath()); err != nil {
				return "", err
			}
			return initialized.Root(), nil
		})
	if err != nil {
		return err
	}

	// Stage 3: the native build.
	var artifacts []staging.Artifact
	err = d.stage(ctx, state, logger, clk, "build-native", KindBuildFailure,
		func(ctx context.Context) (string, error) {
			backend, err := builder.ForPlatform(d.Build.Platform, builder.Options{
				Runner:      d.Runner,
				Logger:      logger,
				Area:        area,
				Checkout:    d.Config.Build.CheckoutDir,
				Version:     d.Build.ShortVersion,
				LinuxTarget: d.Config.Build.LinuxTarget,
				PackageID:   d.Config.Build.PackageID,
				Stream:      d.Stream,
			})
			if err != nil {
				return "", err
			}
			built, err := backend.Build(ctx)
			if err != nil {
				return "", err
			}
			artifacts = append(artifacts, built...)
			return artifactSummary(built), nil
		})
	if err != nil {
		return err
	}

	if d.Build.Platform == "linux" {
		artifacts, err = d.linuxVerificationRun(ctx, state, logger, clk, waits, area, artifacts)
		if err != nil {
			return err
		}
	}

	// Manifest and upload set: every file a CI consumer may collect,
	// digested.
	err = d.stage(ctx, state, logger, clk, "write-manifest", KindFilesystemError,
		func(ctx context.Context) (string, error) {
			if _, err := staging.WriteManifest(area, d.Build.ShortVersion, clk.Now(), artifacts); err != nil {
				return "", err
			}
			uploads, err := publish.UploadSet(area, d.Config.Publish.UploadGlobs)
			if err != nil {
				return "", err
			}
			state.uploads = uploads
			return fmt.Sprintf("%d artifacts, %d files in upload set", len(artifacts), len(uploads)), nil
		})
	if err != nil {
		return err
	}

	// Publish last. A failure here is the one non-fatal kind: the
	// artifacts are good, distribution is not, and the caller exits
	// clean with a warning.
	return d.stage(ctx, state, logger, clk, "publish", KindPublishFailure,
		func(ctx context.Context) (string, error) {
			publisher := &publish.Publisher{
				Docker:        d.Docker,
				Runner:        d.Runner,
				Logger:        logger,
				Branches:      d.Config.Publish.Branches,
				Registry:      d.Config.Publish.Registry,
				Username:      d.Config.Publish.Username,
				PackageSource: d.Config.Publish.PackageSource,
			}
			report, err := publisher.Run(ctx, publish.Input{
				Artifacts:      artifacts,
				Version:        d.Build.ShortVersion,
				Branch:         d.Build.Branch,
				PublishedBuild: d.Build.IsPublishedBuild,
			}, d.Secrets)
			if err != nil {
				return "", err
			}
			if report.Skipped {
				return "skipped: " + report.Reason, nil
			}
			return fmt.Sprintf("%d images, %d packages pushed",
				len(report.PushedImages), len(report.PushedPackages)), nil
		})
}

// linuxVerificationRun covers the container-dependent middle of the
// pipeline: image build, environment lifecycle, workload, the three
// verification channels, and teardown. It returns the artifact set
// extended with what the run produced.
func (d *Driver) linuxVerificationRun(ctx context.Context, state *runState, logger *slog.Logger, clk clock.Clock, waits config.Waits, area *staging.Area, artifacts []staging.Artifact) ([]staging.Artifact, error) {
	// Stage 4: the container image.
	err := d.stage(ctx, state, logger, clk, "build-image", KindContainerBuildFailure,
		func(ctx context.Context) (string, error) {
			binaries := staging.ByKind(artifacts, staging.KindBinary)
			if len(binaries) == 0 {
				return "", errors.New("native build staged no binary")
			}
			imageBuilder := &builder.ImageBuilder{
				Docker:     d.Docker,
				Logger:     logger,
				Area:       area,
				Repository: d.Config.Build.ImageRepository,
				Dockerfile: filepath.Join(d.Config.Build.CheckoutDir, d.Config.Build.Dockerfile),
				Version:    d.Build.ShortVersion,
				Stream:     d.Stream,
			}
			built, err := imageBuilder.Build(ctx, binaries[0])
			if err != nil {
				return "", err
			}
			artifacts = append(artifacts, built...)
			return artifactSummary(built), nil
		})
	if err != nil {
		return artifacts, err
	}

	scenario, err := d.loadScenario()
	if err != nil {
		return artifacts, failed(KindFilesystemError, "start-environment", err)
	}
	testAppBinary, err := d.testAppBinary()
	if err != nil {
		return artifacts, failed(KindFilesystemError, "start-environment", err)
	}

	images := staging.ByKind(artifacts, staging.KindContainerImage)
	controller, err := testenv.New(testenv.Options{
		Docker:           d.Docker,
		Area:             area,
		Clock:            clk,
		Logger:           logger,
		Prefix:           d.Config.Environment.ContainerPrefix,
		SeqImage:         d.Config.Environment.SeqImage,
		SqelfImage:       images[0].Reference,
		TestAppImage:     d.Config.Environment.TestAppImage,
		TestAppBinary:    testAppBinary,
		ScenarioPath:     d.Config.Workload.ScenarioFile,
		GELFPort:         d.Config.Environment.GELFPort,
		SeqAPIPort:       d.Config.Environment.SeqAPIPort,
		ReadinessTimeout: waits.Readiness,
		ReadinessPoll:    waits.Poll,
		SettleDelay:      waits.Settle,
		WorkloadTimeout:  waits.Workload,
		StopTimeout:      waits.Stop,
	})
	if err != nil {
		return artifacts, failed(KindStartupTimeout, "start-environment", err)
	}

	// From here on the environment may hold containers; release them
	// on every exit path. Stop is idempotent, so the explicit stop
	// stage on the success path makes this a no-op there. The
	// teardown runs on a context that survives cancellation of the
	// run itself.
	defer func() {
		if stopErr := controller.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			logger.Error("environment teardown incomplete", "error", stopErr)
		}
	}()

	// Stage 5: bring the topology up. Readiness overruns surface as
	// startup timeouts, as does any other failure to start.
	err = d.stage(ctx, state, logger, clk, "start-environment", KindStartupTimeout,
		func(ctx context.Context) (string, error) {
			if err := controller.Start(ctx); err != nil {
				return "", err
			}
			env := controller.Environment()
			return fmt.Sprintf("network %s, log server API on host port %d", env.Network, env.SeqAPIHostPort), nil
		})
	if err != nil {
		return artifacts, err
	}

	// Stage 6: wait out the workload and the settle delay. Nothing
	// is verifiable if the emitter did not finish.
	err = d.stage(ctx, state, logger, clk, "run-workload", KindVerificationFailure,
		func(ctx context.Context) (string, error) {
			if err := controller.RunWorkload(ctx); err != nil {
				return "", err
			}
			if err := controller.Settle(ctx); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d events emitted, settled %s", scenario.ExpectedRecords(), waits.Settle), nil
		})
	if err != nil {
		return artifacts, err
	}

	// Stage 7: pull the three observation channels into staging
	// while the environment still runs.
	var inputs verify.Inputs
	err = d.stage(ctx, state, logger, clk, "collect-observations", KindVerificationFailure,
		func(ctx context.Context) (string, error) {
			clefPath, err := controller.ExportCLEF(ctx)
			if err != nil {
				return "", err
			}
			artifacts = append(artifacts, staging.Artifact{
				Kind: staging.KindRecordExport, Reference: clefPath, ProducedBy: "collect-observations",
			})
			// A lost log spool is not fatal here: the verification
			// checks fail with a precise detail when their file is
			// missing, which is the better diagnostic.
			logs, logErr := controller.CaptureLogs(ctx)
			if logErr != nil {
				logger.Warn("log capture incomplete", "error", logErr)
			}
			inputs = verify.Inputs{SqelfLog: logs.Sqelf, SeqLog: logs.Seq, CLEF: clefPath}
			return filepath.Base(clefPath) + " exported, container logs captured", nil
		})
	if err != nil {
		return artifacts, err
	}

	// Stage 8: the three-channel verification.
	err = d.stage(ctx, state, logger, clk, "verify", KindVerificationFailure,
		func(ctx context.Context) (string, error) {
			suite := &verify.Suite{Scenario: scenario, Logger: logger}
			results := suite.Run(inputs)
			if !results.Passed() {
				return "", errors.New(results.Summary())
			}
			detail := ""
			for _, result := range results {
				if detail != "" {
					detail += "; "
				}
				detail += fmt.Sprintf("%s: %s", result.Channel, result.Detail)
			}
			return detail, nil
		})
	if err != nil {
		return artifacts, err
	}

	// Stage 9: orderly teardown, then bundle the captured logs. A
	// teardown that leaks resources fails the run even though
	// verification passed: the next run on this host inherits the
	// leak.
	err = d.stage(ctx, state, logger, clk, "stop-environment", KindTeardownIncomplete,
		func(ctx context.Context) (string, error) {
			if err := controller.Stop(context.WithoutCancel(ctx)); err != nil {
				return "", err
			}
			if err := staging.BundleDir(area.LogsDir(), area.BundlePath()); err != nil {
				return "", fmt.Errorf("bundling diagnostics: %w", err)
			}
			artifacts = append(artifacts, staging.Artifact{
				Kind: staging.KindLogBundle, Reference: area.BundlePath(), ProducedBy: "stop-environment",
			})
			return "environment stopped, diagnostics bundled", nil
		})
	return artifacts, err
}

// stage times one stage, records its outcome in the report and the
// ledger rows, and classifies its failure.
func (d *Driver) stage(ctx context.Context, state *runState, logger *slog.Logger, clk clock.Clock, name string, kind FailureKind, fn func(ctx context.Context) (string, error)) error {
	index := state.index
	state.index++
	logger.Info("stage starting", "stage", name, "index", index)

	started := clk.Now()
	detail, err := fn(ctx)
	duration := clk.Now().Sub(started)

	if err != nil {
		err = failed(kind, name, err)
		state.report.Stage(index, name, "failed", detail, duration, err.Error())
		state.stages = append(state.stages, history.Stage{
			Name: name, Status: "failed", Detail: err.Error(), Duration: duration,
		})
		logger.Error("stage failed", "stage", name, "duration", duration, "error", err)
		return err
	}

	state.report.Stage(index, name, "ok", detail, duration, "")
	state.stages = append(state.stages, history.Stage{
		Name: name, Status: "ok", Detail: detail, Duration: duration,
	})
	logger.Info("stage complete", "stage", name, "duration", duration, "detail", detail)
	return nil
}

// finalize writes the report's last line and the ledger row. It runs
// on every exit path, after any environment teardown.
func (d *Driver) finalize(state *runState, runErr error, duration time.Duration, logger *slog.Logger) {
	status := "ok"
	failure := ""
	switch {
	case runErr == nil:
		state.report.Complete("ok", duration, state.uploads)
	case IsPublishFailure(runErr):
		status = "publish-failed"
		failure = KindPublishFailure.String()
		state.report.Complete("publish-failed", duration, state.uploads)
	default:
		status = "failed"
		stage := "pipeline"
		kind := "error"
		var classified *Failure
		if errors.As(runErr, &classified) {
			stage = classified.Stage
			kind = classified.Kind.String()
		}
		failure = kind
		state.report.Failed(stage, kind, runErr.Error(), duration)
	}

	if d.Ledger == nil {
		return
	}
	run := history.Run{
		Version:   d.Build.ShortVersion,
		Platform:  d.Build.Platform,
		Branch:    d.Build.Branch,
		Published: d.Build.IsPublishedBuild,
		Status:    status,
		Failure:   failure,
		StartedAt: state.startedAt,
		Duration:  duration,
	}
	// The run is already decided; give the ledger write its own
	// bounded context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := d.Ledger.RecordRun(ctx, run, state.stages); err != nil {
		logger.Warn("history ledger write failed", "error", err)
	}
}

// stageCount is the number of stages this run will attempt.
func (d *Driver) stageCount() int {
	if d.Build.Platform == "windows" {
		return 5
	}
	return 11
}

// loadScenario reads the configured scenario file, or returns the
// built-in default.
func (d *Driver) loadScenario() (*workload.Scenario, error) {
	if d.Config.Workload.ScenarioFile == "" {
		return workload.Default(), nil
	}
	return workload.ReadFile(d.Config.Workload.ScenarioFile)
}

// testAppBinary resolves the workload emitter binary: the configured
// path, or a sqelf-testapp next to the running executable.
func (d *Driver) testAppBinary() (string, error) {
	if configured := d.Config.Environment.TestAppBinary; configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("workload emitter binary: %w", err)
		}
		return configured, nil
	}
	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving workload emitter binary: %w", err)
	}
	sibling := filepath.Join(filepath.Dir(executable), "sqelf-testapp")
	if _, err := os.Stat(sibling); err != nil {
		return "", fmt.Errorf("workload emitter binary not found at %s (set environment.test_app_binary)", sibling)
	}
	return sibling, nil
}

// artifactSummary renders a staged artifact list for a stage detail.
func artifactSummary(artifacts []staging.Artifact) string {
	summary := ""
	for _, artifact := range artifacts {
		if summary != "" {
			summary += ", "
		}
		summary += string(artifact.Kind) + " " + filepath.Base(artifact.Reference)
	}
	return summary
}
