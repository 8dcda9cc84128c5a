// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package testenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/datalust/sqelf-pipeline/staging"
)

// seqExportPath is the log server API endpoint that returns stored
// events as CLEF, one JSON object per line.
const seqExportPath = "/api/events/raw?clef"

// clefFileName is the export's file name under the staging output
// directory.
const clefFileName = "events.clef"

// ExportCLEF downloads the log server's stored events in CLEF form
// and writes them under the staging output directory, returning the
// file path. The environment must still be running; the export reads
// the log server over its published API port.
func (c *Controller) ExportCLEF(ctx context.Context) (string, error) {
	if err := c.require(StateRunning); err != nil {
		return "", err
	}
	url := fmt.Sprintf("http://127.0.0.1:%d%s", c.Environment().SeqAPIHostPort, seqExportPath)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	request.Header.Set("Accept", "application/vnd.serilog.clef")
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("exporting stored events: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("exporting stored events: %s returned status %d", url, response.StatusCode)
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("exporting stored events: %w", err)
	}

	path := filepath.Join(c.options.Area.OutputDir(), clefFileName)
	if err := staging.WriteFileAtomic(path, body, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	c.options.Logger.Info("stored events exported", "path", path, "bytes", len(body))
	return path, nil
}

// LogSet names the per-container log files captured into the staging
// logs directory. A path is empty when its container was never
// created or its capture failed.
type LogSet struct {
	Seq     string
	Sqelf   string
	TestApp string
}

// CaptureLogs spools each created container's output into the
// staging logs directory. Containers that were never created are
// skipped. A failed capture is an error, but capture continues past
// it so one lost spool does not cost the others.
func (c *Controller) CaptureLogs(ctx context.Context) (LogSet, error) {
	env := c.Environment()
	var set LogSet
	var errs []error

	capture := func(container, file string, dest *string) {
		if container == "" {
			return
		}
		logs, err := c.options.Docker.Logs(ctx, container)
		if err != nil {
			// A handle recorded ahead of a failed creation points at
			// a container that never existed; that is not a capture
			// failure.
			if ignoreAbsent(err) == nil {
				return
			}
			errs = append(errs, fmt.Errorf("capturing %s logs: %w", container, err))
			return
		}
		path := filepath.Join(c.options.Area.LogsDir(), file)
		if err := staging.WriteFileAtomic(path, logs, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("writing %s: %w", path, err))
			return
		}
		c.options.Logger.Debug("container log captured", "container", container, "path", path)
		*dest = path
	}

	capture(env.Seq, "seq.log", &set.Seq)
	capture(env.Sqelf, "sqelf.log", &set.Sqelf)
	capture(env.TestApp, "testapp.log", &set.TestApp)
	return set, errors.Join(errs...)
}
