// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package cmdrun executes the external programs the pipeline drives:
// cargo, cross, nuget, and the docker CLI. It centralizes process
// group handling, termination grace, output capture, and exit code
// extraction behind a small Runner interface that tests replace with
// canned responses.
//
// A non-zero exit code is not an error at this layer. Run returns the
// exit code in the Result and reserves the error return for failures
// to execute at all: the program missing from PATH, a cancelled
// context, a signal. Callers decide what an exit code means for their
// stage.
//
// Commands run in their own process group. On cancellation the whole
// group is signalled, so children spawned by a build (compilers,
// linkers, docker's own children) do not outlive the pipeline holding
// their stdout open.
//
// Secret material never appears in a Spec's Args. Programs that accept
// credentials on stdin (docker login --password-stdin) receive them
// through the Stdin reader, which is never logged or captured.
package cmdrun
