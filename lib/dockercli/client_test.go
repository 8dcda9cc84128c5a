// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package dockercli

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
)

// capture returns a runner that records every spec and replies with
// the given result.
func capture(calls *[]cmdrun.Spec, result cmdrun.Result) cmdrun.Runner {
	return cmdrun.Func(func(_ context.Context, spec cmdrun.Spec) (cmdrun.Result, error) {
		*calls = append(*calls, spec)
		return result, nil
	})
}

func TestBuildArgumentVector(t *testing.T) {
	var calls []cmdrun.Spec
	client := New(capture(&calls, cmdrun.Result{}), nil)

	err := client.Build(context.Background(), BuildSpec{
		ContextDir: "/staging/image",
		Dockerfile: "/staging/image/Dockerfile",
		Tag:        "datalust/sqelf:ci",
		BuildArgs:  map[string]string{"VERSION": "1.2.3", "BASE": "alpine"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		"build",
		"--file", "/staging/image/Dockerfile",
		"--tag", "datalust/sqelf:ci",
		"--build-arg", "BASE=alpine",
		"--build-arg", "VERSION=1.2.3",
		"/staging/image",
	}
	if len(calls) != 1 || calls[0].Program != "docker" {
		t.Fatalf("expected one docker call, got %+v", calls)
	}
	if !reflect.DeepEqual(calls[0].Args, want) {
		t.Fatalf("args = %v, want %v", calls[0].Args, want)
	}
}

func TestRunDetachedReturnsContainerID(t *testing.T) {
	var calls []cmdrun.Spec
	client := New(capture(&calls, cmdrun.Result{Stdout: []byte("abc123\n")}), nil)

	id, err := client.RunDetached(context.Background(), ContainerSpec{
		Name:    "sqelf-ci-seq",
		Image:   "datalust/seq:latest",
		Network: "sqelf-ci",
		Env:     map[string]string{"ACCEPT_EULA": "Y"},
		Publish: []PortMapping{{ContainerPort: 80}},
	})
	if err != nil {
		t.Fatalf("RunDetached: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("container ID = %q, want %q", id, "abc123")
	}
	want := []string{
		"run", "--detach", "--name", "sqelf-ci-seq",
		"--network", "sqelf-ci",
		"--env", "ACCEPT_EULA=Y",
		"--publish", "80/tcp",
		"datalust/seq:latest",
	}
	if !reflect.DeepEqual(calls[0].Args, want) {
		t.Fatalf("args = %v, want %v", calls[0].Args, want)
	}
}

func TestWaitParsesExitCode(t *testing.T) {
	var calls []cmdrun.Spec
	client := New(capture(&calls, cmdrun.Result{Stdout: []byte("3\n")}), nil)

	code, err := client.Wait(context.Background(), "sqelf-ci-app")
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
}

func TestPortParsesFirstBoundAddress(t *testing.T) {
	var calls []cmdrun.Spec
	client := New(capture(&calls, cmdrun.Result{
		Stdout: []byte("0.0.0.0:32768\n[::]:32768\n"),
	}), nil)

	port, err := client.Port(context.Background(), "sqelf-ci-seq", PortMapping{ContainerPort: 80})
	if err != nil {
		t.Fatalf("Port: %v", err)
	}
	if port != 32768 {
		t.Fatalf("port = %d, want 32768", port)
	}
	want := []string{"port", "sqelf-ci-seq", "80/tcp"}
	if !reflect.DeepEqual(calls[0].Args, want) {
		t.Fatalf("args = %v, want %v", calls[0].Args, want)
	}
}

func TestPortNoBinding(t *testing.T) {
	var calls []cmdrun.Spec
	client := New(capture(&calls, cmdrun.Result{Stdout: nil}), nil)

	_, err := client.Port(context.Background(), "sqelf-ci-seq", PortMapping{ContainerPort: 80})
	if err == nil {
		t.Fatal("Port: expected an error for empty output")
	}
}

func TestStopPassesTimeoutSeconds(t *testing.T) {
	var calls []cmdrun.Spec
	client := New(capture(&calls, cmdrun.Result{}), nil)

	if err := client.Stop(context.Background(), "sqelf-ci-seq", 30*time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	want := []string{"stop", "--time", "30", "sqelf-ci-seq"}
	if !reflect.DeepEqual(calls[0].Args, want) {
		t.Fatalf("args = %v, want %v", calls[0].Args, want)
	}
}

func TestLoginKeepsTokenOutOfArgs(t *testing.T) {
	var calls []cmdrun.Spec
	client := New(capture(&calls, cmdrun.Result{}), nil)

	token := strings.NewReader("secret-token")
	if err := client.Login(context.Background(), "", "datalust-ci", token); err != nil {
		t.Fatalf("Login: %v", err)
	}
	for _, arg := range calls[0].Args {
		if strings.Contains(arg, "secret-token") {
			t.Fatalf("token leaked into args: %v", calls[0].Args)
		}
	}
	if calls[0].Stdin == nil {
		t.Fatal("Login: token reader not connected to stdin")
	}
	passed, err := io.ReadAll(calls[0].Stdin)
	if err != nil || string(passed) != "secret-token" {
		t.Fatalf("stdin = %q (%v), want %q", passed, err, "secret-token")
	}
}

func TestNonZeroExitCarriesStderrTail(t *testing.T) {
	runner := cmdrun.Func(func(_ context.Context, _ cmdrun.Spec) (cmdrun.Result, error) {
		return cmdrun.Result{ExitCode: 1, Stderr: []byte("no such container: sqelf-ci-seq\n")}, nil
	})
	client := New(runner, nil)

	err := client.RemoveForce(context.Background(), "sqelf-ci-seq")
	if err == nil {
		t.Fatal("RemoveForce: expected an error")
	}
	if !strings.Contains(err.Error(), "no such container") {
		t.Fatalf("error %q does not carry stderr detail", err)
	}
}

func TestLogsCombinesStreams(t *testing.T) {
	runner := cmdrun.Func(func(_ context.Context, _ cmdrun.Spec) (cmdrun.Result, error) {
		return cmdrun.Result{Stdout: []byte("out\n"), Stderr: []byte("err\n")}, nil
	})
	client := New(runner, nil)

	logs, err := client.Logs(context.Background(), "sqelf-ci-sqelf")
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if string(logs) != "out\nerr\n" {
		t.Fatalf("logs = %q", logs)
	}
}

func TestRunningParsesInspectState(t *testing.T) {
	var calls []cmdrun.Spec
	client := New(capture(&calls, cmdrun.Result{Stdout: []byte("true\n")}), nil)

	running, err := client.Running(context.Background(), "sqelf-ci-sqelf")
	if err != nil {
		t.Fatalf("Running: %v", err)
	}
	if !running {
		t.Fatal("Running = false, want true")
	}
	want := []string{"inspect", "--format", "{{.State.Running}}", "sqelf-ci-sqelf"}
	if !reflect.DeepEqual(calls[0].Args, want) {
		t.Fatalf("args = %v, want %v", calls[0].Args, want)
	}

	client = New(capture(&calls, cmdrun.Result{Stdout: []byte("false\n")}), nil)
	running, err = client.Running(context.Background(), "sqelf-ci-sqelf")
	if err != nil || running {
		t.Fatalf("Running = %v, %v, want false, nil", running, err)
	}
}
