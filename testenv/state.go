// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package testenv

import "fmt"

// State is the lifecycle phase of a Controller. Transitions run
// Stopped -> Starting -> Running -> one of the stopping states ->
// Stopped; a failed start leaves the controller in Starting until
// Stop runs.
type State uint8

const (
	// StateStopped holds before Start and again after Stop finishes.
	StateStopped State = iota

	// StateStarting covers network creation through the last
	// readiness gate.
	StateStarting

	// StateRunning means the full topology is up and the emitter has
	// been launched.
	StateRunning

	// StateStoppingAfterFailure is teardown entered before the
	// workload completed.
	StateStoppingAfterFailure

	// StateStoppingAfterSuccess is teardown entered after the
	// workload completed.
	StateStoppingAfterSuccess
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStoppingAfterFailure:
		return "stopping-after-failure"
	case StateStoppingAfterSuccess:
		return "stopping-after-success"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}
