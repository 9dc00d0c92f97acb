package reporter

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// DeviceInfoError is raised when an extended device info run reports a
// collection error through its metrics. It aborts the invocation.
type DeviceInfoError struct {
	RunID string
	Test  types.TestIdentifier
	Key   string
	Value string
}

func (e *DeviceInfoError) Error() string {
	return fmt.Sprintf("error collecting extended device info: %s=%s", e.Key, e.Value)
}

// IsDeviceInfoError checks if the error is or wraps a DeviceInfoError
func IsDeviceInfoError(err error) bool {
	var diErr *DeviceInfoError
	return err != nil && errors.As(err, &diErr)
}

// ContractViolation describes a lifecycle event that arrived out of order,
// such as a test event with no active package.
type ContractViolation struct {
	Event string
	RunID string
	Test  types.TestIdentifier
	Err   error
}

func (e *ContractViolation) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("contract violation: %s(%s): %v", e.Event, e.Test, e.Err)
	}
	return fmt.Sprintf("contract violation: %s(%s) in run %s: %v", e.Event, e.Test, e.RunID, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ContractViolation) Unwrap() error {
	return e.Err
}

// errNoActivePackage is the cause of violations for events outside any run
var errNoActivePackage = errors.New("no active test package")

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include unreadable event logs, malformed events and device info errors.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError represents failed test cases in the replayed invocation (exit code 1)
type TestFailureError struct {
	Failed int
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %d test(s) failed", e.Failed)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(failed int) *TestFailureError {
	return &TestFailureError{Failed: failed}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
