// Package exitcodes defines the exit codes of op-reporter.
package exitcodes

// Exit codes of a replay:
//
// * Success (0): every stream was replayed, and no test failed when failures are fatal
// * TestFailure (1): a replayed test failed and --fail-on-test-failure is set
// * RuntimeErr (2): bad configuration, unreadable or malformed event logs, device info errors
const (
	Success     = 0 // Replay completed
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
