package types

import (
	"fmt"
	"maps"
	"strings"
)

// TestStatus represents the possible states of a test case
type TestStatus string

const (
	TestStatusNotExecuted TestStatus = "NOT_EXECUTED"
	TestStatusPass        TestStatus = "PASS"
	TestStatusFail        TestStatus = "FAIL"
)

// AllTestStatuses lists every status in reporting order
var AllTestStatuses = []TestStatus{TestStatusPass, TestStatusFail, TestStatusNotExecuted}

func (s TestStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known statuses
func (s TestStatus) IsValid() bool {
	switch s {
	case TestStatusNotExecuted, TestStatusPass, TestStatusFail:
		return true
	}
	return false
}

// TestIdentifier names a single test case within a run.
// It is comparable and used as a map key.
type TestIdentifier struct {
	ClassName string
	TestName  string
}

// NewTestIdentifier creates a TestIdentifier
func NewTestIdentifier(className, testName string) TestIdentifier {
	return TestIdentifier{ClassName: className, TestName: testName}
}

// String renders the identifier as <class>#<test>
func (id TestIdentifier) String() string {
	return fmt.Sprintf("%s#%s", id.ClassName, id.TestName)
}

// TestRecord captures the outcome of a single test case
type TestRecord struct {
	ID            TestIdentifier
	Status        TestStatus
	StackTrace    string
	HasStackTrace bool // a failure was reported, even with an empty trace
	Metrics       map[string]string
}

// NewTestRecord creates a record in the NOT_EXECUTED state
func NewTestRecord(id TestIdentifier) *TestRecord {
	return &TestRecord{
		ID:      id,
		Status:  TestStatusNotExecuted,
		Metrics: make(map[string]string),
	}
}

// Fail marks the record as failed with the given trace
func (r *TestRecord) Fail(status TestStatus, trace string) {
	r.Status = status
	r.StackTrace = trace
	r.HasStackTrace = true
}

// End merges metrics into the record and settles its final status.
// A record that was never failed passes.
func (r *TestRecord) End(metrics map[string]string) {
	if r.Metrics == nil {
		r.Metrics = make(map[string]string, len(metrics))
	}
	maps.Copy(r.Metrics, metrics)
	if r.Status == TestStatusNotExecuted && !r.HasStackTrace {
		r.Status = TestStatusPass
	}
}

// Reset returns the record to its freshly inserted state
func (r *TestRecord) Reset() {
	r.Status = TestStatusNotExecuted
	r.StackTrace = ""
	r.HasStackTrace = false
	r.Metrics = make(map[string]string)
}

// ParseRunID splits a run id of the form "<abi> <name>".
// Ids without a space have no ABI and are their own name.
func ParseRunID(id string) (abi string, name string) {
	abi, name, found := strings.Cut(id, " ")
	if !found {
		return "", id
	}
	return abi, name
}

// CreateRunID joins an ABI and a name into a run id
func CreateRunID(abi, name string) string {
	if abi == "" {
		return name
	}
	return abi + " " + name
}
