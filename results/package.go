package results

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// ErrTestNotFound is returned when a test was never inserted into a package
var ErrTestNotFound = errors.New("test not found")

// PackageResult owns every test record reported for one run id.
//
// Records keep their insertion order. Inserting an identifier that is already
// present resets the existing record in place, so a test is never counted twice.
type PackageResult struct {
	ID             string
	AppPackageName string

	order   []types.TestIdentifier
	records map[types.TestIdentifier]*types.TestRecord
}

// NewPackageResult creates an empty package result
func NewPackageResult(id, appPackageName string) *PackageResult {
	return &PackageResult{
		ID:             id,
		AppPackageName: appPackageName,
		records:        make(map[types.TestIdentifier]*types.TestRecord),
	}
}

// InsertTest creates a NOT_EXECUTED record for id and returns it
func (p *PackageResult) InsertTest(id types.TestIdentifier) *types.TestRecord {
	if existing, ok := p.records[id]; ok {
		existing.Reset()
		return existing
	}
	record := types.NewTestRecord(id)
	p.records[id] = record
	p.order = append(p.order, id)
	return record
}

// ReportTestFailure records a failure status and trace for id
func (p *PackageResult) ReportTestFailure(id types.TestIdentifier, status types.TestStatus, trace string) error {
	record, err := p.FindTest(id)
	if err != nil {
		return err
	}
	record.Fail(status, trace)
	return nil
}

// ReportTestEnded merges metrics into the record for id and settles its status
func (p *PackageResult) ReportTestEnded(id types.TestIdentifier, metrics map[string]string) error {
	record, err := p.FindTest(id)
	if err != nil {
		return err
	}
	record.End(metrics)
	return nil
}

// FindTest returns the record for id
func (p *PackageResult) FindTest(id types.TestIdentifier) (*types.TestRecord, error) {
	record, ok := p.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s in package %s", ErrTestNotFound, id, p.ID)
	}
	return record, nil
}

// CountTests returns the number of records currently in the given status
func (p *PackageResult) CountTests(status types.TestStatus) int {
	count := 0
	for _, record := range p.records {
		if record.Status == status {
			count++
		}
	}
	return count
}

// Len returns the number of distinct tests inserted
func (p *PackageResult) Len() int {
	return len(p.order)
}

// Tests returns the records in insertion order
func (p *PackageResult) Tests() []*types.TestRecord {
	out := make([]*types.TestRecord, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.records[id])
	}
	return out
}

// Summary captures the per-status counts of a package
type Summary struct {
	ID             string
	AppPackageName string
	Passed         int
	Failed         int
	NotExecuted    int
}

// Total returns the number of tests counted in the summary
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.NotExecuted
}

// Summarize counts the package's records by status
func (p *PackageResult) Summarize() Summary {
	return Summary{
		ID:             p.ID,
		AppPackageName: p.AppPackageName,
		Passed:         p.CountTests(types.TestStatusPass),
		Failed:         p.CountTests(types.TestStatusFail),
		NotExecuted:    p.CountTests(types.TestStatusNotExecuted),
	}
}
