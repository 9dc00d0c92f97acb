// Package reporting renders the aggregated results of replayed shards.
package reporting

import (
	"bytes"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-reporter/results"
	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// ShardSummary holds the package summaries aggregated by one shard
type ShardSummary struct {
	Shard     string
	Device    string
	Summaries []results.Summary
}

// Totals are the status counts summed over every package of every shard
type Totals struct {
	Packages    int
	Passed      int
	Failed      int
	NotExecuted int
}

// Total returns the number of tests counted
func (t Totals) Total() int {
	return t.Passed + t.Failed + t.NotExecuted
}

// Status returns FAIL if any test failed, NOT_EXECUTED if any test never
// ended, and PASS otherwise
func (t Totals) Status() types.TestStatus {
	return summaryStatus(t.Failed, t.NotExecuted)
}

// ComputeTotals sums the counts of every shard
func ComputeTotals(shards []ShardSummary) Totals {
	var out Totals
	for _, s := range shards {
		for _, sum := range s.Summaries {
			out.Packages++
			out.Passed += sum.Passed
			out.Failed += sum.Failed
			out.NotExecuted += sum.NotExecuted
		}
	}
	return out
}

func summaryStatus(failed, notExecuted int) types.TestStatus {
	switch {
	case failed > 0:
		return types.TestStatusFail
	case notExecuted > 0:
		return types.TestStatusNotExecuted
	default:
		return types.TestStatusPass
	}
}

// TableFormatter renders shard summaries as an ASCII table
type TableFormatter struct {
	title   string
	colored bool
}

// NewTableFormatter creates a table formatter. A colored table is styled by
// the overall status.
func NewTableFormatter(title string, colored bool) *TableFormatter {
	return &TableFormatter{
		title:   title,
		colored: colored,
	}
}

// Format renders one row per package and a TOTAL footer
func (f *TableFormatter) Format(shards []ShardSummary) (string, error) {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(f.title)

	t.AppendHeader(table.Row{"SHARD", "DEVICE", "PACKAGE", "TESTS", "PASSED", "FAILED", "NOT EXECUTED", "STATUS"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "SHARD", AutoMerge: true},
		{Name: "DEVICE", AutoMerge: true},
		{Name: "PACKAGE", WidthMax: 120, WidthMaxEnforcer: text.WrapSoft},
		{Name: "TESTS", Align: text.AlignRight},
		{Name: "PASSED", Align: text.AlignRight},
		{Name: "FAILED", Align: text.AlignRight},
		{Name: "NOT EXECUTED", Align: text.AlignRight},
	})

	for _, s := range shards {
		for _, sum := range s.Summaries {
			t.AppendRow(table.Row{
				s.Shard,
				s.Device,
				sum.ID,
				sum.Total(),
				sum.Passed,
				sum.Failed,
				sum.NotExecuted,
				summaryStatus(sum.Failed, sum.NotExecuted).String(),
			})
		}
	}

	totals := ComputeTotals(shards)
	if f.colored {
		switch totals.Status() {
		case types.TestStatusFail:
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		case types.TestStatusNotExecuted:
			t.SetStyle(table.StyleColoredBlackOnYellowWhite)
		default:
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		}
	} else {
		t.SetStyle(table.StyleDefault)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		totals.Packages,
		totals.Total(),
		totals.Passed,
		totals.Failed,
		totals.NotExecuted,
		totals.Status().String(),
	})

	t.Render()
	return buf.String(), nil
}
