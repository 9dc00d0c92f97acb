// Package events decodes recorded lifecycle events and replays them onto a
// reporter.Listener.
package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	reporter "github.com/ethereum-optimism/infra/op-reporter"
	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// EventType names a Listener method
type EventType string

const (
	InvocationStarted     EventType = "invocationStarted"
	TestRunStarted        EventType = "testRunStarted"
	TestStarted           EventType = "testStarted"
	TestFailed            EventType = "testFailed"
	TestAssumptionFailure EventType = "testAssumptionFailure"
	TestEnded             EventType = "testEnded"
	InvocationEnded       EventType = "invocationEnded"
)

// AllEventTypes lists every recognised event type in lifecycle order
var AllEventTypes = []EventType{
	InvocationStarted,
	TestRunStarted,
	TestStarted,
	TestFailed,
	TestAssumptionFailure,
	TestEnded,
	InvocationEnded,
}

// IsValid checks if the event type is one of the recognised types
func (t EventType) IsValid() bool {
	for _, valid := range AllEventTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// maxLineSize bounds a single encoded event, stack traces included
const maxLineSize = 16 * 1024 * 1024

// Event is one recorded lifecycle event
type Event struct {
	Type      EventType         `json:"type"`
	RunID     string            `json:"runId,omitempty"`
	NumTests  int               `json:"numTests,omitempty"`
	Class     string            `json:"class,omitempty"`
	Test      string            `json:"test,omitempty"`
	Trace     string            `json:"trace,omitempty"`
	Metrics   map[string]string `json:"metrics,omitempty"`
	ElapsedMs int64             `json:"elapsedMs,omitempty"`
	Serial    string            `json:"serial,omitempty"`
	BuildID   string            `json:"buildId,omitempty"`
}

// TestID returns the test identifier carried by a test event
func (e Event) TestID() types.TestIdentifier {
	return types.NewTestIdentifier(e.Class, e.Test)
}

// Decode reads JSON-lines events from r. Blank lines are skipped.
func Decode(r io.Reader) ([]Event, error) {
	var out []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode event: %w", lineNo, err)
		}
		if !ev.Type.IsValid() {
			return nil, fmt.Errorf("line %d: unknown event type %q", lineNo, ev.Type)
		}
		if ev.Type == TestRunStarted && ev.RunID == "" {
			return nil, fmt.Errorf("line %d: %s without runId", lineNo, ev.Type)
		}
		out = append(out, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: failed to read events: %w", lineNo+1, err)
	}
	return out, nil
}

// Dispatch calls the Listener method matching each event, in order. It stops
// when ctx is done or when TestEnded returns an error.
func Dispatch(ctx context.Context, l reporter.Listener, evs []Event) error {
	for i, ev := range evs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("dispatch interrupted at event %d: %w", i, err)
		}

		switch ev.Type {
		case InvocationStarted:
			l.InvocationStarted(types.StaticBuildInfo{Serial: ev.Serial, BuildID: ev.BuildID})
		case TestRunStarted:
			l.TestRunStarted(ev.RunID, ev.NumTests)
		case TestStarted:
			l.TestStarted(ev.TestID())
		case TestFailed:
			l.TestFailed(ev.TestID(), ev.Trace)
		case TestAssumptionFailure:
			l.TestAssumptionFailure(ev.TestID(), ev.Trace)
		case TestEnded:
			if err := l.TestEnded(ev.TestID(), ev.Metrics); err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
		case InvocationEnded:
			l.InvocationEnded(time.Duration(ev.ElapsedMs) * time.Millisecond)
		default:
			return fmt.Errorf("event %d: unknown event type %q", i, ev.Type)
		}
	}
	return nil
}
