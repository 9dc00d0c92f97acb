package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
)

// Channel selects where a progress line is delivered
type Channel int

const (
	// Display lines are shown to the operator and logged
	Display Channel = iota
	// Quiet lines are only logged
	Quiet
)

func (c Channel) String() string {
	if c == Quiet {
		return "quiet"
	}
	return "display"
}

// Sink receives progress lines. Implementations must be safe for concurrent
// use, as every shard of an invocation writes to the same sink.
type Sink interface {
	// LogInfo delivers msg on channel ch. tag identifies the source, usually a device serial.
	LogInfo(ch Channel, tag string, msg string)
}

// ConsoleSink writes display lines verbatim to an output stream and mirrors
// every line into a structured logger, display lines at debug level. With tag prefixes enabled each display
// line is written as "<tag>: <msg>" so interleaved shards stay readable.
type ConsoleSink struct {
	mu        sync.Mutex
	out       io.Writer
	log       log.Logger
	prefixTag bool
}

var _ Sink = (*ConsoleSink)(nil)

// NewConsoleSink creates a sink writing display lines to out.
// A nil out writes to stdout, a nil logger uses the root logger.
func NewConsoleSink(out io.Writer, logger log.Logger, prefixTag bool) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = log.Root()
	}
	return &ConsoleSink{out: out, log: logger, prefixTag: prefixTag}
}

func (s *ConsoleSink) LogInfo(ch Channel, tag string, msg string) {
	// Log records must not carry terminal escapes, the display keeps them.
	if ch != Display {
		s.log.Info(stripansi.Strip(msg), "device", tag, "channel", ch.String())
		return
	}
	s.log.Debug(stripansi.Strip(msg), "device", tag, "channel", ch.String())

	line := msg + "\n"
	if s.prefixTag {
		line = fmt.Sprintf("%s: %s", tag, line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, line); err != nil {
		s.log.Warn("Failed to write progress line", "err", err)
	}
}

// Line is a single delivered progress line
type Line struct {
	Channel Channel
	Tag     string
	Message string
}

// MemorySink keeps every line it receives, in order
type MemorySink struct {
	mu    sync.Mutex
	lines []Line
}

var _ Sink = (*MemorySink)(nil)

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) LogInfo(ch Channel, tag string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, Line{Channel: ch, Tag: tag, Message: msg})
}

// Lines returns a copy of the received lines
func (s *MemorySink) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Messages returns the received messages, optionally filtered by tag
func (s *MemorySink) Messages(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.lines {
		if tag == "" || l.Tag == tag {
			out = append(out, l.Message)
		}
	}
	return out
}
