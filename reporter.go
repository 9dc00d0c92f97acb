package reporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-reporter/deviceinfo"
	"github.com/ethereum-optimism/infra/op-reporter/logging"
	"github.com/ethereum-optimism/infra/op-reporter/metrics"
	"github.com/ethereum-optimism/infra/op-reporter/results"
	"github.com/ethereum-optimism/infra/op-reporter/types"
)

// UnknownDevice replaces the device serial when the build info has none
const UnknownDevice = "unknown_device"

const bannerLine = "-----------------------------------------"

// Listener receives the lifecycle events of a test invocation.
// Events arrive synchronously and in order, one at a time.
type Listener interface {
	InvocationStarted(info types.BuildInfo)
	TestRunStarted(id string, numTests int)
	TestStarted(test types.TestIdentifier)
	TestFailed(test types.TestIdentifier, trace string)
	TestAssumptionFailure(test types.TestIdentifier, trace string)
	// TestEnded returns a *DeviceInfoError when an extended device info run
	// reports a collection error. Any other event is accepted.
	TestEnded(test types.TestIdentifier, metrics map[string]string) error
	InvocationEnded(elapsed time.Duration)
}

var _ Listener = (*Reporter)(nil)

// Config holds the collaborators of a Reporter
type Config struct {
	Options    Options
	Classifier *deviceinfo.Classifier
	Sink       logging.Sink
	Log        log.Logger
	Metrics    metrics.Metricer
}

// Reporter aggregates test results per package and prints progress lines.
//
// A Reporter is not safe for concurrent use. Parallel shards each get their
// own instance through Clone.
type Reporter struct {
	opts       Options
	classifier *deviceinfo.Classifier
	sink       logging.Sink
	baseLog    log.Logger
	log        log.Logger
	metrics    metrics.Metricer

	deviceSerial string
	runID        string
	results      *results.Store
	current      *results.PackageResult // non-owning, package of the last normal run
	flushed      bool                   // summary of current already printed
	kind         deviceinfo.RunKind
}

// New creates an idle Reporter. Missing collaborators get defaults: the
// standard device info classifier, a console sink, the root logger and no metrics.
func New(cfg Config) *Reporter {
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = deviceinfo.Default()
	}
	if cfg.Sink == nil {
		cfg.Sink = logging.NewConsoleSink(nil, cfg.Log, false)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopMetrics
	}

	r := &Reporter{
		classifier:   cfg.Classifier,
		sink:         cfg.Sink,
		baseLog:      cfg.Log,
		log:          cfg.Log,
		metrics:      cfg.Metrics,
		deviceSerial: UnknownDevice,
	}
	CopyOptions(cfg.Options, &r.opts, cfg.Log)
	r.results = results.NewStore(r.resolveAppPackage)
	return r
}

// Clone returns an idle Reporter with a copy of the options and the same
// collaborators, but no aggregated results.
func (r *Reporter) Clone() *Reporter {
	clone := New(Config{
		Classifier: r.classifier,
		Sink:       r.sink,
		Log:        r.baseLog,
		Metrics:    r.metrics,
	})
	CopyOptions(r.opts, &clone.opts, r.baseLog)
	return clone
}

// InvocationStarted records the device under test
func (r *Reporter) InvocationStarted(info types.BuildInfo) {
	serial := ""
	if info != nil {
		serial = info.DeviceSerial()
	}
	if serial == "" {
		serial = UnknownDevice
	}
	r.deviceSerial = serial
	r.log = r.baseLog.New("device", serial)
	r.log.Debug("Invocation started")
}

// TestRunStarted begins the run identified by id, printing the summary of the
// previous package when the run id changes.
func (r *Reporter) TestRunStarted(id string, numTests int) {
	if r.current != nil && r.current.ID != id {
		r.completeRun()
	}

	r.runID = id
	r.kind = r.classifier.Classify(id)
	r.log.Debug("Test run started", "run", id, "numTests", numTests, "kind", r.kind)

	switch r.kind {
	case deviceinfo.RunKindDeviceInfo:
		r.logResult("Collecting device info")
	case deviceinfo.RunKindExtendedDeviceInfo:
		r.logResult("Collecting extended device info")
	default:
		if r.current == nil || r.current.ID != id {
			r.logResult(bannerLine)
			r.logResult("Test package %s started", id)
			r.logResult(bannerLine)
		}
		r.current = r.results.GetOrCreatePackage(id)
		r.flushed = false
	}
}

// TestStarted inserts a NOT_EXECUTED record for test into the current package
func (r *Reporter) TestStarted(test types.TestIdentifier) {
	if r.kind != deviceinfo.RunKindNormal {
		return
	}
	if r.current == nil {
		r.violation("testStarted", test, errNoActivePackage)
		return
	}
	r.current.InsertTest(test)
}

// TestFailed marks test as failed with trace
func (r *Reporter) TestFailed(test types.TestIdentifier, trace string) {
	r.reportFailure("testFailed", test, trace)
}

// TestAssumptionFailure is reported as an ordinary failure
func (r *Reporter) TestAssumptionFailure(test types.TestIdentifier, trace string) {
	r.reportFailure("testAssumptionFailure", test, trace)
}

func (r *Reporter) reportFailure(event string, test types.TestIdentifier, trace string) {
	if r.kind != deviceinfo.RunKindNormal {
		return
	}
	if r.current == nil {
		r.violation(event, test, errNoActivePackage)
		return
	}
	if err := r.current.ReportTestFailure(test, types.TestStatusFail, trace); err != nil {
		r.violation(event, test, err)
	}
}

// TestEnded finalizes test and prints its result line. During an extended
// device info run it only checks the metrics for collection errors.
func (r *Reporter) TestEnded(test types.TestIdentifier, testMetrics map[string]string) error {
	switch r.kind {
	case deviceinfo.RunKindExtendedDeviceInfo:
		if key, value, found := deviceinfo.FindError(testMetrics); found {
			r.metrics.RecordDeviceInfoError(r.deviceSerial, key)
			return &DeviceInfoError{RunID: r.runID, Test: test, Key: key, Value: value}
		}
		return nil
	case deviceinfo.RunKindDeviceInfo:
		return nil
	}

	if r.current == nil {
		r.violation("testEnded", test, errNoActivePackage)
		return nil
	}
	if err := r.current.ReportTestEnded(test, testMetrics); err != nil {
		r.violation("testEnded", test, err)
		return nil
	}
	record, err := r.current.FindTest(test)
	if err != nil {
		r.violation("testEnded", test, err)
		return nil
	}

	r.metrics.RecordTestEnded(r.deviceSerial, record.Status)
	var line strings.Builder
	fmt.Fprintf(&line, "%s#%s %s", test.ClassName, test.TestName, record.Status)
	if record.HasStackTrace {
		line.WriteString("\n")
		line.WriteString(record.StackTrace)
	}
	r.logResult("%s", line.String())
	return nil
}

// InvocationEnded prints the summary of the last package
func (r *Reporter) InvocationEnded(elapsed time.Duration) {
	r.log.Debug("Invocation ended", "elapsed", elapsed, "packages", r.results.Len())
	if r.kind == deviceinfo.RunKindExtendedDeviceInfo {
		return
	}
	if r.current != nil {
		r.completeRun()
	}
}

// completeRun prints the summary of the current package once per activation
func (r *Reporter) completeRun() {
	if r.flushed {
		return
	}
	r.flushed = true

	pkg := r.current
	switch r.classifier.CollectorKind(pkg.AppPackageName) {
	case deviceinfo.RunKindDeviceInfo:
		r.logResult("Device info collection complete")
		return
	case deviceinfo.RunKindExtendedDeviceInfo:
		r.logResult("Extended device info collection complete")
		return
	}

	sum := pkg.Summarize()
	r.metrics.RecordPackageComplete(r.deviceSerial, pkg.ID, sum.Passed, sum.Failed, sum.NotExecuted)
	r.logResult("%s package complete: Passed %d, Failed %d, Not Executed %d",
		pkg.ID, sum.Passed, sum.Failed, sum.NotExecuted)
}

func (r *Reporter) logResult(format string, args ...any) {
	ch := logging.Display
	if r.opts.QuietOutput {
		ch = logging.Quiet
	}
	r.sink.LogInfo(ch, r.deviceSerial, fmt.Sprintf(format, args...))
}

func (r *Reporter) violation(event string, test types.TestIdentifier, err error) {
	v := &ContractViolation{Event: event, RunID: r.runID, Test: test, Err: err}
	r.metrics.RecordContractViolation(event)
	if r.opts.Strict {
		panic(v)
	}
	r.log.Error("Dropping out of order event", "event", event, "test", test, "err", v)
}

func (r *Reporter) resolveAppPackage(runID string) string {
	if name, ok := r.opts.AppPackages[runID]; ok {
		return name
	}
	return results.DefaultAppPackageResolver(runID)
}

// Options returns a copy of the reporter's options
func (r *Reporter) Options() Options {
	var out Options
	CopyOptions(r.opts, &out, r.baseLog)
	return out
}

// DeviceSerial returns the serial captured at invocation start
func (r *Reporter) DeviceSerial() string {
	return r.deviceSerial
}

// Results returns the store of aggregated package results
func (r *Reporter) Results() *results.Store {
	return r.results
}

// CurrentPackage returns the package of the active normal run, if any
func (r *Reporter) CurrentPackage() (*results.PackageResult, bool) {
	return r.current, r.current != nil
}

// Summaries returns the per-status counts of every package in creation order
func (r *Reporter) Summaries() []results.Summary {
	pkgs := r.results.Packages()
	out := make([]results.Summary, 0, len(pkgs))
	for _, pkg := range pkgs {
		out = append(out, pkg.Summarize())
	}
	return out
}
