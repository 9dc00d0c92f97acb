package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-reporter/deviceinfo"
	"github.com/ethereum-optimism/infra/op-reporter/logging"
	"github.com/ethereum-optimism/infra/op-reporter/metrics"
	"github.com/ethereum-optimism/infra/op-reporter/types"
)

const (
	pkgA           = "x86 android.app"
	pkgB           = "x86 android.os"
	deviceInfoID   = "x86 " + deviceinfo.AppPackageName
	extendedInfoID = "x86 " + deviceinfo.ExtendedAppPackageName
)

var (
	testX = types.NewTestIdentifier("android.app.cts.ActivityTest", "testFinish")
	testY = types.NewTestIdentifier("android.app.cts.ActivityTest", "testRecreate")
	testZ = types.NewTestIdentifier("android.app.cts.ActivityTest", "testSkipped")
	testW = types.NewTestIdentifier("android.os.cts.BuildTest", "testIsSecure")
)

type testReporter struct {
	*Reporter
	sink *logging.MemorySink
	logs *bytes.Buffer
}

func newTestReporter(t *testing.T, opts Options) *testReporter {
	t.Helper()
	var logs bytes.Buffer
	sink := logging.NewMemorySink()
	r := New(Config{
		Options: opts,
		Sink:    sink,
		Log:     log.NewLogger(log.NewTerminalHandler(&logs, false)),
	})
	return &testReporter{Reporter: r, sink: sink, logs: &logs}
}

func (tr *testReporter) messages() []string {
	return tr.sink.Messages("")
}

func (tr *testReporter) runTest(t *testing.T, test types.TestIdentifier, failure string) {
	t.Helper()
	tr.TestStarted(test)
	if failure != "" {
		tr.TestFailed(test, failure)
	}
	require.NoError(t, tr.TestEnded(test, map[string]string{}))
}

func TestPackageCompleteOnRunChange(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.InvocationStarted(types.StaticBuildInfo{Serial: "serial-1"})

	r.TestRunStarted("pkg.A", 2)
	r.runTest(t, testX, "")
	r.runTest(t, testY, "boom")
	r.TestRunStarted("pkg.B", 1)

	assert.Equal(t, []string{
		bannerLine,
		"Test package pkg.A started",
		bannerLine,
		"android.app.cts.ActivityTest#testFinish PASS",
		"android.app.cts.ActivityTest#testRecreate FAIL\nboom",
		"pkg.A package complete: Passed 1, Failed 1, Not Executed 0",
		bannerLine,
		"Test package pkg.B started",
		bannerLine,
	}, r.messages())

	for _, line := range r.sink.Lines() {
		assert.Equal(t, "serial-1", line.Tag)
		assert.Equal(t, logging.Display, line.Channel)
	}
}

func TestBannerOnlyForNewPackage(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.InvocationStarted(types.StaticBuildInfo{})

	r.TestRunStarted(pkgA, 1)
	r.TestRunStarted(pkgA, 1)
	r.TestRunStarted(pkgA, 1)

	assert.Len(t, r.messages(), 3)
	assert.Equal(t, 1, r.Results().Len())
}

func TestDeviceInfoRun(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.InvocationStarted(types.StaticBuildInfo{Serial: "s"})

	r.TestRunStarted(deviceInfoID, 1)
	r.runTest(t, testX, "")
	r.TestFailed(testY, "ignored")
	r.TestAssumptionFailure(testY, "ignored")
	r.InvocationEnded(time.Second)

	assert.Equal(t, []string{"Collecting device info"}, r.messages())
	assert.Equal(t, 0, r.Results().Len())
	_, ok := r.CurrentPackage()
	assert.False(t, ok)
	assert.NotContains(t, r.logs.String(), "Dropping out of order event")
}

func TestDeviceInfoRunKeepsPreviousPackageUntouched(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.InvocationStarted(types.StaticBuildInfo{Serial: "s"})

	r.TestRunStarted(pkgA, 1)
	r.runTest(t, testX, "")
	r.TestRunStarted(deviceInfoID, 1)
	r.runTest(t, testY, "")
	r.InvocationEnded(time.Second)

	assert.Equal(t, []string{
		bannerLine,
		"Test package x86 android.app started",
		bannerLine,
		"android.app.cts.ActivityTest#testFinish PASS",
		"x86 android.app package complete: Passed 1, Failed 0, Not Executed 0",
		"Collecting device info",
	}, r.messages(), "the summary is printed once and the device info test is not reported")

	pkg, ok := r.Results().Package(pkgA)
	require.True(t, ok)
	assert.Equal(t, 1, pkg.Len())
	assert.Equal(t, 1, r.Results().Len())
}

func TestExtendedDeviceInfoError(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := logging.NewMemorySink()
	r := New(Config{Sink: sink, Log: log.NewLogger(log.DiscardHandler()), Metrics: metrics.NewMetrics(reg)})
	r.InvocationStarted(types.StaticBuildInfo{Serial: "s"})

	r.TestRunStarted(extendedInfoID, 1)
	r.TestStarted(testX)
	r.TestFailed(testX, "ignored")
	err := r.TestEnded(testX, map[string]string{"DEVICE_INFO_ERROR_foo": "bar", "ok": "1"})

	require.Error(t, err)
	assert.True(t, IsDeviceInfoError(err))
	assert.Contains(t, err.Error(), "DEVICE_INFO_ERROR_foo=bar")

	var diErr *DeviceInfoError
	require.ErrorAs(t, err, &diErr)
	assert.Equal(t, extendedInfoID, diErr.RunID)
	assert.Equal(t, testX, diErr.Test)

	assert.Equal(t, 0, r.Results().Len(), "no test record may be created")
	assert.Equal(t, []string{"Collecting extended device info"}, sink.Messages(""))

	families, gatherErr := reg.Gather()
	require.NoError(t, gatherErr)
	found := false
	for _, f := range families {
		if f.GetName() == "op_reporter_device_info_errors_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExtendedDeviceInfoWithoutError(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.TestRunStarted(extendedInfoID, 1)
	r.TestStarted(testX)
	require.NoError(t, r.TestEnded(testX, map[string]string{"build_id": "abc"}))
	require.NoError(t, r.TestEnded(testY, nil))
	r.InvocationEnded(time.Second)

	assert.Equal(t, []string{"Collecting extended device info"}, r.messages())
	assert.Equal(t, 0, r.Results().Len())
}

func TestTestEndedWithoutFailurePasses(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.TestRunStarted(pkgA, 1)
	r.TestStarted(testX)
	require.NoError(t, r.TestEnded(testX, map[string]string{}))

	pkg, ok := r.CurrentPackage()
	require.True(t, ok)
	record, err := pkg.FindTest(testX)
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusPass, record.Status)
	assert.Equal(t, "android.app.cts.ActivityTest#testFinish PASS", r.messages()[3])
}

func TestAssumptionFailureIsFailure(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.TestRunStarted(pkgA, 1)
	r.TestStarted(testX)
	r.TestAssumptionFailure(testX, "assumption violated")
	require.NoError(t, r.TestEnded(testX, map[string]string{"duration": "12"}))

	pkg, _ := r.CurrentPackage()
	record, err := pkg.FindTest(testX)
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusFail, record.Status)
	assert.Equal(t, "12", record.Metrics["duration"])
	assert.Equal(t, "android.app.cts.ActivityTest#testFinish FAIL\nassumption violated", r.messages()[3])
}

func TestInvocationEndedFlushesOnce(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.TestRunStarted(pkgA, 2)
	r.runTest(t, testX, "")
	r.TestStarted(testZ)

	r.InvocationEnded(time.Minute)
	r.InvocationEnded(time.Minute)

	summary := "x86 android.app package complete: Passed 1, Failed 0, Not Executed 1"
	count := 0
	for _, m := range r.messages() {
		if m == summary {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestResumedPackageIsSummarizedAgain(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.TestRunStarted(pkgA, 1)
	r.runTest(t, testX, "")
	r.TestRunStarted(deviceInfoID, 0)
	r.TestRunStarted(pkgA, 1)
	r.runTest(t, testY, "")
	r.InvocationEnded(time.Second)

	msgs := r.messages()
	assert.Equal(t, "x86 android.app package complete: Passed 1, Failed 0, Not Executed 0", msgs[4])
	assert.Equal(t, "x86 android.app package complete: Passed 2, Failed 0, Not Executed 0", msgs[len(msgs)-1])
	assert.Equal(t, 1, strings.Count(strings.Join(msgs, "\n"), "Test package"), "resuming does not print a banner")
}

func TestInvocationEndedWithoutRuns(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.InvocationStarted(nil)
	r.InvocationEnded(0)
	assert.Empty(t, r.messages())
}

func TestCollectorPackageSummaries(t *testing.T) {
	r := newTestReporter(t, Options{AppPackages: map[string]string{
		"setup":    deviceinfo.AppPackageName,
		"extended": deviceinfo.ExtendedAppPackageName,
	}})

	r.TestRunStarted("setup", 1)
	r.TestRunStarted("extended", 1)
	r.InvocationEnded(0)

	msgs := r.messages()
	require.Len(t, msgs, 8)
	assert.Equal(t, "Device info collection complete", msgs[3])
	assert.Equal(t, "Extended device info collection complete", msgs[7])
}

func TestQuietOutput(t *testing.T) {
	loud := newTestReporter(t, Options{})
	quiet := newTestReporter(t, Options{QuietOutput: true})

	for _, r := range []*testReporter{loud, quiet} {
		r.InvocationStarted(types.StaticBuildInfo{Serial: "s"})
		r.TestRunStarted(deviceInfoID, 1)
		r.TestRunStarted(pkgA, 1)
		r.runTest(t, testX, "trace")
		r.InvocationEnded(time.Second)
	}

	assert.Equal(t, loud.messages(), quiet.messages(), "quiet output changes the channel, not the content")
	for _, line := range quiet.sink.Lines() {
		assert.Equal(t, logging.Quiet, line.Channel)
	}
	for _, line := range loud.sink.Lines() {
		assert.Equal(t, logging.Display, line.Channel)
	}
}

func TestDeviceSerial(t *testing.T) {
	tests := []struct {
		name string
		info types.BuildInfo
		want string
	}{
		{name: "serial present", info: types.StaticBuildInfo{Serial: "emulator-5554"}, want: "emulator-5554"},
		{name: "serial absent", info: types.StaticBuildInfo{}, want: UnknownDevice},
		{name: "no build info", info: nil, want: UnknownDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReporter(t, Options{})
			r.InvocationStarted(tt.info)
			assert.Equal(t, tt.want, r.DeviceSerial())

			r.TestRunStarted(pkgA, 0)
			for _, line := range r.sink.Lines() {
				assert.Equal(t, tt.want, line.Tag)
			}
		})
	}
}

func TestContractViolationsAreDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	sink := logging.NewMemorySink()
	r := New(Config{
		Sink:    sink,
		Log:     log.NewLogger(log.NewTerminalHandler(&logs, false)),
		Metrics: metrics.NewMetrics(reg),
	})

	assert.NotPanics(t, func() {
		r.TestStarted(testX)
		r.TestFailed(testX, "t")
		require.NoError(t, r.TestEnded(testX, nil))

		r.TestRunStarted(pkgA, 1)
		r.TestFailed(testY, "never started")
		r.TestAssumptionFailure(testY, "never started")
		require.NoError(t, r.TestEnded(testY, nil))
	})

	assert.Equal(t, 6, strings.Count(logs.String(), "Dropping out of order event"))
	pkg, ok := r.CurrentPackage()
	require.True(t, ok)
	assert.Equal(t, 0, pkg.Len())
	assert.Len(t, sink.Messages(""), 3, "only the banner is printed")
}

func TestStrictContractViolationPanics(t *testing.T) {
	r := newTestReporter(t, Options{Strict: true})

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		v, ok := rec.(*ContractViolation)
		require.True(t, ok, "panic value %T", rec)
		assert.Equal(t, "testEnded", v.Event)
		assert.Equal(t, pkgA, v.RunID)
		assert.ErrorContains(t, v, "testEnded")
	}()

	r.TestRunStarted(pkgA, 1)
	_ = r.TestEnded(testX, nil)
}

func TestStrictNoActivePackage(t *testing.T) {
	r := newTestReporter(t, Options{Strict: true})
	assert.PanicsWithError(t,
		"contract violation: testStarted(android.app.cts.ActivityTest#testFinish): no active test package",
		func() { r.TestStarted(testX) })
}

func TestClone(t *testing.T) {
	r := newTestReporter(t, Options{
		QuietOutput: true,
		AppPackages: map[string]string{"a": "b"},
	})
	r.InvocationStarted(types.StaticBuildInfo{Serial: "serial-1"})
	r.TestRunStarted(pkgA, 1)
	r.runTest(t, testX, "")

	clone := r.Clone()

	assert.NotSame(t, r.Reporter, clone)
	assert.Equal(t, 0, clone.Results().Len())
	assert.Equal(t, r.Options(), clone.Options())
	assert.Equal(t, UnknownDevice, clone.DeviceSerial())
	_, ok := clone.CurrentPackage()
	assert.False(t, ok)

	// options are copied, not shared
	clone.opts.AppPackages["a"] = "changed"
	assert.Equal(t, "b", r.Options().AppPackages["a"])

	// clones aggregate independently but share the sink
	clone.InvocationStarted(types.StaticBuildInfo{Serial: "serial-2"})
	clone.TestRunStarted(pkgB, 1)
	passTest(t, clone, testW)
	assert.Equal(t, 1, r.Results().Len())
	assert.Equal(t, 1, clone.Results().Len())
	assert.NotEmpty(t, r.sink.Messages("serial-2"))
	for _, line := range r.sink.Lines() {
		assert.Equal(t, logging.Quiet, line.Channel)
	}
}

func passTest(t *testing.T, r *Reporter, test types.TestIdentifier) {
	t.Helper()
	r.TestStarted(test)
	require.NoError(t, r.TestEnded(test, nil))
}

func TestCloneOfMidRunReporter(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.TestRunStarted(extendedInfoID, 1)

	clone := r.Clone()
	clone.TestRunStarted(pkgA, 1)
	passTest(t, clone, testX)
	assert.Equal(t, 1, clone.Results().Len(), "the clone does not inherit the run kind")
}

func TestSummaries(t *testing.T) {
	r := newTestReporter(t, Options{})
	r.TestRunStarted(pkgA, 3)
	r.runTest(t, testX, "")
	r.runTest(t, testY, "boom")
	r.TestStarted(testZ)
	r.TestRunStarted(pkgB, 1)
	r.runTest(t, testW, "")

	sums := r.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, pkgA, sums[0].ID)
	assert.Equal(t, "android.app", sums[0].AppPackageName)
	assert.Equal(t, 1, sums[0].Passed)
	assert.Equal(t, 1, sums[0].Failed)
	assert.Equal(t, 1, sums[0].NotExecuted)
	assert.Equal(t, 1, sums[1].Passed)
}

func TestInvocationTranscript(t *testing.T) {
	r := newTestReporter(t, Options{})

	r.InvocationStarted(types.StaticBuildInfo{Serial: "emulator-5554"})
	r.TestRunStarted(deviceInfoID, 1)
	r.runTest(t, types.NewTestIdentifier("android.tests.devicesetup.TestDeviceSetup", "testCollectDeviceInfo"), "")

	r.TestRunStarted(pkgA, 3)
	r.runTest(t, testX, "")
	r.runTest(t, testY, "java.lang.AssertionError: boom\n\tat Foo.bar(Foo.java:10)")
	r.TestRunStarted(pkgA, 3)
	r.TestStarted(testZ)

	r.TestRunStarted(pkgB, 1)
	r.TestStarted(testW)
	r.TestAssumptionFailure(testW, "assumption violated")
	require.NoError(t, r.TestEnded(testW, map[string]string{}))

	r.TestRunStarted(extendedInfoID, 1)
	r.TestStarted(testX)
	require.NoError(t, r.TestEnded(testX, map[string]string{"build_id": "x"}))
	r.InvocationEnded(5 * time.Minute)

	transcript := strings.Join(r.messages(), "\n") + "\n"

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "invocation_transcript", []byte(transcript))
}
