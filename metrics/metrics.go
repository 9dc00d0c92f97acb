package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

const (
	MetricsNamespace = "op_reporter"
)

// Metricer records reporter activity. Implementations are shared between
// shards and must be safe for concurrent use.
type Metricer interface {
	RecordTestEnded(device string, status types.TestStatus)
	RecordPackageComplete(device string, runID string, passed, failed, notExecuted int)
	RecordDeviceInfoError(device string, key string)
	RecordContractViolation(event string)
	RecordShard(result string)
}

// Metrics is the prometheus backed Metricer
type Metrics struct {
	testsTotal         *prometheus.CounterVec
	packagesTotal      *prometheus.CounterVec
	packageTests       *prometheus.GaugeVec
	deviceInfoErrors   *prometheus.CounterVec
	contractViolations *prometheus.CounterVec
	shardsTotal        *prometheus.CounterVec
}

var _ Metricer = (*Metrics)(nil)

// NewMetrics registers the reporter metrics with reg.
// A nil registerer uses the default prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tests_total",
			Help:      "Count of ended tests by status",
		}, []string{
			"device",
			"status",
		}),
		packagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "packages_completed_total",
			Help:      "Count of test packages whose run completed",
		}, []string{
			"device",
		}),
		packageTests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "package_tests",
			Help:      "Tests per status of the last completed run of a package",
		}, []string{
			"device",
			"run_id",
			"status",
		}),
		deviceInfoErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "device_info_errors_total",
			Help:      "Count of extended device info collection errors",
		}, []string{
			"device",
			"key",
		}),
		contractViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "contract_violations_total",
			Help:      "Count of events received out of lifecycle order",
		}, []string{
			"event",
		}),
		shardsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "shards_total",
			Help:      "Count of shards run, by result",
		}, []string{
			"result",
		}),
	}
}

func (m *Metrics) RecordTestEnded(device string, status types.TestStatus) {
	m.testsTotal.WithLabelValues(device, string(status)).Inc()
}

func (m *Metrics) RecordPackageComplete(device string, runID string, passed, failed, notExecuted int) {
	m.packagesTotal.WithLabelValues(device).Inc()
	m.packageTests.WithLabelValues(device, runID, string(types.TestStatusPass)).Set(float64(passed))
	m.packageTests.WithLabelValues(device, runID, string(types.TestStatusFail)).Set(float64(failed))
	m.packageTests.WithLabelValues(device, runID, string(types.TestStatusNotExecuted)).Set(float64(notExecuted))
}

func (m *Metrics) RecordDeviceInfoError(device string, key string) {
	m.deviceInfoErrors.WithLabelValues(device, key).Inc()
}

func (m *Metrics) RecordContractViolation(event string) {
	m.contractViolations.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordShard(result string) {
	m.shardsTotal.WithLabelValues(result).Inc()
}

type noopMetrics struct{}

// NoopMetrics discards everything recorded
var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) RecordTestEnded(device string, status types.TestStatus)         {}
func (*noopMetrics) RecordPackageComplete(device string, runID string, p, f, n int) {}
func (*noopMetrics) RecordDeviceInfoError(device string, key string)                {}
func (*noopMetrics) RecordContractViolation(event string)                           {}
func (*noopMetrics) RecordShard(result string)                                      {}
