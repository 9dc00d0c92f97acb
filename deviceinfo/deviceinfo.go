// Package deviceinfo classifies runs that collect device information instead
// of executing tests.
package deviceinfo

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-reporter/types"
)

const (
	// AppPackageName is the app package of the basic device info collector
	AppPackageName = "android.tests.devicesetup"
	// ExtendedAppPackageName is the app package of the extended device info collector
	ExtendedAppPackageName = "com.android.compatibility.common.deviceinfo"

	// ErrorMetricPrefix marks a metric key reporting a failed collection step
	ErrorMetricPrefix = "DEVICE_INFO_ERROR_"
)

// SupportedABIs are the ABIs device info runs are created for
var SupportedABIs = []string{"armeabi-v7a", "arm64-v8a", "x86", "x86_64", "mips", "mips64"}

// RunKind is the classification of a run id
type RunKind int

const (
	RunKindNormal RunKind = iota
	RunKindDeviceInfo
	RunKindExtendedDeviceInfo
)

func (k RunKind) String() string {
	switch k {
	case RunKindDeviceInfo:
		return "device-info"
	case RunKindExtendedDeviceInfo:
		return "extended-device-info"
	default:
		return "normal"
	}
}

// Classifier holds the read-only sets used to recognise device info runs.
// It is shared between shards and must not be mutated after construction.
type Classifier struct {
	IDs                    map[string]struct{}
	ExtendedIDs            map[string]struct{}
	AppPackageName         string
	ExtendedAppPackageName string
}

// Config is the YAML form of a Classifier
type Config struct {
	ABIs                   []string `yaml:"abis,omitempty"`
	IDs                    []string `yaml:"ids,omitempty"`
	ExtendedIDs            []string `yaml:"extended-ids,omitempty"`
	AppPackageName         string   `yaml:"app-package-name,omitempty"`
	ExtendedAppPackageName string   `yaml:"extended-app-package-name,omitempty"`
}

// Default returns the classifier for the standard collectors on every supported ABI
func Default() *Classifier {
	c, _ := New(Config{})
	return c
}

// New builds a classifier from cfg. Empty app package names fall back to the
// standard collectors, and ids are generated for each ABI in addition to any
// explicit ids.
func New(cfg Config) (*Classifier, error) {
	c := &Classifier{
		IDs:                    make(map[string]struct{}),
		ExtendedIDs:            make(map[string]struct{}),
		AppPackageName:         cfg.AppPackageName,
		ExtendedAppPackageName: cfg.ExtendedAppPackageName,
	}
	if c.AppPackageName == "" {
		c.AppPackageName = AppPackageName
	}
	if c.ExtendedAppPackageName == "" {
		c.ExtendedAppPackageName = ExtendedAppPackageName
	}
	if c.AppPackageName == c.ExtendedAppPackageName {
		return nil, fmt.Errorf("device info and extended device info app packages must differ, both are %q", c.AppPackageName)
	}

	abis := cfg.ABIs
	if len(abis) == 0 {
		abis = SupportedABIs
	}
	for _, abi := range abis {
		c.IDs[types.CreateRunID(abi, c.AppPackageName)] = struct{}{}
		c.ExtendedIDs[types.CreateRunID(abi, c.ExtendedAppPackageName)] = struct{}{}
	}
	for _, id := range cfg.IDs {
		c.IDs[id] = struct{}{}
	}
	for _, id := range cfg.ExtendedIDs {
		c.ExtendedIDs[id] = struct{}{}
	}
	return c, nil
}

// Load reads a classifier config from a YAML file
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device info config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse device info config %s: %w", path, err)
	}
	return New(cfg)
}

// Classify returns the kind of run identified by id.
// An id in both sets is treated as a device info run.
func (c *Classifier) Classify(id string) RunKind {
	if _, ok := c.IDs[id]; ok {
		return RunKindDeviceInfo
	}
	if _, ok := c.ExtendedIDs[id]; ok {
		return RunKindExtendedDeviceInfo
	}
	return RunKindNormal
}

// CollectorKind returns the kind of collector an app package belongs to
func (c *Classifier) CollectorKind(appPackageName string) RunKind {
	switch appPackageName {
	case c.AppPackageName:
		return RunKindDeviceInfo
	case c.ExtendedAppPackageName:
		return RunKindExtendedDeviceInfo
	}
	return RunKindNormal
}

// FindError returns the first metric, by key order, that reports a collection error
func FindError(metrics map[string]string) (key string, value string, found bool) {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		if strings.HasPrefix(k, ErrorMetricPrefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", "", false
	}
	slices.Sort(keys)
	return keys[0], metrics[keys[0]], true
}
