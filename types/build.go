package types

// BuildInfo describes the build and device an invocation runs against
type BuildInfo interface {
	// DeviceSerial returns the serial of the device under test, or "" if unknown
	DeviceSerial() string
}

// StaticBuildInfo is a BuildInfo with fixed values
type StaticBuildInfo struct {
	Serial  string `json:"serial,omitempty"`
	BuildID string `json:"buildId,omitempty"`
}

func (b StaticBuildInfo) DeviceSerial() string {
	return b.Serial
}
