package influxdb

import "errors"

var (
	// ErrDisabled means the influxdb section of config.yaml is turned
	// off. Callers treat this as "run without telemetry", not a fault.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed startup ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
