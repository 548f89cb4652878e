// Package fieldbus provides low-level access to field devices.
//
// It contains two layers:
//
//   - Register codec: pure conversions between 16-bit word groups and typed
//     numeric values (integers, 32-bit floats, booleans). Stateless.
//   - Device connection: a single logical Modbus link (TCP or RTU) to one
//     field device, exposing block/bit read and write primitives with
//     per-call timeouts.
//
// The connection layer performs no retries and no scheduling. Retry and
// backoff policy belongs to the poller package; actuation escalation belongs
// to the blend package.
//
// All errors are classified into package sentinels (ErrTimeout, ErrRefused,
// ErrDeviceNAK, ...) so callers can branch with errors.Is without knowing
// the underlying transport library.
package fieldbus
