// Package mqtt provides the outbound event boundary for Terminal Core.
//
// The core publishes typed events to an MQTT broker; whatever consumes them
// (trigger engines, SCADA fan-out, dashboards) is out of scope. Topics:
//
//   - termcore/register/{device_id}/{address} — register value changes
//   - termcore/device/{device_id}/health      — poll health snapshots
//   - termcore/blend/{operation_id}/state     — operation state transitions
//   - termcore/blend/{operation_id}/progress  — blend progress snapshots
//   - termcore/system/status                  — core online/offline (retained + LWT)
//
// The client wraps paho.mqtt.golang with auto-reconnect, subscription
// restoration, a Last Will and Testament for crash detection, and panic
// recovery around message handlers. All methods are safe for concurrent use.
package mqtt
