package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteRegisterValue records one polled register reading.
//
// This is the primary method for recording field telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Device identifier (e.g., "bay1-flowcomp")
//   - address: Register address on the device
//   - value: The scaled engineering value
//   - readAt: When the value was read from the device
//
// Example:
//
//	client.WriteRegisterValue("bay1-flowcomp", 100, 1000.0, entry.ReadAt)
func (c *Client) WriteRegisterValue(deviceID string, address uint16, value float64, readAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"register_values",
		map[string]string{
			"device_id": deviceID,
			"address":   strconv.Itoa(int(address)),
		},
		map[string]interface{}{
			"value": value,
		},
		readAt,
	)

	c.writeAPI.WritePoint(point)
}

// WritePollHealth records a device poll-health transition.
//
// Parameters:
//   - deviceID: Device identifier
//   - status: Poll status (ok, timeout, protocol_error, disconnected)
//   - lastPoll: Timestamp of the last completed poll cycle
func (c *Client) WritePollHealth(deviceID string, status string, lastPoll time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_health",
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		map[string]interface{}{
			"ok": status == "ok",
		},
		lastPoll,
	)

	c.writeAPI.WritePoint(point)
}

// WriteBlendProgress records a blend operation progress sample.
//
// Used for charting transfer volume and running blend properties over the
// life of an operation.
//
// Parameters:
//   - operationID: Blend operation identifier
//   - status: Lifecycle state at sample time
//   - transferred: Total gallons delivered so far
//   - target: Total gallons planned
//   - apiGravity: Volume-weighted API gravity of the delivered blend
//   - viscosity: Volume-weighted viscosity of the delivered blend
func (c *Client) WriteBlendProgress(operationID string, status string, transferred, target, apiGravity, viscosity float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"blend_progress",
		map[string]string{
			"operation_id": operationID,
			"status":       status,
		},
		map[string]interface{}{
			"transferred": transferred,
			"target":      target,
			"api_gravity": apiGravity,
			"viscosity":   viscosity,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteComponentFlow records one blend component's flow sample.
//
// Parameters:
//   - operationID: Blend operation identifier
//   - tankID: Source tank identifier
//   - flowRate: Commanded flow rate setpoint
//   - transferred: Gallons delivered from this tank so far
func (c *Client) WriteComponentFlow(operationID string, tankID string, flowRate, transferred float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"component_flow",
		map[string]string{
			"operation_id": operationID,
			"tank_id":      tankID,
		},
		map[string]interface{}{
			"flow_rate":   flowRate,
			"transferred": transferred,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
