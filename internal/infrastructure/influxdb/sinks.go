package influxdb

import (
	"github.com/calder-systems/terminal-core/internal/blend"
	"github.com/calder-systems/terminal-core/internal/poller"
)

// RegisterSink feeds polled register values into InfluxDB.
// It implements poller.Subscriber.
type RegisterSink struct {
	client *Client
}

// NewRegisterSink creates a register telemetry sink over client.
func NewRegisterSink(client *Client) *RegisterSink {
	return &RegisterSink{client: client}
}

// RegisterChanged records one point per changed register. Writes are
// batched by the client, so per-change points are cheap.
func (s *RegisterSink) RegisterChanged(changes []poller.Change) {
	for _, ch := range changes {
		s.client.WriteRegisterValue(ch.DeviceID, ch.Address, ch.Value, ch.ReadAt)
	}
}

// HealthSink feeds device poll-health transitions into InfluxDB.
// It implements poller.HealthSink.
type HealthSink struct {
	client *Client
}

// NewHealthSink creates a poll-health telemetry sink over client.
func NewHealthSink(client *Client) *HealthSink {
	return &HealthSink{client: client}
}

// PollHealth records the device's poll status.
func (s *HealthSink) PollHealth(h poller.Health) {
	s.client.WritePollHealth(h.DeviceID, string(h.Status), h.LastPollTime)
}

// BlendSink feeds blend progress samples into InfluxDB.
// It implements blend.TelemetrySink.
type BlendSink struct {
	client *Client
}

// NewBlendSink creates a blend telemetry sink over client.
func NewBlendSink(client *Client) *BlendSink {
	return &BlendSink{client: client}
}

// BlendProgress records the operation-level sample plus one point per
// component stream.
func (s *BlendSink) BlendProgress(snap blend.Snapshot) {
	s.client.WriteBlendProgress(snap.ID, string(snap.Status),
		snap.Transferred, snap.TotalTarget, snap.APIGravity, snap.Viscosity)
	for _, c := range snap.Components {
		s.client.WriteComponentFlow(snap.ID, c.TankID, c.FlowRate, c.Transferred)
	}
}
