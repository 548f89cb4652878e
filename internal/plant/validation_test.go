package plant

import (
	"errors"
	"testing"
	"time"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
)

func validDevice() *Device {
	return &Device{
		ID:        "dev-1",
		Name:      "Bay 1 Flow Computer",
		Transport: fieldbus.TransportTCP,
		Address:   "10.0.4.20:502",
		UnitID:    1,
		Enabled:   true,
	}
}

func validRegister() *Register {
	return &Register{
		DeviceID:     "dev-1",
		Name:         "flow_rate",
		Address:      100,
		Class:        ClassInput,
		Encoding:     fieldbus.EncodingFloat32,
		Scale:        1.0,
		PollInterval: time.Second,
		Enabled:      true,
	}
}

func TestValidateDevice(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Device)
		wantErr error
	}{
		{"valid", func(*Device) {}, nil},
		{"missing id", func(d *Device) { d.ID = "" }, ErrInvalidDevice},
		{"missing name", func(d *Device) { d.Name = "" }, ErrInvalidDevice},
		{"bad transport", func(d *Device) { d.Transport = "bacnet" }, ErrInvalidDevice},
		{"missing address", func(d *Device) { d.Address = "" }, ErrInvalidDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDevice()
			tt.mutate(d)
			err := ValidateDevice(d)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDevice() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDevice() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Register)
		wantErr error
	}{
		{"valid word register", func(*Register) {}, nil},
		{"valid coil", func(r *Register) {
			r.Class = ClassCoil
			r.Encoding = fieldbus.EncodingBool
		}, nil},
		{"missing device", func(r *Register) { r.DeviceID = "" }, ErrInvalidRegister},
		{"bad class", func(r *Register) { r.Class = "file" }, ErrInvalidRegister},
		{"bad encoding", func(r *Register) { r.Encoding = "int64" }, ErrInvalidRegister},
		{"coil with float encoding", func(r *Register) {
			r.Class = ClassCoil
		}, ErrInvalidRegister},
		{"holding with bool encoding", func(r *Register) {
			r.Encoding = fieldbus.EncodingBool
		}, ErrInvalidRegister},
		{"zero scale", func(r *Register) { r.Scale = 0 }, ErrInvalidRegister},
		{"zero interval", func(r *Register) { r.PollInterval = 0 }, ErrInvalidRegister},
		{"negative interval", func(r *Register) { r.PollInterval = -time.Second }, ErrInvalidRegister},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegister()
			tt.mutate(r)
			err := ValidateRegister(r)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRegister() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRegister() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTank(t *testing.T) {
	valid := Tank{
		ID:            "tank-7",
		Name:          "Tank 7",
		ProductID:     "prod-alkylate",
		DeviceID:      "dev-1",
		ValveCoilAddr: 10,
		PumpSpeedAddr: 200,
		FlowRateAddr:  100,
	}

	if err := ValidateTank(&valid); err != nil {
		t.Errorf("ValidateTank(valid) = %v, want nil", err)
	}

	missing := valid
	missing.ProductID = ""
	if err := ValidateTank(&missing); !errors.Is(err, ErrInvalidTank) {
		t.Errorf("ValidateTank(no product) = %v, want ErrInvalidTank", err)
	}
}
