package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSample_Validation(t *testing.T) {
	now := time.Now()
	deviceID := uuid.New()
	signal := -47.5

	tests := []struct {
		name    string
		sample  Sample
		wantErr bool
	}{
		{
			name: "valid sample with signal",
			sample: Sample{
				DeviceID:  deviceID,
				Timestamp: now,
				Signal:    &signal,
			},
			wantErr: false,
		},
		{
			name: "valid heartbeat without signal",
			sample: Sample{
				DeviceID:  deviceID,
				Timestamp: now,
			},
			wantErr: false,
		},
		{
			name: "missing device_id",
			sample: Sample{
				Timestamp: now,
				Signal:    &signal,
			},
			wantErr: true,
		},
		{
			name: "missing timestamp",
			sample: Sample{
				DeviceID: deviceID,
				Signal:   &signal,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sample.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Sample.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSample_JSONRoundTrip(t *testing.T) {
	signal := -62.0
	original := Sample{
		DeviceID:  uuid.New(),
		Timestamp: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		Signal:    &signal,
		Payload:   map[string]interface{}{"source": "api_ingestion"},
	}

	data, err := json.Marshal(&original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Sample
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.DeviceID != original.DeviceID {
		t.Errorf("DeviceID = %v, want %v", decoded.DeviceID, original.DeviceID)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.Signal == nil || *decoded.Signal != signal {
		t.Errorf("Signal = %v, want %v", decoded.Signal, signal)
	}
	if decoded.IngestSeq != 0 {
		t.Errorf("IngestSeq should not round-trip through JSON, got %d", decoded.IngestSeq)
	}
}

func TestDevice_Validation(t *testing.T) {
	tests := []struct {
		name    string
		device  Device
		wantErr bool
	}{
		{
			name:    "valid device",
			device:  Device{Name: "warehouse-sensor-4", Status: DeviceStatusActive},
			wantErr: false,
		},
		{
			name:    "empty status allowed",
			device:  Device{Name: "warehouse-sensor-5"},
			wantErr: false,
		},
		{
			name:    "missing name",
			device:  Device{Status: DeviceStatusActive},
			wantErr: true,
		},
		{
			name:    "unknown status value",
			device:  Device{Name: "warehouse-sensor-6", Status: "hibernating"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.device.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Device.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
