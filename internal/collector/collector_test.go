package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

type fakeTelemetryStore struct {
	mu      sync.Mutex
	samples []*v1.Sample
	saveErr error
}

func (s *fakeTelemetryStore) SaveSample(ctx context.Context, sample *v1.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *fakeTelemetryStore) SaveSamples(ctx context.Context, samples []*v1.Sample) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *fakeTelemetryStore) QueryRange(ctx context.Context, start, end time.Time) ([]*v1.Sample, error) {
	return nil, nil
}

func (s *fakeTelemetryStore) ListByDevice(ctx context.Context, deviceID uuid.UUID, start, end time.Time, limit int) ([]*v1.Sample, error) {
	return nil, nil
}

func (s *fakeTelemetryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeDeviceStore struct {
	mu      sync.Mutex
	devices map[uuid.UUID]*v1.Device
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{devices: make(map[uuid.UUID]*v1.Device)}
}

func (s *fakeDeviceStore) CreateDevice(ctx context.Context, device *v1.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[device.ID]; ok {
		return storage.ErrDuplicate
	}
	s.devices[device.ID] = device
	return nil
}

func (s *fakeDeviceStore) GetDevice(ctx context.Context, id uuid.UUID) (*v1.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[id]; ok {
		return d, nil
	}
	return nil, storage.ErrNotFound
}

func (s *fakeDeviceStore) ListDevices(ctx context.Context, status string, limit, offset int) ([]*v1.Device, error) {
	return nil, nil
}

func (s *fakeDeviceStore) UpdateDevice(ctx context.Context, device *v1.Device) error { return nil }
func (s *fakeDeviceStore) DeleteDevice(ctx context.Context, id uuid.UUID) error      { return nil }

func (s *fakeDeviceStore) TouchLastSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) error {
	return nil
}

// newPlatformServer fakes the remote platform: a device inventory plus a
// per-device rss_value timeseries keyed by device id.
func newPlatformServer(t *testing.T, devices []RemoteDevice, series map[uuid.UUID]string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		switch {
		case strings.HasPrefix(r.URL.Path, "/deviceInfos/all"):
			entries := make([]string, 0, len(devices))
			for _, d := range devices {
				entries = append(entries, fmt.Sprintf(`{"id":%q,"name":%q,"type":%q}`, d.ID.String(), d.Name, d.Type))
			}
			fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(entries, ","))

		case strings.HasPrefix(r.URL.Path, "/plugins/telemetry/DEVICE/"):
			parts := strings.Split(r.URL.Path, "/")
			deviceID := uuid.MustParse(parts[4])
			body, ok := series[deviceID]
			if !ok {
				http.Error(w, "device not found", http.StatusNotFound)
				return
			}
			fmt.Fprint(w, body)

		default:
			http.NotFound(w, r)
		}
	}))
}

func TestClient_FetchDevices(t *testing.T) {
	deviceID := uuid.New()
	srv := newPlatformServer(t, []RemoteDevice{{ID: deviceID, Name: "sensor-1", Type: "gateway"}}, nil)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 100, 5*time.Second)

	devices, err := client.FetchDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, deviceID, devices[0].ID)
	require.Equal(t, "sensor-1", devices[0].Name)
	require.Equal(t, "gateway", devices[0].Type)
}

func TestClient_FetchReadings(t *testing.T) {
	deviceID := uuid.New()
	ts := time.Date(2026, 3, 2, 10, 2, 0, 0, time.UTC)

	srv := newPlatformServer(t, nil, map[uuid.UUID]string{
		deviceID: fmt.Sprintf(
			`{"rss_value":[{"ts":%d,"value":"-40.5"},{"ts":%d,"value":"N/A"}]}`,
			ts.UnixMilli(), ts.Add(time.Minute).UnixMilli(),
		),
	})
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 100, 5*time.Second)

	readings, err := client.FetchReadings(context.Background(), deviceID, ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, readings, 2)

	require.True(t, readings[0].Timestamp.Equal(ts))
	require.NotNil(t, readings[0].Signal)
	require.Equal(t, -40.5, *readings[0].Signal)
	require.Equal(t, "-40.5", readings[0].Raw)

	// The platform sometimes reports non-numeric values; those become
	// null-signal heartbeats rather than parse failures.
	require.Nil(t, readings[1].Signal)
	require.Equal(t, "N/A", readings[1].Raw)
}

func TestClient_FetchReadingsHTTPError(t *testing.T) {
	srv := newPlatformServer(t, nil, nil)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 100, 5*time.Second)

	_, err := client.FetchReadings(context.Background(), uuid.New(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
}

func TestCollector_Pull(t *testing.T) {
	deviceID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)
	readingTS := now.Add(-time.Minute)

	srv := newPlatformServer(t,
		[]RemoteDevice{{ID: deviceID, Name: "sensor-1", Type: "gateway"}},
		map[uuid.UUID]string{
			deviceID: fmt.Sprintf(
				`{"rss_value":[{"ts":%d,"value":"-44"},{"ts":%d,"value":"-42"}]}`,
				readingTS.Add(-2*time.Minute).UnixMilli(), readingTS.UnixMilli(),
			),
		})
	defer srv.Close()

	telemetry := &fakeTelemetryStore{}
	devices := newFakeDeviceStore()
	client := NewClient(srv.URL, "test-key", 100, 5*time.Second)
	collector := New(client, telemetry, devices, 5*time.Minute)

	pulled, err := collector.Pull(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, pulled)

	// Only the newest reading of the span is persisted.
	require.Len(t, telemetry.samples, 1)
	smp := telemetry.samples[0]
	require.Equal(t, deviceID, smp.DeviceID)
	require.True(t, smp.Timestamp.Equal(readingTS))
	require.NotNil(t, smp.Signal)
	require.Equal(t, -42.0, *smp.Signal)
	require.Equal(t, "api_ingestion", smp.Payload["source"])
	require.Equal(t, "-42", smp.Payload["rss_value"])

	// A previously unseen platform device gets a registry entry.
	device, err := devices.GetDevice(context.Background(), deviceID)
	require.NoError(t, err)
	require.Equal(t, "sensor-1", device.Name)
	require.Equal(t, "gateway", device.DeviceType)
}

func TestCollector_PullSkipsFailingDevices(t *testing.T) {
	healthy := uuid.New()
	broken := uuid.New()
	now := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)

	srv := newPlatformServer(t,
		[]RemoteDevice{{ID: broken, Name: "broken"}, {ID: healthy, Name: "healthy"}},
		map[uuid.UUID]string{
			healthy: fmt.Sprintf(`{"rss_value":[{"ts":%d,"value":"-50"}]}`, now.Add(-time.Minute).UnixMilli()),
		})
	defer srv.Close()

	telemetry := &fakeTelemetryStore{}
	client := NewClient(srv.URL, "test-key", 100, 5*time.Second)
	collector := New(client, telemetry, newFakeDeviceStore(), 5*time.Minute)

	pulled, err := collector.Pull(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, pulled)
	require.Len(t, telemetry.samples, 1)
	require.Equal(t, healthy, telemetry.samples[0].DeviceID)
}

func TestCollector_InventoryFailureFailsPull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 100, 5*time.Second)
	collector := New(client, &fakeTelemetryStore{}, newFakeDeviceStore(), 5*time.Minute)

	_, err := collector.Pull(context.Background(), time.Now().UTC())
	require.Error(t, err)
}

func TestCollector_SaveFailure(t *testing.T) {
	deviceID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)

	srv := newPlatformServer(t,
		[]RemoteDevice{{ID: deviceID, Name: "sensor-1"}},
		map[uuid.UUID]string{
			deviceID: fmt.Sprintf(`{"rss_value":[{"ts":%d,"value":"-42"}]}`, now.Add(-time.Minute).UnixMilli()),
		})
	defer srv.Close()

	telemetry := &fakeTelemetryStore{saveErr: errors.New("connection refused")}
	client := NewClient(srv.URL, "test-key", 100, 5*time.Second)
	collector := New(client, telemetry, newFakeDeviceStore(), 5*time.Minute)

	_, err := collector.Pull(context.Background(), now)
	require.Error(t, err)
}

func TestCollector_NoReadings(t *testing.T) {
	deviceID := uuid.New()

	srv := newPlatformServer(t,
		[]RemoteDevice{{ID: deviceID, Name: "sensor-1"}},
		map[uuid.UUID]string{deviceID: `{"rss_value":[]}`})
	defer srv.Close()

	telemetry := &fakeTelemetryStore{}
	client := NewClient(srv.URL, "test-key", 100, 5*time.Second)
	collector := New(client, telemetry, newFakeDeviceStore(), 5*time.Minute)

	pulled, err := collector.Pull(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 0, pulled)
	require.Empty(t, telemetry.samples)
}
