package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Client talks to the remote device platform's REST API: the device
// inventory plus per-device signal-strength timeseries.
type Client struct {
	baseURL  string
	apiKey   string
	pageSize int
	http     *http.Client
}

// NewClient creates a platform API client.
func NewClient(baseURL, apiKey string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
	}
}

// RemoteDevice is one inventory entry on the platform.
type RemoteDevice struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Type string    `json:"type"`
}

// Reading is one timestamped signal value from the platform timeseries.
type Reading struct {
	Timestamp time.Time
	// Signal is nil when the platform reported a non-numeric value.
	Signal *float64
	// Raw is the value string exactly as the platform sent it.
	Raw string
}

// FetchDevices lists the platform's device inventory, newest first.
func (c *Client) FetchDevices(ctx context.Context) ([]RemoteDevice, error) {
	endpoint := fmt.Sprintf(
		"%s/deviceInfos/all?pageSize=%d&page=0&sortProperty=createdTime&sortOrder=DESC",
		c.baseURL, c.pageSize,
	)

	var body struct {
		Data []RemoteDevice `json:"data"`
	}
	if err := c.get(ctx, endpoint, &body); err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}
	return body.Data, nil
}

// FetchReadings fetches a device's rss_value timeseries in [start, end].
// The platform encodes values as strings and timestamps as Unix millis.
func (c *Client) FetchReadings(ctx context.Context, deviceID uuid.UUID, start, end time.Time) ([]Reading, error) {
	endpoint := fmt.Sprintf(
		"%s/plugins/telemetry/DEVICE/%s/values/timeseries?keys=%s&startTs=%d&endTs=%d",
		c.baseURL,
		deviceID,
		url.QueryEscape("rss_value"),
		start.UnixMilli(),
		end.UnixMilli(),
	)

	var body struct {
		RSSValue []struct {
			TS    int64  `json:"ts"`
			Value string `json:"value"`
		} `json:"rss_value"`
	}
	if err := c.get(ctx, endpoint, &body); err != nil {
		return nil, fmt.Errorf("fetch readings for %s: %w", deviceID, err)
	}

	readings := make([]Reading, 0, len(body.RSSValue))
	for _, point := range body.RSSValue {
		r := Reading{
			Timestamp: time.UnixMilli(point.TS).UTC(),
			Raw:       point.Value,
		}
		if v, err := strconv.ParseFloat(point.Value, 64); err == nil {
			r.Signal = &v
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
