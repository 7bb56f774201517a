// Package obs fetches point observations from a Synoptic-style mesonet API.
// The client returns typed series; pairing with forecasts and all statistics
// happen downstream.
package obs

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/gridverify/internal/metrics"
	"github.com/lox/gridverify/internal/spatial"
)

const defaultBaseURL = "https://api.synopticdata.com/v2"

type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point the client at a stub server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type timeseriesResponse struct {
	Stations []stationTimeseries `json:"STATION"`
	Summary  responseSummary     `json:"SUMMARY"`
}

type responseSummary struct {
	ResponseCode    int    `json:"RESPONSE_CODE"`
	ResponseMessage string `json:"RESPONSE_MESSAGE"`
}

type stationTimeseries struct {
	StationID    string                `json:"STID"`
	Name         string                `json:"NAME"`
	Latitude     float64               `json:"LATITUDE,string"`
	Longitude    float64               `json:"LONGITUDE,string"`
	Elevation    float64               `json:"ELEVATION,string"`
	Observations map[string][]*float64 `json:"OBSERVATIONS"`
	Times        []string              `json:"DATE_TIMES"`
}

// Series is one station's observation time series for a single variable.
// Missing values are NaN, the convention the accumulators expect.
type Series struct {
	Station spatial.Station
	Times   []time.Time
	Values  []float64
}

// FetchTimeseries retrieves one variable's observations for a set of stations
// over a time range. Rate-limit responses are retried with exponential
// backoff; other failures are permanent.
func (c *Client) FetchTimeseries(stationIDs []string, variable string, start, end time.Time) ([]Series, error) {
	q := url.Values{}
	q.Set("token", c.token)
	q.Set("stid", strings.Join(stationIDs, ","))
	q.Set("vars", variable)
	q.Set("start", start.UTC().Format("200601021504"))
	q.Set("end", end.UTC().Format("200601021504"))
	q.Set("obtimezone", "UTC")
	reqURL := fmt.Sprintf("%s/stations/timeseries?%s", c.baseURL, q.Encode())

	body, err := c.get("timeseries", reqURL)
	if err != nil {
		return nil, err
	}

	var data timeseriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if data.Summary.ResponseCode != 1 {
		return nil, fmt.Errorf("api error: %s", data.Summary.ResponseMessage)
	}

	var out []Series
	for _, st := range data.Stations {
		values := st.Observations[variable]
		if len(values) != len(st.Times) {
			return nil, fmt.Errorf("station %s: %d values vs %d times", st.StationID, len(values), len(st.Times))
		}
		s := Series{
			Station: spatial.Station{
				ID:        st.StationID,
				Name:      st.Name,
				Lat:       st.Latitude,
				Lon:       st.Longitude,
				Elevation: st.Elevation,
			},
			Times:  make([]time.Time, 0, len(st.Times)),
			Values: make([]float64, 0, len(values)),
		}
		for i, ts := range st.Times {
			at, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, fmt.Errorf("station %s: parse time %q: %w", st.StationID, ts, err)
			}
			s.Times = append(s.Times, at)
			if values[i] == nil {
				s.Values = append(s.Values, math.NaN())
			} else {
				s.Values = append(s.Values, *values[i])
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) get(endpoint, reqURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Get(reqURL)
		if err != nil {
			metrics.ObsAPICalls.WithLabelValues(endpoint, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, err))
		}
		defer resp.Body.Close()
		metrics.ObsAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		metrics.ObsAPICalls.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", endpoint, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return body, nil
}
