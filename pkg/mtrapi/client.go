package mtrapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"mtreta/internal/domain"
)

const DefaultBaseURL = "https://rt.data.gov.hk/v1/transport/mtr/getSchedule.php"

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.RWMutex
	lastSuccess time.Time
	lastErr     error
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Response is the upstream schedule payload
type Response struct {
	Status   int                           `json:"status"`
	Message  string                        `json:"message,omitempty"`
	CurrTime string                        `json:"curr_time"`
	SysTime  string                        `json:"sys_time,omitempty"`
	IsDelay  string                        `json:"isdelay"`
	Data     map[string]domain.ArrivalData `json:"data,omitempty"`
}

// Schedule returns the entry for a line and station. A missing entry is not an
// error: terminal stations have no onward schedule.
func (r *Response) Schedule(lineCode, stationCode string) (domain.ArrivalData, bool) {
	data, ok := r.Data[domain.ScheduleKey(lineCode, stationCode)]
	return data, ok
}

func (r *Response) Delayed() bool {
	return r.IsDelay == "Y"
}

// Fetch requests the schedule for the station named by params (line, sta).
// Transport problems come back as *NetworkError and a status 0 or data-less
// payload as *ApplicationError.
func (c *Client) Fetch(ctx context.Context, params url.Values) (*Response, error) {
	resp, err := c.fetch(ctx, params)
	c.record(err)
	return resp, err
}

func (c *Client) fetch(ctx context.Context, params url.Values) (*Response, error) {
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: reqURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: reqURL, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", resp.Status)}
	}

	var apiResp Response
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &NetworkError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if apiResp.Status == 0 || apiResp.Data == nil {
		return nil, &ApplicationError{Message: apiResp.Message}
	}

	return &apiResp, nil
}

func (c *Client) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err == nil {
		c.lastSuccess = time.Now()
	}
}

// LastSuccess is the time of the last successful fetch, zero if none.
func (c *Client) LastSuccess() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}
