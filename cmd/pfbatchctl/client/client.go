// Package client talks to the pfbatchd admin API.
//
// Every endpoint except /health wraps its payload in the same envelope,
// {"status": "success", "data": ..., "count": n}, and reports failures as
// {"error": ..., "details": ...}. The client decodes both into typed values;
// payload types are shared with the daemon packages that produce them so the
// two sides cannot drift apart.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/utils"
	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/dispatch"
	"github.com/concave-dev/pfbatch/internal/latency"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/pipeline"
	"github.com/concave-dev/pfbatch/internal/resources"
	"github.com/concave-dev/pfbatch/internal/traffic"
	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when the daemon answers 404.
var ErrNotFound = errors.New("not found")

// Envelope is the standard success response of the daemon API.
type Envelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Count  int    `json:"count,omitempty"`
}

// APIError is the error body of the daemon API.
type APIError struct {
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

// Health is the /health response.
type Health struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Uptime    string         `json:"uptime"`
	Workers   []WorkerHealth `json:"workers"`
	Error     string         `json:"error,omitempty"`
}

// WorkerHealth is the liveness of one dispatch worker.
type WorkerHealth struct {
	Worker      int    `json:"worker"`
	Ticks       uint64 `json:"ticks"`
	Now         uint64 `json:"now"`
	Backlog     int    `json:"backlog"`
	ArmedTimers int    `json:"armedTimers"`
	LiveBatches int    `json:"liveBatches"`
}

// Member is a daemon in the fleet as reported by /members.
type Member struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Address  string            `json:"address"`
	APIAddr  string            `json:"apiAddr,omitempty"`
	Status   string            `json:"status"`
	Tags     map[string]string `json:"tags"`
	LastSeen time.Time         `json:"lastSeen"`
}

// GetID returns the node id.
func (m Member) GetID() string { return m.ID }

// GetName returns the node name.
func (m Member) GetName() string { return m.Name }

// NodeResources is a host snapshot plus the display fields the daemon adds.
type NodeResources struct {
	resources.HostResources
	UptimeHuman       string `json:"uptimeHuman"`
	MemoryTotalMB     int    `json:"memoryTotalMB"`
	MemoryUsedMB      int    `json:"memoryUsedMB"`
	MemoryAvailableMB int    `json:"memoryAvailableMB"`
}

// LatencyRow is one line of the latency table. Protocol is zero for the
// total row.
type LatencyRow struct {
	Protocol uint8 `json:"protocol"`
	latency.Counter
	AverageLatency time.Duration `json:"averageLatency"`
}

// Latency is the /latency response.
type Latency struct {
	Since            time.Time     `json:"since"`
	Window           time.Duration `json:"window"`
	Threshold        time.Duration `json:"threshold"`
	PacketsPerSecond float64       `json:"packetsPerSecond"`
	BitsPerSecond    float64       `json:"bitsPerSecond"`
	Total            LatencyRow    `json:"total"`
	Protocols        []LatencyRow  `json:"protocols"`
	Reset            bool          `json:"reset"`
}

// Stats is the /stats response.
type Stats struct {
	Workers []dispatch.Snapshot      `json:"workers"`
	Totals  dispatch.Counters        `json:"totals"`
	Backlog int                      `json:"backlog"`
	Armed   int                      `json:"armedTimers"`
	Stages  []pipeline.StageStats    `json:"stages,omitempty"`
	Traffic *traffic.Stats           `json:"traffic,omitempty"`
	Host    *resources.HostResources `json:"host,omitempty"`
}

// SetBatchRequest is the body of a batch change.
type SetBatchRequest struct {
	BatchSize    int    `json:"batchSize"`
	Timeout      string `json:"timeout,omitempty"`
	MaxHoldTicks uint64 `json:"maxHoldTicks,omitempty"`
	Broadcast    bool   `json:"broadcast,omitempty"`
}

// SetBatchResult reports where a batch change took effect.
type SetBatchResult struct {
	Destination    *admission.Info `json:"destination,omitempty"`
	Applied        bool            `json:"applied"`
	Broadcast      bool            `json:"broadcast"`
	BroadcastError string          `json:"broadcastError,omitempty"`
}

// PfbatchAPIClient wraps a resty client bound to one daemon.
type PfbatchAPIClient struct {
	client  *resty.Client
	baseURL string
}

// NewPfbatchAPIClient creates a client for the daemon at apiAddr. Connection
// errors are retried; HTTP errors are not.
func NewPfbatchAPIClient(apiAddr string, timeout int) *PfbatchAPIClient {
	client := resty.New()

	baseURL := fmt.Sprintf("http://%s/api/v1", apiAddr)

	client.SetLogger(utils.RestyLogger{})

	client.
		SetTimeout(time.Duration(timeout)*time.Second).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", fmt.Sprintf("pfbatchctl/%s", config.Version))

	client.
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil
		})

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logging.Debug("Making API request: %s %s", req.Method, req.URL)
		return nil
	})

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logging.Debug("API response: %d %s (took %v)",
			resp.StatusCode(), resp.Status(), resp.Time())
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		logging.Debug("API request failed: %s %s - %v", req.Method, req.URL, err)
	})

	return &PfbatchAPIClient{
		client:  client,
		baseURL: baseURL,
	}
}

// CreateAPIClient creates a client from the global CLI flags.
func CreateAPIClient() *PfbatchAPIClient {
	return NewPfbatchAPIClient(config.Global.APIAddr, config.Global.Timeout)
}

// do sends req and decodes an envelope with a T payload. Any status other
// than 200 or 202 becomes an error; 404 wraps ErrNotFound.
func do[T any](api *PfbatchAPIClient, req *resty.Request, method, path string) (*Envelope[T], error) {
	var envelope Envelope[T]
	var apiErr APIError

	resp, err := req.
		SetResult(&envelope).
		SetError(&apiErr).
		Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to API server at %s: %w", api.baseURL, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusAccepted:
		return &envelope, nil
	case http.StatusNotFound:
		if apiErr.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, apiErr.Details)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if apiErr.Message != "" {
		return nil, fmt.Errorf("API request failed with status %d: %w", resp.StatusCode(), &apiErr)
	}
	return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode(), resp.String())
}

// GetHealth fetches /health, which is not wrapped in an envelope. A degraded
// daemon answers 503 with a body, which is returned rather than an error.
func (api *PfbatchAPIClient) GetHealth() (*Health, error) {
	var health Health

	resp, err := api.client.R().
		SetResult(&health).
		SetError(&health).
		Get("/health")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to API server at %s: %w", api.baseURL, err)
	}
	if resp.StatusCode() == http.StatusServiceUnavailable && health.Status != "" {
		return &health, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &health, nil
}

// GetDestinations lists every destination of the daemon.
func (api *PfbatchAPIClient) GetDestinations() ([]admission.Info, error) {
	env, err := do[[]admission.Info](api, api.client.R(), resty.MethodGet, "/destinations")
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetDestination fetches one destination by id or name.
func (api *PfbatchAPIClient) GetDestination(ref string) (*admission.Info, error) {
	env, err := do[admission.Info](api, api.client.R(), resty.MethodGet, "/destinations/"+ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("destination '%s' not found", ref)
		}
		return nil, err
	}
	return &env.Data, nil
}

// SetBatch changes the batching policy of a destination.
func (api *PfbatchAPIClient) SetBatch(ref string, body SetBatchRequest) (*SetBatchResult, error) {
	env, err := do[SetBatchResult](api, api.client.R().SetBody(body),
		resty.MethodPut, "/destinations/"+ref+"/batch")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("destination '%s' not found", ref)
		}
		return nil, err
	}
	return &env.Data, nil
}

// GetStats fetches the dispatcher and pipeline counters.
func (api *PfbatchAPIClient) GetStats() (*Stats, error) {
	env, err := do[Stats](api, api.client.R(), resty.MethodGet, "/stats")
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// GetLatency fetches the latency counters, clearing them in the same request
// when reset is set.
func (api *PfbatchAPIClient) GetLatency(reset bool) (*Latency, error) {
	req := api.client.R()
	if reset {
		req.SetQueryParam("reset", "true")
	}
	env, err := do[Latency](api, req, resty.MethodGet, "/latency")
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// ResetLatency clears the latency counters.
func (api *PfbatchAPIClient) ResetLatency() error {
	_, err := do[any](api, api.client.R(), resty.MethodPost, "/latency/reset")
	return err
}

// GetMembers lists the fleet as seen by the daemon.
func (api *PfbatchAPIClient) GetMembers() ([]Member, error) {
	env, err := do[[]Member](api, api.client.R(), resty.MethodGet, "/members")
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetResources fetches the host snapshot of every daemon, sorted by
// name, memory or uptime.
func (api *PfbatchAPIClient) GetResources(sortBy string, noCache bool) ([]NodeResources, error) {
	req := api.client.R()
	if sortBy != "" {
		req.SetQueryParam("sort", sortBy)
	}
	if noCache {
		req.SetQueryParam("no_cache", "true")
	}
	env, err := do[[]NodeResources](api, req, resty.MethodGet, "/resources")
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetNodeResources fetches the host snapshot of one daemon by name or id.
func (api *PfbatchAPIClient) GetNodeResources(ref string) (*NodeResources, error) {
	env, err := do[NodeResources](api, api.client.R(), resty.MethodGet, "/resources/"+ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("node '%s' not found in fleet", ref)
		}
		return nil, err
	}
	return &env.Data, nil
}
