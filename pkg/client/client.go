// Package client is a Go client for the tracesim HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
	"tracesim/pkg/tracer"
)

// Options tunes the transport. Zero values pick the defaults.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
}

// Client talks to a running tracesim server. Simulated failures (503) are
// retried by the transport before they surface.
type Client struct {
	rest    *resty.Client
	baseURL string
	token   string
}

func New(baseURL string, opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = def.RetryMax
	}
	if opts.RetryWaitMin == 0 {
		opts.RetryWaitMin = def.RetryWaitMin
	}
	if opts.RetryWaitMax == 0 {
		opts.RetryWaitMax = def.RetryWaitMax
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil
	// Hand the last response back instead of a generic "giving up" error.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	rest := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "tracesim-client/1.0").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &Client{rest: rest, baseURL: baseURL}
}

// SetToken sets the session token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
	c.rest.SetHeader("token", token)
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var token string
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&token).
		Post("/verify-device-auth")
	if err := check(resp, err); err != nil {
		return "", err
	}
	c.SetToken(token)
	return token, nil
}

func (c *Client) DefaultGateway(ctx context.Context, ip string) (string, error) {
	var gw string
	resp, err := c.rest.R().SetContext(ctx).SetQueryParam("ip", ip).SetResult(&gw).Get("/get-default-gateway")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return gw, nil
}

func (c *Client) RouteTrace(ctx context.Context, p tracer.PathParams) ([]model.Hop, error) {
	q := map[string]string{
		"source_ip":      p.SourceIP,
		"destination_ip": p.DestinationIP,
		"source_dg":      p.SourceDG,
		"destination_dg": p.DestinationDG,
	}
	if p.VRF != "" {
		q["vrf"] = p.VRF
	}
	var hops []model.Hop
	resp, err := c.rest.R().SetContext(ctx).SetQueryParams(q).SetResult(&hops).Get("/get-route-trace")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return hops, nil
}

func (c *Client) MACTrace(ctx context.Context, ip, dg string) ([]model.Hop, error) {
	var hops []model.Hop
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"ip": ip, "dg": dg}).
		SetResult(&hops).
		Get("/get-mac-trace")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return hops, nil
}

// UserRoutes lists the caller's history. filter may be empty.
func (c *Client) UserRoutes(ctx context.Context, filter string) ([]model.HistoryEntry, error) {
	return c.history(ctx, "/get-user-routes", filter)
}

// AllRoutes lists every retained history entry. filter may be empty.
func (c *Client) AllRoutes(ctx context.Context, filter string) ([]model.HistoryEntry, error) {
	return c.history(ctx, "/get-all-routes", filter)
}

func (c *Client) history(ctx context.Context, path, filter string) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	req := c.rest.R().SetContext(ctx).SetResult(&entries)
	if filter != "" {
		req.SetQueryParam("filter", filter)
	}
	resp, err := req.Post(path)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return entries, nil
}

// RouteDOT fetches the Graphviz rendering of one of the caller's entries.
func (c *Client) RouteDOT(ctx context.Context, id int64) (string, error) {
	resp, err := c.rest.R().SetContext(ctx).Get("/routes/" + strconv.FormatInt(id, 10) + "/dot")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return resp.String(), nil
}

// APIError is a non-2xx response. It unwraps to the matching faults error so
// callers can use faults.IsInvalid, faults.IsAuth and faults.Retryable.
type APIError struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Field  string `json:"field"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("tracesim: %d: %s (%s)", e.Status, e.Detail, e.Field)
	}
	return fmt.Sprintf("tracesim: %d: %s", e.Status, e.Detail)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnprocessableEntity:
		return faults.InvalidRequest(e.Field, e.Detail)
	case http.StatusUnauthorized:
		return faults.AuthFailure(e.Detail)
	case http.StatusNotFound:
		return faults.NotFound(e.Detail)
	case http.StatusServiceUnavailable:
		return faults.ErrSimulated
	}
	return nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("tracesim request: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if uerr := sonic.Unmarshal(resp.Body(), apiErr); uerr != nil || apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode())
	}
	return apiErr
}
