package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"tracesim/pkg/model"
	"tracesim/pkg/tracer"
)

// StreamRequest selects the trace to stream. Kind "mac" uses IP and DG,
// anything else uses Path.
type StreamRequest struct {
	Kind string
	Path tracer.PathParams
	IP   string
	DG   string
}

type streamMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// streamEndpoint maps the API base URL onto the /ws/trace endpoint.
func (c *Client) streamEndpoint(req StreamRequest) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	u.Scheme = scheme
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/trace"
	q := url.Values{}
	if req.Kind == string(model.TraceMAC) {
		q.Set("kind", req.Kind)
		q.Set("ip", req.IP)
		q.Set("dg", req.DG)
	} else {
		p := req.Path
		q.Set("source_ip", p.SourceIP)
		q.Set("destination_ip", p.DestinationIP)
		q.Set("source_dg", p.SourceDG)
		q.Set("destination_dg", p.DestinationDG)
		if p.VRF != "" {
			q.Set("vrf", p.VRF)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StreamTrace opens a websocket trace and calls onHop for each hop as the
// server reveals it. It returns the hops received once the server reports
// done. Streams are not retried.
func (c *Client) StreamTrace(ctx context.Context, req StreamRequest, onHop func(model.Hop)) ([]model.Hop, error) {
	endpoint, err := c.streamEndpoint(req)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			apiErr := &APIError{Status: resp.StatusCode}
			if derr := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(apiErr); derr != nil || apiErr.Detail == "" {
				apiErr.Detail = http.StatusText(resp.StatusCode)
			}
			return nil, apiErr
		}
		return nil, fmt.Errorf("tracesim stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var hops []model.Hop
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return hops, ctx.Err()
			}
			return hops, fmt.Errorf("tracesim stream: %w", err)
		}
		switch msg.Type {
		case "hop":
			var h model.Hop
			if err := sonic.Unmarshal(msg.Payload, &h); err != nil {
				return hops, fmt.Errorf("tracesim stream: decode hop: %w", err)
			}
			hops = append(hops, h)
			if onHop != nil {
				onHop(h)
			}
		case "done":
			return hops, nil
		case "error":
			apiErr := &APIError{}
			if err := sonic.Unmarshal(msg.Payload, apiErr); err != nil {
				return hops, fmt.Errorf("tracesim stream: decode error: %w", err)
			}
			if apiErr.Status == 0 {
				apiErr.Status = http.StatusInternalServerError
			}
			return hops, apiErr
		case "started":
		default:
			return hops, errors.New("tracesim stream: unexpected message " + msg.Type)
		}
	}
}
