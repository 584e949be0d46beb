package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tracesim/pkg/metrics"
	"tracesim/pkg/model"
	"tracesim/pkg/tracer"
)

// WSMessage is the envelope sent to stream subscribers.
type WSMessage struct {
	Type    string      `json:"type"` // started, hop, done, error
	Payload interface{} `json:"payload,omitempty"`
}

// wsError carries the status the plain HTTP route would have answered with.
type wsError struct {
	Status int `json:"status"`
	ErrorBody
}

// StreamHub replays synthesized traces over websockets one hop at a time, the
// way a live traceroute reveals them.
type StreamHub struct {
	upgrader websocket.Upgrader
	tracer   *tracer.Service
	logger   *zap.Logger
	metrics  *metrics.Metrics
	pacing   time.Duration
	sleep    func(time.Duration)
}

func NewStreamHub(svc *tracer.Service, logger *zap.Logger, m *metrics.Metrics, pacing time.Duration, sleep func(time.Duration), origins []string) *StreamHub {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &StreamHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
		tracer:  svc,
		logger:  logger,
		metrics: m,
		pacing:  pacing,
		sleep:   sleep,
	}
}

// HandleTrace upgrades the request and streams one trace. kind=mac streams a
// link-layer trace for ?ip=&dg=; otherwise the route trace query parameters
// apply.
func (h *StreamHub) HandleTrace(c *gin.Context) {
	var params tracer.PathParams
	_ = c.ShouldBindQuery(&params)
	kind := c.Query("kind")
	ip, dg := c.Query("ip"), c.Query("dg")
	caller := identity(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	h.opened()
	defer h.closed(conn)

	// Drain control frames so close requests from the client are seen.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	_ = conn.WriteJSON(WSMessage{Type: "started", Payload: map[string]string{"user": caller.Username()}})

	var hops []model.Hop
	if kind == string(model.TraceMAC) {
		hops, err = h.tracer.TraceLinkLayer(c.Request.Context(), ip, dg, caller)
	} else {
		hops, err = h.tracer.TracePath(c.Request.Context(), params, caller)
	}
	if err != nil {
		status, body := ErrorResponse(err)
		h.logger.Info("ws trace failed", zap.Int("status", status), zap.Error(err))
		_ = conn.WriteJSON(WSMessage{Type: "error", Payload: wsError{Status: status, ErrorBody: body}})
		h.closeNormal(conn)
		return
	}

	for i, hop := range hops {
		if i > 0 && h.pacing > 0 {
			h.sleep(h.pacing)
		}
		if err := conn.WriteJSON(WSMessage{Type: "hop", Payload: hop}); err != nil {
			h.logger.Info("ws subscriber went away", zap.Int("sent", i), zap.Error(err))
			return
		}
	}
	_ = conn.WriteJSON(WSMessage{Type: "done", Payload: map[string]int{"hops": len(hops)}})
	h.closeNormal(conn)
}

func (h *StreamHub) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// opened and closed keep the WSStreams gauge in step with live streams.
func (h *StreamHub) opened() {
	if h.metrics != nil {
		h.metrics.WSStreams.Inc()
	}
}

func (h *StreamHub) closed(conn *websocket.Conn) {
	_ = conn.Close()
	if h.metrics != nil {
		h.metrics.WSStreams.Dec()
	}
}
