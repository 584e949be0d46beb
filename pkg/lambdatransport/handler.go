// Package lambdatransport serves the trace operations from API Gateway v2
// HTTP events.
package lambdatransport

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tracesim/pkg/api"
	"tracesim/pkg/auth"
	"tracesim/pkg/faults"
	"tracesim/pkg/model"
	"tracesim/pkg/query"
	"tracesim/pkg/tracer"
)

type Handler struct {
	svc     *tracer.Service
	issuer  *auth.Issuer
	dir     auth.Directory
	filters *query.Compiler
	logger  *zap.Logger
}

func NewHandler(svc *tracer.Service, issuer *auth.Issuer, dir auth.Directory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, issuer: issuer, dir: dir, filters: query.NewCompiler(64), logger: logger}
}

// Handle routes one event to the matching operation.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	requestID := req.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	method := req.RequestContext.HTTP.Method
	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}
	h.logger.Info("lambda request", zap.String("request_id", requestID), zap.String("method", method), zap.String("path", path))

	if method == http.MethodOptions {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNoContent}, nil
	}

	switch {
	case method == http.MethodPost && path == "/verify-device-auth":
		return h.login(ctx, req), nil
	case method == http.MethodGet && path == "/get-default-gateway":
		ip := req.QueryStringParameters["ip"]
		if ip == "" {
			return errorResp(faults.Missing("ip")), nil
		}
		return jsonResp(http.StatusOK, h.svc.ResolveGateway(ip)), nil
	}

	caller, err := h.issuer.Identify(token(req.Headers))
	if err != nil {
		return errorResp(err), nil
	}
	q := req.QueryStringParameters

	switch {
	case method == http.MethodGet && path == "/get-mac-trace":
		hops, err := h.svc.TraceLinkLayer(ctx, q["ip"], q["dg"], caller)
		return result(hops, err), nil
	case method == http.MethodGet && path == "/get-route-trace":
		hops, err := h.svc.TracePath(ctx, tracer.PathParams{
			SourceIP:      q["source_ip"],
			DestinationIP: q["destination_ip"],
			SourceDG:      q["source_dg"],
			DestinationDG: q["destination_dg"],
			VRF:           q["vrf"],
		}, caller)
		return result(hops, err), nil
	case method == http.MethodPost && path == "/get-user-routes":
		entries, err := h.svc.ListMine(caller)
		return h.history(entries, err, q["filter"]), nil
	case method == http.MethodPost && path == "/get-all-routes":
		entries, err := h.svc.ListAll(caller)
		return h.history(entries, err, q["filter"]), nil
	}
	return jsonResp(http.StatusNotFound, api.ErrorBody{Detail: "no route for " + method + " " + path}), nil
}

func (h *Handler) login(ctx context.Context, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	body, err := readBody(req)
	if err != nil {
		return errorResp(faults.InvalidRequest("body", err.Error()))
	}
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := sonic.Unmarshal(body, &in); err != nil {
		return errorResp(faults.InvalidRequest("body", "invalid json"))
	}
	user, err := h.dir.Verify(ctx, in.Username, in.Password)
	if err != nil {
		return errorResp(err)
	}
	tok, err := h.issuer.Generate(user)
	if err != nil {
		return errorResp(err)
	}
	return jsonResp(http.StatusOK, tok)
}

func (h *Handler) history(entries []model.HistoryEntry, err error, filter string) events.APIGatewayV2HTTPResponse {
	if err != nil {
		return errorResp(err)
	}
	f, err := h.filters.Compile(filter)
	if err != nil {
		return errorResp(err)
	}
	entries, err = f.Apply(entries)
	return result(entries, err)
}

// token mirrors the HTTP surface: "token" header first, then a bearer token.
// API Gateway lower-cases header names.
func token(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "token") && v != "" {
			return v
		}
	}
	for k, v := range headers {
		if strings.EqualFold(k, "authorization") && strings.HasPrefix(v, "Bearer ") {
			return strings.TrimPrefix(v, "Bearer ")
		}
	}
	return ""
}

func readBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func result(v any, err error) events.APIGatewayV2HTTPResponse {
	if err != nil {
		return errorResp(err)
	}
	return jsonResp(http.StatusOK, v)
}

func errorResp(err error) events.APIGatewayV2HTTPResponse {
	status, body := api.ErrorResponse(err)
	resp := jsonResp(status, body)
	if status == http.StatusServiceUnavailable {
		resp.Headers["retry-after"] = "1"
	}
	return resp
}

func jsonResp(status int, body any) events.APIGatewayV2HTTPResponse {
	b, _ := sonic.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(b),
	}
}
