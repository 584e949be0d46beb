package api

import "tracesim/pkg/model"

// loginRequest is the body of /verify-device-auth.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

// banner is returned by GET /.
type banner struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// auditResponse wraps the audit journal listing.
type auditResponse struct {
	Entries []model.AuditEntry `json:"entries"`
}
