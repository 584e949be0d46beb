package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
)

const identityKey = "identity"

// handleLogin verifies credentials and returns the session token as a bare
// JSON string.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, faults.InvalidRequest("body", "username and password are required"))
		return
	}
	if req.Username == "" {
		abortWithError(c, faults.Missing("username"))
		return
	}
	if req.Password == "" {
		abortWithError(c, faults.Missing("password"))
		return
	}
	s.deps.Sleep(s.deps.LoginDelay)

	user, err := s.deps.Directory.Verify(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.observeLogin(c, req.Username, err)
		abortWithError(c, err)
		return
	}
	token, err := s.deps.Issuer.Generate(user)
	if err != nil {
		s.observeLogin(c, req.Username, err)
		abortWithError(c, err)
		return
	}
	s.observeLogin(c, user.Username, nil)
	c.JSON(http.StatusOK, token)
}

func (s *Server) observeLogin(c *gin.Context, username string, err error) {
	outcome, action := "ok", model.AuditLogin
	detail := ""
	if err != nil {
		outcome, action, detail = "rejected", model.AuditLoginFailed, err.Error()
		s.deps.Logger.Warn("login failed", zap.String("user", username), zap.Error(err))
	} else {
		s.deps.Logger.Info("login succeeded", zap.String("user", username))
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
	if s.deps.Audit != nil {
		entry := model.AuditEntry{Actor: username, Action: action, Target: "session", Detail: detail, Timestamp: time.Now().UTC()}
		if err := s.deps.Audit.Append(c.Request.Context(), entry); err != nil {
			s.deps.Logger.Error("audit append failed", zap.Error(err))
		}
	}
}

// tokenFrom reads the session token from the "token" header, an
// "Authorization: Bearer" header, or (for websocket upgrades) the token
// query parameter.
func tokenFrom(c *gin.Context) string {
	if t := strings.TrimSpace(c.GetHeader("token")); t != "" {
		return t
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		return c.Query("token")
	}
	return ""
}

// AuthMiddleware resolves the caller identity or aborts with 401.
func (s *Server) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.deps.Issuer.Identify(tokenFrom(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func identity(c *gin.Context) model.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(model.Identity); ok {
			return id
		}
	}
	return model.Identity{}
}
