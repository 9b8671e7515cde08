package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"obligo/internal/alert"
	alerthandler "obligo/internal/alert/handler"
	"obligo/internal/audit"
	audithandler "obligo/internal/audit/handler"
	defhandler "obligo/internal/definition/handler"
	defservice "obligo/internal/definition/service"
	defstore "obligo/internal/definition/store"
	jwttoken "obligo/internal/jwt_token"
	occhandler "obligo/internal/occurrence/handler"
	occservice "obligo/internal/occurrence/service"
	occstore "obligo/internal/occurrence/store"
)

// RouterSuite drives the full engine through HTTP against in-memory stores.
type RouterSuite struct {
	suite.Suite
	server          *httptest.Server
	jwt             *jwttoken.JWTService
	preparerToken   string
	supervisorToken string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)

	trail := audit.NewService(audit.NewInMemoryStore(), logger)
	definitions := defservice.NewService(defstore.NewInMemoryStore(), trail)
	occStore := occstore.NewInMemoryStore()
	occurrences := occservice.NewService(occStore, definitions, trail, nil)
	alerts := alert.NewService(occStore, alert.NewInMemoryStore(), trail, logger, nil)

	s.jwt = jwttoken.NewJWTService("test-signing-key", "identity-test", "obligo")

	router := NewRouter(RouterConfig{
		Logger:         logger,
		Metrics:        nil,
		Validator:      s.jwt,
		RequestTimeout: 5 * time.Second,
		HealthChecks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
		Handlers: []Registrar{
			defhandler.New(definitions, logger),
			occhandler.New(occurrences, logger),
			alerthandler.New(alerts, logger),
			audithandler.New(trail, logger),
		},
	})

	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)

	var err error
	s.preparerToken, err = s.jwt.GenerateToken("user:ana.perez", "preparer", time.Hour)
	s.Require().NoError(err)
	s.supervisorToken, err = s.jwt.GenerateToken("user:luis.gomez", "supervisor", time.Hour)
	s.Require().NoError(err)
}

func (s *RouterSuite) do(method, path, token string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func decode[T any](s *RouterSuite, resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *RouterSuite) createDefinition() {
	resp := s.do(http.MethodPost, "/api/v1/definitions", s.supervisorToken, map[string]any{
		"code":              "REP-010",
		"name":              "Monthly regulatory report",
		"entity_ref":        "entity:regulator",
		"recurrence":        "monthly",
		"due_day":           15,
		"grace_period_days": 3,
		"preparer_ref":      "user:ana.perez",
		"supervisor_ref":    "user:luis.gomez",
	})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
}

func (s *RouterSuite) TestHealthzAndMetricsAreOpen() {
	resp, err := s.server.Client().Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	body := decode[map[string]any](s, resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["status"])

	resp, err = s.server.Client().Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestHealthzDegraded() {
	logger := slog.New(slog.DiscardHandler)
	router := NewRouter(RouterConfig{
		Logger:         logger,
		Validator:      s.jwt,
		RequestTimeout: time.Second,
		HealthChecks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		},
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func (s *RouterSuite) TestAPIRequiresToken() {
	resp := s.do(http.MethodGet, "/api/v1/occurrences/pending", "", nil)
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/v1/occurrences/pending", "not-a-token", nil)
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestDefinitionWritesRequireSupervisor() {
	resp := s.do(http.MethodPost, "/api/v1/definitions", s.preparerToken, map[string]any{
		"code": "REP-020",
	})
	resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *RouterSuite) TestObligationLifecycleOverHTTP() {
	s.createDefinition()

	resp := s.do(http.MethodPost, "/api/v1/occurrences/ensure", s.preparerToken, map[string]any{
		"definition_code": "REP-010",
		"period_label":    "2025-03",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](s, resp)
	s.Equal("2025-03", view["period_label"])
	id, ok := view["id"].(string)
	s.Require().True(ok)

	// Ensure is idempotent over the wire.
	resp = s.do(http.MethodPost, "/api/v1/occurrences/ensure", s.preparerToken, map[string]any{
		"definition_code": "REP-010",
		"period_label":    "2025-03",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	again := decode[map[string]any](s, resp)
	s.Equal(id, again["id"])

	resp = s.do(http.MethodPost, "/api/v1/occurrences/"+id+"/submit", s.preparerToken, map[string]any{
		"payload": map[string]any{"file_ref": "blob://report.pdf"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/api/v1/occurrences/"+id+"/submit", s.preparerToken, map[string]any{
		"payload": map[string]any{"file_ref": "blob://other.pdf"},
	})
	s.Equal(http.StatusConflict, resp.StatusCode, "second submission is rejected")
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/api/v1/occurrences/"+id+"/corrections", s.supervisorToken, map[string]any{
		"payload": map[string]any{"file_ref": "blob://v2.pdf"},
		"reason":  "restated figures",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodGet, "/api/v1/occurrences/"+id+"/audit", s.preparerToken, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	events := decode[[]map[string]any](s, resp)
	s.Len(events, 3, "materialization, submission, correction")
}

func (s *RouterSuite) TestCorrectionsRequireSupervisorRole() {
	s.createDefinition()

	resp := s.do(http.MethodPost, "/api/v1/occurrences/ensure", s.preparerToken, map[string]any{
		"definition_code": "REP-010",
		"period_label":    "2025-03",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](s, resp)
	id := view["id"].(string)

	resp = s.do(http.MethodPost, "/api/v1/occurrences/"+id+"/submit", s.preparerToken, map[string]any{
		"payload": map[string]any{"file_ref": "blob://report.pdf"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodPost, "/api/v1/occurrences/"+id+"/corrections", s.preparerToken, map[string]any{
		"payload": map[string]any{"file_ref": "blob://v2.pdf"},
		"reason":  "restated figures",
	})
	s.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func (s *RouterSuite) TestNonJSONBodyRejected() {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/v1/occurrences/ensure",
		bytes.NewBufferString("definition_code=REP-010"))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.preparerToken)

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
}
