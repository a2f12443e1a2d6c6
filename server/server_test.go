package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/observability"
	"github.com/kbukum/ctckit/server"
	"github.com/kbukum/ctckit/server/middleware"
)

func newTestServer(t *testing.T, checker func(context.Context) []observability.Health) *server.Server {
	t.Helper()
	s := server.New(server.Config{Host: "127.0.0.1"}, logger.Nop())
	s.ApplyDefaults("ctckit", checker)
	return s
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status observability.HealthStatus
		code   int
	}{
		{"up", observability.HealthStatusUp, http.StatusOK},
		{"degraded", observability.HealthStatusDegraded, http.StatusOK},
		{"down", observability.HealthStatusDown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(context.Context) []observability.Health {
				return []observability.Health{{Name: "store", Status: tt.status}}
			})
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rr.Code)
			}
			var body observability.ServiceHealth
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.status || len(body.Components) != 1 {
				t.Fatalf("unexpected body: %+v", body)
			}
		})
	}
}

func TestRecoveryAndRequestID(t *testing.T) {
	s := newTestServer(t, nil)
	s.GinEngine().GET("/boom", func(*gin.Context) { panic("test panic") })
	s.GinEngine().GET("/missing", func(c *gin.Context) {
		server.RespondWithError(c, errors.NotFound("run", "x"))
	})

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body errors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != errors.ErrCodeInternal {
		t.Errorf("code = %s", body.Error.Code)
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/missing", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "abc")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := rr.Header().Get(middleware.RequestIDHeader); got != "abc" {
		t.Errorf("request ID = %q, want abc", got)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := server.Config{Port: 70000}
	if err := cfg.Validate(); !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
	cfg = server.Config{}
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.Validate() != nil {
		t.Fatalf("defaults invalid: %+v", cfg)
	}
}
