package commandserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/engine"
	"github.com/resonantfield/tapedeck/internal/recorder"
	"github.com/resonantfield/tapedeck/internal/sourcecache"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng := engine.New(48000, 512, 2)
	cache := sourcecache.New(4)
	rec, err := recorder.New(eng, cache, t.TempDir(), 48000, 2)
	if err != nil {
		t.Fatalf("recorder.New: %v", err)
	}
	return New(&conf.APIConfig{Listen: ":0"}, eng, rec, nil)
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleTransportState_ReportsStopped(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/transport", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandlePlay_AcceptsCommand(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/transport/play", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestHandleRecentProjects_WithoutStoreReturns503(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/projects/recent", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestAPIKeyAuth_RejectsMissingKey(t *testing.T) {
	eng := engine.New(48000, 512, 2)
	cache := sourcecache.New(4)
	rec, err := recorder.New(eng, cache, t.TempDir(), 48000, 2)
	if err != nil {
		t.Fatalf("recorder.New: %v", err)
	}
	s := New(&conf.APIConfig{Listen: ":0", APIKey: "secret"}, eng, rec, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.echo.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an api key, got %d", w.Code)
	}
}
