package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/postalsys/udpkit/internal/logging"
	"github.com/postalsys/udpkit/internal/udp"
)

// mockStatsProvider implements StatsProvider for testing.
type mockStatsProvider struct {
	open  bool
	stats udp.Stats
}

func (m *mockStatsProvider) IsOpen() bool {
	return m.open
}

func (m *mockStatsProvider) Stats() udp.Stats {
	return m.stats
}

func newTestServer(provider StatsProvider) *Server {
	return NewServer(DefaultServerConfig(), provider, logging.NopLogger())
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	s := newTestServer(&mockStatsProvider{open: true})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.server.Handler == nil {
		t.Error("server has no handler")
	}
}

func TestServer_handleHealth(t *testing.T) {
	s := newTestServer(&mockStatsProvider{open: true})

	rec := serve(s, http.MethodGet, "/health")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); body != "OK\n" {
		t.Errorf("expected body 'OK\\n', got %q", body)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := newTestServer(&mockStatsProvider{open: true})

	for _, path := range []string{"/health", "/healthz", "/ready", "/stats"} {
		rec := serve(s, http.MethodPost, path)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: expected status %d, got %d", path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestServer_handleHealthz_Open(t *testing.T) {
	s := newTestServer(&mockStatsProvider{
		open: true,
		stats: udp.Stats{
			Open:         true,
			LocalAddr:    "0.0.0.0:9090",
			PendingSends: 3,
		},
	})

	rec := serve(s, http.MethodGet, "/healthz")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", response["status"])
	}
	if response["open"] != true {
		t.Errorf("expected open true, got %v", response["open"])
	}
	if response["local_addr"] != "0.0.0.0:9090" {
		t.Errorf("expected local_addr 0.0.0.0:9090, got %v", response["local_addr"])
	}
	if int(response["pending_sends"].(float64)) != 3 {
		t.Errorf("expected pending_sends 3, got %v", response["pending_sends"])
	}
}

func TestServer_handleHealthz_Closed(t *testing.T) {
	s := newTestServer(&mockStatsProvider{open: false})

	rec := serve(s, http.MethodGet, "/healthz")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["open"] != false {
		t.Errorf("expected open false, got %v", response["open"])
	}
	if _, ok := response["local_addr"]; ok {
		t.Error("closed socket should not report local_addr")
	}
}

func TestServer_handleReady(t *testing.T) {
	tests := []struct {
		name     string
		provider StatsProvider
		wantCode int
		wantBody string
	}{
		{"open", &mockStatsProvider{open: true}, http.StatusOK, "READY\n"},
		{"closed", &mockStatsProvider{open: false}, http.StatusServiceUnavailable, "NOT READY\n"},
		{"nil provider", nil, http.StatusServiceUnavailable, "NOT READY\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.provider)
			rec := serve(s, http.MethodGet, "/ready")

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_handleStats(t *testing.T) {
	s := newTestServer(&mockStatsProvider{
		open: true,
		stats: udp.Stats{
			Open:              true,
			Host:              "192.168.1.255",
			Port:              9090,
			DatagramsSent:     7,
			DatagramsReceived: 4,
			BytesReceived:     128,
			ListenerFaults:    1,
		},
	})

	rec := serve(s, http.MethodGet, "/stats")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}

	var st udp.Stats
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if st.Host != "192.168.1.255" || st.Port != 9090 {
		t.Errorf("endpoint = %s:%d", st.Host, st.Port)
	}
	if st.DatagramsSent != 7 || st.DatagramsReceived != 4 || st.BytesReceived != 128 {
		t.Errorf("counters = %+v", st)
	}
	if st.ListenerFaults != 1 {
		t.Errorf("ListenerFaults = %d, want 1", st.ListenerFaults)
	}
}

func TestServer_handleStats_NilProvider(t *testing.T) {
	s := newTestServer(nil)

	rec := serve(s, http.MethodGet, "/stats")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "udpkit_test_total",
		Help: "Test counter",
	})
	counter.Add(2)

	cfg := DefaultServerConfig()
	cfg.Gatherer = reg
	s := NewServer(cfg, &mockStatsProvider{}, logging.NopLogger())

	rec := serve(s, http.MethodGet, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "udpkit_test_total 2") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := ServerConfig{
		Address:      "127.0.0.1:0", // Dynamic port
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	s := NewServer(cfg, &mockStatsProvider{open: true}, logging.NopLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	if !s.IsRunning() {
		t.Error("expected server to be running")
	}

	addr := s.Address()
	if addr == nil {
		t.Fatal("expected non-nil address")
	}

	var resp *http.Response
	var err error
	for i := 0; i < 10; i++ {
		time.Sleep(10 * time.Millisecond)
		resp, err = http.Get("http://" + addr.String() + "/ready")
		if err == nil {
			break
		}
	}
	if err != nil {
		t.Fatalf("request failed after retries: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "READY\n" {
		t.Errorf("expected body 'READY\\n', got %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("failed to stop: %v", err)
	}

	if s.IsRunning() {
		t.Error("expected server to be stopped")
	}
}

func TestServer_DoubleStop(t *testing.T) {
	cfg := ServerConfig{
		Address: "127.0.0.1:0",
	}
	s := NewServer(cfg, &mockStatsProvider{}, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	ctx := context.Background()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("first stop failed: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Errorf("second stop failed: %v", err)
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := newTestServer(nil)

	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop() before Start = %v", err)
	}
	if s.Address() != nil {
		t.Error("Address() should be nil before Start")
	}
}

func TestServer_PprofIndex(t *testing.T) {
	s := newTestServer(nil)

	rec := serve(s, http.MethodGet, "/debug/pprof/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestServer_WithManager(t *testing.T) {
	cfg := udp.DefaultConfig()
	cfg.Port = 0
	mgr := udp.NewManager(cfg, logging.NopLogger(), nil)

	s := newTestServer(mgr)
	if rec := serve(s, http.MethodGet, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("closed manager: expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}
