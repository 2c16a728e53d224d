package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/tlvhello/internal/testutil/testlog"
)

type stubStatus struct {
	addr  *net.TCPAddr
	slots []SlotInfo
}

func (s stubStatus) Addr() *net.TCPAddr { return s.addr }
func (s stubStatus) Active() int        { return len(s.slots) - 1 }
func (s stubStatus) MaxClients() int    { return 14 }
func (s stubStatus) Slots() []SlotInfo  { return s.slots }
func (s stubStatus) Started() time.Time { return time.Now().Add(-time.Minute) }

func serveAdmin(t *testing.T, a *Admin, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	a.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestAdminHealthAndSlots(t *testing.T) {
	testlog.Start(t)
	src := stubStatus{
		addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5555},
		slots: []SlotInfo{
			{ID: 0, Handle: 3, Interest: "accept"},
			{ID: 1, Handle: 7, Interest: "hangup", Session: "abc", Remote: "127.0.0.1:40000"},
		},
	}
	a := NewAdmin(src, AdminOptions{})

	rr := serveAdmin(t, a, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["service"] != "tlvserver" {
		t.Fatalf("unexpected health body: %#v", health)
	}

	rr = serveAdmin(t, a, "/slots")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Active     int        `json:"active"`
		MaxClients int        `json:"max_clients"`
		Slots      []SlotInfo `json:"slots"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if body.Active != 1 || body.MaxClients != 14 || len(body.Slots) != 2 || body.Slots[1].Session != "abc" {
		t.Fatalf("unexpected slots body: %+v", body)
	}
}

func TestAdminReadyReflectsListener(t *testing.T) {
	testlog.Start(t)
	notReady := NewAdmin(stubStatus{}, AdminOptions{})
	if rr := serveAdmin(t, notReady, "/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before listen, got %d", rr.Code)
	}
	ready := NewAdmin(stubStatus{addr: &net.TCPAddr{IP: net.IPv4zero, Port: 5555}}, AdminOptions{})
	rr := serveAdmin(t, ready, "/ready")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "0.0.0.0:5555") {
		t.Fatalf("unexpected ready response: %d %s", rr.Code, rr.Body.String())
	}
}

func TestAdminConfigAndMetrics(t *testing.T) {
	testlog.Start(t)
	empty := NewAdmin(stubStatus{}, AdminOptions{})
	if rr := serveAdmin(t, empty, "/config"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without config, got %d", rr.Code)
	}

	a := NewAdmin(stubStatus{}, AdminOptions{EffectiveConfig: []byte("max_clients = 14\n")})
	rr := serveAdmin(t, a, "/config")
	if rr.Code != http.StatusOK || rr.Body.String() != "max_clients = 14\n" {
		t.Fatalf("unexpected config response: %d %q", rr.Code, rr.Body.String())
	}

	rr = serveAdmin(t, a, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "tlvhello_admin_requests_total") {
		t.Fatalf("admin request counter missing from metrics output")
	}
}

func TestNormalizeOrigins(t *testing.T) {
	testlog.Start(t)
	if got := normalizeOrigins(nil); len(got) != 1 || got[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default origins: %v", got)
	}
	got := normalizeOrigins([]string{" https://ops.example ", ""})
	if len(got) != 1 || got[0] != "https://ops.example" {
		t.Fatalf("unexpected origins: %v", got)
	}
}
