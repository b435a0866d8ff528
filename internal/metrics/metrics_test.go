package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveReserve("ok", 10*time.Millisecond)
	c.ObserveReserve("ok", 12*time.Millisecond)
	c.ObserveReserve("slot_full", time.Millisecond)
	c.ObserveRelease("already_cancelled", 0)
	c.Transition("menu_idle", "choosing_type")
	c.SessionExpired()
	c.ObserveUpdate("callback", nil)
	c.ObserveUpdate("callback", errors.New("x"))

	if got := counterValue(t, reg, "fitbot_reserve_total", map[string]string{"outcome": "ok"}); got != 2 {
		t.Errorf("reserve ok = %v, want 2", got)
	}
	if got := counterValue(t, reg, "fitbot_reserve_total", map[string]string{"outcome": "slot_full"}); got != 1 {
		t.Errorf("reserve slot_full = %v, want 1", got)
	}
	if got := counterValue(t, reg, "fitbot_release_total", map[string]string{"outcome": "already_cancelled"}); got != 1 {
		t.Errorf("release = %v, want 1", got)
	}
	if got := counterValue(t, reg, "fitbot_conversation_transitions_total", map[string]string{"from": "menu_idle", "to": "choosing_type"}); got != 1 {
		t.Errorf("transitions = %v, want 1", got)
	}
	if got := counterValue(t, reg, "fitbot_sessions_expired_total", nil); got != 1 {
		t.Errorf("expired = %v, want 1", got)
	}
	if got := counterValue(t, reg, "fitbot_updates_total", map[string]string{"kind": "callback", "status": "fail"}); got != 1 {
		t.Errorf("updates fail = %v, want 1", got)
	}
}

type fakeSender struct{}

func (fakeSender) Pending() int       { return 3 }
func (fakeSender) SentCount() uint64  { return 10 }
func (fakeSender) ErrorCount() uint64 { return 1 }

func TestRegisterSender(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RegisterSender(fakeSender{})

	if got := counterValue(t, reg, "fitbot_sender_queue_depth", nil); got != 3 {
		t.Errorf("queue depth = %v, want 3", got)
	}
	if got := counterValue(t, reg, "fitbot_sender_sent_total", nil); got != 10 {
		t.Errorf("sent = %v, want 10", got)
	}
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).ObserveReserve("ok", time.Millisecond)

	healthy := true
	h := Router(reg, map[string]HealthCheck{
		"db": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("down")
		},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(body), "fitbot_reserve_total") {
		t.Fatalf("/metrics = %d %q", rec.Code, body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/healthz = %d, want 200", rec.Code)
	}

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("/healthz = %d, want 503", rec.Code)
	}
}
