package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	m := New()

	if m == nil {
		t.Fatal("New returned nil")
	}

	if m.registry == nil {
		t.Error("registry is nil")
	}

	if m.SessionsActive == nil {
		t.Error("SessionsActive is nil")
	}
	if m.SessionsTotal == nil {
		t.Error("SessionsTotal is nil")
	}
	if m.SessionsSwept == nil {
		t.Error("SessionsSwept is nil")
	}

	if m.ToolExecutionsTotal == nil {
		t.Error("ToolExecutionsTotal is nil")
	}
	if m.ToolExecutionDuration == nil {
		t.Error("ToolExecutionDuration is nil")
	}
	if m.ToolExecutionErrorsTotal == nil {
		t.Error("ToolExecutionErrorsTotal is nil")
	}

	if m.PlannerCallsTotal == nil {
		t.Error("PlannerCallsTotal is nil")
	}
	if m.PlannerFallbacksTotal == nil {
		t.Error("PlannerFallbacksTotal is nil")
	}

	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
}

func TestHandler(t *testing.T) {
	m := New()

	// Record some sample metrics so they appear in output
	m.SessionsActive.Set(3)
	m.SessionsTotal.Inc()
	m.SessionsSwept.Inc()
	m.ToolExecutionsTotal.WithLabelValues("adder").Inc()
	m.ToolExecutionDuration.WithLabelValues("adder").Observe(0.5)
	m.ToolExecutionErrorsTotal.WithLabelValues("adder").Inc()
	m.PlannerCallsTotal.WithLabelValues("anthropic", "success").Inc()
	m.PlannerFallbacksTotal.Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "200").Inc()

	handler := m.Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"toolbridge_sessions_active",
		"toolbridge_sessions_total",
		"toolbridge_sessions_swept_total",
		"toolbridge_tool_executions_total",
		"toolbridge_tool_execution_duration_seconds",
		"toolbridge_tool_execution_errors_total",
		"toolbridge_planner_calls_total",
		"toolbridge_planner_fallbacks_total",
		"toolbridge_http_requests_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestRegistryIsolation(t *testing.T) {
	m1 := New()
	m2 := New()

	m1.SessionsTotal.Inc()
	m1.SessionsTotal.Inc()
	m2.SessionsTotal.Inc()

	metricFamilies1, err := m1.registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range metricFamilies1 {
		if *mf.Name == "toolbridge_sessions_total" {
			if len(mf.Metric) > 0 && *mf.Metric[0].Counter.Value != 2 {
				t.Errorf("m1: Expected value 2, got %f", *mf.Metric[0].Counter.Value)
			}
		}
	}

	metricFamilies2, err := m2.registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range metricFamilies2 {
		if *mf.Name == "toolbridge_sessions_total" {
			if len(mf.Metric) > 0 && *mf.Metric[0].Counter.Value != 1 {
				t.Errorf("m2: Expected value 1, got %f", *mf.Metric[0].Counter.Value)
			}
		}
	}
}
