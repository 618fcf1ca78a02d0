package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/spline-tsfm/dashctl/pkg/api"
	"github.com/spline-tsfm/dashctl/pkg/retry"
)

func TestObserveOperationOutcomes(t *testing.T) {
	m := NewClientMetrics()

	m.ObserveOperation("submit", nil)
	m.ObserveOperation("submit", &api.APIError{Message: "HTTP 500", Status: 500})
	m.ObserveOperation("submit", api.ErrCanceled)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("submit", "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("submit", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("submit", "canceled")); got != 1 {
		t.Errorf("canceled count = %v, want 1", got)
	}
}

func TestRetryObserverCountsByPath(t *testing.T) {
	m := NewClientMetrics()
	observe := m.RetryObserver()

	observe(retry.Event{Path: "/jobs/1", Attempt: 1, NextDelay: 100 * time.Millisecond})
	observe(retry.Event{Path: "/jobs/1", Attempt: 2, NextDelay: 200 * time.Millisecond})
	observe(retry.Event{Path: "/dashboard/summary", Attempt: 1})

	if got := testutil.ToFloat64(m.retries.WithLabelValues("/jobs/1")); got != 2 {
		t.Errorf("retry count for /jobs/1 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("/dashboard/summary")); got != 1 {
		t.Errorf("retry count for /dashboard/summary = %v, want 1", got)
	}
}

func TestHandlerExposesTextFormat(t *testing.T) {
	m := NewClientMetrics()
	m.ObserveOperation("result", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "dashctl_api_requests_total") {
		t.Errorf("exposition missing request counter:\n%s", body)
	}
}

func TestInstrumentServiceRecordsOutcomes(t *testing.T) {
	m := NewClientMetrics()
	svc := m.InstrumentService(api.NewMockClient(api.NewMockStore()))

	res, err := svc.SubmitRun(context.Background(), api.RunJobPayload{RunID: "r1"}, nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := svc.FetchJob(context.Background(), res.JobID, nil); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if _, err := svc.FetchJob(context.Background(), "unknown", nil); err == nil {
		t.Fatal("expected failure for unknown job")
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.FetchDashboardSummary(canceled, nil); err == nil {
		t.Fatal("expected cancellation")
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("submit", "ok")); got != 1 {
		t.Errorf("submit ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("job", "ok")); got != 1 {
		t.Errorf("job ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("job", "error")); got != 1 {
		t.Errorf("job error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("dashboard", "canceled")); got != 1 {
		t.Errorf("dashboard canceled count = %v, want 1", got)
	}
}

func TestRegistriesAreIsolated(t *testing.T) {
	// Two constructions must not collide on registration.
	a := NewClientMetrics()
	b := NewClientMetrics()
	a.ObserveOperation("submit", nil)

	if got := testutil.ToFloat64(b.requests.WithLabelValues("submit", "ok")); got != 0 {
		t.Errorf("metric sets must be independent, got %v", got)
	}
}
