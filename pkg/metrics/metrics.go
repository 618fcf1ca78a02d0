package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spline-tsfm/dashctl/pkg/api"
	"github.com/spline-tsfm/dashctl/pkg/retry"
)

// ClientMetrics tracks request outcomes and retry decisions of the API
// client. It owns its registry so tests and repeated constructions never
// collide on global registration.
type ClientMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
}

// NewClientMetrics creates the metric set.
func NewClientMetrics() *ClientMetrics {
	m := &ClientMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashctl_api_requests_total",
				Help: "API operations by outcome (ok, error, canceled)",
			},
			[]string{"operation", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashctl_api_retries_total",
				Help: "Retry attempts by request path",
			},
			[]string{"path"},
		),
	}
	m.registry.MustRegister(m.requests)
	m.registry.MustRegister(m.retries)
	return m
}

// RetryObserver adapts the metric set to the client's retry observer hook.
func (m *ClientMetrics) RetryObserver() func(retry.Event) {
	return func(ev retry.Event) {
		m.retries.WithLabelValues(ev.Path).Inc()
	}
}

// ObserveOperation records the outcome of one logical API operation.
func (m *ClientMetrics) ObserveOperation(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case api.IsCanceled(err):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for scraping and tests.
func (m *ClientMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// InstrumentService wraps svc so the outcome of every operation is recorded.
func (m *ClientMetrics) InstrumentService(svc api.Service) api.Service {
	return &observedService{svc: svc, metrics: m}
}

type observedService struct {
	svc     api.Service
	metrics *ClientMetrics
}

func (o *observedService) SubmitRun(ctx context.Context, payload api.RunJobPayload, opts *api.RequestOptions) (*api.RunJobResponse, error) {
	res, err := o.svc.SubmitRun(ctx, payload, opts)
	o.metrics.ObserveOperation("submit", err)
	return res, err
}

func (o *observedService) FetchJob(ctx context.Context, jobID string, opts *api.RequestOptions) (*api.JobDetail, error) {
	res, err := o.svc.FetchJob(ctx, jobID, opts)
	o.metrics.ObserveOperation("job", err)
	return res, err
}

func (o *observedService) CancelJob(ctx context.Context, jobID string, opts *api.RequestOptions) (*api.JobDetail, error) {
	res, err := o.svc.CancelJob(ctx, jobID, opts)
	o.metrics.ObserveOperation("cancel", err)
	return res, err
}

func (o *observedService) FetchJobLogs(ctx context.Context, jobID string, opts *api.RequestOptions) (*api.JobLogs, error) {
	res, err := o.svc.FetchJobLogs(ctx, jobID, opts)
	o.metrics.ObserveOperation("logs", err)
	return res, err
}

func (o *observedService) FetchDashboardSummary(ctx context.Context, opts *api.RequestOptions) (*api.DashboardSummary, error) {
	res, err := o.svc.FetchDashboardSummary(ctx, opts)
	o.metrics.ObserveOperation("dashboard", err)
	return res, err
}

func (o *observedService) FetchRunMetrics(ctx context.Context, runID string, opts *api.RequestOptions) (interface{}, error) {
	res, err := o.svc.FetchRunMetrics(ctx, runID, opts)
	o.metrics.ObserveOperation("run_metrics", err)
	return res, err
}

func (o *observedService) FetchRunReport(ctx context.Context, runID string, opts *api.RequestOptions) (interface{}, error) {
	res, err := o.svc.FetchRunReport(ctx, runID, opts)
	o.metrics.ObserveOperation("run_report", err)
	return res, err
}

func (o *observedService) FetchRunArtifacts(ctx context.Context, runID string, opts *api.RequestOptions) (interface{}, error) {
	res, err := o.svc.FetchRunArtifacts(ctx, runID, opts)
	o.metrics.ObserveOperation("run_artifacts", err)
	return res, err
}

func (o *observedService) FetchResult(ctx context.Context, runID string, opts *api.RequestOptions) (*api.ResultPayload, error) {
	res, err := o.svc.FetchResult(ctx, runID, opts)
	o.metrics.ObserveOperation("result", err)
	return res, err
}
