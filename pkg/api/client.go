package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spline-tsfm/dashctl/pkg/config"
	"github.com/spline-tsfm/dashctl/pkg/logging"
	"github.com/spline-tsfm/dashctl/pkg/retry"
)

// Per-endpoint policies: reads are cheaper to retry than state-changing
// submissions, so polling gets a bigger budget.
var (
	submitPolicy    = requestPolicy{timeout: 12 * time.Second, retries: 1, retryDelay: 500 * time.Millisecond}
	jobPolicy       = requestPolicy{timeout: 8 * time.Second, retries: 2, retryDelay: 400 * time.Millisecond}
	cancelPolicy    = requestPolicy{timeout: 8 * time.Second, retries: 1, retryDelay: 400 * time.Millisecond}
	logsPolicy      = requestPolicy{timeout: 8 * time.Second, retries: 1, retryDelay: 350 * time.Millisecond}
	dashboardPolicy = requestPolicy{timeout: 6 * time.Second, retries: 1, retryDelay: 350 * time.Millisecond}
	runFacetPolicy  = requestPolicy{timeout: 10 * time.Second, retries: 1, retryDelay: 450 * time.Millisecond}
)

// Client talks to the spline-tsfm backend over HTTP. It satisfies Service;
// for offline development construct a MockClient instead.
type Client struct {
	base    string
	prefix  string
	http    *http.Client
	log     *logging.Logger
	onRetry func(retry.Event)
}

// NewClient creates a client for the given base URL. The fixed API prefix is
// appended to every call. The http.Client carries no timeout of its own:
// deadlines are applied per attempt by the transport.
func NewClient(baseURL string) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		prefix: config.APIPrefix,
		http:   &http.Client{},
	}
}

// SetLogger attaches a logger used for retry and failure events.
func (c *Client) SetLogger(log *logging.Logger) {
	c.log = log
}

// SetRetryObserver registers a process-wide retry observer (e.g. metrics).
// It runs for every retried request in addition to per-call callbacks.
func (c *Client) SetRetryObserver(fn func(retry.Event)) {
	c.onRetry = fn
}

// parseCSV splits a comma separated flag value, dropping blank items.
func parseCSV(raw string) []string {
	if raw == "" {
		return []string{}
	}
	items := make([]string, 0, 4)
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// buildRunRequestBody emits the submission body in all three shapes the
// backend has historically accepted: legacy flat fields, canonical
// snake_case fields, and contract-style grouped fields.
func buildRunRequestBody(payload RunJobPayload) map[string]interface{} {
	featureMode := payload.FeatureMode
	if featureMode == "" {
		featureMode = "univariate"
	}
	targetCols := parseCSV(payload.TargetCols)
	dynamicCovariates := parseCSV(payload.DynamicCovariates)
	exportFormats := parseCSV(payload.ExportFormats)
	if len(exportFormats) == 0 {
		exportFormats = []string{"none"}
	}

	return map[string]interface{}{
		// Legacy compatibility fields
		"runId":     payload.RunID,
		"model":     payload.Model,
		"epochs":    payload.Epochs,
		"synthetic": payload.Synthetic,
		// Canonical snake_case fields
		"run_id":             payload.RunID,
		"model_type":         payload.Model,
		"feature_mode":       featureMode,
		"target_cols":        targetCols,
		"dynamic_covariates": dynamicCovariates,
		"export_formats":     exportFormats,
		// Contract-style grouped fields
		"mode": "train_eval",
		"input": map[string]interface{}{
			"target_cols":        targetCols,
			"dynamic_covariates": dynamicCovariates,
			"feature_mode":       featureMode,
		},
		"model_config": map[string]interface{}{
			"model_type": payload.Model,
			"epochs":     payload.Epochs,
		},
		"runtime": map[string]interface{}{
			"synthetic":      payload.Synthetic,
			"export_formats": exportFormats,
		},
	}
}

// jobDetailFrom maps a decoded job payload onto the normalized detail view.
func jobDetailFrom(payload interface{}, fallbackJobID string) *JobDetail {
	detail := &JobDetail{JobID: fallbackJobID, Status: JobFail}
	obj, ok := asObject(payload)
	if !ok {
		return detail
	}

	if s, ok := firstString(obj, "job_id", "jobId"); ok {
		detail.JobID = s
	}
	if s, ok := firstString(obj, "run_id", "runId"); ok {
		detail.RunID = s
	}
	if s, ok := nonEmptyString(obj["status"]); ok {
		detail.Status = mapRawStatus(s)
	}
	if s, ok := nonEmptyString(obj["message"]); ok {
		detail.Message = s
	}
	if s, ok := nonEmptyString(obj["error_message"]); ok {
		detail.ErrorMessage = s
	}
	if s, ok := nonEmptyString(obj["step"]); ok {
		detail.Step = s
	}
	if n, ok := toNumber(obj["progress"]); ok {
		detail.Progress = int(n)
	}
	if s, ok := firstString(obj, "updated_at", "updatedAt"); ok {
		detail.UpdatedAt = s
	}
	return detail
}

// SubmitRun submits a training job. The response must carry a job id under
// job_id or jobId; otherwise the call fails with a 502 validation error.
func (c *Client) SubmitRun(ctx context.Context, payload RunJobPayload, opts *RequestOptions) (*RunJobResponse, error) {
	body := buildRunRequestBody(payload)
	res, err := c.requestJSON(ctx, http.MethodPost, "/pipelines/spline-tsfm:run", body, submitPolicy.merge(opts))
	if err != nil {
		return nil, err
	}

	obj, _ := asObject(res)
	jobID, ok := firstString(obj, "job_id", "jobId")
	if !ok {
		return nil, &APIError{Message: "응답에 job_id가 없습니다.", Status: 502, Body: res}
	}

	out := &RunJobResponse{JobID: jobID, RunID: payload.RunID, Status: JobFail}
	if s, ok := firstString(obj, "run_id", "runId"); ok {
		out.RunID = s
	}
	if s, ok := nonEmptyString(obj["status"]); ok {
		out.Status = mapRawStatus(s)
	}
	if s, ok := nonEmptyString(obj["message"]); ok {
		out.Message = s
	}
	return out, nil
}

// FetchJob retrieves the current job detail.
func (c *Client) FetchJob(ctx context.Context, jobID string, opts *RequestOptions) (*JobDetail, error) {
	res, err := c.requestJSON(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, jobPolicy.merge(opts))
	if err != nil {
		return nil, err
	}
	return jobDetailFrom(res, jobID), nil
}

// CancelJob requests cancellation of a running job.
func (c *Client) CancelJob(ctx context.Context, jobID string, opts *RequestOptions) (*JobDetail, error) {
	res, err := c.requestJSON(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+":cancel", nil, cancelPolicy.merge(opts))
	if err != nil {
		return nil, err
	}
	return jobDetailFrom(res, jobID), nil
}

// FetchJobLogs retrieves rendered log lines for a job, accepting both the
// flat and the structured log shapes.
func (c *Client) FetchJobLogs(ctx context.Context, jobID string, opts *RequestOptions) (*JobLogs, error) {
	res, err := c.requestJSON(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/logs?offset=0&limit=200", nil, logsPolicy.merge(opts))
	if err != nil {
		return nil, err
	}

	out := &JobLogs{JobID: jobID}
	obj, ok := asObject(res)
	if !ok {
		return out, nil
	}
	if s, ok := firstString(obj, "job_id", "jobId"); ok {
		out.JobID = s
	}
	if lines := normalizeLogLines(obj["logs"]); len(lines) > 0 {
		out.Lines = lines
		return out, nil
	}
	out.Lines = normalizeLogLines(obj["lines"])
	return out, nil
}

// FetchDashboardSummary retrieves the aggregate dashboard view.
func (c *Client) FetchDashboardSummary(ctx context.Context, opts *RequestOptions) (*DashboardSummary, error) {
	res, err := c.requestJSON(ctx, http.MethodGet, "/dashboard/summary", nil, dashboardPolicy.merge(opts))
	if err != nil {
		return nil, err
	}
	return normalizeDashboardSummary(res), nil
}

// FetchRunMetrics retrieves the raw metrics facet of a run.
func (c *Client) FetchRunMetrics(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error) {
	return c.requestJSON(ctx, http.MethodGet, "/runs/"+url.PathEscape(runID)+"/metrics", nil, runFacetPolicy.merge(opts))
}

// FetchRunReport retrieves the raw report facet of a run.
func (c *Client) FetchRunReport(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error) {
	return c.requestJSON(ctx, http.MethodGet, "/runs/"+url.PathEscape(runID)+"/report", nil, runFacetPolicy.merge(opts))
}

// FetchRunArtifacts retrieves the raw artifacts facet of a run.
func (c *Client) FetchRunArtifacts(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error) {
	return c.requestJSON(ctx, http.MethodGet, "/runs/"+url.PathEscape(runID)+"/artifacts", nil, runFacetPolicy.merge(opts))
}

// FetchResult fans out the report, metrics, and artifacts calls concurrently
// and merges their normalized facets into one result. A single failed facet
// does not abort the others; only report and metrics both failing, or no
// usable metrics anywhere, fails the aggregate call.
func (c *Client) FetchResult(ctx context.Context, runID string, opts *RequestOptions) (*ResultPayload, error) {
	return aggregateResult(ctx, c, runID, opts)
}

// aggregateResult implements the fan-out/merge shared by live and mock
// clients.
func aggregateResult(ctx context.Context, svc Service, runID string, opts *RequestOptions) (*ResultPayload, error) {
	var (
		wg                                             sync.WaitGroup
		reportPayload, metricsPayload, artifactsPayload interface{}
		reportErr, metricsErr, artifactsErr            error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		reportPayload, reportErr = svc.FetchRunReport(ctx, runID, opts)
	}()
	go func() {
		defer wg.Done()
		metricsPayload, metricsErr = svc.FetchRunMetrics(ctx, runID, opts)
	}()
	go func() {
		defer wg.Done()
		artifactsPayload, artifactsErr = svc.FetchRunArtifacts(ctx, runID, opts)
	}()
	wg.Wait()

	if reportErr != nil {
		reportPayload = nil
	}
	if metricsErr != nil {
		metricsPayload = nil
	}
	if artifactsErr != nil {
		artifactsPayload = nil
	}

	if reportErr != nil && metricsErr != nil {
		// Prefer the metrics-call error when both facets failed.
		return nil, apiErrorFrom(metricsErr)
	}

	metrics, ok := normalizeMetrics(metricsPayload)
	if !ok {
		// Legacy fallback: older runs only embedded metrics in the report.
		metrics, ok = normalizeMetrics(reportPayload)
	}
	if !ok {
		return nil, &APIError{Message: "메트릭 정보를 찾을 수 없습니다."}
	}

	artifactsSource := artifactsPayload
	if artifactsSource == nil {
		artifactsSource = reportPayload
	}
	artifacts := normalizeArtifacts(artifactsSource)
	if len(artifacts) == 0 && artifactsPayload != nil {
		artifacts = normalizeArtifacts(reportPayload)
	}

	predictions := normalizePredictions(reportPayload)

	result := &ResultPayload{
		RunID:            runID,
		Metrics:          metrics,
		Predictions:      predictions,
		InputSeries:      normalizeInputSeries(reportPayload, predictions),
		ModelType:        firstPresentString(normalizeModelType, metricsPayload, reportPayload),
		FeatureMode:      firstPresentString(normalizeFeatureMode, metricsPayload, reportPayload),
		SplineInfo:       normalizeSplineInfo(metricsPayload, reportPayload, artifactsPayload),
		SplineComparison: normalizeSplineComparison(metricsPayload, reportPayload, artifactsPayload),
	}
	if len(artifacts) > 0 {
		result.Artifacts = artifacts
	}
	if report, ok := normalizeReportMarkdown(reportPayload); ok {
		result.ReportMarkdown = report
	}

	// Prefer the id embedded in a payload over the requested one.
	for _, source := range []interface{}{metricsPayload, reportPayload, artifactsPayload} {
		if id, ok := runIDFrom(source); ok {
			result.RunID = id
			break
		}
	}

	return result, nil
}
