package api

import (
	"context"
	"time"

	"github.com/spline-tsfm/dashctl/pkg/retry"
)

// JobStatus is the closed status set jobs are mapped onto. A job moves
// monotonically toward a terminal status and never reverts.
type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobSuccess  JobStatus = "success"
	JobFail     JobStatus = "fail"
	JobCanceled JobStatus = "canceled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFail || s == JobCanceled
}

// mapRawStatus folds backend status spellings onto the closed set.
// Unrecognized values count as failures.
func mapRawStatus(raw string) JobStatus {
	switch raw {
	case "queued":
		return JobQueued
	case "running":
		return JobRunning
	case "succeeded", "success":
		return JobSuccess
	case "canceled":
		return JobCanceled
	default:
		return JobFail
	}
}

// RunJobPayload describes a training job submission. The CSV fields are
// split and trimmed before they reach the wire.
type RunJobPayload struct {
	RunID             string
	Model             string
	Epochs            int
	Synthetic         bool
	FeatureMode       string // univariate | multivariate
	TargetCols        string // comma separated
	DynamicCovariates string // comma separated
	ExportFormats     string // comma separated
}

// RunJobResponse is the accepted-job acknowledgement.
type RunJobResponse struct {
	JobID   string    `json:"job_id"`
	RunID   string    `json:"run_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message,omitempty"`
}

// JobDetail is the normalized job view returned by detail and cancel calls.
type JobDetail struct {
	JobID        string    `json:"job_id"`
	RunID        string    `json:"run_id"`
	Status       JobStatus `json:"status"`
	Message      string    `json:"message,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Step         string    `json:"step,omitempty"`
	Progress     int       `json:"progress"`
	UpdatedAt    string    `json:"updated_at,omitempty"`
}

// JobLogs holds rendered log lines for one job.
type JobLogs struct {
	JobID string   `json:"job_id"`
	Lines []string `json:"logs"`
}

// ResultMetrics carries rmse/mae/mape plus any additional numeric fields the
// backend reported, all coerced to float64.
type ResultMetrics map[string]float64

// PredictionPoint is one actual-vs-predicted sample.
type PredictionPoint struct {
	TS        string  `json:"ts"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// InputPoint is one point of the input series a run was trained on.
type InputPoint struct {
	TS    string  `json:"ts"`
	Value float64 `json:"value"`
}

// SplineInfo describes the spline preprocessing configuration of a run.
// Fields are nil when the backend did not report them.
type SplineInfo struct {
	Degree          *float64 `json:"degree,omitempty"`
	SmoothingFactor *float64 `json:"smoothing_factor,omitempty"`
	NumKnots        *float64 `json:"num_knots,omitempty"`
}

// SplineComparisonPoint pairs a raw input value with its smoothed counterpart.
type SplineComparisonPoint struct {
	TS     string  `json:"ts"`
	Raw    float64 `json:"raw"`
	Spline float64 `json:"spline"`
}

// ResultPayload is the merged view of one run assembled by FetchResult.
type ResultPayload struct {
	RunID            string                  `json:"run_id"`
	Metrics          ResultMetrics           `json:"metrics"`
	Predictions      []PredictionPoint       `json:"predictions"`
	InputSeries      []InputPoint            `json:"input_series,omitempty"`
	ReportMarkdown   string                  `json:"report_markdown,omitempty"`
	Artifacts        map[string]string       `json:"artifacts,omitempty"`
	ModelType        string                  `json:"model_type,omitempty"`
	FeatureMode      string                  `json:"feature_mode,omitempty"`
	SplineInfo       *SplineInfo             `json:"spline,omitempty"`
	SplineComparison []SplineComparisonPoint `json:"spline_comparison,omitempty"`
}

// RecentJob is one row of the dashboard's recent-job list.
type RecentJob struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	Model     string `json:"model"`
}

// HistoryPoint is one labeled RMSE history sample.
type HistoryPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// DashboardSummary is the aggregate dashboard view.
type DashboardSummary struct {
	ServiceStatus string         `json:"service_status"`
	LastRunID     string         `json:"last_run_id"`
	LastRMSE      float64        `json:"last_rmse"`
	RecentJobs    []RecentJob    `json:"recent_jobs"`
	RMSEHistory   []HistoryPoint `json:"rmse_history,omitempty"`
}

// RequestOptions overrides the per-endpoint request policy. A nil options
// pointer and zero fields both mean "use the endpoint default"; Retries uses
// a negative value for "no retries" since zero selects the default.
type RequestOptions struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	OnRetry    func(retry.Event)
}

// Service is the contract both the live client and the mock client satisfy.
// Every method returns either a typed result, *APIError, or ErrCanceled.
type Service interface {
	SubmitRun(ctx context.Context, payload RunJobPayload, opts *RequestOptions) (*RunJobResponse, error)
	FetchJob(ctx context.Context, jobID string, opts *RequestOptions) (*JobDetail, error)
	CancelJob(ctx context.Context, jobID string, opts *RequestOptions) (*JobDetail, error)
	FetchJobLogs(ctx context.Context, jobID string, opts *RequestOptions) (*JobLogs, error)
	FetchDashboardSummary(ctx context.Context, opts *RequestOptions) (*DashboardSummary, error)
	FetchRunMetrics(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error)
	FetchRunReport(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error)
	FetchRunArtifacts(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error)
	FetchResult(ctx context.Context, runID string, opts *RequestOptions) (*ResultPayload, error)
}
