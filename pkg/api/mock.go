package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockJob is one entry of the offline job registry.
type MockJob struct {
	JobID      string
	RunID      string
	CreatedAt  time.Time
	ShouldFail bool
	Forced     JobStatus // set by cancel, overrides the simulated status
}

// MockStore is the in-memory job registry backing mock mode. It is an
// explicit dependency of MockClient rather than process-global state so
// tests can reset it freely. Jobs are stored and handed out by value; all
// mutation goes through store methods under the mutex, so concurrent server
// handlers can poll and cancel the same job safely.
type MockStore struct {
	mu   sync.Mutex
	jobs map[string]MockJob
}

// NewMockStore creates an empty registry.
func NewMockStore() *MockStore {
	return &MockStore{jobs: make(map[string]MockJob)}
}

// Put stores or replaces a job.
func (s *MockStore) Put(job MockJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
}

// Get returns a copy of the job for id.
func (s *MockStore) Get(jobID string) (MockJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

// SetForced overrides the job's simulated status, reporting whether the job
// exists.
func (s *MockStore) SetForced(jobID string, status JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	job.Forced = status
	s.jobs[jobID] = job
	return true
}

// Reset clears the registry.
func (s *MockStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]MockJob)
}

// MockClient simulates the backend without network access. It satisfies the
// same Service contract as Client, including failure behavior: unknown job
// ids produce an *APIError with status 404.
type MockClient struct {
	store *MockStore
	now   func() time.Time
}

// NewMockClient creates a mock client over the given registry.
func NewMockClient(store *MockStore) *MockClient {
	if store == nil {
		store = NewMockStore()
	}
	return &MockClient{store: store, now: time.Now}
}

// SetClock overrides the time source driving simulated status transitions.
func (m *MockClient) SetClock(now func() time.Time) {
	m.now = now
}

// simulatedStatus derives a job status from elapsed wall time: brief queueing,
// a few seconds of running, then success or failure.
func (m *MockClient) simulatedStatus(job MockJob) JobStatus {
	if job.Forced != "" {
		return job.Forced
	}
	elapsed := m.now().Sub(job.CreatedAt)
	switch {
	case elapsed < 1500*time.Millisecond:
		return JobQueued
	case elapsed < 4*time.Second:
		return JobRunning
	case job.ShouldFail:
		return JobFail
	default:
		return JobSuccess
	}
}

func (m *MockClient) SubmitRun(ctx context.Context, payload RunJobPayload, opts *RequestOptions) (*RunJobResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	job := MockJob{
		JobID:      "job-mock-" + uuid.NewString(),
		RunID:      payload.RunID,
		CreatedAt:  m.now(),
		ShouldFail: strings.Contains(strings.ToLower(payload.RunID), "fail"),
	}
	m.store.Put(job)
	return &RunJobResponse{
		JobID:   job.JobID,
		RunID:   payload.RunID,
		Status:  JobQueued,
		Message: "MOCK: job accepted",
	}, nil
}

func (m *MockClient) FetchJob(ctx context.Context, jobID string, opts *RequestOptions) (*JobDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	job, ok := m.store.Get(jobID)
	if !ok {
		return nil, &APIError{Message: fmt.Sprintf("MOCK job not found: %s", jobID), Status: 404}
	}

	status := m.simulatedStatus(job)
	detail := &JobDetail{
		JobID:     job.JobID,
		RunID:     job.RunID,
		Status:    status,
		Message:   "MOCK: execution progressing",
		Step:      "training",
		Progress:  52,
		UpdatedAt: m.now().Format(time.RFC3339),
	}
	switch status {
	case JobQueued:
		detail.Step = "queued"
		detail.Progress = 0
	case JobFail:
		detail.Message = "MOCK: execution failed"
		detail.ErrorMessage = "MOCK failure: simulated runtime exception"
		detail.Step = "finished"
		detail.Progress = 100
	case JobSuccess:
		detail.Step = "finished"
		detail.Progress = 100
	case JobCanceled:
		detail.Message = "MOCK: cancel accepted"
		detail.ErrorMessage = "사용자 요청으로 작업이 취소되었습니다."
		detail.Step = "canceled"
		detail.Progress = 100
	}
	return detail, nil
}

func (m *MockClient) CancelJob(ctx context.Context, jobID string, opts *RequestOptions) (*JobDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	if !m.store.SetForced(jobID, JobCanceled) {
		return nil, &APIError{Message: fmt.Sprintf("MOCK job not found: %s", jobID), Status: 404}
	}
	return m.FetchJob(ctx, jobID, opts)
}

func (m *MockClient) FetchJobLogs(ctx context.Context, jobID string, opts *RequestOptions) (*JobLogs, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	job, ok := m.store.Get(jobID)
	if !ok {
		return nil, &APIError{Message: fmt.Sprintf("MOCK job not found: %s", jobID), Status: 404}
	}

	status := m.simulatedStatus(job)
	lines := []string{
		fmt.Sprintf("[%s] queued: job accepted", job.CreatedAt.Format(time.RFC3339)),
		fmt.Sprintf("[%s] running: preprocessing", job.CreatedAt.Add(time.Second).Format(time.RFC3339)),
		fmt.Sprintf("[%s] running: training", job.CreatedAt.Add(2200*time.Millisecond).Format(time.RFC3339)),
	}
	now := m.now().Format(time.RFC3339)
	switch status {
	case JobSuccess:
		lines = append(lines, fmt.Sprintf("[%s] success: completed", now))
	case JobFail:
		lines = append(lines, fmt.Sprintf("[%s] fail: simulated runtime exception", now))
	case JobCanceled:
		lines = append(lines, fmt.Sprintf("[%s] canceled: user request", now))
	}
	return &JobLogs{JobID: jobID, Lines: lines}, nil
}

func (m *MockClient) FetchDashboardSummary(ctx context.Context, opts *RequestOptions) (*DashboardSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	return BuildMockDashboard(), nil
}

func (m *MockClient) FetchRunMetrics(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	mock := BuildMockResult(runID)
	return decodedJSON(map[string]interface{}{
		"run_id":  runID,
		"metrics": mock.Metrics,
		"config": map[string]interface{}{
			"model_type":   mock.ModelType,
			"feature_mode": mock.FeatureMode,
		},
	}), nil
}

func (m *MockClient) FetchRunArtifacts(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	mock := BuildMockResult(runID)
	return decodedJSON(map[string]interface{}{
		"run_id":    runID,
		"artifacts": mock.Artifacts,
	}), nil
}

func (m *MockClient) FetchRunReport(ctx context.Context, runID string, opts *RequestOptions) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	mock := BuildMockResult(runID)
	return decodedJSON(map[string]interface{}{
		"run_id":       runID,
		"report":       mock.ReportMarkdown,
		"predictions":  mock.Predictions,
		"input_series": mock.InputSeries,
		"metrics":      mock.Metrics,
	}), nil
}

func (m *MockClient) FetchResult(ctx context.Context, runID string, opts *RequestOptions) (*ResultPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCanceled
	}
	return BuildMockResult(runID), nil
}

// decodedJSON round-trips a typed value through JSON so facet payloads have
// the same shape as a decoded wire response.
func decodedJSON(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// round3 keeps mock series visually tidy.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// BuildMockInputSeries generates a synthetic hourly series with a daily wave,
// a slow trend, and a little jitter.
func BuildMockInputSeries(points int) []InputPoint {
	start := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	series := make([]InputPoint, points)
	for i := 0; i < points; i++ {
		dailyWave := math.Sin(float64(i)/24*math.Pi*2) * 2.4
		trend := float64(i) * 0.015
		jitter := math.Cos(float64(i)*0.61) * 0.45
		series[i] = InputPoint{
			TS:    start.Add(time.Duration(i) * time.Hour).Format("2006-01-02T15:04:05"),
			Value: round3(118 + trend + dailyWave + jitter),
		}
	}
	return series
}

// BuildMockSplineComparison derives a raw/smoothed pair from an input series.
func BuildMockSplineComparison(input []InputPoint) []SplineComparisonPoint {
	points := make([]SplineComparisonPoint, len(input))
	for i, point := range input {
		points[i] = SplineComparisonPoint{
			TS:     point.TS,
			Raw:    round3(point.Value + math.Sin(float64(i)*0.7)*0.6),
			Spline: round3(point.Value + math.Cos(float64(i)*0.23)*0.2),
		}
	}
	return points
}

// BuildMockResult assembles a full mock run result for the given run id.
func BuildMockResult(runID string) *ResultPayload {
	input := BuildMockInputSeries(240)
	tail := input[len(input)-12:]

	predictions := make([]PredictionPoint, len(tail))
	for i, point := range tail {
		predictions[i] = PredictionPoint{
			TS:        point.TS,
			Actual:    point.Value,
			Predicted: round3(point.Value + math.Sin(float64(i)*0.9)*0.8),
		}
	}

	degree := 3.0
	smoothing := 0.5
	knots := 10.0
	return &ResultPayload{
		RunID:          runID,
		Metrics:        ResultMetrics{"rmse": 0.1198, "mae": 0.0851, "mape": 4.37, "mase": 0.62},
		InputSeries:    input,
		Predictions:    predictions,
		ReportMarkdown: "# Mock Report\n\nThis is a mock report payload.",
		Artifacts: map[string]string{
			"metrics_json":    fmt.Sprintf("artifacts/metrics/%s.json", runID),
			"report_md":       fmt.Sprintf("artifacts/reports/%s.md", runID),
			"checkpoint_best": fmt.Sprintf("artifacts/checkpoints/%s/best.keras", runID),
		},
		ModelType:        "lstm",
		FeatureMode:      "univariate",
		SplineInfo:       &SplineInfo{Degree: &degree, SmoothingFactor: &smoothing, NumKnots: &knots},
		SplineComparison: BuildMockSplineComparison(input),
	}
}

// BuildMockDashboard assembles the offline dashboard summary.
func BuildMockDashboard() *DashboardSummary {
	return &DashboardSummary{
		ServiceStatus: "MOCK: healthy",
		LastRunID:     "local-quick-20260218-191832",
		LastRMSE:      0.1234,
		RecentJobs: []RecentJob{
			{RunID: "local-quick-20260218-191832", Status: "success", StartedAt: "2026-02-18 19:18", Model: "lstm"},
			{RunID: "local-e2e-20260218-192200", Status: "running", StartedAt: "2026-02-18 19:22", Model: "gru"},
			{RunID: "local-exp-20260218-193010", Status: "fail", StartedAt: "2026-02-18 19:30", Model: "lstm"},
			{RunID: "local-exp-20260218-193540", Status: "success", StartedAt: "2026-02-18 19:35", Model: "transformer"},
		},
		RMSEHistory: []HistoryPoint{
			{Label: "t-3", Value: 0.1712},
			{Label: "t-2", Value: 0.1544},
			{Label: "t-1", Value: 0.1429},
			{Label: "now", Value: 0.1234},
		},
	}
}
