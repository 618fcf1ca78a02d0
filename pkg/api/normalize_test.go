package api

import (
	"reflect"
	"testing"
)

func TestNormalizeMetricsRequiresCoreTriple(t *testing.T) {
	payload := map[string]interface{}{
		"metrics": map[string]interface{}{"rmse": 0.12, "mae": 0.08, "mape": 4.2, "mase": "0.61"},
	}
	metrics, ok := normalizeMetrics(payload)
	if !ok {
		t.Fatal("expected metrics")
	}
	if metrics["rmse"] != 0.12 || metrics["mae"] != 0.08 || metrics["mape"] != 4.2 {
		t.Errorf("core metrics mismatch: %v", metrics)
	}
	// Numeric-string siblings are coerced and carried through.
	if metrics["mase"] != 0.61 {
		t.Errorf("sibling metric not carried: %v", metrics)
	}
}

func TestNormalizeMetricsAbsentWhenIncomplete(t *testing.T) {
	cases := []interface{}{
		nil,
		"text",
		map[string]interface{}{"rmse": 0.12, "mae": 0.08}, // mape missing
		map[string]interface{}{"rmse": 0.12, "mae": 0.08, "mape": "oops"},
		map[string]interface{}{"metrics": map[string]interface{}{"rmse": 0.12}},
	}
	for i, payload := range cases {
		if _, ok := normalizeMetrics(payload); ok {
			t.Errorf("case %d: expected absent metrics for %v", i, payload)
		}
	}
}

func TestNormalizeMetricsTopLevel(t *testing.T) {
	payload := map[string]interface{}{"rmse": 0.3, "mae": 0.2, "mape": 5.0}
	metrics, ok := normalizeMetrics(payload)
	if !ok || len(metrics) != 3 {
		t.Fatalf("expected top-level metrics, got %v %v", metrics, ok)
	}
}

func TestNormalizeMetricsUnwrapsEnvelope(t *testing.T) {
	payload := map[string]interface{}{
		"ok":   true,
		"data": map[string]interface{}{"rmse": 0.3, "mae": 0.2, "mape": 5.0},
	}
	if _, ok := normalizeMetrics(payload); !ok {
		t.Error("enveloped metrics payload should normalize")
	}
}

func TestNormalizePredictionsDropsIncompleteRows(t *testing.T) {
	payload := map[string]interface{}{
		"predictions": []interface{}{
			map[string]interface{}{"ts": "t1", "actual": 1.0, "predicted": 1.1},
			map[string]interface{}{"ts": "t2", "actual": 2.0}, // predicted missing
			map[string]interface{}{"ts": "t3", "actual": "x", "predicted": 3.1},
			"not-an-object",
			map[string]interface{}{"actual": 4.0, "predicted": 4.1}, // ts optional
		},
	}
	rows := normalizePredictions(payload)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(rows), rows)
	}
	if rows[0].TS != "t1" || rows[1].TS != "" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestNormalizeInputSeriesPrefersExplicitSeries(t *testing.T) {
	payload := map[string]interface{}{
		"input_series": []interface{}{
			map[string]interface{}{"ts": "t1", "value": 10.0},
			map[string]interface{}{"ts": "t2", "y": 11.0},
			map[string]interface{}{"ts": "t3", "actual": 12.0},
		},
	}
	rows := normalizeInputSeries(payload, nil)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1].Value != 11.0 || rows[2].Value != 12.0 {
		t.Errorf("alias handling failed: %v", rows)
	}
}

func TestNormalizeInputSeriesDerivedFromPredictions(t *testing.T) {
	predictions := []PredictionPoint{{TS: "t1", Actual: 7.0, Predicted: 7.2}}
	rows := normalizeInputSeries(map[string]interface{}{}, predictions)
	if len(rows) != 1 || rows[0].Value != 7.0 || rows[0].TS != "t1" {
		t.Errorf("derived series mismatch: %v", rows)
	}

	if rows := normalizeInputSeries(nil, nil); rows != nil {
		t.Errorf("no source should yield nil, got %v", rows)
	}
}

func TestNormalizeReportMarkdown(t *testing.T) {
	if s, ok := normalizeReportMarkdown("# 보고서"); !ok || s != "# 보고서" {
		t.Errorf("string payload should pass through, got %q %v", s, ok)
	}
	if s, ok := normalizeReportMarkdown(map[string]interface{}{"report_md": "# R"}); !ok || s != "# R" {
		t.Errorf("report_md alias failed, got %q %v", s, ok)
	}
	if _, ok := normalizeReportMarkdown(map[string]interface{}{"other": 1}); ok {
		t.Error("payload without report content should be absent")
	}
	if _, ok := normalizeReportMarkdown(nil); ok {
		t.Error("nil payload should be absent")
	}
}

func TestNormalizeArtifacts(t *testing.T) {
	payload := map[string]interface{}{
		"artifacts": map[string]interface{}{
			"metrics_json": "a/m.json",
			"empty":        "  ",
			"number":       3,
		},
		"report_md": "a/r.md",
		"checkpoints": map[string]interface{}{
			"best": "a/c/best.keras",
		},
	}
	artifacts := normalizeArtifacts(payload)
	want := map[string]string{
		"metrics_json":    "a/m.json",
		"report_md":       "a/r.md",
		"checkpoint_best": "a/c/best.keras",
	}
	if !reflect.DeepEqual(artifacts, want) {
		t.Errorf("artifacts mismatch:\n got %v\nwant %v", artifacts, want)
	}

	if got := normalizeArtifacts(nil); len(got) != 0 {
		t.Errorf("nil payload should yield empty map, got %v", got)
	}
}

func TestNormalizeRunID(t *testing.T) {
	if got := normalizeRunID(map[string]interface{}{"runId": "r1"}, "fb"); got != "r1" {
		t.Errorf("camelCase run id failed: %q", got)
	}
	if got := normalizeRunID(map[string]interface{}{"run_id": "r2"}, "fb"); got != "r2" {
		t.Errorf("snake_case run id failed: %q", got)
	}
	nested := map[string]interface{}{"config": map[string]interface{}{"run_id": "r3"}}
	if got := normalizeRunID(nested, "fb"); got != "r3" {
		t.Errorf("nested config run id failed: %q", got)
	}
	if got := normalizeRunID(map[string]interface{}{}, "fb"); got != "fb" {
		t.Errorf("fallback failed: %q", got)
	}
}

func TestConfigStringFieldAliases(t *testing.T) {
	if s, ok := normalizeModelType(map[string]interface{}{"modelType": "gru"}); !ok || s != "gru" {
		t.Errorf("camelCase model type failed: %q %v", s, ok)
	}
	nested := map[string]interface{}{"config": map[string]interface{}{"feature_mode": "multivariate"}}
	if s, ok := normalizeFeatureMode(nested); !ok || s != "multivariate" {
		t.Errorf("nested feature mode failed: %q %v", s, ok)
	}
	if _, ok := normalizeModelType(map[string]interface{}{}); ok {
		t.Error("absent model type should not be present")
	}
}

func TestNormalizeDashboardSummaryDefaults(t *testing.T) {
	summary := normalizeDashboardSummary(nil)
	if summary.ServiceStatus != "unknown" || summary.LastRunID != "-" {
		t.Errorf("defaults mismatch: %+v", summary)
	}
	if len(summary.RecentJobs) != 0 || len(summary.RMSEHistory) != 0 {
		t.Errorf("expected empty lists: %+v", summary)
	}
}

func TestNormalizeDashboardSummaryFull(t *testing.T) {
	payload := map[string]interface{}{
		"service_status": "healthy",
		"lastRunId":      "r9",
		"last_rmse":      0.2,
		"recent_jobs": []interface{}{
			map[string]interface{}{"run_id": "r9", "status": "success", "started_at": "10:00", "model_type": "lstm"},
			map[string]interface{}{}, // all defaults
			"bad-entry",
		},
		"rmse_history": []interface{}{
			map[string]interface{}{"label": "t-1", "value": 0.3},
			map[string]interface{}{"rmse": 0.25}, // alias value, generated label
			map[string]interface{}{"label": "bad"},
		},
	}
	summary := normalizeDashboardSummary(payload)
	if summary.ServiceStatus != "healthy" || summary.LastRunID != "r9" || summary.LastRMSE != 0.2 {
		t.Errorf("header mismatch: %+v", summary)
	}
	if len(summary.RecentJobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(summary.RecentJobs))
	}
	if summary.RecentJobs[1].RunID != "-" || summary.RecentJobs[1].Status != "unknown" {
		t.Errorf("field fallbacks mismatch: %+v", summary.RecentJobs[1])
	}
	if len(summary.RMSEHistory) != 2 {
		t.Fatalf("expected 2 history points, got %d", len(summary.RMSEHistory))
	}
	if summary.RMSEHistory[1].Label != "#2" || summary.RMSEHistory[1].Value != 0.25 {
		t.Errorf("history point mismatch: %+v", summary.RMSEHistory[1])
	}
}

func TestNormalizeLogLines(t *testing.T) {
	payload := []interface{}{
		"plain line",
		"   ",
		map[string]interface{}{"ts": "10:00:01", "level": "INFO", "message": "시작"},
		map[string]interface{}{"message": "level 없음"},
		map[string]interface{}{"ts": "10:00:02"},
		42,
	}
	lines := normalizeLogLines(payload)
	want := []string{
		"plain line",
		"[10:00:01] INFO: 시작",
		"level 없음",
		"[10:00:02]",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("log lines mismatch:\n got %v\nwant %v", lines, want)
	}

	if lines := normalizeLogLines("not a list"); lines != nil {
		t.Errorf("non-list payload should yield nil, got %v", lines)
	}
}
