package api

import (
	"fmt"
	"strings"
)

// The normalizers in this file are total functions over decoded JSON values:
// they never fail, and missing or malformed input yields an absent result
// (ok=false, nil slice, or empty map). Each one starts with a defensive
// unwrapEnvelope because some endpoints double-wrap their payloads.

// normalizeMetrics extracts a metrics map from payload. rmse, mae and mape
// must all be coercible to finite numbers or the payload yields no metrics at
// all; any other numeric-coercible sibling field is carried through verbatim.
func normalizeMetrics(payload interface{}) (ResultMetrics, bool) {
	obj, ok := asObject(unwrapEnvelope(payload))
	if !ok {
		return nil, false
	}

	source := obj
	if nested, ok := asObject(obj["metrics"]); ok {
		source = nested
	}

	rmse, okRMSE := toNumber(source["rmse"])
	mae, okMAE := toNumber(source["mae"])
	mape, okMAPE := toNumber(source["mape"])
	if !okRMSE || !okMAE || !okMAPE {
		return nil, false
	}

	metrics := ResultMetrics{"rmse": rmse, "mae": mae, "mape": mape}
	for key, value := range source {
		if n, ok := toNumber(value); ok {
			metrics[key] = n
		}
	}
	return metrics, true
}

// normalizePredictions keeps only rows whose actual and predicted values are
// coercible; incomplete rows are dropped, never defaulted.
func normalizePredictions(payload interface{}) []PredictionPoint {
	obj, ok := asObject(unwrapEnvelope(payload))
	if !ok {
		return nil
	}
	raw, ok := obj["predictions"].([]interface{})
	if !ok {
		return nil
	}

	rows := make([]PredictionPoint, 0, len(raw))
	for _, item := range raw {
		entry, ok := asObject(item)
		if !ok {
			continue
		}
		actual, okActual := toNumber(entry["actual"])
		predicted, okPredicted := toNumber(entry["predicted"])
		if !okActual || !okPredicted {
			continue
		}
		ts, _ := entry["ts"].(string)
		rows = append(rows, PredictionPoint{TS: ts, Actual: actual, Predicted: predicted})
	}
	return rows
}

// normalizeInputSeries prefers an explicit input_series/inputSeries array and
// otherwise derives one point per prediction from its timestamp and actual.
func normalizeInputSeries(payload interface{}, predictions []PredictionPoint) []InputPoint {
	if obj, ok := asObject(unwrapEnvelope(payload)); ok {
		raw, _ := firstValue(obj, "input_series", "inputSeries")
		if items, ok := raw.([]interface{}); ok {
			rows := make([]InputPoint, 0, len(items))
			for _, item := range items {
				entry, ok := asObject(item)
				if !ok {
					continue
				}
				value, ok := firstNumber(entry, "value", "actual", "y")
				if !ok {
					continue
				}
				ts, _ := entry["ts"].(string)
				rows = append(rows, InputPoint{TS: ts, Value: value})
			}
			if len(rows) > 0 {
				return rows
			}
		}
	}

	if len(predictions) > 0 {
		rows := make([]InputPoint, len(predictions))
		for i, p := range predictions {
			rows[i] = InputPoint{TS: p.TS, Value: p.Actual}
		}
		return rows
	}

	return nil
}

// normalizeReportMarkdown accepts the payload itself as a markdown string or
// one of the known candidate keys.
func normalizeReportMarkdown(payload interface{}) (string, bool) {
	payload = unwrapEnvelope(payload)
	if s, ok := nonEmptyString(payload); ok {
		return s, true
	}
	obj, ok := asObject(payload)
	if !ok {
		return "", false
	}
	return firstString(obj, "report", "report_md", "markdown", "content", "text")
}

// artifactPathKeys are top-level fields known to carry artifact paths.
var artifactPathKeys = []string{
	"metrics",
	"report",
	"model",
	"preprocessor",
	"metadata_path",
	"metrics_json",
	"report_md",
	"checkpoint",
	"processed_npz",
	"preprocessor_pkl",
}

// normalizeArtifacts merges the nested artifacts map, known top-level path
// fields, and the checkpoints map (prefixed checkpoint_), keeping only
// non-blank string values.
func normalizeArtifacts(payload interface{}) map[string]string {
	artifacts := map[string]string{}
	obj, ok := asObject(unwrapEnvelope(payload))
	if !ok {
		return artifacts
	}

	merge := func(source map[string]interface{}, prefix string) {
		for key, value := range source {
			if s, ok := nonEmptyString(value); ok {
				artifacts[prefix+key] = s
			}
		}
	}

	if nested, ok := asObject(obj["artifacts"]); ok {
		merge(nested, "")
	}
	for _, key := range artifactPathKeys {
		if s, ok := nonEmptyString(obj[key]); ok {
			artifacts[key] = s
		}
	}
	if checkpoints, ok := asObject(obj["checkpoints"]); ok {
		merge(checkpoints, "checkpoint_")
	}

	return artifacts
}

// runIDFrom reads a run id from the payload's top-level keys or its nested
// config object.
func runIDFrom(payload interface{}) (string, bool) {
	obj, ok := asObject(unwrapEnvelope(payload))
	if !ok {
		return "", false
	}
	if s, ok := firstString(obj, "runId", "run_id"); ok {
		return s, true
	}
	if cfg, ok := asObject(obj["config"]); ok {
		return firstString(cfg, "runId", "run_id")
	}
	return "", false
}

// normalizeRunID returns the payload's run id or the supplied fallback.
func normalizeRunID(payload interface{}, fallback string) string {
	if s, ok := runIDFrom(payload); ok {
		return s
	}
	return fallback
}

func normalizeModelType(payload interface{}) (string, bool) {
	return configStringField(payload, "modelType", "model_type")
}

func normalizeFeatureMode(payload interface{}) (string, bool) {
	return configStringField(payload, "featureMode", "feature_mode")
}

// configStringField checks camelCase then snake_case top-level keys, then
// falls back into a nested config object.
func configStringField(payload interface{}, keys ...string) (string, bool) {
	obj, ok := asObject(unwrapEnvelope(payload))
	if !ok {
		return "", false
	}
	if s, ok := firstString(obj, keys...); ok {
		return s, true
	}
	if cfg, ok := asObject(obj["config"]); ok {
		return firstString(cfg, keys...)
	}
	return "", false
}

// firstPresentString tries each candidate source in order and returns the
// first value the extractor reports as present.
func firstPresentString(extract func(interface{}) (string, bool), sources ...interface{}) string {
	for _, source := range sources {
		if s, ok := extract(source); ok {
			return s
		}
	}
	return ""
}

// normalizeDashboardSummary maps both naming conventions for every field.
// Recent-job entries missing a field fall back to "-"; history entries
// lacking a coercible value are dropped.
func normalizeDashboardSummary(payload interface{}) *DashboardSummary {
	summary := &DashboardSummary{ServiceStatus: "unknown", LastRunID: "-"}
	obj, ok := asObject(unwrapEnvelope(payload))
	if !ok {
		return summary
	}

	if s, ok := firstString(obj, "serviceStatus", "service_status"); ok {
		summary.ServiceStatus = s
	}
	if s, ok := firstString(obj, "lastRunId", "last_run_id"); ok {
		summary.LastRunID = s
	}
	if v, ok := firstValue(obj, "lastRmse", "last_rmse"); ok {
		if n, ok := toNumber(v); ok {
			summary.LastRMSE = n
		}
	}

	rawJobs, _ := firstValue(obj, "recentJobs", "recent_jobs")
	if items, ok := rawJobs.([]interface{}); ok {
		for _, item := range items {
			entry, ok := asObject(item)
			if !ok {
				continue
			}
			job := RecentJob{RunID: "-", Status: "unknown", StartedAt: "-", Model: "-"}
			if s, ok := firstString(entry, "runId", "run_id"); ok {
				job.RunID = s
			}
			if s, ok := nonEmptyString(entry["status"]); ok {
				job.Status = s
			}
			if s, ok := firstString(entry, "startedAt", "started_at"); ok {
				job.StartedAt = s
			}
			if s, ok := firstString(entry, "model", "model_type"); ok {
				job.Model = s
			}
			summary.RecentJobs = append(summary.RecentJobs, job)
		}
	}

	rawHistory, _ := firstValue(obj, "rmseHistory", "rmse_history")
	if items, ok := rawHistory.([]interface{}); ok {
		for i, item := range items {
			entry, ok := asObject(item)
			if !ok {
				continue
			}
			value, ok := firstNumber(entry, "value", "rmse")
			if !ok {
				continue
			}
			label, okLabel := nonEmptyString(entry["label"])
			if !okLabel {
				label = fmt.Sprintf("#%d", i+1)
			}
			summary.RMSEHistory = append(summary.RMSEHistory, HistoryPoint{Label: label, Value: value})
		}
	}

	return summary
}

// normalizeLogLines accepts either flat strings or structured {ts, level,
// message} records rendered as "[ts] level: message". Empty segments are
// omitted and blank lines discarded.
func normalizeLogLines(payload interface{}) []string {
	items, ok := unwrapEnvelope(payload).([]interface{})
	if !ok {
		return nil
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				lines = append(lines, trimmed)
			}
			continue
		}
		entry, ok := asObject(item)
		if !ok {
			continue
		}
		var b strings.Builder
		if ts, ok := nonEmptyString(entry["ts"]); ok {
			fmt.Fprintf(&b, "[%s] ", ts)
		}
		if level, ok := nonEmptyString(entry["level"]); ok {
			fmt.Fprintf(&b, "%s: ", level)
		}
		if message, ok := entry["message"].(string); ok {
			b.WriteString(message)
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// firstNumber coerces the first present value among the named keys. Like the
// backend contract's alias handling, a present but non-numeric value does not
// fall through to the next alias.
func firstNumber(obj map[string]interface{}, keys ...string) (float64, bool) {
	if v, ok := firstValue(obj, keys...); ok {
		return toNumber(v)
	}
	return 0, false
}
