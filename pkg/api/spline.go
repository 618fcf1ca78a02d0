package api

import "fmt"

// splineInfoFromSource searches one payload for spline configuration: a
// top-level spline object, then preprocessing.spline, then config.spline,
// then the payload itself. Absent means none of the three values exist —
// never a zero-filled struct.
func splineInfoFromSource(payload interface{}) (*SplineInfo, bool) {
	obj, ok := asObject(unwrapEnvelope(payload))
	if !ok {
		return nil, false
	}

	source := obj
	if nested, ok := asObject(obj["spline"]); ok {
		source = nested
	} else if nested, ok := nestedObject(obj, "preprocessing", "spline"); ok {
		source = nested
	} else if nested, ok := nestedObject(obj, "config", "spline"); ok {
		source = nested
	}

	info := &SplineInfo{}
	if n, ok := firstNumber(source, "degree", "spline_degree"); ok {
		info.Degree = &n
	}
	if n, ok := firstNumber(source, "smoothing_factor", "smoothingFactor", "spline_smoothing_factor"); ok {
		info.SmoothingFactor = &n
	}
	if n, ok := firstNumber(source, "num_knots", "numKnots", "spline_num_knots"); ok {
		info.NumKnots = &n
	}

	if info.Degree == nil && info.SmoothingFactor == nil && info.NumKnots == nil {
		return nil, false
	}
	return info, true
}

// normalizeSplineInfo returns the first source yielding spline configuration.
func normalizeSplineInfo(sources ...interface{}) *SplineInfo {
	for _, source := range sources {
		if info, ok := splineInfoFromSource(source); ok {
			return info
		}
	}
	return nil
}

// nestedObject resolves obj[outer][inner] when both levels are objects.
func nestedObject(obj map[string]interface{}, outer, inner string) (map[string]interface{}, bool) {
	parent, ok := asObject(obj[outer])
	if !ok {
		return nil, false
	}
	return asObject(parent[inner])
}

type indexedPoint struct {
	TS    string
	Value float64
}

// normalizeIndexedSeries accepts either an array of objects carrying one of
// the known value aliases or a bare numeric array. Points without a timestamp
// are labeled t-<i+1>.
func normalizeIndexedSeries(raw interface{}) []indexedPoint {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	points := make([]indexedPoint, 0, len(items))
	for i, item := range items {
		if entry, ok := asObject(item); ok {
			value, ok := firstNumber(entry, "value", "y", "actual", "predicted", "spline")
			if !ok {
				continue
			}
			ts, okTS := nonEmptyString(entry["ts"])
			if !okTS {
				ts = fmt.Sprintf("t-%d", i+1)
			}
			points = append(points, indexedPoint{TS: ts, Value: value})
			continue
		}
		value, ok := toNumber(item)
		if !ok {
			continue
		}
		points = append(points, indexedPoint{TS: fmt.Sprintf("t-%d", i+1), Value: value})
	}
	return points
}

// normalizeSplineComparisonPairs reads a direct paired-point array, accepting
// the documented per-point aliases for raw and smoothed values. Rows missing
// either side are dropped.
func normalizeSplineComparisonPairs(raw interface{}) []SplineComparisonPoint {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	points := make([]SplineComparisonPoint, 0, len(items))
	for i, item := range items {
		entry, ok := asObject(item)
		if !ok {
			continue
		}
		rawValue, okRaw := firstNumber(entry, "raw", "raw_value", "before", "original")
		splineValue, okSpline := firstNumber(entry, "spline", "spline_value", "after", "smoothed")
		if !okRaw || !okSpline {
			continue
		}
		ts, okTS := nonEmptyString(entry["ts"])
		if !okTS {
			ts = fmt.Sprintf("t-%d", i+1)
		}
		points = append(points, SplineComparisonPoint{TS: ts, Raw: rawValue, Spline: splineValue})
	}
	return points
}

// splineComparisonFromSource tries, in priority order: direct paired-point
// arrays under the alias keys, then pairs of parallel raw/spline series
// zipped by index up to the shorter length. The first candidate yielding at
// least one point wins; candidates are never merged.
func splineComparisonFromSource(payload interface{}) []SplineComparisonPoint {
	obj, ok := asObject(unwrapEnvelope(payload))
	if !ok {
		return nil
	}

	for _, key := range []string{"raw_vs_spline", "spline_comparison", "splineComparison", "raw_spline_comparison"} {
		if points := normalizeSplineComparisonPairs(obj[key]); len(points) > 0 {
			return points
		}
	}

	type seriesPair struct{ raw, spline interface{} }
	candidates := []seriesPair{
		{obj["raw_series"], obj["spline_series"]},
		{obj["rawSeries"], obj["splineSeries"]},
		{obj["input_raw"], obj["input_spline"]},
		{obj["raw_values"], obj["spline_values"]},
	}
	if nested, ok := asObject(obj["raw_vs_spline"]); ok {
		candidates = append([]seriesPair{{nested["raw"], nested["spline"]}}, candidates...)
	}

	for _, candidate := range candidates {
		rawPoints := normalizeIndexedSeries(candidate.raw)
		splinePoints := normalizeIndexedSeries(candidate.spline)
		if len(rawPoints) == 0 || len(splinePoints) == 0 {
			continue
		}

		size := len(rawPoints)
		if len(splinePoints) < size {
			size = len(splinePoints)
		}
		points := make([]SplineComparisonPoint, size)
		for i := 0; i < size; i++ {
			ts := rawPoints[i].TS
			if ts == "" {
				ts = splinePoints[i].TS
			}
			points[i] = SplineComparisonPoint{TS: ts, Raw: rawPoints[i].Value, Spline: splinePoints[i].Value}
		}
		return points
	}

	return nil
}

// normalizeSplineComparison returns the first source yielding at least one
// comparison point.
func normalizeSplineComparison(sources ...interface{}) []SplineComparisonPoint {
	for _, source := range sources {
		if points := splineComparisonFromSource(source); len(points) > 0 {
			return points
		}
	}
	return nil
}
