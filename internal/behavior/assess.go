package behavior

import "math"

// Minimum sample sizes below which a check passes by default.
const (
	minPointerPoints     = 10
	minScrollEvents      = 5
	minScrollSpeeds      = 3
	minKeystrokes        = 10
	minKeyIntervals      = 5
	minInteractions      = 5
	minClicks            = 3
	slopeTolerance       = 0.01
	perfectTimingDeltaMs = 5.0
)

// pointerNaturalness returns 1 - straightTriples/(n-2). ok is false with fewer
// than minPointerPoints points.
func pointerNaturalness(points []Point) (score float64, ok bool) {
	n := len(points)
	if n < minPointerPoints {
		return 1, false
	}

	straight := 0
	for i := 0; i+2 < n; i++ {
		if isStraight(points[i], points[i+1], points[i+2]) {
			straight++
		}
	}
	return 1 - float64(straight)/float64(n-2), true
}

// isStraight treats a vertical segment as having an undefined slope. Two
// undefined slopes are straight; one undefined and one defined are not.
func isStraight(p1, p2, p3 Point) bool {
	s1, def1 := slope(p1, p2)
	s2, def2 := slope(p2, p3)
	switch {
	case !def1 && !def2:
		return true
	case def1 && def2:
		return math.Abs(s1-s2) < slopeTolerance
	default:
		return false
	}
}

func slope(a, b Point) (float64, bool) {
	if b.X == a.X {
		return 0, false
	}
	return (b.Y - a.Y) / (b.X - a.X), true
}

func scrollNaturalness(samples []ScrollSample) (score float64, speeds int, ok bool) {
	if len(samples) < minScrollEvents {
		return 1, 0, false
	}

	vals := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		dt := samples[i].TS - samples[i-1].TS
		if dt <= 0 {
			continue
		}
		vals = append(vals, math.Abs(samples[i].Offset-samples[i-1].Offset)/dt)
	}
	if len(vals) < minScrollSpeeds {
		return 1, len(vals), false
	}
	return normalizedVariance(vals), len(vals), true
}

// keystrokeNaturalness combines interval variance with the share of
// consecutive intervals that are near-identical.
func keystrokeNaturalness(keys []Keystroke) (score float64, intervals int, ok bool) {
	if len(keys) < minKeystrokes {
		return 1, 0, false
	}

	ivs := positiveIntervals(len(keys), func(i int) float64 { return keys[i].TS })
	if len(ivs) < minKeyIntervals {
		return 1, len(ivs), false
	}

	perfect := 0
	for i := 1; i < len(ivs); i++ {
		if math.Abs(ivs[i]-ivs[i-1]) < perfectTimingDeltaMs {
			perfect++
		}
	}
	perfectRatio := float64(perfect) / float64(len(ivs)-1)

	return (1 - perfectRatio) * normalizedVariance(ivs), len(ivs), true
}

func interactionNaturalness(items []Interaction) (score float64, clicks int, ok bool) {
	if len(items) < minInteractions {
		return 1, 0, false
	}

	var clickTS []float64
	for _, it := range items {
		if it.Kind == interactionClick {
			clickTS = append(clickTS, it.TS)
		}
	}
	if len(clickTS) < minClicks {
		return 1, len(clickTS), false
	}

	ivs := positiveIntervals(len(clickTS), func(i int) float64 { return clickTS[i] })
	return normalizedVariance(ivs), len(clickTS), true
}

// focusRatio divides focused seconds by the seconds since last activity,
// with the elapsed time floored at one second.
func focusRatio(focusedSeconds, lastActivityMs, nowMs float64) float64 {
	elapsed := (nowMs - lastActivityMs) / 1000
	if elapsed < 1 {
		elapsed = 1
	}
	return focusedSeconds / elapsed
}

func positiveIntervals(n int, ts func(int) float64) []float64 {
	out := make([]float64, 0, n)
	for i := 1; i < n; i++ {
		if d := ts(i) - ts(i-1); d > 0 {
			out = append(out, d)
		}
	}
	return out
}

// normalizedVariance is min(populationVariance/mean, 1); an empty or zero-mean
// sample yields 0.
func normalizedVariance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vals))

	return math.Min(variance/mean, 1)
}
