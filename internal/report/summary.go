// Package report summarises recorded tracking sessions and draws their
// trajectories.
package report

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lense/internal/lense"
)

// LatencyStats describes inference latency in milliseconds.
type LatencyStats struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	StdMs  float64 `json:"std_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// Summary is the digest of one session.
type Summary struct {
	Detections int                   `json:"detections"`
	Outcomes   map[lense.Outcome]int `json:"outcomes"`
	// HitRate is the fraction of cycles that moved the target.
	HitRate float64      `json:"hit_rate"`
	Latency LatencyStats `json:"latency"`

	Samples int `json:"samples"`
	// MeanLag is the mean distance between target and current, in pixels.
	MeanLag float64 `json:"mean_lag_px"`
	MaxLag  float64 `json:"max_lag_px"`
	// MeanStep is the mean distance current moved between samples.
	MeanStep float64       `json:"mean_step_px"`
	Duration time.Duration `json:"duration_ns"`
}

// Summarise computes a Summary from a session's records. Either slice may
// be empty.
func Summarise(ds []lense.Detection, ss []lense.Sample) Summary {
	sum := Summary{
		Detections: len(ds),
		Outcomes:   make(map[lense.Outcome]int),
		Samples:    len(ss),
	}

	latencies := make([]float64, 0, len(ds))
	for _, d := range ds {
		sum.Outcomes[d.Outcome]++
		if d.Outcome != lense.OutcomeError {
			latencies = append(latencies, float64(d.Latency)/float64(time.Millisecond))
		}
	}
	if len(ds) > 0 {
		sum.HitRate = float64(sum.Outcomes[lense.OutcomeTracked]) / float64(len(ds))
	}
	sum.Latency = latencyStats(latencies)

	if len(ss) > 0 {
		lags := make([]float64, len(ss))
		for i, s := range ss {
			lags[i] = s.Target.Dist(s.Current)
		}
		sum.MeanLag = stat.Mean(lags, nil)
		sum.MaxLag = floats.Max(lags)
	}
	if len(ss) > 1 {
		steps := make([]float64, len(ss)-1)
		for i := 1; i < len(ss); i++ {
			steps[i-1] = ss[i].Current.Dist(ss[i-1].Current)
		}
		sum.MeanStep = stat.Mean(steps, nil)
	}
	sum.Duration = span(ds, ss)
	return sum
}

func latencyStats(ms []float64) LatencyStats {
	ls := LatencyStats{Count: len(ms)}
	if len(ms) == 0 {
		return ls
	}
	sorted := append([]float64(nil), ms...)
	sort.Float64s(sorted)

	ls.MeanMs, ls.StdMs = stat.MeanStdDev(sorted, nil)
	if math.IsNaN(ls.StdMs) {
		ls.StdMs = 0
	}
	ls.P50Ms = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	ls.P95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	ls.MaxMs = sorted[len(sorted)-1]
	return ls
}

func span(ds []lense.Detection, ss []lense.Sample) time.Duration {
	var first, last time.Time
	see := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	for _, d := range ds {
		see(d.At)
	}
	for _, s := range ss {
		see(s.At)
	}
	return last.Sub(first)
}
