package ratio

import (
	"strconv"
	"strings"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/math"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// trafficUnits converts apache total traffic units to MB
var trafficUnits = map[string]float64{
	"B":  1.0 / 1000000,
	"kB": 1.0 / 1000,
	"MB": 1,
	"GB": 1000,
}

// NormalizeTraffic converts "<value> <unit>" to MB, "500 kB" -> 0.5
func NormalizeTraffic(raw string) (float64, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return 0, cerrors.Metric{Metric: string(TotalTraffic), Reason: "expected '<value> <unit>', got '" + raw + "'"}
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, cerrors.Metric{Metric: string(TotalTraffic), Reason: "'" + fields[0] + "' is not a number"}
	}
	factor, ok := trafficUnits[fields[1]]
	if !ok {
		return 0, cerrors.Metric{Metric: string(TotalTraffic), Reason: "unknown unit '" + fields[1] + "'"}
	}
	return value * factor, nil
}

// Scalar reduces a metric table of the bundle to the value compared by a check
func Scalar(kind MetricKind, bundle *types.MetricBundle) (float64, error) {
	switch kind {
	case RTTMean:
		values := make([]float64, 0, len(bundle.RTT))
		for _, s := range bundle.RTT {
			values = append(values, s.RTT)
		}
		mean, ok := math.Mean(values)
		if !ok {
			return 0, cerrors.Metric{Metric: string(kind), Reason: "no rtt samples in " + bundle.RunDir}
		}
		return mean, nil
	case MemMean:
		values := make([]float64, 0, len(bundle.Memory))
		for _, s := range bundle.Memory {
			values = append(values, s.MemoryPercent)
		}
		mean, ok := math.Mean(values)
		if !ok {
			return 0, cerrors.Metric{Metric: string(kind), Reason: "no memory samples in " + bundle.RunDir}
		}
		return mean, nil
	case TotalTraffic:
		// the counter is cumulative, the latest readable row is the total
		for i := len(bundle.Server) - 1; i >= 0; i-- {
			v, err := NormalizeTraffic(bundle.Server[i].TotalTraffic)
			if err != nil {
				log.Warnf("[Ratio]: skipping server stats row %d of %s, err: %v", i+1, bundle.RunDir, err)
				continue
			}
			return v, nil
		}
		return 0, cerrors.Metric{Metric: string(kind), Reason: "no readable total_traffic samples in " + bundle.RunDir}
	}
	return 0, cerrors.Metric{Metric: string(kind), Reason: "unknown check_type"}
}

// LatencySummary holds RTT percentiles in milliseconds
type LatencySummary struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// SummarizeRTT records the RTT samples in microsecond resolution and reports percentiles
func SummarizeRTT(samples []types.RTTSample) LatencySummary {
	h := hdrhistogram.New(1, 600_000_000, 3)
	for _, s := range samples {
		us := int64(s.RTT * 1000)
		if us < 1 {
			us = 1
		}
		if err := h.RecordValue(us); err != nil {
			log.Debugf("[Ratio]: rtt sample %v out of range", s.RTT)
		}
	}
	if h.TotalCount() == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: h.TotalCount(),
		Mean:  h.Mean() / 1000,
		P50:   float64(h.ValueAtQuantile(50)) / 1000,
		P90:   float64(h.ValueAtQuantile(90)) / 1000,
		P99:   float64(h.ValueAtQuantile(99)) / 1000,
		Max:   float64(h.Max()) / 1000,
	}
}
