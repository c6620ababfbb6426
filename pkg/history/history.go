package history

import (
	"fmt"
	"time"

	"github.com/twosixlabs/magicwand/pkg/ratio"
)

// Iteration is one evaluated baseline/attack pair of a calibration session
type Iteration struct {
	SessionID   string            `json:"session_id"`
	Attack      string            `json:"attack"`
	Attempt     int               `json:"attempt"`
	Timestamp   time.Time         `json:"timestamp"`
	BaselineDir string            `json:"baseline_dir"`
	AttackDir   string            `json:"attack_dir"`
	Verdict     string            `json:"verdict"`
	Results     []ratio.Result    `json:"results"`
	Status      ratio.Status      `json:"status,omitempty"`
	Suggestion  *ratio.Suggestion `json:"suggestion,omitempty"`
	// BaselineRTT and AttackRTT summarize the latency distributions of both runs
	BaselineRTT ratio.LatencySummary `json:"baseline_rtt"`
	AttackRTT   ratio.LatencySummary `json:"attack_rtt"`
}

// Key orders iterations by time, then by attempt within a session
func (i Iteration) Key() string {
	return fmt.Sprintf("%s_%s_%02d", i.Timestamp.UTC().Format("20060102T150405.000000000"), i.SessionID, i.Attempt)
}
