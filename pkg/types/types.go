package types

import (
	"time"
)

const (
	// AwaitedVerdict marked the start of a verification or calibration
	AwaitedVerdict string = "Awaited"
	// PassVerdict marked the verdict as passed
	PassVerdict string = "Pass"
	// FailVerdict marked the verdict as failed
	FailVerdict string = "Fail"
	// AbortVerdict marked the verdict as abort when the run was interrupted
	AbortVerdict string = "Abort"
)

// Namespace is one of the disjoint component namespaces of a run
type Namespace string

const (
	AttackNamespace Namespace = "attack"
	BenignNamespace Namespace = "benign"
	SUTNamespace    Namespace = "sut"
	RTTNamespace    Namespace = "rtt"
)

// SlotOrder is the order in which run slots are resolved and projected
var SlotOrder = []Namespace{SUTNamespace, AttackNamespace, BenignNamespace, RTTNamespace}

// RunSpec is the immutable description of a single run
type RunSpec struct {
	RunType   string
	Slots     map[Namespace]string
	Timestamp time.Time
	// Raw holds the run configuration as read from disk
	Raw Document
	// ConfigPath is the file the run configuration was loaded from
	ConfigPath  string
	DataVersion string
}

// Component returns the identifier configured for the slot, if any
func (r RunSpec) Component(ns Namespace) (string, bool) {
	name, ok := r.Slots[ns]
	return name, ok && name != ""
}

// RunParams is the resolved parameter set persisted as run_parms.json
type RunParams struct {
	SUT          Document         `json:"sut,omitempty"`
	Attack       Document         `json:"attack,omitempty"`
	Benign       Document         `json:"benign,omitempty"`
	RTT          Document         `json:"rtt,omitempty"`
	ComposeFiles []string         `json:"compose_files"`
	RunLoc       string           `json:"run_loc"`
	Version      string           `json:"version"`
	Env          ExecutionContext `json:"env"`
}

// Slot returns the persisted configuration of a namespace
func (p RunParams) Slot(ns Namespace) Document {
	switch ns {
	case SUTNamespace:
		return p.SUT
	case AttackNamespace:
		return p.Attack
	case BenignNamespace:
		return p.Benign
	case RTTNamespace:
		return p.RTT
	}
	return nil
}

// SetSlot stores the configuration of a namespace
func (p *RunParams) SetSlot(ns Namespace, doc Document) {
	switch ns {
	case SUTNamespace:
		p.SUT = doc
	case AttackNamespace:
		p.Attack = doc
	case BenignNamespace:
		p.Benign = doc
	case RTTNamespace:
		p.RTT = doc
	}
}

// MemorySample is one row of mem_stats.csv
type MemorySample struct {
	Timestamp     string
	MemoryPercent float64
}

// ServerSample is one row of apache_stats.csv, TotalTraffic keeps the raw "<value> <unit>" form
type ServerSample struct {
	TotalTraffic string
}

// RTTSample is one row of rtt_stats.csv, in milliseconds
type RTTSample struct {
	RTT float64
}

// MetricBundle holds the calibration inputs of a single archived run
type MetricBundle struct {
	RunDir string
	Memory []MemorySample
	Server []ServerSample
	RTT    []RTTSample
	Params RunParams
}

// VerificationResult is the outcome of one post-run verification check
type VerificationResult struct {
	Name    string
	Passed  bool
	Verdict string
}
