package attacks

import (
	"strconv"
	"strings"

	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/comparator"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/math"
	"github.com/twosixlabs/magicwand/pkg/metrics"
	"github.com/twosixlabs/magicwand/pkg/types"
)

const (
	// ApachekillName is the registry identifier of the apachekill attack
	ApachekillName = "apachekill"

	// MinMeanHTTPLength is the mean frame length an apachekill source must exceed
	MinMeanHTTPLength = 1500
	// MinRangeOverlap is the fraction of overlapping range specs expected per request
	MinRangeOverlap = 0.75

	apachekillUserAgent = "KillApachePy (0.1c)"
	rangeCutoff         = "bytes=0-,"

	// DefaultAttackDelay is the start delay in seconds used when attack_delay is not set
	DefaultAttackDelay = "15"
	attackOptions      = "attack_options"
	threadsKey         = "ak_num_threads"
)

// Apachekill floods the server with overlapping byte range requests
type Apachekill struct {
	components.Base
}

// NewApachekill loads the apachekill configuration
func NewApachekill(store *components.Store) (components.Component, error) {
	base, err := components.NewBase(store, components.AttackKind, ApachekillName)
	if err != nil {
		return nil, err
	}
	return &Apachekill{Base: base}, nil
}

// Project sets CURR_SEED, CURR_ATTACK_DURATION, CURR_IP_LIMIT, CURR_DELAY and CURR_MAX_THREADS
func (a *Apachekill) Project(ec *types.ExecutionContext) error {
	ec.Set("CURR_SEED", benignSeed(a.Store()))

	opts, err := a.Section(attackOptions)
	if err != nil {
		return err
	}
	if err := a.Require(ec, "CURR_ATTACK_DURATION", opts, "ak_duration"); err != nil {
		return err
	}
	if err := a.Require(ec, "CURR_IP_LIMIT", opts, "ak_num_ips"); err != nil {
		return err
	}
	a.Optional(ec, "CURR_DELAY", DefaultAttackDelay, opts, "attack_delay")
	return a.Require(ec, "CURR_MAX_THREADS", opts, threadsKey)
}

// benignSeed reuses the benign client seed so both generators replay the same run
func benignSeed(store *components.Store) string {
	doc, err := store.Load(components.BenignKind.Category(), "mw_locust")
	if err != nil {
		log.Warnf("[PreReq]: unable to load the seed from mw_locust, defaulting to 'None', err: %v", err)
		return "None"
	}
	return doc.StringOr("None", "client_options", "seed")
}

// CalibrationData reads the metric tables and run parameters of an archived run
func (a *Apachekill) CalibrationData(runDir string) (*types.MetricBundle, error) {
	return metrics.ReadBundle(runDir)
}

// ThreadCount returns the thread count the run was started with
func (a *Apachekill) ThreadCount(params types.RunParams) (int, error) {
	if params.Attack == nil {
		return 0, cerrors.NoData{Target: params.RunLoc, Reason: "run parameters have no attack section"}
	}
	return params.Attack.Int(attackOptions, threadsKey)
}

// SetThreadCount updates ak_num_threads for the next run
func (a *Apachekill) SetThreadCount(n int) error {
	return a.Config().Set(n, attackOptions, threadsKey)
}

// Verify checks that every attack source sent large HTTP requests carrying overlapping ranges
func (a *Apachekill) Verify(in components.VerifyInput) (bool, error) {
	attackIPs := in.IPsWithRole("attack")
	if len(attackIPs) == 0 {
		log.Error("[Verify]: no attack IPs to verify")
		return false, nil
	}

	passed := true
	for _, ip := range attackIPs {
		var lengths []float64
		var requests []string
		for _, r := range in.Records {
			if r.Source != ip || !r.IsHTTP() {
				continue
			}
			lengths = append(lengths, float64(r.Length))
			if r.UserAgent != "" && r.UserAgent != apachekillUserAgent {
				log.Debugf("[Verify]: invalid user-agent: %s", r.UserAgent)
			}
			if r.Range != "" {
				requests = append(requests, r.Range)
			}
		}

		mean, ok := math.Mean(lengths)
		if !ok {
			log.Debugf("[Verify]: no HTTP traffic from %s", ip)
			continue
		}
		if err := comparator.FirstValue(mean).SecondValue(MinMeanHTTPLength).Criteria(">").Target(ip).CompareFloat(cerrors.ErrorTypeGeneric); err != nil {
			log.Errorf("[Verify]: IP: %s http length mean: %v, fail mean length", ip, mean)
			passed = false
		}

		for _, header := range requests {
			specs, ok := rangeSpecs(header)
			if !ok {
				continue
			}
			if !RangeHeaderTest(specs) {
				passed = false
			}
		}
	}
	return passed, nil
}

func rangeSpecs(header string) ([]string, bool) {
	idx := strings.Index(header, rangeCutoff)
	if idx < 0 {
		return nil, false
	}
	return strings.Split(header[idx+len(rangeCutoff):], ","), true
}

// RangeHeaderTest reports whether at least 75% of the range specs overlap the first one
func RangeHeaderTest(specs []string) bool {
	if len(specs) == 0 {
		return false
	}
	var firstMin, firstMax, overlap int
	start := true
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		lo, hi, ok := strings.Cut(spec, "-")
		if !ok {
			break
		}
		rangeMin, errMin := strconv.Atoi(lo)
		rangeMax, errMax := strconv.Atoi(hi)
		if errMin != nil || errMax != nil {
			log.Debugf("[Verify]: incomplete range spec '%s'", spec)
			break
		}
		if start {
			firstMin, firstMax, start = rangeMin, rangeMax, false
			continue
		}
		if rangeMax > firstMax && rangeMin <= firstMin {
			overlap++
		}
	}
	return math.Fraction(overlap, len(specs)) >= MinRangeOverlap
}
