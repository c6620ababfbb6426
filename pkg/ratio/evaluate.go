package ratio

import (
	"github.com/palantir/stacktrace"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/comparator"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// ConfirmatoryRunDuration is the run duration set once calibration passes
const ConfirmatoryRunDuration = 300

// CurrentConfig holds the tunables the compared runs were started with
type CurrentConfig struct {
	Clients    int
	Threads    int
	MaxClients int
}

// Suggestion holds the tunables for the next run
type Suggestion struct {
	Clients    int `json:"clients"`
	Threads    int `json:"threads"`
	MaxClients int `json:"max_clients"`
}

// Result is the evaluation of one check
type Result struct {
	Check    Check   `json:"check"`
	Baseline float64 `json:"baseline"`
	Attack   float64 `json:"attack"`
	Passed   bool    `json:"passed"`
}

// Outcome is the evaluation of a baseline/attack pair
type Outcome struct {
	Passed      bool        `json:"passed"`
	Results     []Result    `json:"results"`
	FailedCheck *Check      `json:"failed_check,omitempty"`
	Status      Status      `json:"status,omitempty"`
	Suggestion  *Suggestion `json:"suggestion,omitempty"`
	// RunDuration is the run duration to persist on success
	RunDuration int `json:"run_duration,omitempty"`
}

// Passes applies the strict weighted comparison of a check
func (c Check) Passes(baseline, attack float64) bool {
	weightedBaseline := baseline * c.ClientRatio
	weightedAttack := attack * c.AttackRatio
	criteria := "<"
	if c.DiffHigher == ClientSide {
		criteria = ">"
	}
	return comparator.FirstValue(weightedBaseline).SecondValue(weightedAttack).Criteria(criteria).Target(string(c.Kind)).CompareFloat(cerrors.ErrorTypeMetric) == nil
}

// Evaluate runs the checks in order and stops at the first failure
func Evaluate(set CheckSet, baseline, attack *types.MetricBundle, current CurrentConfig) (Outcome, error) {
	var outcome Outcome
	for _, check := range set.Checks {
		if err := check.Validate(); err != nil {
			return outcome, cerrors.Config{Reason: err.Error()}
		}
		b, err := Scalar(check.Kind, baseline)
		if err != nil {
			return outcome, stacktrace.Propagate(err, "could not compute the baseline %s", check.Kind)
		}
		a, err := Scalar(check.Kind, attack)
		if err != nil {
			return outcome, stacktrace.Propagate(err, "could not compute the attack %s", check.Kind)
		}

		passed := check.Passes(b, a)
		outcome.Results = append(outcome.Results, Result{Check: check, Baseline: b, Attack: a, Passed: passed})
		log.InfoWithValues("[Ratio]: check evaluated", map[string]interface{}{
			"Check":    string(check.Kind),
			"Baseline": b,
			"Attack":   a,
			"Ratio":    check.String(),
			"Passed":   passed,
		})
		if passed {
			continue
		}

		status := Weak
		if check.DiffHigher == ClientSide {
			status = Strong
		}
		failed := check
		outcome.FailedCheck = &failed
		outcome.Status = status
		outcome.Suggestion = &Suggestion{
			Clients:    SuggestClients(current.Clients, check.Kind, status),
			Threads:    SuggestThreads(current.Threads, status),
			MaxClients: SuggestMaxClients(current.MaxClients, status),
		}
		log.Infof("[Ratio]: %s attack on %s, suggested clients: %d, threads: %d, max clients: %d",
			status, check.Kind, outcome.Suggestion.Clients, outcome.Suggestion.Threads, outcome.Suggestion.MaxClients)
		return outcome, nil
	}

	outcome.Passed = true
	outcome.RunDuration = ConfirmatoryRunDuration
	return outcome, nil
}
