package calibrate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/palantir/stacktrace"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/components/benign"
	"github.com/twosixlabs/magicwand/pkg/components/suts"
	"github.com/twosixlabs/magicwand/pkg/history"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/ratio"
	"github.com/twosixlabs/magicwand/pkg/registry"
	"github.com/twosixlabs/magicwand/pkg/result"
	"github.com/twosixlabs/magicwand/pkg/telemetry"
	"github.com/twosixlabs/magicwand/pkg/types"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// MaxRetries bounds the number of failed evaluations
	MaxRetries = 5
	// CalibrationRunDuration is the sut run duration used while calibrating
	CalibrationRunDuration = 150
	// DataVersion is the data version holding calibration runs
	DataVersion = "mw_calibrate_runs"
	// BaselineConfig is the benign only run configuration
	BaselineConfig = "mw_locust-only.json"
)

// State is a state of the calibration loop
type State string

const (
	BaselineRun State = "BASELINE_RUN"
	AttackRun   State = "ATTACK_RUN"
	Evaluate    State = "EVALUATE"
	Adjust      State = "ADJUST"
	Done        State = "DONE"
	Failed      State = "FAILED"
)

// AttackConfig returns the attack only run configuration of attack
func AttackConfig(attack string) string {
	return attack + "-only.json"
}

// Runner performs a single run and returns its calibration inputs
type Runner interface {
	Collect(ctx context.Context, configPath string) (*types.MetricBundle, error)
}

// EvaluateFunc decides whether an attack run differs enough from its baseline
type EvaluateFunc func(set ratio.CheckSet, baseline, attack *types.MetricBundle, current ratio.CurrentConfig) (ratio.Outcome, error)

// Controller is the closed calibration loop of one attack
type Controller struct {
	Attack string
	Benign string
	SUT    string
	// BaselineConfig and AttackConfig are the run configurations of the compared runs
	BaselineConfig string
	AttackConfig   string

	Store    *components.Store
	Runner   Runner
	Checks   ratio.CheckSet
	Evaluate EvaluateFunc
	History  *history.Store
	Metrics  *telemetry.Metrics

	SessionID  string
	MaxRetries int
	Now        func() time.Time
}

// Report is the final state of a calibration session
type Report struct {
	SessionID string
	State     State
	Attempts  int
	Outcome   ratio.Outcome
}

// New returns a controller for attack with the default benign generator and sut
func New(attack string, store *components.Store, runner Runner, checks ratio.CheckSet) *Controller {
	return &Controller{
		Attack:     attack,
		Benign:     benign.LocustName,
		SUT:        suts.ApacheWPName,
		Store:      store,
		Runner:     runner,
		Checks:     checks,
		Evaluate:   ratio.Evaluate,
		SessionID:  uuid.NewString(),
		MaxRetries: MaxRetries,
		Now:        time.Now,
	}
}

// tunables are the components whose configuration the loop adjusts, loaded fresh from the store
type tunables struct {
	attack components.Calibratable
	benign components.ClientScaled
	sut    components.ServerTuned
}

func (c *Controller) load() (*tunables, error) {
	comp, err := registry.Resolve(c.Store, types.AttackNamespace, c.Attack)
	if err != nil {
		return nil, err
	}
	attack, ok := comp.(components.Calibratable)
	if !ok {
		return nil, cerrors.UnsupportedAttack{Attack: c.Attack}
	}
	if comp, err = registry.Resolve(c.Store, types.BenignNamespace, c.Benign); err != nil {
		return nil, err
	}
	client, ok := comp.(components.ClientScaled)
	if !ok {
		return nil, cerrors.UnsupportedAttack{Attack: c.Attack, Reason: "benign '" + c.Benign + "' has no tunable client count"}
	}
	if comp, err = registry.Resolve(c.Store, types.SUTNamespace, c.SUT); err != nil {
		return nil, err
	}
	sut, ok := comp.(components.ServerTuned)
	if !ok {
		return nil, cerrors.UnsupportedAttack{Attack: c.Attack, Reason: "sut '" + c.SUT + "' has no tunable server settings"}
	}
	return &tunables{attack: attack, benign: client, sut: sut}, nil
}

func (c *Controller) setRunDuration(seconds int) error {
	t, err := c.load()
	if err != nil {
		return err
	}
	if err := t.sut.SetRunDuration(seconds); err != nil {
		return err
	}
	return t.sut.Save()
}

func (c *Controller) current(baseline, attack *types.MetricBundle) (ratio.CurrentConfig, error) {
	var cur ratio.CurrentConfig
	t, err := c.load()
	if err != nil {
		return cur, err
	}
	if cur.Clients, err = t.benign.ClientCount(baseline.Params); err != nil {
		return cur, stacktrace.Propagate(err, "could not read the client count of the baseline run")
	}
	if cur.Threads, err = t.attack.ThreadCount(attack.Params); err != nil {
		return cur, stacktrace.Propagate(err, "could not read the thread count of the attack run")
	}
	if cur.MaxClients, err = t.sut.MaxClients(attack.Params); err != nil {
		return cur, stacktrace.Propagate(err, "could not read the max clients of the attack run")
	}
	return cur, nil
}

// persist writes the suggested tunables into the component configurations
func (c *Controller) persist(s ratio.Suggestion) error {
	t, err := c.load()
	if err != nil {
		return err
	}
	if err := t.attack.SetThreadCount(s.Threads); err != nil {
		return err
	}
	if err := t.benign.SetClientCount(s.Clients); err != nil {
		return err
	}
	if err := t.sut.SetMaxClients(s.MaxClients); err != nil {
		return err
	}
	for _, comp := range []components.Component{t.attack, t.benign, t.sut} {
		if err := comp.Save(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) transition(from, to State, attempt int) State {
	log.InfoWithValues("[Calibrate]: state transition", map[string]interface{}{
		"Attack":  c.Attack,
		"Attempt": attempt,
		"From":    string(from),
		"To":      string(to),
	})
	return to
}

// Calibrate alternates baseline and attack runs until the ratio checks pass
// or MaxRetries evaluations failed
func (c *Controller) Calibrate(ctx context.Context) (report Report, err error) {
	ctx, span := telemetry.StartTracing(ctx, "Calibrate",
		attribute.String("attack", c.Attack),
		attribute.String("session_id", c.SessionID))
	report = Report{SessionID: c.SessionID, State: BaselineRun}
	defer func() {
		if err != nil {
			report.State = Failed
		}
		c.Metrics.RecordCalibration(ctx, c.Attack, string(report.State))
		telemetry.EndSpan(span, err)
	}()

	if err := registry.Validate(types.AttackNamespace, c.Attack); err != nil {
		return report, err
	}
	if _, err := c.load(); err != nil {
		return report, err
	}

	log.Infof("[Calibrate]: forcing a %vs run duration while calibrating %s", CalibrationRunDuration, c.Attack)
	if err := c.setRunDuration(CalibrationRunDuration); err != nil {
		return report, stacktrace.Propagate(err, result.PersistSuggestions)
	}

	for {
		outcome, err := c.iterate(ctx, report.Attempts+1)
		if err != nil {
			return report, err
		}
		report.Outcome = outcome

		if outcome.Passed {
			if err := c.setRunDuration(outcome.RunDuration); err != nil {
				return report, stacktrace.Propagate(err, result.PersistSuggestions)
			}
			report.State = c.transition(Evaluate, Done, report.Attempts+1)
			log.Infof("[Calibrate]: calibration of %s completed successfully", c.Attack)
			return report, nil
		}

		if outcome.Suggestion == nil {
			return report, cerrors.Generic{Phase: "Calibrate", Reason: "failed evaluation without a suggestion"}
		}
		report.State = c.transition(Evaluate, Adjust, report.Attempts+1)
		if err := c.persist(*outcome.Suggestion); err != nil {
			return report, stacktrace.Propagate(err, result.PersistSuggestions)
		}
		report.Attempts++
		if report.Attempts >= c.MaxRetries {
			report.State = c.transition(Adjust, Failed, report.Attempts)
			log.Infof("[Calibrate]: giving up after %d failed runs", report.Attempts)
			return report, cerrors.CalibrationExhausted{Attack: c.Attack, Attempts: report.Attempts}
		}
		report.State = c.transition(Adjust, BaselineRun, report.Attempts+1)
	}
}

// iterate runs one baseline/attack pair and evaluates it
func (c *Controller) iterate(ctx context.Context, attempt int) (outcome ratio.Outcome, err error) {
	ctx, span := telemetry.StartTracing(ctx, "CalibrationIteration", attribute.Int("attempt", attempt))
	defer func() { telemetry.EndSpan(span, err) }()

	log.Infof("[Calibrate]: attempt %d of %d, baseline run", attempt, c.MaxRetries)
	baseline, err := c.Runner.Collect(ctx, c.BaselineConfig)
	if err != nil {
		return outcome, stacktrace.Propagate(err, "baseline run failed")
	}
	c.transition(BaselineRun, AttackRun, attempt)

	log.Infof("[Calibrate]: attempt %d of %d, attack run", attempt, c.MaxRetries)
	attack, err := c.Runner.Collect(ctx, c.AttackConfig)
	if err != nil {
		return outcome, stacktrace.Propagate(err, "attack run failed")
	}
	c.transition(AttackRun, Evaluate, attempt)

	current, err := c.current(baseline, attack)
	if err != nil {
		return outcome, stacktrace.Propagate(err, result.CollectMetrics)
	}
	_, evalSpan := telemetry.StartTracing(ctx, "Evaluate")
	outcome, err = c.Evaluate(c.Checks, baseline, attack, current)
	telemetry.EndSpan(evalSpan, err)
	if err != nil {
		return outcome, stacktrace.Propagate(err, result.EvaluateRatio)
	}

	verdict := types.FailVerdict
	if outcome.Passed {
		verdict = types.PassVerdict
	}
	c.Metrics.RecordIteration(ctx, c.Attack, verdict)
	c.record(history.Iteration{
		SessionID:   c.SessionID,
		Attack:      c.Attack,
		Attempt:     attempt,
		Timestamp:   c.Now(),
		BaselineDir: baseline.RunDir,
		AttackDir:   attack.RunDir,
		Verdict:     verdict,
		Results:     outcome.Results,
		Status:      outcome.Status,
		Suggestion:  outcome.Suggestion,
		BaselineRTT: ratio.SummarizeRTT(baseline.RTT),
		AttackRTT:   ratio.SummarizeRTT(attack.RTT),
	})
	return outcome, nil
}

func (c *Controller) record(item history.Iteration) {
	if c.History == nil {
		return
	}
	if err := c.History.Save(item); err != nil {
		log.Warnf("[Calibrate]: unable to record iteration %d, err: %v", item.Attempt, err)
	}
}
