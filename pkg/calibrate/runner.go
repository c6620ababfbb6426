package calibrate

import (
	"context"

	"github.com/palantir/stacktrace"
	"github.com/twosixlabs/magicwand/pkg/result"
	"github.com/twosixlabs/magicwand/pkg/runner"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// OrchestratorRunner performs calibration runs through the run orchestrator
type OrchestratorRunner struct {
	Orchestrator *runner.Orchestrator
	Attack       string
	DataVersion  string
}

// Collect prepares, runs and archives configPath, then reads its calibration inputs
func (r *OrchestratorRunner) Collect(ctx context.Context, configPath string) (*types.MetricBundle, error) {
	spec, err := r.Orchestrator.Prepare(configPath, r.DataVersion)
	if err != nil {
		return nil, stacktrace.Propagate(err, result.PrepareRun)
	}
	h, err := r.Orchestrator.Run(ctx, spec)
	if err != nil {
		return nil, err
	}
	bundle, err := r.Orchestrator.CollectCalibrationMetrics(h, r.Attack)
	if err != nil {
		return nil, stacktrace.Propagate(err, result.CollectMetrics)
	}
	return bundle, nil
}
