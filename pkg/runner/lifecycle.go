package runner

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/palantir/stacktrace"
	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/flows"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/metrics"
	"github.com/twosixlabs/magicwand/pkg/result"
	"github.com/twosixlabs/magicwand/pkg/telemetry"
	"github.com/twosixlabs/magicwand/pkg/types"
	"github.com/twosixlabs/magicwand/pkg/utils/stringutils"
	"go.opentelemetry.io/otel/attribute"
)

// RunHandle is a started run
type RunHandle struct {
	*Plan
	Started time.Time
	// ArchiveDir is set once the run was stopped and moved under its data version
	ArchiveDir string

	samplerDone   <-chan error
	cancelSampler context.CancelFunc
	abort         chan os.Signal
	watcherDone   chan struct{}
	released      bool
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	return nil
}

// Start launches the workloads of the plan, persists the resolved parameters
// and starts the memory sampler for the run duration
func (o *Orchestrator) Start(ctx context.Context, p *Plan) (*RunHandle, error) {
	if err := os.MkdirAll(p.LiveDir, 0755); err != nil {
		return nil, cerrors.Setup{Target: p.Folder, Reason: err.Error()}
	}

	startCtx, cancel := context.WithTimeout(ctx, o.deadline(p))
	defer cancel()

	h := &RunHandle{
		Plan:        p,
		abort:       make(chan os.Signal, 1),
		watcherDone: make(chan struct{}),
	}
	signal.Notify(h.abort, os.Interrupt, syscall.SIGTERM)
	go o.abortWatcher(h.Plan, h.abort, h.watcherDone)

	log.Infof("[Status]: running %s for %d seconds", p.Folder, int(p.Duration.Seconds()))
	if err := o.Launcher.Up(startCtx, p.ComposeFiles, p.Context); err != nil {
		o.release(h)
		o.teardown(p)
		return nil, stacktrace.Propagate(err, "could not start %s", p.Folder)
	}
	h.Started = o.Now()

	h.Params.Env = *p.Context
	if err := writeJSON(filepath.Join(p.LiveDir, metrics.RunParamsFile), h.Params); err != nil {
		o.release(h)
		o.teardown(p)
		return nil, cerrors.Setup{Target: p.Folder, Reason: err.Error()}
	}
	runConfig := p.Spec.Raw.Clone()
	runConfig[TimestampKey] = p.Spec.Timestamp.Format(stringutils.RunTimestampLayout)
	if err := writeJSON(filepath.Join(p.LiveDir, metrics.RunConfigFile), runConfig); err != nil {
		o.release(h)
		o.teardown(p)
		return nil, cerrors.Setup{Target: p.Folder, Reason: err.Error()}
	}

	samplerCtx, cancelSampler := context.WithCancel(ctx)
	h.cancelSampler = cancelSampler
	h.samplerDone = o.Sampler.Start(samplerCtx, filepath.Join(p.LiveDir, metrics.MemoryStatsFile), p.Duration)
	return h, nil
}

// Wait blocks until the run duration elapsed
func (o *Orchestrator) Wait(ctx context.Context, h *RunHandle) error {
	log.Infof("[Wait]: waiting for the %vs run duration", int(h.Duration.Seconds()))
	select {
	case err := <-h.samplerDone:
		if err != nil {
			log.Warnf("[Sampler]: memory sampling stopped early, err: %v", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	remaining := h.Started.Add(h.Duration).Sub(o.Now())
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop tears the workloads down, labels the captured flows and moves the
// run folder under its data version
func (o *Orchestrator) Stop(ctx context.Context, h *RunHandle) (string, error) {
	o.release(h)

	stopCtx, cancel := context.WithTimeout(ctx, o.deadline(h.Plan))
	defer cancel()
	if err := o.Launcher.Down(stopCtx, h.ComposeFiles, h.Context); err != nil {
		return "", stacktrace.Propagate(err, "could not stop %s", h.Folder)
	}

	ipMap, err := flows.MergeIPMaps(h.LiveDir)
	if err != nil {
		return "", stacktrace.Propagate(err, "could not merge the ip maps of %s", h.Folder)
	}

	pcap := filepath.Join(h.LiveDir, metrics.CaptureFile)
	if _, err := os.Stat(pcap); err == nil {
		produced, err := o.Converter.Convert(stopCtx, pcap)
		if err != nil {
			return "", stacktrace.Propagate(err, "could not convert the capture of %s", h.Folder)
		}
		split, err := flows.LabelFlows(produced, ipMap)
		if err != nil {
			return "", cerrors.Conversion{Target: h.Folder, Reason: err.Error()}
		}
		split.Log()
	}

	dest := filepath.Join(o.Settings.DataDir, h.Spec.DataVersion, h.Folder)
	if err := os.Rename(h.LiveDir, dest); err != nil {
		return "", errors.Wrapf(err, "unable to archive %s", h.Folder)
	}
	h.ArchiveDir = dest
	log.Infof("[Status]: finished run %s successfully", h.Folder)
	return dest, nil
}

// release stops the sampler and the interrupt handler of a run
func (o *Orchestrator) release(h *RunHandle) {
	if h.cancelSampler != nil {
		h.cancelSampler()
	}
	if !h.released && h.abort != nil {
		signal.Stop(h.abort)
		close(h.watcherDone)
	}
	h.released = true
}

// teardown stops the workloads of p on a best effort basis
func (o *Orchestrator) teardown(p *Plan) {
	ctx, cancel := context.WithTimeout(context.Background(), o.Settings.RunTimeoutGrace)
	defer cancel()
	if err := o.Launcher.Down(ctx, p.ComposeFiles, p.Context); err != nil {
		log.Errorf("[Abort]: unable to tear down %s, err: %v", p.Folder, err)
	}
}

// abortWatcher tears the run down when the process is interrupted
func (o *Orchestrator) abortWatcher(p *Plan, abort <-chan os.Signal, done <-chan struct{}) {
	select {
	case <-abort:
		log.Info("[Abort]: run cancelled, tearing down the workloads")
		o.teardown(p)
		log.Info("[Abort]: run cancelled")
		o.Exit(1)
	case <-done:
	}
}

// Run resolves, starts, waits for and stops a single run
func (o *Orchestrator) Run(ctx context.Context, spec types.RunSpec) (h *RunHandle, err error) {
	ctx, span := telemetry.StartTracing(ctx, "Run",
		attribute.String("run_type", spec.RunType),
		attribute.String("data_version", spec.DataVersion))
	begin := o.Now()
	defer func() {
		outcome := types.PassVerdict
		if err != nil {
			outcome = types.FailVerdict
		}
		o.Metrics.RecordRun(ctx, spec.RunType, outcome, o.Now().Sub(begin).Seconds())
		telemetry.EndSpan(span, err)
	}()

	plan, err := o.ResolveComponents(ctx, spec)
	if err != nil {
		return nil, stacktrace.Propagate(err, result.ResolveComponents)
	}
	h, err = o.Start(ctx, plan)
	if err != nil {
		return nil, stacktrace.Propagate(err, result.StartRun)
	}
	if err := o.Wait(ctx, h); err != nil {
		o.release(h)
		o.teardown(plan)
		return h, stacktrace.Propagate(err, result.WaitRun)
	}
	if _, err := o.Stop(ctx, h); err != nil {
		return h, stacktrace.Propagate(err, result.StopRun)
	}
	return h, nil
}
