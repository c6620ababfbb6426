package runner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/palantir/stacktrace"
	"github.com/twosixlabs/magicwand/pkg/capture"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/flows"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/metrics"
	"github.com/twosixlabs/magicwand/pkg/registry"
	"github.com/twosixlabs/magicwand/pkg/result"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// CollectCalibrationMetrics reads the calibration inputs of an archived run
// through the calibration support of attack
func (o *Orchestrator) CollectCalibrationMetrics(h *RunHandle, attack string) (*types.MetricBundle, error) {
	if h.ArchiveDir == "" {
		return nil, cerrors.NoData{Target: h.Folder, Reason: "run was not archived"}
	}
	comp, err := registry.Resolve(o.Store, types.AttackNamespace, attack)
	if err != nil {
		return nil, err
	}
	cal, ok := comp.(components.Calibratable)
	if !ok {
		return nil, cerrors.UnsupportedAttack{Attack: attack}
	}
	return cal.CalibrationData(h.ArchiveDir)
}

// Verify checks the archived capture against every component of the run
// and the global verifier, the verdicts are written to verify_run.json
func (o *Orchestrator) Verify(h *RunHandle) (*result.Verification, error) {
	dir := h.ArchiveDir
	pcap := filepath.Join(dir, metrics.CaptureFile)
	if _, err := os.Stat(pcap); err != nil {
		return nil, cerrors.NoData{Target: h.Folder, Reason: "no pcap found"}
	}
	records, err := capture.ReadFile(pcap)
	if err != nil {
		log.Warnf("[Verify]: unable to read every packet of %s, err: %v", pcap, err)
	}
	roles, err := flows.ReadIPMap(filepath.Join(dir, metrics.IPAttrMapFile))
	if err != nil {
		log.Warnf("[Verify]: unable to read the ip map, err: %v", err)
		roles = flows.IPMap{}
	}

	glob, err := registry.Global(o.Store)
	if err != nil {
		return nil, err
	}
	in := components.VerifyInput{RunDir: dir, Records: records, Roles: roles}

	log.Infof("[Verify]: running verifications for %s", dir)
	v := &result.Verification{}
	for _, comp := range append(append([]components.Component(nil), h.Components...), glob) {
		passed, err := comp.Verify(in)
		if err != nil {
			log.Errorf("[Verify]: %s verification failed, err: %v", comp.Name(), err)
			passed = false
		}
		log.Infof("[Verify]: %s verification %v", comp.Name(), passed)
		v.SetVerdict(comp.Name(), passed)
	}
	if err := v.Write(filepath.Join(dir, metrics.VerifyResultsFile)); err != nil {
		return v, err
	}
	v.Print()
	return v, nil
}

// Execute performs count verified runs of a run configuration and returns the archived folders
func (o *Orchestrator) Execute(ctx context.Context, configPath, dataVersion string, count int) ([]string, error) {
	spec, err := o.Prepare(configPath, dataVersion)
	if err != nil {
		return nil, stacktrace.Propagate(err, result.PrepareRun)
	}

	var dirs []string
	for i := 1; i <= count; i++ {
		log.Infof("[Status]: starting run %d of %d", i, count)
		h, err := o.Run(ctx, spec)
		if err != nil {
			log.Errorf("[Status]: run %d failed", i)
			return dirs, err
		}
		dirs = append(dirs, h.ArchiveDir)
		if _, err := o.Verify(h); err != nil {
			return dirs, stacktrace.Propagate(err, result.VerifyRun)
		}
	}
	return dirs, nil
}
