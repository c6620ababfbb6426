package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/palantir/stacktrace"
	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/flows"
	"github.com/twosixlabs/magicwand/pkg/launcher"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/project"
	"github.com/twosixlabs/magicwand/pkg/registry"
	"github.com/twosixlabs/magicwand/pkg/sampler"
	"github.com/twosixlabs/magicwand/pkg/telemetry"
	"github.com/twosixlabs/magicwand/pkg/types"
	"github.com/twosixlabs/magicwand/pkg/utils/stringutils"
)

const (
	// Version is recorded in the run parameters of every run
	Version = "1.0.3"

	RunTypeKey = "run_type"
	// TimestampKey is added to the persisted run configuration
	TimestampKey = "curr_time"
	// CurrentRunVariable names the live run folder, relative to the components suts folder
	CurrentRunVariable = "CURR_RUN"
)

// Orchestrator drives single runs: it resolves the components of a run
// configuration, starts their workloads and archives what they produced
type Orchestrator struct {
	Settings  *project.Settings
	Store     *components.Store
	Launcher  launcher.Launcher
	Converter flows.Converter
	Sampler   *sampler.Sampler
	Metrics   *telemetry.Metrics
	// Now is the clock used for run timestamps
	Now func() time.Time
	// Exit terminates the process once an interrupted run was torn down
	Exit func(code int)
}

// New returns an orchestrator wired to docker for the project described by settings
func New(settings *project.Settings) *Orchestrator {
	var source sampler.Source = sampler.NewDockerSource(settings.DockerBinary, settings.SampledContainer)
	if settings.SamplerSource == "host" {
		source = sampler.HostSource{}
	}
	return &Orchestrator{
		Settings:  settings,
		Store:     components.NewStore(settings.ComponentsRoot),
		Launcher:  launcher.NewCompose(settings.ComposeCommand, settings.Root),
		Converter: flows.NewDockerConverter(settings.DockerBinary, settings.ConverterImage),
		Sampler:   sampler.New(source, settings.SampleInterval),
		Now:       time.Now,
		Exit:      os.Exit,
	}
}

// Plan is a resolved run that has not been started yet
type Plan struct {
	Spec         types.RunSpec
	Context      *types.ExecutionContext
	Components   []components.Component
	ComposeFiles []string
	Params       types.RunParams
	// Folder is the name of the run folder, shared by the live and the archived copy
	Folder   string
	LiveDir  string
	Duration time.Duration
}

// Prepare loads a run configuration and creates the data version folder
func (o *Orchestrator) Prepare(configPath, dataVersion string) (types.RunSpec, error) {
	var spec types.RunSpec

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return spec, cerrors.Config{Path: configPath, Reason: err.Error()}
	}
	doc := types.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return spec, cerrors.Config{Path: configPath, Reason: err.Error()}
	}
	runType, err := doc.String(RunTypeKey)
	if err != nil || runType == "" {
		return spec, cerrors.Config{Path: configPath, Reason: "run_type must be defined in config"}
	}

	known := map[string]bool{RunTypeKey: true}
	slots := map[types.Namespace]string{}
	for _, ns := range types.SlotOrder {
		known[string(ns)] = true
		v, ok := doc[string(ns)]
		if !ok {
			continue
		}
		name, ok := v.(string)
		if !ok {
			return spec, cerrors.Config{Path: configPath, Reason: "'" + string(ns) + "' must name a component"}
		}
		if err := registry.Validate(ns, name); err != nil {
			return spec, err
		}
		slots[ns] = name
	}
	fields := make([]string, 0, len(doc))
	for field := range doc {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if !known[field] {
			log.Warnf("[PreReq]: %s is an unnecessary field", field)
		}
	}

	log.Infof("[PreReq]: starting runs for data version: %s", dataVersion)
	if err := os.MkdirAll(filepath.Join(o.Settings.DataDir, dataVersion), 0755); err != nil {
		return spec, errors.Wrapf(err, "unable to create data version folder")
	}

	return types.RunSpec{
		RunType:     runType,
		Slots:       slots,
		Raw:         doc,
		ConfigPath:  configPath,
		DataVersion: dataVersion,
	}, nil
}

// ResolveComponents timestamps the run, resolves every configured slot and
// projects the component configurations into one execution context
func (o *Orchestrator) ResolveComponents(ctx context.Context, spec types.RunSpec) (*Plan, error) {
	spec.Timestamp = o.Now().UTC()
	folder := stringutils.RunFolderName(spec.RunType, spec.Timestamp)
	if _, err := os.Stat(filepath.Join(o.Settings.RunsDir, folder)); err == nil {
		folder += "_" + stringutils.GetRunID()
	}

	plan := &Plan{
		Spec:    spec,
		Context: types.NewExecutionContext(),
		Folder:  folder,
		LiveDir: filepath.Join(o.Settings.RunsDir, folder),
	}
	plan.Context.Set(CurrentRunVariable, filepath.Base(o.Settings.RunsDir)+"/"+folder+"/")
	if parent := telemetry.GetMarshalledSpanFromContext(ctx); parent != "" {
		plan.Context.Set(telemetry.TraceParent, parent)
	}

	var sut components.ServerTuned
	for _, ns := range types.SlotOrder {
		name, ok := spec.Component(ns)
		if !ok {
			continue
		}
		comp, err := registry.Resolve(o.Store, ns, name)
		if err != nil {
			return nil, stacktrace.Propagate(err, "could not resolve %s '%s'", ns, name)
		}
		if err := comp.Project(plan.Context); err != nil {
			return nil, stacktrace.Propagate(err, "could not project %s '%s'", ns, name)
		}
		file, err := comp.ComposeFile()
		if err != nil {
			return nil, stacktrace.Propagate(err, "could not find the workload descriptor of '%s'", name)
		}
		if s, ok := comp.(components.ServerTuned); ok {
			sut = s
		}
		plan.Components = append(plan.Components, comp)
		plan.ComposeFiles = append(plan.ComposeFiles, file)
		plan.Params.SetSlot(ns, comp.Config().Clone())
	}

	if sut == nil {
		return nil, cerrors.Setup{Target: spec.RunType, Reason: "no sut in run configuration"}
	}
	seconds, err := sut.RunDuration()
	if err != nil {
		return nil, stacktrace.Propagate(err, "could not read the run duration")
	}
	plan.Duration = time.Duration(seconds) * time.Second
	plan.Params.ComposeFiles = plan.ComposeFiles
	plan.Params.Version = Version
	if rel, err := filepath.Rel(o.Settings.Root, plan.LiveDir); err == nil {
		plan.Params.RunLoc = rel
	} else {
		plan.Params.RunLoc = plan.LiveDir
	}
	return plan, nil
}

// deadline bounds the start and the stop of a run
func (o *Orchestrator) deadline(p *Plan) time.Duration {
	return p.Duration + o.Settings.RunTimeoutGrace
}
