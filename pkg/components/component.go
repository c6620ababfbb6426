package components

import (
	"github.com/twosixlabs/magicwand/pkg/capture"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// Kind is the closed set of component variants
type Kind int

const (
	AttackKind Kind = iota
	BenignKind
	SUTKind
	SensorKind
	GlobalKind
)

func (k Kind) String() string {
	switch k {
	case AttackKind:
		return "attack"
	case BenignKind:
		return "benign"
	case SUTKind:
		return "sut"
	case SensorKind:
		return "sensor"
	case GlobalKind:
		return "global"
	}
	return "unknown"
}

// Category is the components-root folder holding the configuration documents of the kind
func (k Kind) Category() string {
	switch k {
	case AttackKind:
		return "attacks"
	case BenignKind:
		return "benign"
	case SUTKind:
		return "suts"
	case SensorKind:
		return "sensors"
	}
	return ""
}

// ComposeFileKey is the configuration key naming the workload descriptor of a component
const ComposeFileKey = "compose-file"

// VerifyInput is handed to every component after a run
type VerifyInput struct {
	RunDir  string
	Records []capture.Record
	// Roles maps every known IP to its role: attack, client, rtt or sut
	Roles map[string]string
}

// IPsWithRole returns the IPs mapped to role in map order
func (v VerifyInput) IPsWithRole(role string) []string {
	var ips []string
	for ip, r := range v.Roles {
		if r == role {
			ips = append(ips, ip)
		}
	}
	return ips
}

// Component is the capability contract shared by every experiment component
type Component interface {
	Name() string
	Kind() Kind
	Config() types.Document
	SetConfig(doc types.Document)
	// Project writes the component configuration into the run execution context
	Project(ec *types.ExecutionContext) error
	ComposeFile() (string, error)
	Verify(in VerifyInput) (bool, error)
	// Save persists the current configuration document
	Save() error

	sealed()
}

// Calibratable is implemented by attacks that support the calibration loop
type Calibratable interface {
	Component
	CalibrationData(runDir string) (*types.MetricBundle, error)
	ThreadCount(params types.RunParams) (int, error)
	SetThreadCount(n int) error
}

// Base carries the state shared by all components
type Base struct {
	name   string
	kind   Kind
	config types.Document
	store  *Store
}

// NewBase loads the configuration document of the component from the store,
// the global verifier has no document
func NewBase(store *Store, kind Kind, name string) (Base, error) {
	b := Base{name: name, kind: kind, store: store, config: types.Document{}}
	if kind == GlobalKind {
		return b, nil
	}
	doc, err := store.Load(kind.Category(), name)
	if err != nil {
		return b, err
	}
	b.config = doc
	return b, nil
}

func (b *Base) Name() string { return b.name }

func (b *Base) Kind() Kind { return b.kind }

func (b *Base) Config() types.Document { return b.config }

func (b *Base) SetConfig(doc types.Document) { b.config = doc }

func (b *Base) Store() *Store { return b.store }

func (b *Base) sealed() {}

// ComposeFile returns the workload descriptor of the component
func (b *Base) ComposeFile() (string, error) {
	f, err := b.config.String(ComposeFileKey)
	if err != nil {
		return "", cerrors.Setup{Target: b.name, Reason: err.Error()}
	}
	return f, nil
}

// Verify passes by default
func (b *Base) Verify(VerifyInput) (bool, error) {
	return true, nil
}

// Save writes the configuration back to the store
func (b *Base) Save() error {
	if b.kind == GlobalKind {
		return nil
	}
	return b.store.Save(b.kind.Category(), b.name, b.config)
}

// Section returns a nested options object, failing the projection when absent
func (b *Base) Section(key string) (types.Document, error) {
	sec, ok := b.config.Section(key)
	if !ok {
		return nil, cerrors.Setup{Target: b.name, Reason: "'" + key + "' is a required field"}
	}
	return sec, nil
}

// Require projects a mandatory key into the execution context
func (b *Base) Require(ec *types.ExecutionContext, name string, doc types.Document, path ...string) error {
	v, err := doc.String(path...)
	if err != nil {
		return cerrors.Setup{Target: b.name, Reason: err.Error() + ", it is a required field"}
	}
	ec.Set(name, v)
	return nil
}

// Optional projects a key into the execution context, falling back to def
func (b *Base) Optional(ec *types.ExecutionContext, name, def string, doc types.Document, path ...string) {
	ec.Set(name, doc.StringOr(def, path...))
}

// ClientScaled is implemented by benign generators whose client count is tuned during calibration
type ClientScaled interface {
	Component
	ClientCount(params types.RunParams) (int, error)
	SetClientCount(n int) error
}

// ServerTuned is implemented by systems under test
type ServerTuned interface {
	Component
	RunDuration() (int, error)
	SetRunDuration(seconds int) error
	MaxClients(params types.RunParams) (int, error)
	SetMaxClients(n int) error
}
