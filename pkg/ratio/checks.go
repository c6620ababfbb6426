package ratio

import (
	"fmt"
	"os"

	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"gopkg.in/yaml.v2"
)

// MetricKind names the scalar a check compares
type MetricKind string

const (
	RTTMean      MetricKind = "rtt_mean"
	MemMean      MetricKind = "mem_mean"
	TotalTraffic MetricKind = "total_traffic"
)

// Side is the run expected to show the higher weighted value
type Side string

const (
	AttackSide Side = "attack"
	ClientSide Side = "client"
)

// Check is one declarative ratio check
type Check struct {
	Kind        MetricKind `json:"check_type" yaml:"check_type"`
	AttackRatio float64    `json:"attack_ratio" yaml:"attack_ratio"`
	ClientRatio float64    `json:"client_ratio" yaml:"client_ratio"`
	DiffHigher  Side       `json:"diff_higher" yaml:"diff_higher"`
}

func (c Check) String() string {
	return fmt.Sprintf("%s(attack_ratio=%v, client_ratio=%v, diff_higher=%s)", c.Kind, c.AttackRatio, c.ClientRatio, c.DiffHigher)
}

// Validate rejects unknown metric kinds, sides and non-positive weights
func (c Check) Validate() error {
	switch c.Kind {
	case RTTMean, MemMean, TotalTraffic:
	default:
		return fmt.Errorf("unknown check_type '%s'", c.Kind)
	}
	if c.DiffHigher != AttackSide && c.DiffHigher != ClientSide {
		return fmt.Errorf("unknown diff_higher '%s' in %s check", c.DiffHigher, c.Kind)
	}
	if c.AttackRatio <= 0 || c.ClientRatio <= 0 {
		return fmt.Errorf("%s check ratios must be positive", c.Kind)
	}
	return nil
}

// CheckSet is the list of checks of one attack family, in evaluation order
type CheckSet struct {
	Attack string  `json:"attack" yaml:"attack"`
	Checks []Check `json:"checks" yaml:"checks"`
}

var defaultChecks = map[string]CheckSet{
	"apachekill": {
		Attack: "apachekill",
		Checks: []Check{
			{Kind: RTTMean, AttackRatio: 1, ClientRatio: 2, DiffHigher: AttackSide},
			{Kind: MemMean, AttackRatio: 1, ClientRatio: 1, DiffHigher: AttackSide},
			{Kind: TotalTraffic, AttackRatio: 1, ClientRatio: 1, DiffHigher: AttackSide},
		},
	},
}

// ChecksFor returns the built in checks of an attack family
func ChecksFor(attack string) (CheckSet, error) {
	set, ok := defaultChecks[attack]
	if !ok {
		return CheckSet{}, cerrors.UnsupportedAttack{Attack: attack, Reason: "no ratio checks defined"}
	}
	out := CheckSet{Attack: set.Attack, Checks: append([]Check(nil), set.Checks...)}
	return out, nil
}

// LoadChecks reads a check set from a YAML (or JSON) file
func LoadChecks(path string) (CheckSet, error) {
	var set CheckSet
	raw, err := os.ReadFile(path)
	if err != nil {
		return set, cerrors.Config{Path: path, Reason: err.Error()}
	}
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return set, cerrors.Config{Path: path, Reason: err.Error()}
	}
	if len(set.Checks) == 0 {
		return set, cerrors.Config{Path: path, Reason: "no checks defined"}
	}
	for _, c := range set.Checks {
		if err := c.Validate(); err != nil {
			return set, cerrors.Config{Path: path, Reason: err.Error()}
		}
	}
	return set, nil
}
