package attacks

import (
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// GolorisName is the registry identifier of the goloris attack
const GolorisName = "goloris"

// Goloris holds connections open with slowly trickled headers
type Goloris struct {
	components.Base
}

// NewGoloris loads the goloris configuration
func NewGoloris(store *components.Store) (components.Component, error) {
	base, err := components.NewBase(store, components.AttackKind, GolorisName)
	if err != nil {
		return nil, err
	}
	return &Goloris{Base: base}, nil
}

// Project sets CURR_ATTACK_DURATION, CURR_WORKER_COUNT, CURR_RAMP_UP_INTERVAL and CURR_DELAY
func (g *Goloris) Project(ec *types.ExecutionContext) error {
	opts, err := g.Section(attackOptions)
	if err != nil {
		return err
	}
	if err := g.Require(ec, "CURR_ATTACK_DURATION", opts, "attack_duration"); err != nil {
		return err
	}
	if err := g.Require(ec, "CURR_WORKER_COUNT", opts, "worker_count"); err != nil {
		return err
	}
	if err := g.Require(ec, "CURR_RAMP_UP_INTERVAL", opts, "ramp_up_interval"); err != nil {
		return err
	}
	g.Optional(ec, "CURR_DELAY", DefaultAttackDelay, opts, "attack_delay")
	return nil
}
