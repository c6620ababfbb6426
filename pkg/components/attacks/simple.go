package attacks

import (
	"sort"

	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/types"
	"github.com/twosixlabs/magicwand/pkg/utils/stringutils"
)

// SimpleNames are the attacks whose options are passed through to their containers as is
var SimpleNames = []string{"sockstress", "sht_rudeadyet", "sht_slowread", "sht_slowloris", "httpflood", "synflood"}

// Simple is an attack driven only by its attack_options
type Simple struct {
	components.Base
}

// NewSimple returns a constructor for the named pass-through attack
func NewSimple(name string) func(*components.Store) (components.Component, error) {
	return func(store *components.Store) (components.Component, error) {
		base, err := components.NewBase(store, components.AttackKind, name)
		if err != nil {
			return nil, err
		}
		return &Simple{Base: base}, nil
	}
}

// Project sets CURR_ATTACK_DURATION and CURR_DELAY, then every other scalar option as CURR_<KEY>
func (s *Simple) Project(ec *types.ExecutionContext) error {
	opts, err := s.Section(attackOptions)
	if err != nil {
		return err
	}
	if err := s.Require(ec, "CURR_ATTACK_DURATION", opts, "attack_duration"); err != nil {
		return err
	}
	s.Optional(ec, "CURR_DELAY", DefaultAttackDelay, opts, "attack_delay")

	keys := make([]string, 0, len(opts))
	for k := range opts {
		if k != "attack_duration" && k != "attack_delay" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, err := opts.String(k); err == nil {
			ec.Set(stringutils.EnvKey(k), v)
		}
	}
	return nil
}
