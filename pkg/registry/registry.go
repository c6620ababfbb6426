package registry

import (
	"sort"

	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/components/attacks"
	"github.com/twosixlabs/magicwand/pkg/components/benign"
	"github.com/twosixlabs/magicwand/pkg/components/global"
	"github.com/twosixlabs/magicwand/pkg/components/sensors"
	"github.com/twosixlabs/magicwand/pkg/components/suts"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// Constructor builds a component, loading its configuration from the store
type Constructor func(store *components.Store) (components.Component, error)

var namespaces = map[types.Namespace]map[string]Constructor{
	types.AttackNamespace: attackTable(),
	types.BenignNamespace: {
		benign.LocustName: benign.NewLocust,
	},
	types.SUTNamespace: {
		suts.ApacheWPName: suts.NewApacheWP,
	},
	types.RTTNamespace: {
		sensors.RTTSensorName: sensors.NewRTTSensor,
	},
}

func attackTable() map[string]Constructor {
	table := map[string]Constructor{
		attacks.ApachekillName: attacks.NewApachekill,
		attacks.GolorisName:    attacks.NewGoloris,
	}
	for _, name := range attacks.SimpleNames {
		table[name] = attacks.NewSimple(name)
	}
	return table
}

// Allowed returns the sorted identifiers registered in a namespace
func Allowed(ns types.Namespace) []string {
	names := make([]string, 0, len(namespaces[ns]))
	for name := range namespaces[ns] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that identifier is registered in ns without constructing it
func Validate(ns types.Namespace, identifier string) error {
	if _, ok := namespaces[ns][identifier]; !ok {
		return cerrors.InvalidComponent{Namespace: string(ns), Identifier: identifier, Allowed: Allowed(ns)}
	}
	return nil
}

// Resolve constructs the component registered under identifier in ns
func Resolve(store *components.Store, ns types.Namespace, identifier string) (components.Component, error) {
	ctor, ok := namespaces[ns][identifier]
	if !ok {
		return nil, cerrors.InvalidComponent{Namespace: string(ns), Identifier: identifier, Allowed: Allowed(ns)}
	}
	return ctor(store)
}

// Global returns the global verifier that runs after every run
func Global(store *components.Store) (components.Component, error) {
	return global.New(store)
}
