package suts

import (
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/types"
)

const (
	// ApacheWPName is the registry identifier of the apache wordpress server
	ApacheWPName = "mw_apache_wp"

	RunDurationKey = "run_duration"
	MaxClientsKey  = "max_clients"
)

// ApacheWP is a wordpress site served by apache
type ApacheWP struct {
	components.Base
}

// NewApacheWP loads the mw_apache_wp configuration
func NewApacheWP(store *components.Store) (components.Component, error) {
	base, err := components.NewBase(store, components.SUTKind, ApacheWPName)
	if err != nil {
		return nil, err
	}
	return &ApacheWP{Base: base}, nil
}

// Project sets CURR_RUN_DURATION and CURR_MAX_CLIENTS
func (a *ApacheWP) Project(ec *types.ExecutionContext) error {
	if err := a.Require(ec, "CURR_RUN_DURATION", a.Config(), RunDurationKey); err != nil {
		return err
	}
	return a.Require(ec, "CURR_MAX_CLIENTS", a.Config(), MaxClientsKey)
}

// RunDuration returns the run duration in seconds
func (a *ApacheWP) RunDuration() (int, error) {
	d, err := a.Config().Int(RunDurationKey)
	if err != nil {
		return 0, cerrors.Setup{Target: a.Name(), Reason: err.Error()}
	}
	return d, nil
}

// SetRunDuration updates run_duration
func (a *ApacheWP) SetRunDuration(seconds int) error {
	return a.Config().Set(seconds, RunDurationKey)
}

// MaxClients returns the max_clients the run was started with
func (a *ApacheWP) MaxClients(params types.RunParams) (int, error) {
	if params.SUT == nil {
		return 0, cerrors.NoData{Target: params.RunLoc, Reason: "run parameters have no sut section"}
	}
	return params.SUT.Int(MaxClientsKey)
}

// SetMaxClients updates max_clients
func (a *ApacheWP) SetMaxClients(n int) error {
	return a.Config().Set(n, MaxClientsKey)
}
