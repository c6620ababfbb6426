package sensors

import (
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/types"
)

// RTTSensorName is the registry identifier of the round trip time sensor
const RTTSensorName = "mw_rtt_sensor"

// RTTSensor probes the server and records rtt_stats.csv
type RTTSensor struct {
	components.Base
}

// NewRTTSensor loads the mw_rtt_sensor configuration
func NewRTTSensor(store *components.Store) (components.Component, error) {
	base, err := components.NewBase(store, components.SensorKind, RTTSensorName)
	if err != nil {
		return nil, err
	}
	return &RTTSensor{Base: base}, nil
}

// Project sets RTT_TIMEOUT
func (s *RTTSensor) Project(ec *types.ExecutionContext) error {
	return s.Require(ec, "RTT_TIMEOUT", s.Config(), "timeout")
}
