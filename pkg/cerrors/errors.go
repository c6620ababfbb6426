package cerrors

import (
	"fmt"
	"sort"
	"strings"
)

// Error is the generic typed error used by helpers that only know the code
type Error struct {
	ErrorCode ErrorType
	Phase     string
	Target    string
	Reason    string
}

func (e Error) Error() string {
	msg := e.Reason
	if e.Target != "" {
		msg = fmt.Sprintf("{target: %s}, %s", e.Target, e.Reason)
	}
	if e.Phase == "" {
		return msg
	}
	return fmt.Sprintf("[%s]: %s", e.Phase, msg)
}

func (e Error) UserFriendly() bool {
	return true
}

func (e Error) ErrorType() ErrorType {
	return e.ErrorCode
}

type Generic struct {
	Phase  string
	Reason string
}

func (e Generic) Error() string {
	if e.Phase == "" {
		return e.Reason
	}
	return fmt.Sprintf("[%s]: %s", e.Phase, e.Reason)
}

func (e Generic) UserFriendly() bool {
	return true
}

func (e Generic) ErrorType() ErrorType {
	return ErrorTypeGeneric
}

// Config is returned when a run or component configuration is missing or malformed
type Config struct {
	Path   string
	Reason string
}

func (e Config) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid configuration, %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration '%s', %s", e.Path, e.Reason)
}

func (e Config) UserFriendly() bool {
	return true
}

func (e Config) ErrorType() ErrorType {
	return ErrorTypeConfig
}

// InvalidComponent is returned when an identifier is not registered in its namespace
type InvalidComponent struct {
	Namespace  string
	Identifier string
	Allowed    []string
}

func (e InvalidComponent) Error() string {
	allowed := append([]string(nil), e.Allowed...)
	sort.Strings(allowed)
	return fmt.Sprintf("invalid %s '%s', must be one of: %s", e.Namespace, e.Identifier, strings.Join(allowed, ", "))
}

func (e InvalidComponent) UserFriendly() bool {
	return true
}

func (e InvalidComponent) ErrorType() ErrorType {
	return ErrorTypeInvalidComponent
}

type UnsupportedAttack struct {
	Attack string
	Reason string
}

func (e UnsupportedAttack) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("attack '%s' does not support calibration", e.Attack)
	}
	return fmt.Sprintf("attack '%s' does not support calibration, %s", e.Attack, e.Reason)
}

func (e UnsupportedAttack) UserFriendly() bool {
	return true
}

func (e UnsupportedAttack) ErrorType() ErrorType {
	return ErrorTypeUnsupportedAttack
}

// Setup covers projection failures and workload launch failures
type Setup struct {
	Target string
	Reason string
}

func (e Setup) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("run setup failed, %s", e.Reason)
	}
	return fmt.Sprintf("run setup failed for '%s', %s", e.Target, e.Reason)
}

func (e Setup) UserFriendly() bool {
	return true
}

func (e Setup) ErrorType() ErrorType {
	return ErrorTypeSetup
}

type Teardown struct {
	Target string
	Reason string
}

func (e Teardown) Error() string {
	return fmt.Sprintf("failed to tear down run '%s', %s", e.Target, e.Reason)
}

func (e Teardown) UserFriendly() bool {
	return true
}

func (e Teardown) ErrorType() ErrorType {
	return ErrorTypeTeardown
}

type NoData struct {
	Target string
	Reason string
}

func (e NoData) Error() string {
	return fmt.Sprintf("no data collected for run '%s', %s", e.Target, e.Reason)
}

func (e NoData) UserFriendly() bool {
	return true
}

func (e NoData) ErrorType() ErrorType {
	return ErrorTypeNoData
}

type Conversion struct {
	Target string
	Reason string
}

func (e Conversion) Error() string {
	return fmt.Sprintf("flow conversion failed for '%s', %s", e.Target, e.Reason)
}

func (e Conversion) UserFriendly() bool {
	return true
}

func (e Conversion) ErrorType() ErrorType {
	return ErrorTypeConversion
}

// Metric is returned when a scalar cannot be derived from a metric table
type Metric struct {
	Metric string
	Reason string
}

func (e Metric) Error() string {
	return fmt.Sprintf("unable to compute '%s', %s", e.Metric, e.Reason)
}

func (e Metric) UserFriendly() bool {
	return true
}

func (e Metric) ErrorType() ErrorType {
	return ErrorTypeMetric
}

type CalibrationExhausted struct {
	Attack   string
	Attempts int
}

func (e CalibrationExhausted) Error() string {
	return fmt.Sprintf("calibration of '%s' did not converge after %d attempts", e.Attack, e.Attempts)
}

func (e CalibrationExhausted) UserFriendly() bool {
	return true
}

func (e CalibrationExhausted) ErrorType() ErrorType {
	return ErrorTypeCalibrationExhausted
}

// Timeout is returned when a start or stop step outlives its deadline
type Timeout struct {
	Operation string
	Target    string
	Deadline  string
}

func (e Timeout) Error() string {
	return fmt.Sprintf("%s of '%s' did not finish within %s", e.Operation, e.Target, e.Deadline)
}

func (e Timeout) UserFriendly() bool {
	return true
}

func (e Timeout) ErrorType() ErrorType {
	return ErrorTypeTimeout
}
