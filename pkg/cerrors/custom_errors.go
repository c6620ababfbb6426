package cerrors

import "github.com/palantir/stacktrace"

type ErrorType string

const (
	ErrorTypeNonUserFriendly      ErrorType = "NON_USER_FRIENDLY_ERROR"
	ErrorTypeGeneric              ErrorType = "GENERIC_ERROR"
	ErrorTypeConfig               ErrorType = "CONFIG_ERROR"
	ErrorTypeInvalidComponent     ErrorType = "INVALID_COMPONENT_ERROR"
	ErrorTypeUnsupportedAttack    ErrorType = "UNSUPPORTED_ATTACK_ERROR"
	ErrorTypeSetup                ErrorType = "SETUP_ERROR"
	ErrorTypeTeardown             ErrorType = "TEARDOWN_ERROR"
	ErrorTypeNoData               ErrorType = "NO_DATA_ERROR"
	ErrorTypeConversion           ErrorType = "CONVERSION_ERROR"
	ErrorTypeMetric               ErrorType = "METRIC_ERROR"
	ErrorTypeCalibrationExhausted ErrorType = "CALIBRATION_EXHAUSTED_ERROR"
	ErrorTypeTimeout              ErrorType = "TIMEOUT"
)

type userFriendly interface {
	UserFriendly() bool
	ErrorType() ErrorType
}

// IsUserFriendly returns true if err is marked as safe to present to the operator
func IsUserFriendly(err error) bool {
	ufe, ok := err.(userFriendly)
	return ok && ufe.UserFriendly()
}

// GetErrorType returns the type of error if the error is user-friendly
func GetErrorType(err error) ErrorType {
	if ufe, ok := err.(userFriendly); ok {
		return ufe.ErrorType()
	}
	return ErrorTypeNonUserFriendly
}

// GetRootCauseAndErrorCode unwraps the stacktrace chain and returns the
// innermost message along with its error type
func GetRootCauseAndErrorCode(err error) (string, ErrorType) {
	rootCause := stacktrace.RootCause(err)
	errorType := GetErrorType(rootCause)
	if !IsUserFriendly(rootCause) {
		return err.Error(), errorType
	}
	return rootCause.Error(), errorType
}

// IsType reports whether the root cause of err carries the given error type
func IsType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	return GetErrorType(stacktrace.RootCause(err)) == errorType
}
