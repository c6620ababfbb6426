package comparator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
)

// CompareFloat compares floating numbers for specific operation
// it check for the >=, >, <=, <, ==, != operators
func (model Model) CompareFloat(errorCode cerrors.ErrorType) error {

	obj := Float{}
	if err := obj.setValues(model.a, model.b); err != nil {
		return cerrors.Error{ErrorCode: errorCode, Target: model.target, Reason: err.Error()}
	}

	log.Debugf("[Compare]: {First value: %v}, {Second value: %v}, {Operator: %v}", obj.a, obj.b, model.operator)

	switch model.operator {
	case ">=":
		if !obj.isGreaterorEqual() {
			return cerrors.Error{ErrorCode: errorCode, Target: model.target, Reason: fmt.Sprintf("%v is not greater than or equal to %v", obj.a, obj.b)}
		}
	case "<=":
		if !obj.isLesserorEqual() {
			return cerrors.Error{ErrorCode: errorCode, Target: model.target, Reason: fmt.Sprintf("%v is not lesser than or equal to %v", obj.a, obj.b)}
		}
	case ">":
		if !obj.isGreater() {
			return cerrors.Error{ErrorCode: errorCode, Target: model.target, Reason: fmt.Sprintf("%v is not greater than %v", obj.a, obj.b)}
		}
	case "<":
		if !obj.isLesser() {
			return cerrors.Error{ErrorCode: errorCode, Target: model.target, Reason: fmt.Sprintf("%v is not lesser than %v", obj.a, obj.b)}
		}
	case "==":
		if !obj.isEqual() {
			return cerrors.Error{ErrorCode: errorCode, Target: model.target, Reason: fmt.Sprintf("%v is not equal to %v", obj.a, obj.b)}
		}
	case "!=":
		if !obj.isNotEqual() {
			return cerrors.Error{ErrorCode: errorCode, Target: model.target, Reason: fmt.Sprintf("%v should not match %v", obj.a, obj.b)}
		}
	default:
		return cerrors.Error{ErrorCode: errorCode, Target: model.target, Reason: fmt.Sprintf("criteria '%s' not supported", model.operator)}
	}
	return nil
}

// Float contains operands for float comparator check
type Float struct {
	a float64
	b float64
}

// setValues set the values inside Float struct
func (f *Float) setValues(a, b interface{}) error {
	var err error
	if f.a, err = toFloat(a); err != nil {
		return err
	}
	f.b, err = toFloat(b)
	return err
}

func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	}
	return 0, fmt.Errorf("unsupported operand %v of type %T", v, v)
}

// isGreater check for the first number should be greater than second number
func (f *Float) isGreater() bool {
	return f.a > f.b
}

// isGreaterorEqual check for the first number should be greater than or equals to the second number
func (f *Float) isGreaterorEqual() bool {
	return f.isGreater() || f.isEqual()
}

// isLesser check for the first number should be lesser than second number
func (f *Float) isLesser() bool {
	return f.a < f.b
}

// isLesserorEqual check for the first number should be less than or equals to the second number
func (f *Float) isLesserorEqual() bool {
	return f.isLesser() || f.isEqual()
}

// isEqual check for the first number should be equals to the second number
func (f *Float) isEqual() bool {
	return f.a == f.b
}

// isNotEqual check for the first number should be not equals to the second number
func (f *Float) isNotEqual() bool {
	return f.a != f.b
}
