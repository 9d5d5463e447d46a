package model

import (
	"fmt"
	"math"
)

// IntParam converts a hyperparameter value to int. Whole floats are accepted since
// grids decoded from JSON or YAML carry numbers as float64. nil maps to 0, the
// "unlimited" value of depth-like parameters.
func IntParam(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("parameter %s: expected integer, got %T(%v)", name, value, value)
}

// FloatParam converts a hyperparameter value to float64.
func FloatParam(name string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("parameter %s: expected number, got %T(%v)", name, value, value)
}

// StringParam converts a hyperparameter value to string.
func StringParam(name string, value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("parameter %s: expected string, got %T(%v)", name, value, value)
}
