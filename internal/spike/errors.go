package spike

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a caller asks for a spike position
// outside a result or projection. It signals a caller defect, not a data
// condition: zero detected spikes and truncated statistic windows are both
// representable without error.
var ErrIndexOutOfRange = errors.New("spike index out of range")

// ConfigError reports an invalid DetectionConfig. Detection does not run
// when the config is invalid, so any previously published AnalysisResult
// stays untouched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("detection config: %s %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
