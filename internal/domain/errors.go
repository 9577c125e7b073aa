package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for model and network failures.
var (
	ErrConfiguration       = errors.New("invalid model configuration")
	ErrGraphIntegrity      = errors.New("dependency graph integrity violation")
	ErrUnclassifiedWeather = errors.New("weather value outside configured windows")
	ErrInvalidEvent        = errors.New("invalid weather event")
)

// ConfigurationError describes a model configuration problem detected before
// any event is processed.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// GraphIntegrityError reports a network whose edges do not form a tree rooted
// at node 0. Node and Edge are -1 when not applicable.
type GraphIntegrityError struct {
	Node   int
	Edge   int
	Reason string
}

func (e *GraphIntegrityError) Error() string {
	switch {
	case e.Edge >= 0 && e.Node >= 0:
		return fmt.Sprintf("graph integrity: edge %d, node %d: %s", e.Edge, e.Node, e.Reason)
	case e.Edge >= 0:
		return fmt.Sprintf("graph integrity: edge %d: %s", e.Edge, e.Reason)
	case e.Node >= 0:
		return fmt.Sprintf("graph integrity: node %d: %s", e.Node, e.Reason)
	default:
		return "graph integrity: " + e.Reason
	}
}

func (e *GraphIntegrityError) Unwrap() error { return ErrGraphIntegrity }
