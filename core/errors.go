package core

import "fmt"

// ConfigurationError reports malformed topology, route, or schedule input.
// It is raised while building the simulation, before any tick runs; a
// simulation with a configuration error never starts.
type ConfigurationError struct {
	Subject string // the offending entity, e.g. a route or segment ID
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Subject, e.Reason)
}

func configErrorf(subject string, format string, args ...any) error {
	return &ConfigurationError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}

// StateError reports a violated interlocking invariant at runtime, e.g. a
// train confirming occupancy of a route it was never granted. It indicates
// a desync between the tracker and the engine. Processing of the affected
// train halts; other trains continue.
type StateError struct {
	Op     string
	Detail string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error in %s: %s", e.Op, e.Detail)
}

func stateErrorf(op string, format string, args ...any) error {
	return &StateError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
