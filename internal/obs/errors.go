package obs

import "fmt"

// ConnectionError means the control socket could not be opened or
// authentication was rejected.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("obs connection failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("obs connection failed: %s", e.Reason)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ControlError means OBS rejected or failed a command. The Message carries
// the control-socket failure verbatim; retry policy belongs to the caller.
type ControlError struct {
	Request string
	Message string
	Timeout bool
}

func (e *ControlError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("obs request %s timed out", e.Request)
	}
	return fmt.Sprintf("obs request %s failed: %s", e.Request, e.Message)
}
