package trader

import "fmt"

// InputError is a malformed operator argument. It is raised before anything
// is sent to the venue.
type InputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func inputErr(field, value, format string, args ...interface{}) error {
	return &InputError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// InvariantViolation aborts an intent whose preconditions do not hold, such
// as a reduce-only leg with no open position.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return "invariant violated: " + e.Msg
}

// OrderRejected is a per-order error status. Other orders in the same batch
// may have succeeded.
type OrderRejected struct {
	Step  string
	Index int
	Msg   string
}

func (e *OrderRejected) Error() string {
	return fmt.Sprintf("%s: order %d rejected: %s", e.Step, e.Index, e.Msg)
}
