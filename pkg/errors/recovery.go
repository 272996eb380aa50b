package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered panic value into a fatal internal error
// carrying the stack trace.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	stackTrace := string(debug.Stack())
	return ErrInternal.
		WithCause(err).
		WithDetail("panic", true).
		WithDetail("stack_trace", stackTrace).
		AsFatal()
}

// Guard runs fn and turns a panic into an error.
func Guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverPanic(r)
		}
	}()

	fn()
	return nil
}

// IsPanic reports whether err was produced by RecoverPanic.
func IsPanic(err error) bool {
	appErr, ok := err.(*Error)
	if !ok {
		return false
	}
	panicked, _ := appErr.Details["panic"].(bool)
	return panicked
}
