package observability

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a recovered panic converted into an error.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverPanic recovers from a panic and logs it with structured logging
//
// Usage in defer statements:
//
//	func riskyOperation() {
//	    defer observability.RecoverPanic(logger, "risky operation")
//	    // ... code that might panic
//	}
//
// After logging, the panic is NOT re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logPanic(logger, context, r, debug.Stack())
	}
}

// RecoverToError recovers from a panic, logs it, and stores it in *errp as a
// *PanicError. It must be deferred directly:
//
//	func check() (err error) {
//	    defer observability.RecoverToError(logger, "pairwise check", &err)
//	    ...
//	}
func RecoverToError(logger *Logger, context string, errp *error) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		logPanic(logger, context, r, stack)
		if errp != nil {
			*errp = &PanicError{Value: r, Stack: stack}
		}
	}
}

// MustRecover converts a recovered value into an error, or nil if r is nil.
func MustRecover(r interface{}) error {
	if r != nil {
		return &PanicError{Value: r}
	}
	return nil
}

func logPanic(logger *Logger, context string, r interface{}, stack []byte) {
	if logger == nil {
		return
	}
	logger.WithField("panic", fmt.Sprint(r)).
		WithField("stack", string(stack)).
		WithField("context", context).
		Error("PANIC recovered")
}
