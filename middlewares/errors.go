package middlewares

import "fmt"

// PanicError carries a value recovered by Recover.
type PanicError struct {
	Value any
	// Stack is nil when stack capture is disabled.
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error, so errors.Is sees through panic(err).
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
