package async

import (
	"errors"
	"fmt"
)

var (
	ErrNotTask    = errors.New("not a task type")
	ErrNotFuture  = errors.New("not a future type")
	ErrNilTask    = errors.New("nil task")
	ErrResultType = errors.New("future result has unexpected type")
)

// PanicError carries a panic recovered inside an asynchronous computation
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("async: panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
