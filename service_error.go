package main

import "fmt"

// ServiceError attaches the failing service and operation to an error.
type ServiceError struct {
	Service   string
	Operation string
	Err       error
}

// Error formats as "[Service.Operation] message".
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s.%s] %v", e.Service, e.Operation, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WrapError returns nil for a nil err.
func WrapError(service, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Operation: operation, Err: err}
}
