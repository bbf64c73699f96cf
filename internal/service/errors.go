package service

import "fmt"

// ServiceError records which service operation an unexpected failure came
// from. errors.Is and errors.As see through it to the cause.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
	}
	return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Op, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err with the service and operation it came from.
func NewServiceError(service, op string, err error) error {
	return &ServiceError{Service: service, Op: op, Err: err}
}
