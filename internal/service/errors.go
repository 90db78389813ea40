package service

import "fmt"

// ValidationError marks malformed or out-of-range input. Controllers
// map it to HTTP 400; store sentinels (not found, duplicate,
// insufficient credits) pass through from the repository package.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
