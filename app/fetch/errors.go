package fetch

import (
	"errors"
	"fmt"
)

var ErrPayloadTooLarge = errors.New("response exceeds size limit")

// ConfigurationError marks a source that cannot be fetched as configured.
// It is never retried.
type ConfigurationError struct {
	Source string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for source %s: %s", e.Source, e.Reason)
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// TransientFetchError is what remains after the attempt budget is spent.
type TransientFetchError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Target, e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.Code, e.Status)
}
