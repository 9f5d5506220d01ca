package storage

import "errors"

var (
	// ErrJobNotFound is returned when a scheduled job is not found
	ErrJobNotFound = errors.New("scheduled job not found")

	// ErrInvalidTransition is returned when a status transition is attempted
	// on a job whose current status is not the expected predecessor
	ErrInvalidTransition = errors.New("invalid job status transition")
)
