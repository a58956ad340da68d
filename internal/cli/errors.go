package cli

import "errors"

// Error variables for CLI commands.
var (
	ErrTaskRequired   = errors.New("task name is required")
	ErrJobRequired    = errors.New("job name is required")
	ErrValueRequired  = errors.New("job state value is required")
	ErrInvalidTask    = errors.New("invalid task name")
	ErrInvalidJSON    = errors.New("job state is not valid JSON")
	ErrJobNotFound    = errors.New("job not found")
	ErrPathNotFound   = errors.New("path not found in job state")
	ErrUnknownCommand = errors.New("unknown command")
	ErrTooManyArgs    = errors.New("too many arguments")
)
