package processing

import "errors"

// ErrQueueFull is returned when a task cannot be buffered.
var ErrQueueFull = errors.New("processing queue full")
