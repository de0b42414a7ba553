package analyses

import "errors"

// ErrNotFound is returned when an analysis does not exist for the caller.
var ErrNotFound = errors.New("not found")
