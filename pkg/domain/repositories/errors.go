package repositories

import "errors"

// ErrNotFound is wrapped by repository lookups that find nothing
var ErrNotFound = errors.New("not found")
