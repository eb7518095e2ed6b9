package task

import "errors"

// Error kinds shared by the cache, the store clients and the reconciler.
var (
	ErrNotFound       = errors.New("task not found")
	ErrStore          = errors.New("task store")
	ErrCreationFailed = errors.New("no uuid in task store feedback")
	ErrDesync         = errors.New("updating a node with unknown position")
	ErrCycle          = errors.New("part-of cycle")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidDate    = errors.New("invalid date")
)
