package rest

import "fmt"

// SyncError is the typed failure for any REST call: timeout, network error,
// or non-2xx status. The store is never touched on failure, so callers can
// retry the operation without repair work.
type SyncError struct {
	Op         string
	StatusCode int // zero when the failure happened before a response
	Err        error
}

func (e *SyncError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
