package fetch

import (
	"fmt"
	"strings"
)

// ConfigError reports invalid download parameters.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "fetch: " + e.Reason
}

// ComposeError reports that the store rejected or failed a compose request.
// Objects carries the group members so the caller can retry just that group.
type ComposeError struct {
	Objects []string
	Err     error
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("fetch: compose group [%s]: %v", strings.Join(e.Objects, ", "), e.Err)
}

func (e *ComposeError) Unwrap() error {
	return e.Err
}

// DownloadError reports a failed object or composite download.
type DownloadError struct {
	Object string
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("fetch: download %s: %v", e.Object, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// SplitError reports that a downloaded composite's length does not match the
// group's recorded total, indicating store-side corruption or a planning
// bug. The composite is never split on mismatch.
type SplitError struct {
	Composite string
	Objects   []string
	Want      int64
	Got       int64
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("fetch: split %s: composite is %d bytes, group total is %d",
		e.Composite, e.Got, e.Want)
}

// CleanupWarning records a failed composite deletion. Cleanup is best-effort:
// a leaked temporary object is a cost, not a correctness, concern, so these
// are reported alongside the download results rather than failing them.
type CleanupWarning struct {
	Composite string
	Err       error
}

func (w CleanupWarning) String() string {
	return fmt.Sprintf("failed to delete composite %s: %v", w.Composite, w.Err)
}
