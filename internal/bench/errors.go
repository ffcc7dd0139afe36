// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bench

import (
	"errors"
	"fmt"
)

// Sentinel causes carried inside a ConversionError or RunError.
var (
	ErrTimeout             = errors.New("conversion timed out")
	ErrHandleBusy          = errors.New("extractor still running a timed-out conversion")
	ErrEmptyOutput         = errors.New("engine produced empty markdown")
	ErrNoSuccessfulSamples = errors.New("no successful samples")
)

// InputError reports an unreadable PDF. It is raised before any extractor
// is built.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// InitializationError reports an engine that failed to set up or to build
// an extractor. The run aborts; no partial set of extractors is used.
type InitializationError struct {
	Engine string
	// Handle is the extractor ID, or -1 for engine-wide setup.
	Handle int
	Err    error
}

func (e *InitializationError) Error() string {
	if e.Handle < 0 {
		return fmt.Sprintf("setting up engine %s: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("building extractor %d for engine %s: %v", e.Handle, e.Engine, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// ConversionError is the failure of a single sample. Other samples and
// other handles are unaffected.
type ConversionError struct {
	Engine    string
	Handle    int
	Iteration int
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s extractor %d iteration %d: %v", e.Engine, e.Handle, e.Iteration, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// TracerMisuseError reports a memory tracer started twice or stopped
// without being started.
type TracerMisuseError struct {
	Op  string
	Err error
}

func (e *TracerMisuseError) Error() string {
	return fmt.Sprintf("memory tracer %s: %v", e.Op, e.Err)
}

func (e *TracerMisuseError) Unwrap() error { return e.Err }

// RunError reports a run in which no sample succeeded.
type RunError struct {
	Engine   string
	Failures int
	// Err is ErrNoSuccessfulSamples joined with the first sample error.
	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("engine %s: all %d conversions failed: %v", e.Engine, e.Failures, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
