package ffmpeg

import "fmt"

// EncodeInvocationError reports that the external encoder could not be
// started, was killed by a signal, or exited with a non-zero status.
// ExitCode is -1 unless the process exited normally.
type EncodeInvocationError struct {
	Script   string
	Started  bool
	ExitCode int
	Signal   string // set when the process was killed by a signal
	Err      error
}

func (e *EncodeInvocationError) Error() string {
	switch {
	case !e.Started:
		return fmt.Sprintf("%s failed to start: %v", e.Script, e.Err)
	case e.Signal != "":
		return fmt.Sprintf("%s killed by signal: %s", e.Script, e.Signal)
	case e.ExitCode < 0:
		return fmt.Sprintf("%s failed: %v", e.Script, e.Err)
	}
	return fmt.Sprintf("%s failed with exit code %d", e.Script, e.ExitCode)
}

func (e *EncodeInvocationError) Unwrap() error {
	return e.Err
}

// StreamReadError is recorded when one of the subprocess output streams
// cannot be read. It never fails the job on its own.
type StreamReadError struct {
	Stream string // "stdout" or "stderr"
	Err    error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("[%s read error] %v", e.Stream, e.Err)
}

func (e *StreamReadError) Unwrap() error {
	return e.Err
}

// ProbeError wraps a failed ffprobe invocation or an unparsable report.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffprobe %s: %v: %s", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("ffprobe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}
