package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const defaultCancelGrace = 5 * time.Second

// Encoder invokes the external encoding script as
// `<Script> <absolute input> <absolute output dir>`.
type Encoder struct {
	Script string
	// CancelGrace bounds how long Run keeps draining output after ctx is
	// done. Defaults to 5s.
	CancelGrace time.Duration
}

type EncodeOptions struct {
	OnProgress func(Progress)
	Sink       func(line string)
}

type EncodeResult struct {
	OutputDir string
	Final     *Progress
	Logs      []string
}

// Run spawns the encoder and blocks until it exits and both of its output
// streams have been drained. The returned result carries the collected logs
// even when err is non-nil. A non-zero exit is an *EncodeInvocationError.
// Cancelling ctx kills the encoder's whole process group.
func (e Encoder) Run(ctx context.Context, input, outputDir string, opts EncodeOptions) (EncodeResult, error) {
	inPath, err := filepath.Abs(input)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("resolve input %s: %w", input, err)
	}
	outDir, err := filepath.Abs(outputDir)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("resolve output %s: %w", outputDir, err)
	}
	result := EncodeResult{OutputDir: outDir}

	log.Infoln(e.Script, strings.Join([]string{inPath, outDir}, " "))
	cmd := exec.CommandContext(ctx, e.Script, inPath, outDir)
	startInGroup(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return result, &EncodeInvocationError{Script: e.Script, ExitCode: -1, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return result, &EncodeInvocationError{Script: e.Script, ExitCode: -1, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return result, &EncodeInvocationError{Script: e.Script, ExitCode: -1, Err: err}
	}

	mux := &Multiplexer{OnProgress: opts.OnProgress, Sink: opts.Sink}
	mux.Start(stdout, stderr)
	grace := e.CancelGrace
	if grace <= 0 {
		grace = defaultCancelGrace
	}
	stopWatch := closeAfterCancel(ctx, grace, stdout, stderr)
	// the pipes close once both readers hit EOF; cmd.Wait must come after
	mux.Wait()
	stopWatch()
	waitErr := cmd.Wait()

	result.Final = mux.Final()
	result.Logs = mux.Logs()

	if waitErr != nil {
		invErr := &EncodeInvocationError{Script: e.Script, Started: true, ExitCode: -1, Err: waitErr}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			invErr.ExitCode = exitErr.ExitCode()
			invErr.Signal = signalName(exitErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			invErr.Err = fmt.Errorf("%w: %w", ctxErr, waitErr)
		}
		return result, invErr
	}
	return result, nil
}
