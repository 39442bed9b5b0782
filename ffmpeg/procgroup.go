package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// startInGroup puts cmd in its own process group and makes context
// cancellation kill the whole group, so children of a wrapper script die
// with it.
func startInGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid)
	}
}

func killGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// closeAfterCancel closes pipes once grace has passed after ctx is done,
// unblocking readers when a process outside the group still holds the write
// ends. The returned func stops the watch.
func closeAfterCancel(ctx context.Context, grace time.Duration, pipes ...io.Closer) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			log.Warnf("encoder output still open %s after cancellation, closing", grace)
			for _, p := range pipes {
				_ = p.Close()
			}
		}
	}()
	return func() { close(done) }
}

// signalName reports the signal that terminated the process, if any.
func signalName(exitErr *exec.ExitError) string {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return ""
	}
	return status.Signal().String()
}
