package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Runner runs a media tool (ffmpeg or ffprobe) to completion.
type Runner struct {
	Binary string
}

func NewRunner(binary string) Runner {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return Runner{Binary: binary}
}

// Run runs the binary with the provided args and returns (stdout, stderr, error)
func (r Runner) Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	log.Debugln(r.Binary, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if err != nil {
		log.Errorf("%s error: %v: %s", r.Binary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// Version returns the first line of `<binary> -version`.
func (r Runner) Version(ctx context.Context) (string, error) {
	stdout, _, err := r.Run(ctx, "-version")
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(string(stdout), "\n")
	return strings.TrimSpace(first), nil
}
