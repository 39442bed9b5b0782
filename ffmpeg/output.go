package ffmpeg

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

const maxLineBytes = 1 << 20

// Multiplexer drains the stdout and stderr of a subprocess concurrently.
// stdout carries `key=value` progress blocks terminated by a `progress=`
// line; everything else on stdout and all of stderr is diagnostic text.
//
// Start launches one goroutine per stream; Wait must be called before the
// collected logs or final block are considered complete.
type Multiplexer struct {
	// OnProgress receives each flushed block. Called from the stdout goroutine.
	OnProgress func(Progress)
	// Sink receives each diagnostic line as it is collected.
	Sink func(line string)

	wg       sync.WaitGroup
	mu       sync.Mutex
	logs     []string
	final    *Progress
	readErrs []error
}

func (m *Multiplexer) Start(stdout, stderr io.Reader) {
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.drainStdout(stdout)
	}()
	go func() {
		defer m.wg.Done()
		m.drainStderr(stderr)
	}()
}

// Wait blocks until both streams have been read to EOF (or failed).
func (m *Multiplexer) Wait() {
	m.wg.Wait()
}

// Logs returns a copy of the diagnostic lines collected so far.
func (m *Multiplexer) Logs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.logs...)
}

// Final returns the block flagged progress=end, if one was seen.
func (m *Multiplexer) Final() *Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.final
}

// ReadErrors returns the *StreamReadError values recorded while draining.
func (m *Multiplexer) ReadErrors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.readErrs...)
}

func (m *Multiplexer) drainStdout(r io.Reader) {
	block := map[string]string{}
	err := scanLines(r, func(line string) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return
		}
		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			m.record(trimmed)
			return
		}
		block[key] = value
		if key == "progress" {
			m.flush(block)
			block = map[string]string{}
		}
	})
	if err != nil {
		m.readFailed("stdout", err)
	}
}

func (m *Multiplexer) drainStderr(r io.Reader) {
	err := scanLines(r, func(line string) {
		m.record("[stderr] " + line)
	})
	if err != nil {
		m.readFailed("stderr", err)
	}
}

func (m *Multiplexer) flush(block map[string]string) {
	if len(block) == 0 {
		return
	}
	p := ParseProgressBlock(block)
	if p.Done {
		m.mu.Lock()
		final := p
		m.final = &final
		m.mu.Unlock()
	}
	if m.OnProgress != nil {
		m.OnProgress(p)
	}
}

func (m *Multiplexer) record(line string) {
	m.mu.Lock()
	m.logs = append(m.logs, line)
	m.mu.Unlock()
	if m.Sink != nil {
		m.Sink(line)
	}
}

func (m *Multiplexer) readFailed(stream string, err error) {
	readErr := &StreamReadError{Stream: stream, Err: err}
	m.mu.Lock()
	m.readErrs = append(m.readErrs, readErr)
	m.mu.Unlock()
	m.record(readErr.Error())
}

// scanLines calls fn for every line of r. On a read error the remainder of r
// is discarded so the writer never blocks on a full pipe.
func scanLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fn(strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}
