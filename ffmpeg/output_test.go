package ffmpeg

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
)

func TestMultiplexerRoutesProgressAndDiagnostics(t *testing.T) {
	stdout := strings.Join([]string{
		"frame=10",
		"fps=30",
		"out_time=00:00:01.000000",
		"progress=continue",
		"Writing master playlist",
		"",
		"frame=60",
		"out_time=00:00:02.000000",
		"progress=end",
	}, "\n")
	stderr := "Input #0, mov\r\nStream mapping:\n"

	var mu sync.Mutex
	var updates []Progress
	var sunk []string
	mux := &Multiplexer{
		OnProgress: func(p Progress) {
			mu.Lock()
			updates = append(updates, p)
			mu.Unlock()
		},
		Sink: func(line string) {
			mu.Lock()
			sunk = append(sunk, line)
			mu.Unlock()
		},
	}
	mux.Start(strings.NewReader(stdout), strings.NewReader(stderr))
	mux.Wait()

	if len(updates) != 2 {
		t.Fatalf("expected 2 progress updates, got %d", len(updates))
	}
	first := updates[0]
	if first.Seconds != 1.0 || *first.Frame != 10 || *first.FPS != 30 {
		t.Fatalf("unexpected first update: %+v", first)
	}
	if _, ok := updates[1].Raw["fps"]; ok {
		t.Fatal("blocks must not leak keys into the next block")
	}

	final := mux.Final()
	if final == nil || !final.Done || final.Seconds != 2.0 {
		t.Fatalf("unexpected final block: %+v", final)
	}

	logs := mux.Logs()
	if len(logs) != 3 || len(sunk) != 3 {
		t.Fatalf("expected 3 diagnostics, got logs=%v sunk=%v", logs, sunk)
	}
	want := map[string]bool{
		"Writing master playlist":  true,
		"[stderr] Input #0, mov":   true,
		"[stderr] Stream mapping:": true,
	}
	for _, line := range logs {
		if !want[line] {
			t.Fatalf("unexpected log line %q", line)
		}
	}
}

func TestMultiplexerSingleContinueBlock(t *testing.T) {
	var updates []Progress
	mux := &Multiplexer{OnProgress: func(p Progress) { updates = append(updates, p) }}
	mux.Start(strings.NewReader("frame=10\nfps=30\nout_time=00:00:01.000000\nprogress=continue\n"), strings.NewReader(""))
	mux.Wait()

	if len(updates) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(updates))
	}
	if mux.Final() != nil {
		t.Fatal("no end block was emitted")
	}
}

func TestMultiplexerRecordsReadErrors(t *testing.T) {
	boom := errors.New("pipe closed")
	mux := &Multiplexer{}
	mux.Start(io.MultiReader(strings.NewReader("frame=1\nprogress=continue\n"), iotest.ErrReader(boom)), iotest.ErrReader(boom))
	mux.Wait()

	readErrs := mux.ReadErrors()
	if len(readErrs) != 2 {
		t.Fatalf("expected 2 read errors, got %v", readErrs)
	}
	for _, err := range readErrs {
		var streamErr *StreamReadError
		if !errors.As(err, &streamErr) || !errors.Is(err, boom) {
			t.Fatalf("unexpected read error %v", err)
		}
	}

	logs := strings.Join(mux.Logs(), "\n")
	if !strings.Contains(logs, "[stdout read error] pipe closed") || !strings.Contains(logs, "[stderr read error] pipe closed") {
		t.Fatalf("read errors not logged: %q", logs)
	}
}
