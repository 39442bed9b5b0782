package ffmpeg

import "testing"

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:05:15.375000", 315.375},
		{"01:00:00", 3600},
		{"00:00:01.000000", 1},
		{"garbage", 0},
		{"", 0},
		{"12:34", 0},
	}
	for _, tc := range tests {
		if got := ParseTimecode(tc.in); got != tc.want {
			t.Fatalf("ParseTimecode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseProgressBlock(t *testing.T) {
	block := map[string]string{
		"frame":      "10",
		"fps":        "30",
		"out_time":   "00:00:01.000000",
		"speed":      "3.32x",
		"total_size": "4096",
		"bitrate":    "8374.4kbits/s",
		"progress":   "continue",
	}
	p := ParseProgressBlock(block)
	if p.Seconds != 1.0 {
		t.Fatalf("seconds = %v", p.Seconds)
	}
	if p.Frame == nil || *p.Frame != 10 {
		t.Fatalf("frame = %v", p.Frame)
	}
	if p.FPS == nil || *p.FPS != 30 {
		t.Fatalf("fps = %v", p.FPS)
	}
	if p.TotalSize == nil || *p.TotalSize != 4096 {
		t.Fatalf("total size = %v", p.TotalSize)
	}
	if p.Speed != "3.32x" || p.Bitrate != "8374.4kbits/s" {
		t.Fatalf("speed/bitrate = %q %q", p.Speed, p.Bitrate)
	}
	if p.Done {
		t.Fatal("continue block reported as done")
	}

	block["frame"] = "11"
	if p.Raw["frame"] != "10" {
		t.Fatal("raw block must be a copy")
	}
}

func TestParseProgressBlockFallsBackToMilliseconds(t *testing.T) {
	p := ParseProgressBlock(map[string]string{
		"out_time_ms": "2500",
		"total_size":  "N/A",
		"progress":    "end",
	})
	if p.Seconds != 2.5 {
		t.Fatalf("seconds = %v", p.Seconds)
	}
	if p.TotalSize != nil || p.Frame != nil || p.FPS != nil {
		t.Fatalf("expected absent numeric fields to be nil: %+v", p)
	}
	if !p.Done {
		t.Fatal("expected end block to be done")
	}
}
