package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

// Progress is one parsed `-progress` block emitted by the encoder.
type Progress struct {
	Seconds   float64           `json:"secondsDone"`
	Frame     *int64            `json:"frame"`
	FPS       *float64          `json:"fps"`
	Speed     string            `json:"speed,omitempty"`
	TotalSize *int64            `json:"totalSize"`
	Bitrate   string            `json:"bitrate,omitempty"`
	Done      bool              `json:"done"`
	Raw       map[string]string `json:"raw"`
}

var timecodePattern = regexp.MustCompile(`(\d+):(\d+):(\d+(?:\.\d+)?)`)

// ParseTimecode converts "HH:MM:SS[.ffffff]" into seconds. Anything it cannot
// read yields 0.
func ParseTimecode(s string) float64 {
	m := timecodePattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	hh, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	mm, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0
	}
	ss, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0
	}
	return hh*3600 + mm*60 + ss
}

// ParseProgressBlock turns the key/value pairs of one progress cycle into a
// Progress. The block is copied into Raw.
func ParseProgressBlock(block map[string]string) Progress {
	raw := make(map[string]string, len(block))
	for k, v := range block {
		raw[k] = v
	}

	p := Progress{
		Speed:   strings.TrimSpace(block["speed"]),
		Bitrate: strings.TrimSpace(block["bitrate"]),
		Done:    strings.TrimSpace(block["progress"]) == "end",
		Raw:     raw,
	}

	if outTime, ok := block["out_time"]; ok && outTime != "" {
		p.Seconds = ParseTimecode(outTime)
	} else if outTimeMs, ok := block["out_time_ms"]; ok && outTimeMs != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(outTimeMs), 64); err == nil {
			p.Seconds = v / 1000
		}
	}

	if v, err := strconv.ParseInt(strings.TrimSpace(block["frame"]), 10, 64); err == nil {
		p.Frame = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(block["fps"]), 64); err == nil {
		p.FPS = &v
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(block["total_size"]), 10, 64); err == nil {
		p.TotalSize = &v
	}
	return p
}
