package hls

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	streamInfTag = "#EXT-X-STREAM-INF:"
	extinfTag    = "#EXTINF:"
)

// StreamInf is one variant declared in a master manifest.
type StreamInf struct {
	Attributes Attributes
	URI        string // relative to the master manifest
	ID         string // path segment before the first '/'
}

// ParseMaster returns the variants of a master manifest in file order. A
// stream declaration not followed by a URI line is ignored.
func ParseMaster(r io.Reader) ([]StreamInf, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	var variants []StreamInf
	for i, line := range lines {
		if !strings.HasPrefix(line, streamInfTag) {
			continue
		}
		if i+1 >= len(lines) {
			break
		}
		uri := strings.TrimSpace(lines[i+1])
		if uri == "" || strings.HasPrefix(uri, "#") {
			continue
		}
		id, _, _ := strings.Cut(uri, "/")
		variants = append(variants, StreamInf{
			Attributes: ParseAttributes(strings.TrimPrefix(line, streamInfTag)),
			URI:        uri,
			ID:         id,
		})
	}
	return variants, nil
}

// VariantTotals aggregates the segments listed in a variant manifest.
type VariantTotals struct {
	DurationMs int64
	Bytes      int64 // segments plus the manifest itself
	Segments   []string
}

// SumVariant sums the EXTINF durations of a variant manifest and the sizes of
// its segments. Segment paths resolve against the manifest's directory. A
// segment that cannot be stat'ed counts as zero bytes; only an unreadable
// manifest is an error.
func SumVariant(manifestPath string) (VariantTotals, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return VariantTotals{}, err
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return VariantTotals{}, err
	}

	totals := VariantTotals{Bytes: statSize(manifestPath)}
	dir := filepath.Dir(manifestPath)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, extinfTag):
			value, _, _ := strings.Cut(strings.TrimPrefix(line, extinfTag), ",")
			sec, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err == nil && !math.IsNaN(sec) {
				totals.DurationMs += int64(math.Round(sec * 1000))
			}
		case line != "" && !strings.HasPrefix(line, "#"):
			totals.Segments = append(totals.Segments, line)
		}
	}

	for _, segment := range totals.Segments {
		path := segment
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, segment)
		}
		totals.Bytes += statSize(path)
	}
	return totals, nil
}

func statSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	return lines, scanner.Err()
}
