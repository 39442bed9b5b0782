package hls

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const masterFixture = `#EXTM3U
#EXT-X-VERSION:7
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080,FRAME-RATE=30.000,CODECS="avc1.640028,mp4a.40.2"
1080p/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2"
720p/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=800000
#EXT-X-STREAM-INF:BANDWIDTH=500000
360p/index.m3u8
`

func TestParseMaster(t *testing.T) {
	streams, err := ParseMaster(strings.NewReader(masterFixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(streams) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(streams))
	}
	wantIDs := []string{"1080p", "720p", "360p"}
	for i, s := range streams {
		if s.ID != wantIDs[i] {
			t.Fatalf("variant %d id = %q, want %q", i, s.ID, wantIDs[i])
		}
	}
	if streams[1].URI != "720p/index.m3u8" {
		t.Fatalf("uri = %q", streams[1].URI)
	}
	if bw, _ := streams[2].Attributes.Int("BANDWIDTH"); bw != 500000 {
		t.Fatalf("declaration without URI must be skipped, got bandwidth %d", bw)
	}
}

func TestParseMasterCRLFAndTrailingDeclaration(t *testing.T) {
	input := "#EXTM3U\r\n#EXT-X-STREAM-INF:BANDWIDTH=1\r\na/index.m3u8\r\n#EXT-X-STREAM-INF:BANDWIDTH=2\r\n"
	streams, err := ParseMaster(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(streams) != 1 || streams[0].URI != "a/index.m3u8" {
		t.Fatalf("unexpected streams %+v", streams)
	}
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeVariant(t *testing.T, dir string, extinf []string, segments map[string]int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n#EXT-X-TARGETDURATION:2\n")
	names := make([]string, 0, len(extinf))
	for i, d := range extinf {
		name := "seg" + string(rune('0'+i)) + ".m4s"
		names = append(names, name)
		sb.WriteString("#EXTINF:" + d + ",\n" + name + "\n")
	}
	sb.WriteString("#EXT-X-ENDLIST\n")
	manifest := filepath.Join(dir, "index.m3u8")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(manifest, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if size, ok := segments[name]; ok {
			writeFile(t, filepath.Join(dir, name), size)
		}
	}
	return manifest
}

func TestSumVariant(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "0")
	manifest := writeVariant(t, dir, []string{"2.0", "2.0", "2.0"}, map[string]int{
		"seg0.m4s": 100, "seg1.m4s": 200, "seg2.m4s": 300,
	})
	info, err := os.Stat(manifest)
	if err != nil {
		t.Fatal(err)
	}

	totals, err := SumVariant(manifest)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if totals.DurationMs != 6000 {
		t.Fatalf("duration = %dms", totals.DurationMs)
	}
	if want := 600 + info.Size(); totals.Bytes != want {
		t.Fatalf("bytes = %d, want %d", totals.Bytes, want)
	}
	if len(totals.Segments) != 3 {
		t.Fatalf("segments = %v", totals.Segments)
	}
}

func TestSumVariantMissingSegmentsCountZero(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "v")
	manifest := writeVariant(t, dir, []string{"1.5", "0.25"}, map[string]int{"seg0.m4s": 50})
	info, _ := os.Stat(manifest)

	totals, err := SumVariant(manifest)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if totals.DurationMs != 1750 {
		t.Fatalf("duration = %dms", totals.DurationMs)
	}
	if totals.Bytes != 50+info.Size() {
		t.Fatalf("bytes = %d", totals.Bytes)
	}
}

func TestSumVariantMissingManifest(t *testing.T) {
	if _, err := SumVariant(filepath.Join(t.TempDir(), "nope.m3u8")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
