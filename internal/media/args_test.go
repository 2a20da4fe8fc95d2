package media

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestBuildDecodeArgs(t *testing.T) {
	args := buildDecodeArgs("/videos/in.mp4", 12.5, 30)

	want := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-ss", "12.500",
		"-i", "/videos/in.mp4",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-r", "30",
		"-an",
		"pipe:1",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("buildDecodeArgs = %v, want %v", args, want)
	}
}

func TestBuildEncodeArgs(t *testing.T) {
	cfg := RecorderConfig{
		Width:        1280,
		Height:       720,
		FPS:          30,
		VideoBitrate: 5_000_000,
	}
	args := buildEncodeArgs(cfg, "/out/.recording-1.webm")
	joined := strings.Join(args, " ")

	for _, part := range []string{
		"-f rawvideo",
		"-pix_fmt rgba",
		"-s 1280x720",
		"-r 30",
		"-i pipe:0",
		"-c:v libvpx",
		"-b:v 5000000",
		"-an",
	} {
		if !strings.Contains(joined, part) {
			t.Errorf("encode args missing %q in %q", part, joined)
		}
	}
	if args[len(args)-1] != "/out/.recording-1.webm" {
		t.Errorf("output path not last arg: %v", args)
	}
}

func TestBuildMuxArgsOrdersSpans(t *testing.T) {
	spans := []AudioSpan{
		{Start: 10, End: 12.5},
		{Start: 2, End: 4},
	}
	args := buildMuxArgs("/tmp/rec.webm", "/videos/in.mp4", spans, "/out/composed.webm")
	joined := strings.Join(args, " ")

	var filter string
	for i, a := range args {
		if a == "-filter_complex" {
			filter = args[i+1]
		}
	}
	if filter == "" {
		t.Fatalf("no -filter_complex in %v", args)
	}

	first := strings.Index(filter, "atrim=start=10.000:end=12.500")
	second := strings.Index(filter, "atrim=start=2.000:end=4.000")
	if first < 0 || second < 0 {
		t.Fatalf("filter missing trims: %q", filter)
	}
	if first > second {
		t.Errorf("spans reordered in filter: %q", filter)
	}
	if !strings.Contains(filter, "concat=n=2:v=0:a=1[aout]") {
		t.Errorf("filter missing concat: %q", filter)
	}
	for _, part := range []string{"-map 0:v", "-map [aout]", "-c:v copy", "-c:a libopus"} {
		if !strings.Contains(joined, part) {
			t.Errorf("mux args missing %q in %q", part, joined)
		}
	}
}

func TestBuildMuxArgsNoSpans(t *testing.T) {
	args := buildMuxArgs("/tmp/rec.webm", "/videos/in.mp4", nil, "/out/composed.webm")
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "filter_complex") {
		t.Errorf("expected no filter without spans: %q", joined)
	}
	if !strings.Contains(joined, "-an") {
		t.Errorf("expected silent output without spans: %q", joined)
	}
}

func TestLimitedWriterKeepsTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 8}

	lw.Write([]byte("abcdefgh"))
	lw.Write([]byte("12345678"))

	if got := buf.String(); got != "12345678" {
		t.Errorf("tail = %q, want last 8 bytes", got)
	}

	n, err := lw.Write([]byte("xy"))
	if err != nil || n != 2 {
		t.Errorf("Write = (%d, %v), want (2, nil)", n, err)
	}
	if got := buf.String(); got != "345678xy" {
		t.Errorf("tail after overflow = %q, want %q", got, "345678xy")
	}
}
