package media

import (
	"math"
	"strings"
	"testing"
)

const sampleProbeJSON = `{
  "streams": [
    {
      "codec_type": "video",
      "codec_name": "h264",
      "width": 1280,
      "height": 720,
      "avg_frame_rate": "30000/1001"
    },
    {
      "codec_type": "audio",
      "codec_name": "aac",
      "sample_rate": "48000"
    }
  ],
  "format": {
    "duration": "42.500000",
    "bit_rate": "2500000"
  }
}`

func TestParseProbeOutput(t *testing.T) {
	result, err := parseProbeOutput(sampleProbeJSON)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if result.Duration != 42.5 {
		t.Errorf("duration = %v, want 42.5", result.Duration)
	}
	if result.Width != 1280 || result.Height != 720 {
		t.Errorf("size = %dx%d, want 1280x720", result.Width, result.Height)
	}
	if result.Codec != "h264" {
		t.Errorf("codec = %q, want h264", result.Codec)
	}
	if result.Bitrate != 2500000 {
		t.Errorf("bitrate = %d, want 2500000", result.Bitrate)
	}
	if result.AudioCodec != "aac" || result.AudioSample != 48000 {
		t.Errorf("audio = %s/%d, want aac/48000", result.AudioCodec, result.AudioSample)
	}
	if math.Abs(result.FrameRate-29.97) > 0.01 {
		t.Errorf("frame rate = %v, want ~29.97", result.FrameRate)
	}
}

func TestParseProbeOutputErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "not json",
			raw:     "ffprobe version n6.1",
			wantErr: "cannot parse",
		},
		{
			name:    "no duration",
			raw:     `{"streams":[{"codec_type":"video","width":640,"height":480}],"format":{}}`,
			wantErr: "no duration",
		},
		{
			name:    "audio only",
			raw:     `{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"10.0"}}`,
			wantErr: "no decodable video stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseProbeOutput(tt.raw)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseProbeOutputPicksFirstVideoStream(t *testing.T) {
	raw := `{
	  "streams": [
	    {"codec_type": "video", "codec_name": "vp8", "width": 640, "height": 360, "avg_frame_rate": "30/1"},
	    {"codec_type": "video", "codec_name": "mjpeg", "width": 320, "height": 240, "avg_frame_rate": "1/1"}
	  ],
	  "format": {"duration": "5.0"}
	}`
	result, err := parseProbeOutput(raw)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if result.Codec != "vp8" || result.Width != 640 {
		t.Errorf("picked stream %s %dx%d, want first (vp8 640x360)", result.Codec, result.Width, result.Height)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97002997002997},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"garbage/x", 0},
	}
	for _, tt := range tests {
		if got := parseFrameRate(tt.raw); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
