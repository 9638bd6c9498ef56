package engine

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"clip.mp4", "clip.mp4"},
		{`a/b\c:d.mp4`, "a_b_c_d.mp4"},
		{"my  cool   video.mp4", "my_cool_video.mp4"},
		{`what?<is>this|"file"*.ts`, "what__is_this___file__.ts"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("x", 300) + ".mp4"
	got := SanitizeFilename(long)
	if len(got) != 100 {
		t.Errorf("len = %d, want 100", len(got))
	}
}

func TestDescribeArtifactTransportStream(t *testing.T) {
	data := []byte{0x47, 0x40, 0x00, 0x10}
	info := DescribeArtifact(data)
	if info.Container != "MPEG-TS" {
		t.Errorf("container = %q, want MPEG-TS", info.Container)
	}
}

func TestDescribeArtifactGarbage(t *testing.T) {
	info := DescribeArtifact([]byte("not a media file"))
	if info.Container != "unknown" {
		t.Errorf("container = %q, want unknown", info.Container)
	}
}

func TestScaleDuration(t *testing.T) {
	tests := []struct {
		units, timescale uint64
		want             time.Duration
	}{
		{90000, 90000, time.Second},
		{135000, 90000, 1500 * time.Millisecond},
		// 30 hours at a 90kHz timescale; scaling to nanoseconds before
		// dividing would overflow int64.
		{9_720_000_000, 90000, 30 * time.Hour},
		{0, 90000, 0},
		{100, 0, 0},
	}
	for _, tt := range tests {
		if got := scaleDuration(tt.units, tt.timescale); got != tt.want {
			t.Errorf("scaleDuration(%d, %d) = %s, want %s", tt.units, tt.timescale, got, tt.want)
		}
	}
}
