package transcode

import (
	"strings"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"24", 24},
		{"", 0},
		{"0/0", 0},
		{"30/0", 0},
		{"garbage/1", 0},
	}
	for _, tc := range cases {
		if got := parseFrameRate(tc.raw); got != tc.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestTruncateOutputKeepsTail(t *testing.T) {
	short := "frame=  100"
	if truncateOutput(short) != short {
		t.Fatalf("short output must pass through unchanged")
	}

	long := strings.Repeat("x", 5000) + "TAIL"
	got := truncateOutput(long)
	if !strings.HasSuffix(got, "TAIL") {
		t.Fatalf("truncation must keep the tail")
	}
	if !strings.HasPrefix(got, "...") {
		t.Fatalf("truncated output should be marked")
	}
	if len(got) > 2048+3 {
		t.Fatalf("truncated output too long: %d", len(got))
	}
}

func TestLadderOrderAndShape(t *testing.T) {
	if len(Ladder) != 4 {
		t.Fatalf("expected 4 rungs, got %d", len(Ladder))
	}
	wantHeights := []int{1080, 720, 480, 360}
	for i, rendition := range Ladder {
		if rendition.Height != wantHeights[i] {
			t.Fatalf("rung %d: expected height %d, got %d", i, wantHeights[i], rendition.Height)
		}
		if rendition.Label == "" || rendition.VideoBitrate == "" || rendition.BitrateKbps <= 0 {
			t.Fatalf("rung %d incomplete: %+v", i, rendition)
		}
	}
}

func TestRenditionByLabel(t *testing.T) {
	r := RenditionByLabel("720p")
	if r == nil || r.Height != 720 {
		t.Fatalf("expected 720p rung, got %+v", r)
	}
	if r := RenditionByLabel("4k"); r != nil {
		t.Fatalf("unknown label must not resolve")
	}
}

func TestPreviewArgsUseFixedBitrates(t *testing.T) {
	args := previewArgs("in.mp4", "out.mp4", 0)

	joined := " " + strings.Join(args, " ") + " "
	for _, want := range []string{" -b:v 1000k ", " -b:a 64k ", " -t 10 "} {
		if !strings.Contains(joined, want) {
			t.Fatalf("preview args missing %q: %v", want, args)
		}
	}
	if strings.Contains(joined, "-crf") {
		t.Fatalf("preview encode must use fixed bitrates, not crf: %v", args)
	}
}

func TestProbeResultVideoMetadata(t *testing.T) {
	probe := &ProbeResult{Duration: 12.5, Width: 1280, Height: 720, FPS: 30, Codec: "h264", Bitrate: 2_000_000}
	meta := probe.VideoMetadata()
	if meta.Duration != 12.5 || meta.Height != 720 || meta.Codec != "h264" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}
