package transcode

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	dbtypes "github.com/davemarrero/learnhub-backend/pkg/db/types"
)

// ProbeResult is the subset of ffprobe output the pipeline cares about.
type ProbeResult struct {
	Duration float64
	Width    int
	Height   int
	FPS      float64
	Codec    string
	Bitrate  int64
	HasVideo bool
}

// VideoMetadata converts the probe into the shape stored on content meta.
func (p *ProbeResult) VideoMetadata() *dbtypes.VideoMetadata {
	return &dbtypes.VideoMetadata{
		Duration: p.Duration,
		Width:    p.Width,
		Height:   p.Height,
		FPS:      p.FPS,
		Codec:    p.Codec,
		Bitrate:  p.Bitrate,
	}
}

// Runner abstracts the ffmpeg/ffprobe binaries so the pipeline can be
// tested without media tooling installed.
type Runner interface {
	Probe(ctx context.Context, inputPath string) (*ProbeResult, error)
	TranscodeRendition(ctx context.Context, inputPath, outputPath string, rendition Rendition) error
	Thumbnail(ctx context.Context, inputPath, outputPath string) error
	Preview(ctx context.Context, inputPath, outputPath string, seconds int) error
}

// ExecRunner shells out to ffmpeg and ffprobe.
type ExecRunner struct {
	ffmpegPath  string
	ffprobePath string
}

// NewExecRunner verifies both binaries are resolvable before the worker
// starts pulling tasks.
func NewExecRunner(ffmpegPath, ffprobePath string) (*ExecRunner, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg not found at %q: %w", ffmpegPath, err)
	}
	if _, err := exec.LookPath(ffprobePath); err != nil {
		return nil, fmt.Errorf("ffprobe not found at %q: %w", ffprobePath, err)
	}
	return &ExecRunner{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}, nil
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

func (r *ExecRunner) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
	cmd := exec.CommandContext(ctx, r.ffprobePath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w; out=%s", err, string(out))
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	result.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	result.Bitrate, _ = strconv.ParseInt(probe.Format.BitRate, 10, 64)
	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		result.HasVideo = true
		result.Width = stream.Width
		result.Height = stream.Height
		result.Codec = stream.CodecName
		result.FPS = parseFrameRate(stream.AvgFrameRate)
		if result.FPS == 0 {
			result.FPS = parseFrameRate(stream.RFrameRate)
		}
		break
	}
	return result, nil
}

func (r *ExecRunner) TranscodeRendition(ctx context.Context, inputPath, outputPath string, rendition Rendition) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", rendition.Height),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-b:v", rendition.VideoBitrate,
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	}
	return r.runFFmpeg(ctx, args)
}

func (r *ExecRunner) Thumbnail(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-ss", "1",
		"-i", inputPath,
		"-vframes", "1",
		"-q:v", "2",
		outputPath,
	}
	return r.runFFmpeg(ctx, args)
}

func (r *ExecRunner) Preview(ctx context.Context, inputPath, outputPath string, seconds int) error {
	return r.runFFmpeg(ctx, previewArgs(inputPath, outputPath, seconds))
}

// previewArgs builds the low-bitrate preview encode: a fixed
// 1000k video / 64k audio clip rather than a quality-targeted one,
// so preview sizes stay predictable regardless of source complexity.
func previewArgs(inputPath, outputPath string, seconds int) []string {
	if seconds <= 0 {
		seconds = 10
	}
	return []string{
		"-y",
		"-i", inputPath,
		"-t", strconv.Itoa(seconds),
		"-vf", "scale=640:360",
		"-c:v", "libx264",
		"-preset", "medium",
		"-b:v", "1000k",
		"-c:a", "aac",
		"-b:a", "64k",
		"-movflags", "+faststart",
		outputPath,
	}
}

func (r *ExecRunner) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w; out=%s", err, truncateOutput(string(out)))
	}
	return nil
}

// parseFrameRate handles ffprobe's rational form, e.g. "30000/1001".
func parseFrameRate(raw string) float64 {
	if raw == "" || raw == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(raw, "/")
	if !found {
		fps, _ := strconv.ParseFloat(raw, 64)
		return fps
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// ffmpeg can emit megabytes of log on a long encode; keep the tail,
// which is where the actual error lives.
func truncateOutput(out string) string {
	const keep = 2048
	if len(out) <= keep {
		return out
	}
	return "..." + out[len(out)-keep:]
}
