// Package frames extracts still frames from video files at fixed
// intervals using the system ffmpeg and ffprobe binaries.
package frames

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultInterval is the spacing between sampled frames.
const DefaultInterval = 10 * time.Second

// Frame is a single still image lifted from a video.
type Frame struct {
	// Timestamp is the frame position in seconds from the start.
	Timestamp float64
	// Data is the encoded JPEG image.
	Data []byte
}

// Sampler extracts representative frames from a video file.
type Sampler interface {
	// Sample returns frames taken every interval across the video
	// duration. A video that cannot be opened yields an empty slice,
	// not an error.
	Sample(ctx context.Context, path string, interval time.Duration) ([]Frame, error)
}

// FFmpegSampler shells out to ffmpeg/ffprobe for frame extraction.
type FFmpegSampler struct {
	// For testing: override command execution
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
	lookPath    func(file string) (string, error)
}

// NewFFmpegSampler creates a sampler backed by the system ffmpeg tools.
func NewFFmpegSampler() *FFmpegSampler {
	return &FFmpegSampler{
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
	}
}

// Available reports whether both ffmpeg and ffprobe are on PATH.
func (s *FFmpegSampler) Available() bool {
	if _, err := s.lookPath("ffmpeg"); err != nil {
		return false
	}
	if _, err := s.lookPath("ffprobe"); err != nil {
		return false
	}
	return true
}

// Sample probes the video duration and grabs one frame per interval,
// starting at zero. Frames the decoder cannot produce are skipped.
func (s *FFmpegSampler) Sample(ctx context.Context, path string, interval time.Duration) ([]Frame, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	duration, err := s.probeDuration(ctx, path)
	if err != nil {
		slog.Warn("video probe failed, skipping frames",
			"path", path,
			"error", err)
		return []Frame{}, nil
	}

	step := interval.Seconds()
	frames := make([]Frame, 0, int(duration/step)+1)
	for i := 0; ; i++ {
		// Multiply rather than accumulate so rounding error cannot
		// drift the sample points for long videos.
		ts := float64(i) * step
		if ts >= duration {
			break
		}
		data, err := s.extractFrame(ctx, path, ts)
		if err != nil {
			if ctx.Err() != nil {
				return frames, ctx.Err()
			}
			slog.Warn("frame extraction failed",
				"path", path,
				"timestamp", ts,
				"error", err)
			continue
		}
		frames = append(frames, Frame{Timestamp: ts, Data: data})
	}

	return frames, nil
}

// probeDuration derives the video duration from the stream's frame
// count and frame rate. Containers that do not report a frame count
// fall back to the container duration.
func (s *FFmpegSampler) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := s.execCommand(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_frames,r_frame_rate",
		"-of", "json",
		path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var probe struct {
		Streams []struct {
			FrameRate string `json:"r_frame_rate"`
			Frames    string `json:"nb_frames"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return 0, fmt.Errorf("unparseable ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return 0, fmt.Errorf("no video stream in %s", path)
	}

	stream := probe.Streams[0]
	frames, ferr := strconv.ParseFloat(stream.Frames, 64)
	rate, rerr := parseFrameRate(stream.FrameRate)
	if ferr != nil || rerr != nil || frames <= 0 || rate <= 0 {
		slog.Debug("frame count unavailable, using container duration",
			"path", path,
			"nb_frames", stream.Frames,
			"r_frame_rate", stream.FrameRate)
		return s.probeContainerDuration(ctx, path)
	}
	return frames / rate, nil
}

// probeContainerDuration reads format=duration as a fallback.
func (s *FFmpegSampler) probeContainerDuration(ctx context.Context, path string) (float64, error) {
	cmd := s.execCommand(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	raw := strings.TrimSpace(stdout.String())
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q: %w", raw, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %f", duration)
	}
	return duration, nil
}

// parseFrameRate parses ffprobe's rational rate form, e.g. "30000/1001".
func parseFrameRate(raw string) (float64, error) {
	num, den, found := strings.Cut(raw, "/")
	if !found {
		return strconv.ParseFloat(raw, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in frame rate %q", raw)
	}
	return n / d, nil
}

// extractFrame decodes a single JPEG frame at the given offset.
func (s *FFmpegSampler) extractFrame(ctx context.Context, path string, ts float64) ([]byte, error) {
	cmd := s.execCommand(ctx, "ffmpeg",
		"-v", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no image data at %.3fs", ts)
	}
	return stdout.Bytes(), nil
}
