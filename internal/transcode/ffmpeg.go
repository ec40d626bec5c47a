// Package transcode shells out to ffmpeg/ffprobe for duration probing and
// audio extraction.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type FFmpeg struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *FFmpeg {
	return &FFmpeg{log: log.With().Str("component", "transcode").Logger()}
}

// Probe returns the media duration of the file at path via ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output %q is not a duration: %w", stdout.String(), err)
	}

	d := time.Duration(seconds * float64(time.Second))
	f.log.Debug().Str("path", path).Dur("duration", d).Msg("probed media duration")
	return d, nil
}

// ExtractAudio converts the media file at src into an audio-only file at dst.
// The output container is picked by ffmpeg from dst's extension.
func (f *FFmpeg) ExtractAudio(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", src,
		"-vn",
		"-loglevel", "warning",
		dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced an empty file at %s", dst)
	}

	f.log.Debug().Str("src", src).Str("dst", dst).Msg("extracted audio")
	return nil
}
