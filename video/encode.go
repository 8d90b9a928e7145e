package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"captionkit/logger"
)

// Codec is one rung of the encoder fallback ladder.
type Codec struct {
	Name string
	// Args are the video codec arguments; empty lets ffmpeg pick its default.
	Args []string
}

// DefaultLadder tries high quality H.264, then MPEG-4 Part 2, then whatever
// ffmpeg defaults to for the container.
var DefaultLadder = []Codec{
	{Name: "h264-high", Args: []string{"-c:v", "libx264", "-preset", "medium", "-crf", "18", "-maxrate", "8M", "-bufsize", "16M", "-pix_fmt", "yuv420p"}},
	{Name: "mpeg4", Args: []string{"-c:v", "mpeg4", "-q:v", "5", "-pix_fmt", "yuv420p"}},
	{Name: "default"},
}

// Job describes one caption burn-in.
type Job struct {
	Input string
	// Overlay is a PNG placed at the bottom-left of the (padded) frame.
	Overlay string
	Output  string
	// PadBottom adds a band of this many pixels under the frame.
	PadBottom int
	// HasAudio maps the first source audio stream into the output.
	HasAudio bool
}

// Encoder runs a Job with one codec.
type Encoder interface {
	Encode(ctx context.Context, job Job, codec Codec) error
}

// FFmpeg encodes with the ffmpeg binary.
type FFmpeg struct {
	// Binary defaults to "ffmpeg".
	Binary string
}

// BuildArgs returns the ffmpeg argument list for job and codec.
func BuildArgs(job Job, codec Codec) []string {
	pad := job.PadBottom
	if pad%2 != 0 {
		pad++ // yuv420p needs even dimensions
	}

	filter := "[0:v][1:v]overlay=0:main_h-overlay_h[out]"
	if pad > 0 {
		filter = "[0:v]pad=iw:ih+" + strconv.Itoa(pad) + ":0:0:color=black[base];" +
			"[base][1:v]overlay=0:main_h-overlay_h[out]"
	}

	args := []string{
		"-y",
		"-i", job.Input,
		"-i", job.Overlay,
		"-filter_complex", filter,
		"-map", "[out]",
	}
	if job.HasAudio {
		args = append(args, "-map", "0:a:0", "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	args = append(args, codec.Args...)
	args = append(args, "-movflags", "+faststart", job.Output)
	return args
}

// Encode runs ffmpeg and removes partial output on failure.
func (f FFmpeg) Encode(ctx context.Context, job Job, codec Codec) error {
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, BuildArgs(job, codec)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(job.Output)
		return fmt.Errorf("ffmpeg error: %w\nOutput: %s", err, tail(output, 2048))
	}
	return nil
}

// EncodeWithLadder tries each codec in order and returns the first that works.
// The returned error joins every rung's failure.
func EncodeWithLadder(ctx context.Context, enc Encoder, job Job, ladder []Codec, log *logger.Logger) (Codec, error) {
	log = logger.OrNop(log)
	if len(ladder) == 0 {
		return Codec{}, errors.New("no codecs to try")
	}

	var errs []error
	for _, codec := range ladder {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := enc.Encode(ctx, job, codec)
		if err == nil {
			if len(errs) > 0 {
				log.Info("encoded with fallback codec", "codec", codec.Name, "failedRungs", len(errs))
			}
			return codec, nil
		}
		log.Warn("codec failed, trying next", "codec", codec.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", codec.Name, err))
	}
	return Codec{}, errors.Join(errs...)
}

func tail(b []byte, n int) string {
	if len(b) > n {
		return "..." + string(b[len(b)-n:])
	}
	return string(b)
}
