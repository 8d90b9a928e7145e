// Package video wraps ffprobe and ffmpeg for probing and re-encoding clips.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Info holds metadata about a video file
type Info struct {
	Path       string
	Duration   time.Duration
	Width      int
	Height     int
	VideoCodec string
	HasVideo   bool
	HasAudio   bool
}

// Prober reads stream metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// FFprobe probes files with the ffprobe binary.
type FFprobe struct {
	// Binary defaults to "ffprobe".
	Binary string
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe retrieves stream information using ffprobe
func (p FFprobe) Probe(ctx context.Context, path string) (*Info, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "stream=codec_type,codec_name,width,height:format=duration",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	return ParseProbe(path, output)
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(path string, output []byte) (*Info, error) {
	var out probeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{Path: path}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = s.Width
			info.Height = s.Height
			info.VideoCodec = s.CodecName
		case "audio":
			info.HasAudio = true
		}
	}

	if d := strings.TrimSpace(out.Format.Duration); d != "" && d != "N/A" {
		dur, err := ParseTimestamp(d)
		if err != nil {
			return nil, fmt.Errorf("failed to parse duration: %w", err)
		}
		info.Duration = dur
	}
	return info, nil
}

// Decodable reports whether the probe found a usable video stream.
func (i *Info) Decodable() bool {
	return i != nil && i.HasVideo && i.Width > 0 && i.Height > 0
}

// FormatDuration formats a duration as HH:MM:SS
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// CheckFFmpeg checks if ffmpeg is installed
func CheckFFmpeg() error {
	cmd := exec.Command("ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found. Please install ffmpeg first")
	}
	return nil
}

// CheckFFprobe checks if ffprobe is installed
func CheckFFprobe() error {
	cmd := exec.Command("ffprobe", "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffprobe not found. Please install ffmpeg first")
	}
	return nil
}

var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
}

// IsVideoFile checks if a file has a video extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// ParseTimestamp parses a timestamp string into a duration
// Supports formats: HH:MM:SS, MM:SS, or decimal seconds
func ParseTimestamp(ts string) (time.Duration, error) {
	ts = strings.TrimSpace(ts)

	if secs, err := strconv.ParseFloat(ts, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}

	parts := strings.Split(ts, ":")
	switch len(parts) {
	case 2:
		mins, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid minutes: %s", parts[0])
		}
		secs, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid seconds: %s", parts[1])
		}
		return time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second)), nil
	case 3:
		hours, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid hours: %s", parts[0])
		}
		mins, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid minutes: %s", parts[1])
		}
		secs, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid seconds: %s", parts[2])
		}
		return time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("invalid timestamp format: %s", ts)
	}
}
