// Package compose burns a caption into an image, a video or a blank canvas and
// hands back a temporary artifact.
package compose

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"captionkit/caption"
	"captionkit/video"
)

// Kind is the media kind of an asset or artifact.
type Kind string

const (
	KindNone  Kind = "none"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// MediaAsset is the user's chosen source media. A zero Path means text-only.
type MediaAsset struct {
	Kind     Kind
	Path     string
	Width    int
	Height   int
	HasAudio bool
	// Duration and Codec are only known for video.
	Duration time.Duration
	Codec    string
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageFile checks if a file has a supported image extension.
func IsImageFile(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Load inspects path and returns its asset description. An empty path yields
// a text-only asset.
func (c *Compositor) Load(ctx context.Context, path string) (MediaAsset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return MediaAsset{Kind: KindNone}, nil
	}

	switch {
	case IsImageFile(path):
		f, err := os.Open(path)
		if err != nil {
			return MediaAsset{}, caption.SourceNotReady(err)
		}
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return MediaAsset{}, caption.SourceNotReady(fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err))
		}
		return MediaAsset{Kind: KindImage, Path: path, Width: cfg.Width, Height: cfg.Height}, nil

	case video.IsVideoFile(path):
		info, err := c.probe(ctx, path)
		if err != nil {
			return MediaAsset{}, err
		}
		return MediaAsset{
			Kind:     KindVideo,
			Path:     path,
			Width:    info.Width,
			Height:   info.Height,
			HasAudio: info.HasAudio,
			Duration: info.Duration,
			Codec:    info.VideoCodec,
		}, nil

	default:
		return MediaAsset{}, caption.Errorf(caption.KindTerminal, "unsupported media type %q", filepath.Ext(path))
	}
}

func (c *Compositor) probe(ctx context.Context, path string) (*video.Info, error) {
	info, err := c.prober.Probe(ctx, path)
	if err != nil {
		return nil, caption.SourceNotReady(err)
	}
	if !info.Decodable() {
		return nil, caption.SourceNotReady(fmt.Errorf("%s has no decodable video stream", filepath.Base(path)))
	}
	return info, nil
}
