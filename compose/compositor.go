package compose

import (
	"context"
	"fmt"
	"os"

	"github.com/fogleman/gg"

	"captionkit/caption"
	"captionkit/logger"
	"captionkit/video"
)

// Compositor renders captions onto media.
type Compositor struct {
	fonts   FontSet
	scale   float64
	encoder video.Encoder
	ladder  []video.Codec
	prober  video.Prober
	tempDir string
	log     *logger.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithFonts sets the caption fonts.
func WithFonts(fonts FontSet) Option {
	return func(c *Compositor) {
		c.fonts = fonts
	}
}

// WithScale sets the image render scale. Values below 1 are ignored.
func WithScale(scale float64) Option {
	return func(c *Compositor) {
		if scale >= 1 {
			c.scale = scale
		}
	}
}

// WithEncoder sets the video encoder.
func WithEncoder(enc video.Encoder) Option {
	return func(c *Compositor) {
		c.encoder = enc
	}
}

// WithLadder replaces the codec fallback ladder.
func WithLadder(ladder []video.Codec) Option {
	return func(c *Compositor) {
		c.ladder = ladder
	}
}

// WithProber sets the video prober.
func WithProber(p video.Prober) Option {
	return func(c *Compositor) {
		c.prober = p
	}
}

// WithTempDir sets where artifacts are written. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *Compositor) {
		c.tempDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Compositor) {
		c.log = log
	}
}

// New creates a Compositor backed by ffmpeg and ffprobe.
func New(opts ...Option) *Compositor {
	c := &Compositor{
		fonts:   DefaultFonts(),
		scale:   2,
		encoder: video.FFmpeg{},
		ladder:  video.DefaultLadder,
		prober:  video.FFprobe{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log)
	return c
}

// Composite renders cp onto media and returns a fresh artifact. The caller
// owns the artifact and must Release it.
func (c *Compositor) Composite(ctx context.Context, media MediaAsset, cp caption.Caption, mode caption.OverlayMode, style caption.Style) (*Artifact, error) {
	if mode == "" {
		mode = caption.ModeOverlay
	}
	if style == "" {
		style = caption.StyleStandard
	}

	switch media.Kind {
	case KindNone, "":
		return c.writePNG(c.renderTextOnly(cp, style))
	case KindImage:
		dc, err := c.renderImage(media.Path, cp, mode, style)
		if err != nil {
			return nil, err
		}
		return c.writePNG(dc)
	case KindVideo:
		return c.compositeVideo(ctx, media, cp, mode, style)
	default:
		return nil, caption.Errorf(caption.KindTerminal, "unknown media kind %q", media.Kind)
	}
}

func (c *Compositor) writePNG(dc *gg.Context) (*Artifact, error) {
	f, err := os.CreateTemp(c.tempDir, "captionkit-*.png")
	if err != nil {
		return nil, caption.EncodingFailed(fmt.Errorf("failed to create artifact: %w", err))
	}
	if err := dc.EncodePNG(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, caption.EncodingFailed(fmt.Errorf("failed to encode png: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, caption.EncodingFailed(err)
	}
	return &Artifact{Kind: KindImage, MIMEType: "image/png", Ext: "png", Path: f.Name()}, nil
}

func (c *Compositor) compositeVideo(ctx context.Context, media MediaAsset, cp caption.Caption, mode caption.OverlayMode, style caption.Style) (*Artifact, error) {
	info, err := c.probe(ctx, media.Path)
	if err != nil {
		return nil, err
	}

	layer, band := c.renderLayer(info.Width, info.Height, cp, mode, style)
	layerFile, err := os.CreateTemp(c.tempDir, "captionkit-layer-*.png")
	if err != nil {
		return nil, caption.EncodingFailed(err)
	}
	defer os.Remove(layerFile.Name())
	if err := layer.EncodePNG(layerFile); err != nil {
		layerFile.Close()
		return nil, caption.EncodingFailed(fmt.Errorf("failed to encode caption layer: %w", err))
	}
	if err := layerFile.Close(); err != nil {
		return nil, caption.EncodingFailed(err)
	}

	out, err := os.CreateTemp(c.tempDir, "captionkit-*.mp4")
	if err != nil {
		return nil, caption.EncodingFailed(err)
	}
	out.Close()

	job := video.Job{
		Input:     media.Path,
		Overlay:   layerFile.Name(),
		Output:    out.Name(),
		PadBottom: band,
		HasAudio:  info.HasAudio,
	}
	if !info.HasAudio {
		c.log.Debug("source has no audio stream, encoding silent output", "path", media.Path)
	}

	codec, err := video.EncodeWithLadder(ctx, c.encoder, job, c.ladder, c.log)
	if err != nil {
		os.Remove(out.Name())
		return nil, caption.EncodingFailed(err)
	}
	c.log.Debug("video composited", "codec", codec.Name, "output", out.Name())
	return &Artifact{Kind: KindVideo, MIMEType: "video/mp4", Ext: "mp4", Path: out.Name()}, nil
}
