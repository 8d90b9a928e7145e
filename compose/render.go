package compose

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"captionkit/caption"
)

// Sizes are fractions of the canvas width.
const (
	titleSize    = 0.055
	bodySize     = 0.040
	ctaSize      = 0.036
	tagSize      = 0.032
	sectionGap   = 0.025
	paddingRatio = 0.05
	lineSpacing  = 1.35

	scriptBoost = 1.25

	textCanvas = 1080
	maxCanvas  = 4096
)

type palette struct {
	text color.Color
	cta  color.Color
	tag  color.Color
	band color.Color
}

var (
	darkPalette = palette{
		text: color.White,
		cta:  color.RGBA{0xf9, 0xe2, 0xaf, 0xff},
		tag:  color.RGBA{0x89, 0xb4, 0xfa, 0xff},
		band: color.RGBA{0x00, 0x00, 0x00, 0x99},
	}
	lightPalette = palette{
		text: color.RGBA{0x1e, 0x1e, 0x2e, 0xff},
		cta:  color.RGBA{0x4c, 0x4f, 0x69, 0xff},
		tag:  color.RGBA{0x1e, 0x66, 0xf5, 0xff},
		band: color.White,
	}
	paperColor  = color.RGBA{0xfd, 0xf6, 0xe3, 0xff}
	canvasColor = color.RGBA{0x1e, 0x1e, 0x2e, 0xff}
)

func bandPalette(style caption.Style) palette {
	p := lightPalette
	if style == caption.StyleHandwritten {
		p.band = paperColor
	}
	return p
}

type section struct {
	lines      []string
	face       font.Face
	color      color.Color
	lineHeight float64
}

// block is a laid out caption: title, body, CTA and tags in that order.
type block struct {
	sections []section
	gap      float64
}

func (b block) height() float64 {
	var h float64
	for i, s := range b.sections {
		if i > 0 {
			h += b.gap
		}
		h += float64(len(s.lines)) * s.lineHeight
	}
	return h
}

func (c *Compositor) layout(cp caption.Caption, style caption.Style, unit, width float64, pal palette) block {
	titleFont, bodyFont, ctaFont := c.fonts.Bold, c.fonts.Regular, c.fonts.Italic
	boost := 1.0
	if style == caption.StyleHandwritten {
		titleFont, bodyFont, ctaFont = c.fonts.Script, c.fonts.Script, c.fonts.Script
		boost = scriptBoost
	}

	parts := []struct {
		text string
		font *truetype.Font
		size float64
		col  color.Color
	}{
		{cp.Title, titleFont, unit * titleSize * boost, pal.text},
		{cp.Body, bodyFont, unit * bodySize * boost, pal.text},
		{cp.CallToAction, ctaFont, unit * ctaSize * boost, pal.cta},
		{cp.Hashtags(), c.fonts.Regular, unit * tagSize, pal.tag},
	}

	b := block{gap: unit * sectionGap}
	for _, p := range parts {
		if strings.TrimSpace(p.text) == "" {
			continue
		}
		face := newFace(p.font, p.size)
		lines := Wrap(func(s string) float64 { return measure(face, s) }, p.text, width)
		b.sections = append(b.sections, section{
			lines:      lines,
			face:       face,
			color:      p.col,
			lineHeight: p.size * lineSpacing,
		})
	}
	return b
}

func drawBlock(dc *gg.Context, b block, x, y, width float64, centered bool) {
	for i, s := range b.sections {
		if i > 0 {
			y += b.gap
		}
		dc.SetFontFace(s.face)
		dc.SetColor(s.color)
		ascent := float64(s.face.Metrics().Ascent) / 64
		for _, line := range s.lines {
			if centered {
				dc.DrawStringAnchored(line, x+width/2, y+ascent, 0.5, 0)
			} else {
				dc.DrawString(line, x, y+ascent)
			}
			y += s.lineHeight
		}
	}
}

// drawOverlay paints the caption over a w×h frame already on dc. The
// standard style gets a scrim band along the bottom; handwritten gets a
// full-frame scrim with centred text.
func (c *Compositor) drawOverlay(dc *gg.Context, cp caption.Caption, style caption.Style, w, h int) {
	fw, fh := float64(w), float64(h)
	pad := fw * paddingRatio
	textWidth := fw - 2*pad
	b := c.layout(cp, style, fw, textWidth, darkPalette)

	dc.SetColor(darkPalette.band)
	if style == caption.StyleHandwritten {
		dc.DrawRectangle(0, 0, fw, fh)
		dc.Fill()
		drawBlock(dc, b, pad, math.Max(pad, (fh-b.height())/2), textWidth, true)
		return
	}

	scrim := math.Min(fh, b.height()+2*pad)
	dc.DrawRectangle(0, fh-scrim, fw, scrim)
	dc.Fill()
	drawBlock(dc, b, pad, fh-scrim+pad, textWidth, false)
}

func (c *Compositor) renderTextOnly(cp caption.Caption, style caption.Style) *gg.Context {
	size := int(textCanvas * c.scale)
	dc := gg.NewContext(size, size)
	dc.SetColor(canvasColor)
	dc.Clear()

	fs := float64(size)
	pad := fs * paddingRatio * 1.6
	textWidth := fs - 2*pad
	b := c.layout(cp, style, fs, textWidth, darkPalette)
	drawBlock(dc, b, pad, math.Max(pad, (fs-b.height())/2), textWidth, true)
	return dc
}

func (c *Compositor) renderImage(path string, cp caption.Caption, mode caption.OverlayMode, style caption.Style) (*gg.Context, error) {
	src, err := decodeImage(path)
	if err != nil {
		return nil, caption.SourceNotReady(err)
	}
	src = c.upscale(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	if mode != caption.ModeBelow {
		dc := gg.NewContext(w, h)
		dc.DrawImage(src, 0, 0)
		c.drawOverlay(dc, cp, style, w, h)
		return dc, nil
	}

	fw := float64(w)
	pad := fw * paddingRatio
	textWidth := fw - 2*pad
	pal := bandPalette(style)
	b := c.layout(cp, style, fw, textWidth, pal)
	band := int(math.Ceil(b.height() + 2*pad))

	dc := gg.NewContext(w, h+band)
	dc.DrawImage(src, 0, 0)
	dc.SetColor(pal.band)
	dc.DrawRectangle(0, float64(h), fw, float64(band))
	dc.Fill()
	drawBlock(dc, b, pad, float64(h)+pad, textWidth, false)
	return dc, nil
}

// renderLayer draws the caption layer composited onto a w×h video. For the
// below mode it returns just the band and its (even) height; for overlay it
// returns a transparent full frame and zero.
func (c *Compositor) renderLayer(w, h int, cp caption.Caption, mode caption.OverlayMode, style caption.Style) (*gg.Context, int) {
	if mode != caption.ModeBelow {
		dc := gg.NewContext(w, h)
		c.drawOverlay(dc, cp, style, w, h)
		return dc, 0
	}

	fw := float64(w)
	pad := fw * paddingRatio
	textWidth := fw - 2*pad
	pal := bandPalette(style)
	b := c.layout(cp, style, fw, textWidth, pal)

	band := int(math.Ceil(math.Max(float64(h)/3, b.height()+2*pad)))
	if band%2 != 0 {
		band++
	}
	dc := gg.NewContext(w, band)
	dc.SetColor(pal.band)
	dc.Clear()
	drawBlock(dc, b, pad, pad, textWidth, false)
	return dc, band
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// upscale resizes src by the render scale, keeping the longest side within maxCanvas.
func (c *Compositor) upscale(src image.Image) image.Image {
	b := src.Bounds()
	longest := math.Max(float64(b.Dx()), float64(b.Dy()))
	factor := math.Min(c.scale, maxCanvas/longest)
	if factor <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(b.Dx())*factor), int(float64(b.Dy())*factor)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
