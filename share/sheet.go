// Package share hands composited captions to a native share surface, the
// clipboard, a platform web intent or a local download.
package share

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"

	"captionkit/compose"
)

// ErrAbort is returned by a Sheet when the user dismisses it.
var ErrAbort = errors.New("share aborted by user")

// File is an attachment on a share payload.
type File struct {
	Name     string
	MIMEType string
	Path     string
}

// Payload is what gets handed to a share surface.
type Payload struct {
	Title string
	Text  string
	URL   string
	Files []File
}

// Sheet is a native share surface.
type Sheet interface {
	Available() bool
	SupportsFiles() bool
	CanShare(p Payload) bool
	Share(ctx context.Context, p Payload) error
}

// NoSheet is the share surface of a plain terminal: there is none.
type NoSheet struct{}

func (NoSheet) Available() bool { return false }

func (NoSheet) SupportsFiles() bool { return false }

func (NoSheet) CanShare(Payload) bool { return false }

func (NoSheet) Share(context.Context, Payload) error { return errors.ErrUnsupported }

// Capabilities is what a Sheet can do for one media kind.
type Capabilities struct {
	NativeShare bool
	FileShare   bool
}

// Probe determines share capabilities for a media kind.
type Probe interface {
	Probe(kind compose.Kind) Capabilities
}

// SheetProbe asks a Sheet directly. Image file support is tested with a
// throwaway 1x1 PNG; video support is taken from SupportsFiles alone since
// there is no sample to test with.
type SheetProbe struct {
	Sheet   Sheet
	TempDir string
}

func (p SheetProbe) Probe(kind compose.Kind) Capabilities {
	if p.Sheet == nil || !p.Sheet.Available() {
		return Capabilities{}
	}
	caps := Capabilities{NativeShare: true}
	switch kind {
	case compose.KindImage:
		caps.FileShare = p.canShareImage()
	case compose.KindVideo:
		caps.FileShare = p.Sheet.SupportsFiles()
	}
	return caps
}

func (p SheetProbe) canShareImage() bool {
	f, err := os.CreateTemp(p.TempDir, "captionkit-probe-*.png")
	if err != nil {
		return false
	}
	defer os.Remove(f.Name())
	err = png.Encode(f, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false
	}
	return p.Sheet.CanShare(Payload{
		Files: []File{{Name: "probe.png", MIMEType: "image/png", Path: f.Name()}},
	})
}
