package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"captionkit/caption"
	"captionkit/compose"
	"captionkit/logger"
	"captionkit/storage"
)

// Status is the outcome of a share.
type Status string

const (
	StatusShared    Status = "shared"
	StatusFallback  Status = "fallback"
	StatusCancelled Status = "cancelled"
)

// Result describes how a share ended. URL is set when the artifact was
// uploaded to the blob store.
type Result struct {
	Status  Status
	Message string
	URL     string
}

const fallbackMessage = "Caption copied to your clipboard. Paste it into your post and attach your media."

// Compositor renders artifacts for the distributor.
type Compositor interface {
	Composite(ctx context.Context, media compose.MediaAsset, cp caption.Caption, mode caption.OverlayMode, style caption.Style) (*compose.Artifact, error)
}

// Distributor shares and downloads composited captions.
type Distributor struct {
	compositor  Compositor
	sheet       Sheet
	probe       Probe
	store       storage.Store
	clipboard   Clipboard
	opener      Opener
	downloadDir string
	now         func() time.Time
	log         *logger.Logger

	mu   sync.Mutex
	caps map[compose.Kind]Capabilities
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithSheet sets the native share surface.
func WithSheet(s Sheet) Option {
	return func(d *Distributor) { d.sheet = s }
}

// WithProbe overrides how capabilities are detected.
func WithProbe(p Probe) Option {
	return func(d *Distributor) { d.probe = p }
}

// WithStore uploads artifacts before sharing so the share can carry a stable URL.
func WithStore(s storage.Store) Option {
	return func(d *Distributor) { d.store = s }
}

func WithClipboard(c Clipboard) Option {
	return func(d *Distributor) { d.clipboard = c }
}

func WithOpener(o Opener) Option {
	return func(d *Distributor) { d.opener = o }
}

// WithDownloadDir sets where downloads are saved.
func WithDownloadDir(dir string) Option {
	return func(d *Distributor) { d.downloadDir = dir }
}

func WithClock(now func() time.Time) Option {
	return func(d *Distributor) { d.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(d *Distributor) { d.log = log }
}

// NewDistributor creates a Distributor. Without options it has no share sheet,
// uses the system clipboard and browser, and downloads into the working directory.
func NewDistributor(c Compositor, opts ...Option) *Distributor {
	d := &Distributor{
		compositor:  c,
		sheet:       NoSheet{},
		clipboard:   SystemClipboard{},
		opener:      BrowserOpener{},
		downloadDir: ".",
		now:         time.Now,
		caps:        make(map[compose.Kind]Capabilities),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.probe == nil {
		d.probe = SheetProbe{Sheet: d.sheet}
	}
	d.log = logger.OrNop(d.log)
	return d
}

// Capabilities returns the cached probe result for kind, probing on first use.
func (d *Distributor) Capabilities(kind compose.Kind) Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	if caps, ok := d.caps[kind]; ok {
		return caps
	}
	caps := d.probe.Probe(kind)
	d.caps[kind] = caps
	d.log.Debug("probed share capabilities", "kind", kind, "native", caps.NativeShare, "files", caps.FileShare)
	return caps
}

// Share walks the share ladder: files (plus URL when uploaded), then URL only,
// then text only, then the clipboard. A user abort at any native step ends it.
func (d *Distributor) Share(ctx context.Context, media compose.MediaAsset, cp caption.Caption, mode caption.OverlayMode, style caption.Style) (Result, error) {
	text := caption.Format(cp)
	caps := d.Capabilities(media.Kind)
	if !caps.NativeShare {
		return d.fallback(text, nil)
	}

	var link string
	if media.Kind != compose.KindNone && caps.FileShare {
		res, done, err := d.shareFiles(ctx, media, cp, mode, style, text)
		if err != nil {
			return Result{}, err
		}
		if done {
			return res, nil
		}
		link = res.URL
	}

	err := d.sheet.Share(ctx, Payload{Title: cp.Title, Text: text})
	if res, done := d.settle(err, link); done {
		return res, nil
	}
	return d.fallback(text, err)
}

// shareFiles runs the file and URL steps. A failed composite only skips them,
// unless the context is done.
func (d *Distributor) shareFiles(ctx context.Context, media compose.MediaAsset, cp caption.Caption, mode caption.OverlayMode, style caption.Style, text string) (Result, bool, error) {
	art, err := d.compositor.Composite(ctx, media, cp, mode, style)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, false, err
		}
		d.log.Warn("composite failed, sharing text only", "error", err)
		return Result{}, false, nil
	}
	defer d.release(art)

	link := d.upload(ctx, art, cp)
	err = d.sheet.Share(ctx, Payload{
		Title: cp.Title,
		Text:  text,
		Files: []File{{Name: fileName(cp, art, d.now()), MIMEType: art.MIMEType, Path: art.Path}},
	})
	if res, done := d.settle(err, link); done {
		return res, true, nil
	}
	d.log.Warn("file share rejected", "error", err)

	if link != "" {
		err = d.sheet.Share(ctx, Payload{Title: cp.Title, Text: text, URL: link})
		if res, done := d.settle(err, link); done {
			return res, true, nil
		}
		d.log.Warn("url share rejected", "error", err)
	}
	return Result{URL: link}, false, nil
}

// settle maps a native share outcome to a final result. done is false when
// the ladder should continue.
func (d *Distributor) settle(err error, link string) (Result, bool) {
	switch {
	case err == nil:
		return Result{Status: StatusShared, URL: link}, true
	case errors.Is(err, ErrAbort) || errors.Is(err, context.Canceled):
		return Result{Status: StatusCancelled, URL: link}, true
	default:
		return Result{}, false
	}
}

func (d *Distributor) fallback(text string, cause error) (Result, error) {
	if err := d.clipboard.WriteText(text); err != nil {
		return Result{}, &caption.Error{
			Kind:    caption.KindShareUnsupported,
			Message: "sharing is not available and the clipboard could not be written",
			Err:     errors.Join(cause, err),
		}
	}
	return Result{Status: StatusFallback, Message: fallbackMessage}, nil
}

// upload stores the artifact and returns its URL. Failures only cost the URL.
func (d *Distributor) upload(ctx context.Context, art *compose.Artifact, cp caption.Caption) string {
	if d.store == nil {
		return ""
	}
	f, err := art.Open()
	if err != nil {
		d.log.Warn("failed to open artifact for upload", "error", err)
		return ""
	}
	defer f.Close()

	key := fmt.Sprintf("shares/%s-%s.%s", Slugify(cp.Title), uuid.NewString(), art.Ext)
	if err := d.store.Put(ctx, key, f, art.MIMEType); err != nil {
		d.log.Warn("failed to upload artifact", "key", key, "error", err)
		return ""
	}
	link, err := d.store.URL(ctx, key)
	if err != nil {
		d.log.Warn("failed to resolve artifact url", "key", key, "error", err)
		return ""
	}
	return link
}

func (d *Distributor) release(art *compose.Artifact) {
	if err := art.Release(); err != nil {
		d.log.Warn("failed to release artifact", "path", art.Path, "error", err)
	}
}

// Download composites the caption and saves it into the download directory.
// An empty filename becomes slug(title)-<unix millis>.<ext>.
func (d *Distributor) Download(ctx context.Context, media compose.MediaAsset, cp caption.Caption, mode caption.OverlayMode, style caption.Style, filename string) (string, error) {
	art, err := d.compositor.Composite(ctx, media, cp, mode, style)
	if err != nil {
		return "", err
	}
	defer d.release(art)

	name := strings.TrimSpace(filepath.Base(filename))
	switch {
	case filename == "" || name == "." || name == string(filepath.Separator):
		name = fileName(cp, art, d.now())
	case filepath.Ext(name) == "":
		name += "." + art.Ext
	}

	if err := os.MkdirAll(d.downloadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	dest := filepath.Join(d.downloadDir, name)
	if err := copyFile(art.Path, dest); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	d.log.Info("caption downloaded", "path", dest)
	return dest, nil
}

// QuickShare opens a platform's posting surface and queues the caption on the
// clipboard. It returns the URL opened; success says nothing about whether
// the user actually posts.
func (d *Distributor) QuickShare(ctx context.Context, platform string, cp caption.Caption, link string) (string, error) {
	adapter, ok := Lookup(platform)
	if !ok {
		return "", caption.Errorf(caption.KindShareUnsupported, "no quick share for %q", platform)
	}
	text := caption.Format(cp)
	if err := d.clipboard.WriteText(text); err != nil {
		d.log.Warn("failed to copy caption for quick share", "platform", adapter.Name, "error", err)
	}

	target := adapter.URL(text, link)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := d.opener.Open(target); err != nil {
		return target, fmt.Errorf("failed to open %s: %w", adapter.Label, err)
	}
	return target, nil
}

// Slugify lowercases s and joins its ASCII letter and digit runs with '-'.
// An empty result becomes "caption".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "caption"
	}
	return b.String()
}

func fileName(cp caption.Caption, art *compose.Artifact, now time.Time) string {
	return fmt.Sprintf("%s-%d.%s", Slugify(cp.Title), now.UnixMilli(), art.Ext)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
