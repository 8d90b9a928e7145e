package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"captionkit/caption"
	"captionkit/compose"
	"captionkit/config"
	"captionkit/endpoint"
	"captionkit/logger"
	"captionkit/quota"
	"captionkit/share"
	"captionkit/storage"
	"captionkit/tui"
	"captionkit/video"
)

// localUser owns the wizard's own usage counter. The service keeps the real one.
const localUser = "local"

// generateTimeout bounds one generation including retries.
const generateTimeout = 3 * time.Minute

var platforms = []string{"instagram", "tiktok", "x", "linkedin", "facebook", "youtube", "threads", "pinterest"}

var goals = []string{"engagement", "followers", "clicks", "sales", "saves", "awareness"}

type app struct {
	cfg        *config.Config
	log        *logger.Logger
	generator  *caption.Generator
	compositor *compose.Compositor
	dist       *share.Distributor
	videoOK    bool

	// Interactive hooks, replaced in tests.
	busy    func(title string, action func())
	onFail  func(err error, change string) recovery
	brief   func(prev caption.Request) (caption.Request, error)
}

// recovery is what the user wants to do after a failed step.
type recovery int

const (
	recoverRetry recovery = iota
	recoverChange
	recoverGiveUp
)

// newApp wires the wizard. cleanup closes the blob store.
func newApp(cfg *config.Config, log *logger.Logger, videoOK bool) (*app, func(), error) {
	client, err := endpoint.NewClient(cfg.Endpoint,
		endpoint.WithToken(cfg.Token),
		endpoint.WithTimeout(cfg.RequestTimeout),
		endpoint.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}

	checker := quota.Checker{Counter: quota.NewMemory(cfg.DailyLimit), User: localUser}
	generator := caption.NewGenerator(client, checker, caption.WithLogger(log))

	fonts, err := compose.LoadFonts(cfg.HandwrittenFont)
	if err != nil {
		log.Warn("handwritten font not loaded, using the default italic", "path", cfg.HandwrittenFont, "error", err)
		fonts = compose.DefaultFonts()
	}
	compositor := compose.New(compose.WithFonts(fonts), compose.WithLogger(log))

	opts := []share.Option{
		share.WithDownloadDir(cfg.DownloadDir),
		share.WithLogger(log),
	}
	cleanup := func() {}
	store, closeStore, err := newStore(context.Background(), cfg, log)
	if err != nil {
		log.Warn("blob store unavailable, shares will not carry a link", "error", err)
	} else if store != nil {
		opts = append(opts, share.WithStore(store))
		cleanup = closeStore
	}

	return &app{
		cfg:        cfg,
		log:        log,
		generator:  generator,
		compositor: compositor,
		dist:       share.NewDistributor(compositor, opts...),
		videoOK:    videoOK,
		busy:       runBusy,
		onFail:     askRecovery,
		brief:      askBrief,
	}, cleanup, nil
}

// newStore picks GCS when a bucket is configured, else a local directory, else nothing.
func newStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.Store, func(), error) {
	switch {
	case cfg.GCSBucket != "":
		gcs, err := storage.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCDNDomain, log)
		if err != nil {
			return nil, nil, err
		}
		return gcs, func() { _ = gcs.Close() }, nil
	case cfg.BlobDir != "":
		local, err := storage.NewLocal(cfg.BlobDir)
		if err != nil {
			return nil, nil, err
		}
		return local, func() {}, nil
	}
	return nil, func() {}, nil
}

func runForm(groups ...*huh.Group) error {
	return huh.NewForm(groups...).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
}

func runBusy(title string, action func()) {
	_ = spinner.New().Title(title).Action(action).Run()
}

func printError(err error) {
	fmt.Println(tui.ErrorStyle.Render("Error: " + caption.UserMessage(err)))
}

func printStep(current int) {
	fmt.Println("\n" + tui.StepIndicator(tui.Steps(current)) + "\n")
}

var formKeys = map[string]string{
	"enter":  "confirm",
	"↑/↓":    "move",
	"/":      "filter",
	"ctrl+c": "quit",
}

func (a *app) runCaptionWorkflow(mediaPath string) bool {
	ctx := context.Background()

	// Step 1: media
	printStep(0)
	fmt.Println(tui.KeyHelp(formKeys))
	if mediaPath == "" {
		var err error
		mediaPath, err = a.pickMedia()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false
			}
			printError(err)
			return askToContinue()
		}
	}

	media := compose.MediaAsset{Kind: compose.KindNone}
	if mediaPath != "" {
		if video.IsVideoFile(mediaPath) && !a.videoOK {
			fmt.Println(tui.WarningStyle.Render("Videos need ffmpeg and ffprobe on your PATH."))
			return askToContinue()
		}
		var err error
		media, err = a.loadMedia(ctx, mediaPath)
		if err != nil {
			return askToContinue()
		}
	}
	fmt.Println(tui.BoxStyle.Render(describeMedia(media)))

	// Step 2: brief
	printStep(1)
	req, err := a.brief(caption.Request{})
	if err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			printError(err)
		}
		return askToContinue()
	}

	// Step 3: captions
	printStep(2)
	captions, _, err := a.writeCaptions(ctx, req)
	if err != nil {
		return askToContinue()
	}

	for i, c := range captions {
		fmt.Println(tui.CaptionCard(i+1, c, 64))
	}
	if badge := tui.QuotaBadge(a.generator.LastRemaining()); badge != "" {
		fmt.Println(badge)
	}

	sel, err := caption.NewSelection(captions)
	if err != nil {
		printError(err)
		return askToContinue()
	}
	if err := pickCaption(sel); err != nil {
		return askToContinue()
	}

	// Step 4: style
	printStep(3)
	if err := pickStyle(sel, media.Kind); err != nil {
		return askToContinue()
	}

	// Step 5: share
	printStep(4)
	a.shareLoop(ctx, media, sel)
	return askToContinue()
}

// attempt runs do until it succeeds or the user gives up. change, when set,
// lets the user alter the input before the next try. The last error is
// returned on give up.
func (a *app) attempt(do func() error, changeLabel string, change func() error) error {
	for {
		err := do()
		if err == nil {
			return nil
		}
		if caption.IsKind(err, caption.KindQuotaExceeded) {
			fmt.Println(tui.WarningStyle.Render(caption.UserMessage(err)))
		} else {
			printError(err)
		}

		label := changeLabel
		if change == nil {
			label = ""
		}
		switch a.onFail(err, label) {
		case recoverRetry:
			continue
		case recoverChange:
			if label == "" {
				return err
			}
			if cerr := change(); cerr != nil {
				return cerr
			}
		default:
			return err
		}
	}
}

// loadMedia reads path, keeping the choice across retries.
func (a *app) loadMedia(ctx context.Context, path string) (compose.MediaAsset, error) {
	var media compose.MediaAsset
	err := a.attempt(func() error {
		var err error
		a.busy("Reading your media...", func() {
			media, err = a.compositor.Load(ctx, path)
		})
		return err
	}, "Choose another file", func() error {
		p, err := a.pickMedia()
		if err != nil {
			return err
		}
		path = p
		return nil
	})
	return media, err
}

// writeCaptions generates captions for req. A failed call can be retried with
// the same brief or an edited one; the brief in use is returned.
func (a *app) writeCaptions(ctx context.Context, req caption.Request) ([]caption.Caption, caption.Request, error) {
	var captions []caption.Caption
	err := a.attempt(func() error {
		var err error
		a.busy("Writing your captions...", func() {
			gctx, cancel := context.WithTimeout(ctx, generateTimeout)
			defer cancel()
			captions, err = a.generator.Generate(gctx, req)
		})
		return err
	}, "Change the brief", func() error {
		next, err := a.brief(req)
		if err != nil {
			return err
		}
		req = next
		return nil
	})
	return captions, req, err
}

func askRecovery(err error, change string) recovery {
	choice := recoverRetry
	if caption.IsKind(err, caption.KindQuotaExceeded) {
		choice = recoverGiveUp
	}
	opts := []huh.Option[recovery]{huh.NewOption("Try again", recoverRetry)}
	if change != "" {
		opts = append(opts, huh.NewOption(change, recoverChange))
	}
	opts = append(opts, huh.NewOption("Give up on this post", recoverGiveUp))
	if ferr := runForm(huh.NewGroup(
		huh.NewSelect[recovery]().
			Title("That didn't work").
			Options(opts...).
			Value(&choice),
	)); ferr != nil {
		return recoverGiveUp
	}
	return choice
}

func (a *app) pickMedia() (string, error) {
	var source string
	err := runForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("What are you posting?").
			Options(
				huh.NewOption("A photo or video", "file"),
				huh.NewOption("Just text", "none"),
			).
			Value(&source),
	))
	if err != nil || source == "none" {
		return "", err
	}

	var path string
	startDir, _ := os.Getwd()
	err = runForm(huh.NewGroup(
		huh.NewFilePicker().
			Title("Select a photo or video").
			Picking(true).
			CurrentDirectory(startDir).
			ShowHidden(false).
			ShowPermissions(false).
			ShowSize(true).
			Height(15).
			AllowedTypes(mediaExtensions).
			Value(&path),
	))
	return path, err
}

var mediaExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff",
	".mp4", ".mov", ".m4v", ".mkv", ".webm", ".avi",
}

func describeMedia(m compose.MediaAsset) string {
	switch m.Kind {
	case compose.KindImage:
		return fmt.Sprintf("Photo  %s\n%dx%d", filepath.Base(m.Path), m.Width, m.Height)
	case compose.KindVideo:
		audio := "no audio"
		if m.HasAudio {
			audio = "with audio"
		}
		desc := fmt.Sprintf("Video  %s\n%dx%d, %s, %s", filepath.Base(m.Path), m.Width, m.Height, video.FormatDuration(m.Duration), audio)
		if m.Codec != "" {
			desc += " (" + m.Codec + ")"
		}
		return desc
	default:
		return "Text only: the caption is drawn on a blank card"
	}
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// askBrief collects the post brief, prefilled from prev.
func askBrief(prev caption.Request) (caption.Request, error) {
	req := prev

	platformOpts := make([]huh.Option[string], 0, len(platforms))
	for _, p := range platforms {
		platformOpts = append(platformOpts, huh.NewOption(platformLabel(p), p))
	}
	goalOpts := make([]huh.Option[string], 0, len(goals))
	for _, g := range goals {
		goalOpts = append(goalOpts, huh.NewOption(g, g))
	}

	err := runForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Platform").
				Options(platformOpts...).
				Value(&req.Platform),
			huh.NewInput().
				Title("Tone").
				Placeholder("playful, bold, cozy...").
				Validate(required("tone")).
				Value(&req.Tone),
			huh.NewInput().
				Title("Niche").
				Placeholder("specialty coffee").
				Validate(required("niche")).
				Value(&req.Niche),
			huh.NewSelect[string]().
				Title("Goal").
				Options(goalOpts...).
				Value(&req.Goal),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Post idea").
				Description("Optional. Leave blank to write about your niche.").
				CharLimit(500).
				Value(&req.PostIdea),
		),
	)
	return req, err
}

func platformLabel(name string) string {
	if ad, ok := share.Lookup(name); ok {
		return ad.Label
	}
	return name
}

func pickCaption(sel *caption.Selection) error {
	captions := sel.Captions()
	opts := make([]huh.Option[int], 0, len(captions))
	for i, c := range captions {
		opts = append(opts, huh.NewOption(tui.OptionLabel(i+1, c), i))
	}

	index := sel.Index()
	var edit bool
	err := runForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Pick a caption").
			Options(opts...).
			Value(&index),
		huh.NewConfirm().
			Title("Edit it before sharing?").
			Affirmative("Edit").
			Negative("Looks good").
			Value(&edit),
	))
	if err != nil {
		return err
	}
	if err := sel.Select(index); err != nil {
		return err
	}
	if !edit {
		return nil
	}

	c := sel.Selected()
	tags := c.Hashtags()
	err = runForm(huh.NewGroup(
		huh.NewInput().Title("Title").Value(&c.Title),
		huh.NewText().Title("Caption").CharLimit(2200).Value(&c.Body),
		huh.NewInput().Title("Call to action").Value(&c.CallToAction),
		huh.NewInput().Title("Tags").Description("Space separated, # optional").Value(&tags),
	))
	if err != nil {
		return err
	}
	c.Tags = caption.SplitTags(tags)
	sel.Edit(c)
	return nil
}

func pickStyle(sel *caption.Selection, kind compose.Kind) error {
	var fields []huh.Field
	if kind != compose.KindNone {
		fields = append(fields, huh.NewSelect[caption.OverlayMode]().
			Title("Caption placement").
			Options(
				huh.NewOption("On top of the media", caption.ModeOverlay),
				huh.NewOption("In a band below the media", caption.ModeBelow),
			).
			Value(&sel.Mode))
	}
	fields = append(fields, huh.NewSelect[caption.Style]().
		Title("Lettering").
		Options(
			huh.NewOption("Standard", caption.StyleStandard),
			huh.NewOption("Handwritten", caption.StyleHandwritten),
		).
		Value(&sel.Style))
	return runForm(huh.NewGroup(fields...))
}

func (a *app) shareLoop(ctx context.Context, media compose.MediaAsset, sel *caption.Selection) {
	for {
		var action string
		err := runForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Share your post").
				Options(
					huh.NewOption("Share", "share"),
					huh.NewOption("Download", "download"),
					huh.NewOption("Quick share to a platform", "quick"),
					huh.NewOption("Done", "done"),
				).
				Value(&action),
		))
		if err != nil || action == "done" {
			return
		}

		cp := sel.Selected()
		switch action {
		case "share":
			var res share.Result
			var shareErr error
			_ = spinner.New().
				Title("Preparing your post...").
				Action(func() {
					res, shareErr = a.dist.Share(ctx, media, cp, sel.Mode, sel.Style)
				}).
				Run()
			if shareErr != nil {
				printError(shareErr)
				continue
			}
			fmt.Println(resultMessage(res))

		case "download":
			var path string
			var dlErr error
			_ = spinner.New().
				Title("Rendering your post...").
				Action(func() {
					path, dlErr = a.dist.Download(ctx, media, cp, sel.Mode, sel.Style, "")
				}).
				Run()
			if dlErr != nil {
				printError(dlErr)
				continue
			}
			fmt.Println(tui.SuccessStyle.Render("Saved to " + path))

		case "quick":
			a.quickShare(ctx, cp)
		}
	}
}

func (a *app) quickShare(ctx context.Context, cp caption.Caption) {
	names := share.Names()
	opts := make([]huh.Option[string], 0, len(names))
	for _, n := range names {
		opts = append(opts, huh.NewOption(platformLabel(n), n))
	}

	var platform, link string
	err := runForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Platform").
			Options(opts...).
			Value(&platform),
		huh.NewInput().
			Title("Link").
			Description("Optional URL to attach").
			Value(&link),
	))
	if err != nil {
		return
	}

	u, err := a.dist.QuickShare(ctx, platform, cp, strings.TrimSpace(link))
	if err != nil {
		printError(err)
		return
	}
	fmt.Println(tui.SuccessStyle.Render("Opened " + platformLabel(platform)))
	fmt.Println(tui.MutedStyle.Render(u))
}

func resultMessage(res share.Result) string {
	switch res.Status {
	case share.StatusShared:
		msg := "Shared!"
		if res.URL != "" {
			msg += " " + res.URL
		}
		return tui.SuccessStyle.Render(msg)
	case share.StatusCancelled:
		return tui.MutedStyle.Render("Share cancelled.")
	default:
		msg := res.Message
		if msg == "" {
			msg = "Caption copied to your clipboard."
		}
		return tui.InfoStyle.Render(msg)
	}
}

func askToContinue() bool {
	var choice string
	selectNext := huh.NewSelect[string]().
		Title("What next?").
		Options(
			huh.NewOption("Caption another post", "another"),
			huh.NewOption("Exit", "exit"),
		).
		Value(&choice)

	if err := runForm(huh.NewGroup(selectNext)); err != nil {
		return false
	}
	return choice == "another"
}
