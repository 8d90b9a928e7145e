package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/charmbracelet/huh"

	"captionkit/config"
	"captionkit/logger"
	"captionkit/tui"
	"captionkit/video"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one invocation and returns the process exit code. Every path
// returns through here so the logger is flushed before exit.
func run(args []string) int {
	fs := flag.NewFlagSet("captionkit", flag.ContinueOnError)
	versionFlag := fs.Bool("version", false, "Print version information")
	shortVersionFlag := fs.Bool("v", false, "Print version information (short)")
	setupFlag := fs.Bool("setup", false, "Save the caption service settings to your shell profile or .env")
	updateFlag := fs.Bool("update", false, "Update captionkit to the latest release")
	fileFlag := fs.String("file", "", "Photo or video to caption (skips the file picker)")
	fs.Usage = func() { printUsage(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *versionFlag || *shortVersionFlag {
		printVersion(os.Stdout)
		return 0
	}

	cfg := config.Load()
	log, err := logger.New(cfg.LogMode, cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		log = logger.Nop()
	}
	defer log.Sync()

	switch fs.Arg(0) {
	case "serve":
		return runServe(cfg, log)
	case "token":
		return runToken(cfg, fs.Args()[1:])
	}

	if *updateFlag || fs.Arg(0) == "update" {
		if err := runUpdate(context.Background()); err != nil {
			fmt.Println(tui.ErrorStyle.Render("Update failed: " + err.Error()))
			return 1
		}
		return 0
	}

	if *setupFlag {
		if err := runSetup(cfg); err != nil && !errors.Is(err, huh.ErrUserAborted) {
			fmt.Println(tui.ErrorStyle.Render("Error: " + err.Error()))
			return 1
		}
		return 0
	}

	fmt.Println(tui.Header())

	if err := cfg.CheckClient(); err != nil {
		fmt.Println(tui.ErrorStyle.Render("Error: " + err.Error()))
		fmt.Println(tui.MutedStyle.Render(config.Help()))
		return 1
	}

	videoOK := true
	if err := video.CheckFFmpeg(); err != nil {
		videoOK = false
	} else if err := video.CheckFFprobe(); err != nil {
		videoOK = false
	}
	if !videoOK {
		fmt.Println(tui.WarningStyle.Render("ffmpeg/ffprobe not found: photos and text posts work, videos will be skipped."))
	}

	a, cleanup, err := newApp(cfg, log, videoOK)
	if err != nil {
		fmt.Println(tui.ErrorStyle.Render("Error: " + err.Error()))
		return 1
	}
	defer cleanup()

	mediaPath := *fileFlag
	for {
		if !a.runCaptionWorkflow(mediaPath) {
			break
		}
		mediaPath = ""
	}

	fmt.Println(tui.SubtitleStyle.Render("\nThanks for using captionkit! Happy posting."))
	return 0
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "captionkit %s\n", version)
	fmt.Fprintf(w, "  commit: %s\n", commit)
	fmt.Fprintf(w, "  built:  %s\n", date)
	fmt.Fprintf(w, "  go:     %s\n", runtime.Version())
	fmt.Fprintf(w, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), `captionkit - write, style and share social media captions

Usage:
  captionkit [flags]          run the caption wizard
  captionkit serve            run the caption service
  captionkit token <user>     print a bearer token signed with JWT_SECRET
  captionkit update           update to the latest release

Flags:
`)
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), "\n%s\n", config.Help())
}
