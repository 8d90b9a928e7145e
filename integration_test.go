//go:build integration
// +build integration

package main

import (
	"context"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"captionkit/ai"
	"captionkit/caption"
	"captionkit/compose"
	"captionkit/config"
	"captionkit/endpoint"
	"captionkit/quota"
	"captionkit/server"
	"captionkit/share"
	"captionkit/video"
)

type cannedWriter struct{}

func (cannedWriter) Name() string { return "canned" }

func (cannedWriter) WriteCaptions(ctx context.Context, p ai.Prompt) ([]caption.RemoteCaption, error) {
	return []caption.RemoteCaption{
		{Title: "Golden hour", Caption: "The light did all the work.", CTA: "Save for later", Tags: "#sunset #photography"},
		{Title: "Second", Caption: "Body", CTA: "Go", Tags: "#b"},
		{Title: "Third", Caption: "Body", CTA: "Go", Tags: "#c"},
	}, nil
}

// makeTestVideo renders a short clip with ffmpeg's test sources.
func makeTestVideo(t *testing.T, withAudio bool) string {
	t.Helper()
	if err := video.CheckFFmpeg(); err != nil {
		t.Skipf("FFmpeg not available: %v", err)
	}
	if err := video.CheckFFprobe(); err != nil {
		t.Skipf("FFprobe not available: %v", err)
	}

	out := filepath.Join(t.TempDir(), "source.mp4")
	args := []string{"-y", "-f", "lavfi", "-i", "testsrc=size=320x240:rate=25:duration=2"}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", "sine=frequency=440:duration=2", "-shortest")
	}
	args = append(args, "-pix_fmt", "yuv420p", out)
	if output, err := exec.Command("ffmpeg", args...).CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\n%s", err, output)
	}
	return out
}

// TestIntegration_CaptionPipeline drives the service, the generator, the
// compositor and a download end to end.
func TestIntegration_CaptionPipeline(t *testing.T) {
	cfg := &config.Config{Port: "0", AuthDisabled: true, DailyLimit: 2}
	ts := httptest.NewServer(server.New(cfg, cannedWriter{}, quota.NewMemory(cfg.DailyLimit), nil).Handler())
	defer ts.Close()

	client, err := endpoint.NewClient(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	gen := caption.NewGenerator(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	captions, err := gen.Generate(ctx, caption.Request{Platform: "instagram", Tone: "warm", Niche: "travel", Goal: "saves"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if captions[0].Hashtags() != "#sunset #photography" {
		t.Errorf("tags = %q", captions[0].Hashtags())
	}
	if gen.LastRemaining() != 1 {
		t.Errorf("LastRemaining() = %d, want 1", gen.LastRemaining())
	}

	dir := t.TempDir()
	dist := share.NewDistributor(compose.New(compose.WithScale(1)), share.WithDownloadDir(dir))
	path, err := dist.Download(ctx, compose.MediaAsset{Kind: compose.KindNone}, captions[0], caption.ModeOverlay, caption.StyleHandwritten, "")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "golden-hour-") {
		t.Errorf("download name = %s", filepath.Base(path))
	}
}

// TestIntegration_VideoComposite burns a caption into real video with ffmpeg.
func TestIntegration_VideoComposite(t *testing.T) {
	for _, tt := range []struct {
		name  string
		audio bool
		mode  caption.OverlayMode
	}{
		{"overlay with audio", true, caption.ModeOverlay},
		{"below without audio", false, caption.ModeBelow},
	} {
		t.Run(tt.name, func(t *testing.T) {
			src := makeTestVideo(t, tt.audio)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			c := compose.New(compose.WithScale(1), compose.WithTempDir(t.TempDir()))
			media, err := c.Load(ctx, src)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if media.HasAudio != tt.audio {
				t.Fatalf("HasAudio = %v, want %v", media.HasAudio, tt.audio)
			}

			art, err := c.Composite(ctx, media, caption.Caption{Title: "Hello", Body: "World", Tags: []string{"test"}}, tt.mode, caption.StyleStandard)
			if err != nil {
				t.Fatalf("Composite() error = %v", err)
			}
			defer art.Release()

			info, err := video.FFprobe{}.Probe(ctx, art.Path)
			if err != nil {
				t.Fatalf("probe output: %v", err)
			}
			if info.HasAudio != tt.audio {
				t.Errorf("output HasAudio = %v, want %v", info.HasAudio, tt.audio)
			}
			if info.Width != 320 {
				t.Errorf("output width = %d", info.Width)
			}
			if tt.mode == caption.ModeBelow && info.Height <= 240 {
				t.Errorf("below mode should extend the frame, height = %d", info.Height)
			}
			if tt.mode == caption.ModeOverlay && info.Height != 240 {
				t.Errorf("overlay mode keeps the frame, height = %d", info.Height)
			}
		})
	}
}

// TestIntegration_CLIHelp tests that the CLI help is working
func TestIntegration_CLIHelp(t *testing.T) {
	binaryName := "captionkit"
	if runtime.GOOS == "windows" {
		binaryName = "captionkit.exe"
	}

	if _, err := os.Stat(binaryName); os.IsNotExist(err) {
		t.Skip("Binary not found, skipping CLI integration test. Run 'go build' first.")
	}

	output, _ := exec.Command("./"+binaryName, "--help").CombinedOutput()
	for _, expected := range []string{"captionkit", "-file", "-setup", "serve", "CAPTIONKIT_ENDPOINT", "LLM_PROVIDER"} {
		if !strings.Contains(string(output), expected) {
			t.Errorf("Help output missing expected string: %s", expected)
		}
	}
}

// TestIntegration_CLIVersion tests the version command
func TestIntegration_CLIVersion(t *testing.T) {
	binaryName := "captionkit"
	if runtime.GOOS == "windows" {
		binaryName = "captionkit.exe"
	}

	if _, err := os.Stat(binaryName); os.IsNotExist(err) {
		t.Skip("Binary not found, skipping CLI integration test")
	}

	output, err := exec.Command("./"+binaryName, "--version").CombinedOutput()
	if err != nil {
		t.Fatalf("Version command failed: %v\nOutput: %s", err, string(output))
	}
	if !strings.Contains(string(output), "captionkit") {
		t.Error("Version output should contain 'captionkit'")
	}
}
