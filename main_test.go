package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"captionkit/caption"
	"captionkit/compose"
	"captionkit/config"
	"captionkit/logger"
	"captionkit/quota"
	"captionkit/share"
	"captionkit/storage"
	"captionkit/video"
)

var fullSettings = setupSettings{
	Endpoint:        "https://captions.example.com",
	Token:           "tok-123",
	DownloadDir:     "/home/user/Downloads",
	HandwrittenFont: "/fonts/script.ttf",
}

func TestGenerateEnvExports_BashZsh(t *testing.T) {
	result := generateEnvExports(fullSettings, ShellBashZsh)

	for _, want := range []string{
		"export CAPTIONKIT_ENDPOINT=https://captions.example.com",
		"export CAPTIONKIT_TOKEN=tok-123",
		"export CAPTIONKIT_DOWNLOAD_DIR=/home/user/Downloads",
		"export CAPTIONKIT_HANDWRITTEN_FONT=/fonts/script.ttf",
		"# captionkit configuration",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("Expected %q in output:\n%s", want, result)
		}
	}
}

func TestGenerateEnvExports_SkipsEmpty(t *testing.T) {
	result := generateEnvExports(setupSettings{Endpoint: "http://localhost:8080"}, ShellBashZsh)

	if !strings.Contains(result, "export CAPTIONKIT_ENDPOINT=http://localhost:8080") {
		t.Error("Expected endpoint export")
	}
	for _, unwanted := range []string{"CAPTIONKIT_TOKEN", "CAPTIONKIT_DOWNLOAD_DIR", "CAPTIONKIT_HANDWRITTEN_FONT"} {
		if strings.Contains(result, unwanted) {
			t.Errorf("Should not contain %s when empty", unwanted)
		}
	}
}

func TestGenerateEnvExports_Fish(t *testing.T) {
	result := generateEnvExports(fullSettings, ShellFish)

	if !strings.Contains(result, "set -gx CAPTIONKIT_ENDPOINT https://captions.example.com") {
		t.Error("Expected 'set -gx' syntax for fish shell")
	}
	if strings.Contains(result, "export ") {
		t.Error("Fish output should not contain 'export'")
	}
}

func TestGenerateEnvExports_PowerShell(t *testing.T) {
	result := generateEnvExports(fullSettings, ShellPowerShell)

	if !strings.Contains(result, `$env:CAPTIONKIT_TOKEN = "tok-123"`) {
		t.Errorf("Expected PowerShell syntax, got: %s", result)
	}
	if strings.Contains(result, "export ") || strings.Contains(result, "set -gx") {
		t.Error("PowerShell output should not contain bash or fish syntax")
	}

	for _, line := range strings.Split(result, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "$env:") || !strings.Contains(line, " = \"") || !strings.HasSuffix(line, "\"") {
			t.Errorf("Invalid PowerShell line: %s", line)
		}
	}
}

func TestGenerateEnvExports_OutputFormat(t *testing.T) {
	for _, shell := range []ShellType{ShellBashZsh, ShellFish, ShellPowerShell} {
		result := generateEnvExports(fullSettings, shell)
		// leading newline for clean appending
		if !strings.HasPrefix(result, "\n") {
			t.Errorf("shell %d: output should start with newline", shell)
		}
		if !strings.HasSuffix(result, "\n") {
			t.Errorf("shell %d: output should end with newline", shell)
		}
	}
}

func TestGenerateDotEnv(t *testing.T) {
	result := generateDotEnv(fullSettings)

	if !strings.HasPrefix(result, "# captionkit") {
		t.Error(".env output should start with comment header")
	}
	if strings.Contains(result, "export ") {
		t.Error(".env format should not contain 'export'")
	}
	if !strings.Contains(result, "CAPTIONKIT_ENDPOINT=https://captions.example.com\n") {
		t.Errorf("Expected endpoint line in:\n%s", result)
	}

	for _, line := range strings.Split(result, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			t.Errorf("Invalid .env line format: %s", line)
		}
	}
}

// The generated .env must round-trip through the config loader.
func TestGenerateDotEnv_LoadsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(generateDotEnv(fullSettings)), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"CAPTIONKIT_ENDPOINT", "CAPTIONKIT_TOKEN", "CAPTIONKIT_DOWNLOAD_DIR", "CAPTIONKIT_HANDWRITTEN_FONT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	t.Chdir(dir)

	cfg := config.Load()
	if cfg.Endpoint != fullSettings.Endpoint || cfg.Token != fullSettings.Token {
		t.Errorf("loaded endpoint=%q token=%q", cfg.Endpoint, cfg.Token)
	}
	if cfg.HandwrittenFont != fullSettings.HandwrittenFont {
		t.Errorf("loaded font=%q", cfg.HandwrittenFont)
	}
}

func TestAppendToProfile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "captionkit-test-profile-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	existing := "# Existing profile content\nexport PATH=/usr/bin:$PATH\n"
	if _, err := tmpFile.WriteString(existing); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	f, err := os.OpenFile(tmpFile.Name(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.WriteString(generateEnvExports(fullSettings, ShellBashZsh))
	f.Close()
	if err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(content), existing) {
		t.Error("Original content should be preserved")
	}
	if !strings.Contains(string(content), "export CAPTIONKIT_ENDPOINT=") {
		t.Error("New config should be appended")
	}
}

func TestDetectShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")
	shell, profiles := detectShell()

	if !strings.Contains(shell, "zsh") {
		t.Errorf("Expected shell to contain 'zsh', got %s", shell)
	}

	last := profiles[len(profiles)-1]
	if !strings.Contains(last.name, ".env") {
		t.Fatal("Expected .env option last")
	}
	if last.path != filepath.Join(".", ".env") {
		t.Errorf("Expected .env path %s, got %s", filepath.Join(".", ".env"), last.path)
	}
	if last.detected {
		t.Error(".env option should not be marked as detected")
	}

	var zsh bool
	for _, p := range profiles {
		if strings.Contains(p.name, "zshrc") {
			zsh = p.detected
		}
	}
	if !zsh {
		t.Error("~/.zshrc should be offered and detected for a zsh user")
	}
}

func TestGetShellType(t *testing.T) {
	tests := []struct {
		path     string
		expected ShellType
	}{
		{"Microsoft.PowerShell_profile.ps1", ShellPowerShell},
		{"profile.PS1", ShellPowerShell},
		{`C:\Users\Test\Documents\PowerShell\Microsoft.PowerShell_profile.ps1`, ShellPowerShell},
		{"/home/user/.config/fish/config.fish", ShellFish},
		{".env", ShellDotEnv},
		{"/path/to/project/.env", ShellDotEnv},
		{`C:\project\.env`, ShellDotEnv},
		{".bashrc", ShellBashZsh},
		{".zprofile", ShellBashZsh},
		{`C:\Users\Test\.bashrc`, ShellBashZsh},
		{"/home/user/.env.backup", ShellBashZsh},
	}

	for _, tt := range tests {
		if got := getShellType(tt.path); got != tt.expected {
			t.Errorf("getShellType(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestShortenPath(t *testing.T) {
	homeDir := "/home/testuser"

	tests := []struct {
		path     string
		expected string
	}{
		{"/home/testuser/.bashrc", "~/.bashrc"},
		{"/home/testuser/Documents/file.txt", "~/Documents/file.txt"},
		{"/other/path/file.txt", "/other/path/file.txt"},
		{"/home/testuser", "~"},
		{"/home/testuserx/file", "/home/testuserx/file"},
	}

	for _, tt := range tests {
		if got := shortenPath(tt.path, homeDir); got != tt.expected {
			t.Errorf("shortenPath(%q, %q) = %q, want %q", tt.path, homeDir, got, tt.expected)
		}
	}
}

func TestFileExists(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "captionkit-test-exists-*")
	if err != nil {
		t.Fatal(err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if !fileExists(tmpPath) {
		t.Error("fileExists should return true for existing file")
	}
	os.Remove(tmpPath)
	if fileExists(tmpPath) {
		t.Error("fileExists should return false for non-existing file")
	}
}

func TestDescribeMedia(t *testing.T) {
	tests := []struct {
		name  string
		media compose.MediaAsset
		want  string
	}{
		{"photo", compose.MediaAsset{Kind: compose.KindImage, Path: "/x/beach.jpg", Width: 1200, Height: 800}, "beach.jpg\n1200x800"},
		{"silent video", compose.MediaAsset{Kind: compose.KindVideo, Path: "clip.mp4", Width: 720, Height: 1280}, "720x1280, 00:00, no audio"},
		{"video", compose.MediaAsset{Kind: compose.KindVideo, Path: "clip.mp4", Width: 720, Height: 1280, HasAudio: true}, "with audio"},
		{"video duration", compose.MediaAsset{Kind: compose.KindVideo, Path: "clip.mp4", Duration: 95 * time.Second, Codec: "h264"}, "01:35, no audio (h264)"},
		{"text only", compose.MediaAsset{Kind: compose.KindNone}, "Text only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeMedia(tt.media); !strings.Contains(got, tt.want) {
				t.Errorf("describeMedia() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestResultMessage(t *testing.T) {
	tests := []struct {
		res  share.Result
		want string
	}{
		{share.Result{Status: share.StatusShared}, "Shared!"},
		{share.Result{Status: share.StatusShared, URL: "https://cdn.example.com/a.png"}, "https://cdn.example.com/a.png"},
		{share.Result{Status: share.StatusCancelled}, "cancelled"},
		{share.Result{Status: share.StatusFallback, Message: "Caption copied"}, "Caption copied"},
		{share.Result{Status: share.StatusFallback}, "clipboard"},
	}

	for _, tt := range tests {
		if got := resultMessage(tt.res); !strings.Contains(got, tt.want) {
			t.Errorf("resultMessage(%+v) = %q, want it to contain %q", tt.res, got, tt.want)
		}
	}
}

func TestPlatformLabel(t *testing.T) {
	if got := platformLabel("linkedin"); got != "LinkedIn" {
		t.Errorf("platformLabel(linkedin) = %q", got)
	}
	if got := platformLabel("myspace"); got != "myspace" {
		t.Errorf("unknown platforms keep their name, got %q", got)
	}
	for _, p := range platforms {
		if _, ok := share.Lookup(p); !ok {
			t.Errorf("wizard platform %q has no quick-share adapter", p)
		}
	}
}

func TestRequired(t *testing.T) {
	v := required("tone")
	if v("  ") == nil {
		t.Error("blank input should fail")
	}
	if v("warm") != nil {
		t.Error("non-blank input should pass")
	}
}

func serverConfig(provider string) *config.Config {
	return &config.Config{
		Provider:        provider,
		AzureEndpoint:   "https://res.openai.azure.com",
		AzureAPIKey:     "az",
		AzureModel:      "gpt-4o",
		AnthropicAPIKey: "ant",
		AnthropicModel:  "claude-sonnet-4-5-20250929",
		DailyLimit:      5,
	}
}

func TestBuildWriter(t *testing.T) {
	log := logger.Nop()

	w, err := buildWriter(serverConfig(config.ProviderAnthropic), log)
	if err != nil {
		t.Fatalf("buildWriter() error = %v", err)
	}
	if w.Name() != "anthropic:claude-sonnet-4-5-20250929>azure:gpt-4o" {
		t.Errorf("chain = %q, want primary first and gemini skipped", w.Name())
	}

	single := &config.Config{Provider: config.ProviderGemini, GeminiAPIKey: "g", GeminiModel: "gemini-2.5-flash"}
	w, err = buildWriter(single, log)
	if err != nil {
		t.Fatalf("buildWriter() error = %v", err)
	}
	if w.Name() != "gemini:gemini-2.5-flash" {
		t.Errorf("single writer = %q", w.Name())
	}

	missing := &config.Config{Provider: config.ProviderAzure, AnthropicAPIKey: "ant"}
	if _, err := buildWriter(missing, log); err == nil {
		t.Error("an unconfigured primary provider should fail")
	}
}

func TestBuildCounter_Memory(t *testing.T) {
	counter, closeFn, err := buildCounter(&config.Config{DailyLimit: 4}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	if _, ok := counter.(*quota.Memory); !ok {
		t.Errorf("counter = %T, want *quota.Memory", counter)
	}
	if counter.Limit() != 4 {
		t.Errorf("Limit() = %d", counter.Limit())
	}
}

func TestNewStore(t *testing.T) {
	ctx := t.Context()

	store, closeFn, err := newStore(ctx, &config.Config{}, logger.Nop())
	if err != nil || store != nil {
		t.Errorf("no store configured: store=%v err=%v", store, err)
	}
	closeFn()

	store, closeFn, err = newStore(ctx, &config.Config{BlobDir: t.TempDir()}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := store.(*storage.Local); !ok {
		t.Errorf("store = %T, want *storage.Local", store)
	}
}

func TestRunToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s"}
	if code := runToken(cfg, nil); code != 2 {
		t.Errorf("missing user exit = %d, want 2", code)
	}
	if code := runToken(cfg, []string{"alice", "forever"}); code != 2 {
		t.Errorf("bad ttl exit = %d, want 2", code)
	}
	if code := runToken(&config.Config{}, []string{"alice"}); code != 1 {
		t.Errorf("missing secret exit = %d, want 1", code)
	}
}

func TestNewApp(t *testing.T) {
	cfg := &config.Config{
		Endpoint:    "http://localhost:8080",
		DailyLimit:  3,
		DownloadDir: t.TempDir(),
	}
	a, cleanup, err := newApp(cfg, logger.Nop(), false)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer cleanup()

	if a.generator.LastRemaining() != -1 {
		t.Error("no generation has happened yet")
	}

	path, err := a.dist.Download(t.Context(), compose.MediaAsset{Kind: compose.KindNone}, caption.Caption{Title: "Hi"}, caption.ModeOverlay, caption.StyleStandard, "card.png")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if filepath.Dir(path) != cfg.DownloadDir {
		t.Errorf("downloaded to %s, want %s", path, cfg.DownloadDir)
	}

	if _, _, err := newApp(&config.Config{Endpoint: "ftp://nope"}, logger.Nop(), false); err == nil {
		t.Error("invalid endpoint should fail")
	}
}

type flakyBackend struct {
	fails int
	reqs  []caption.Request
}

func (b *flakyBackend) Generate(ctx context.Context, req caption.Request) (*caption.Response, error) {
	b.reqs = append(b.reqs, req)
	if len(b.reqs) <= b.fails {
		return nil, errors.New("caption service rejected the request")
	}
	return &caption.Response{
		Captions:          []caption.RemoteCaption{{Title: "Fresh roast", Caption: "Smell that?", CTA: "Visit us", Tags: "#coffee"}},
		RequestsRemaining: 9,
	}, nil
}

type flakyProber struct {
	fails int
	calls int
}

func (p *flakyProber) Probe(ctx context.Context, path string) (*video.Info, error) {
	p.calls++
	if p.calls <= p.fails {
		return nil, errors.New("file is still being written")
	}
	return &video.Info{HasVideo: true, Width: 640, Height: 360, Duration: 8 * time.Second}, nil
}

// scriptedApp builds an app whose failure prompt answers with choices in order.
func scriptedApp(backend caption.Backend, prober video.Prober, choices ...recovery) (*app, *[]string) {
	var offered []string
	a := &app{
		log:        logger.Nop(),
		generator:  caption.NewGenerator(backend, quota.Checker{Counter: quota.NewMemory(10), User: localUser}),
		compositor: compose.New(compose.WithProber(prober)),
		busy:       func(_ string, action func()) { action() },
	}
	a.onFail = func(err error, change string) recovery {
		offered = append(offered, change)
		if len(choices) == 0 {
			return recoverGiveUp
		}
		next := choices[0]
		choices = choices[1:]
		return next
	}
	return a, &offered
}

var coffeeBrief = caption.Request{Platform: "instagram", Tone: "cozy", Niche: "coffee", Goal: "saves", PostIdea: "new roast"}

func TestWriteCaptions_RetryKeepsBrief(t *testing.T) {
	backend := &flakyBackend{fails: 2}
	a, offered := scriptedApp(backend, nil, recoverRetry, recoverRetry)
	a.brief = func(prev caption.Request) (caption.Request, error) {
		t.Fatal("brief should not be asked again on retry")
		return prev, nil
	}

	captions, used, err := a.writeCaptions(context.Background(), coffeeBrief)
	if err != nil {
		t.Fatalf("writeCaptions() error = %v", err)
	}
	if len(captions) != 1 || captions[0].Title != "Fresh roast" {
		t.Errorf("captions = %+v", captions)
	}
	if used != coffeeBrief {
		t.Errorf("brief = %+v, want %+v", used, coffeeBrief)
	}
	if len(backend.reqs) != 3 {
		t.Fatalf("backend calls = %d, want 3", len(backend.reqs))
	}
	for i, r := range backend.reqs {
		if r != coffeeBrief {
			t.Errorf("call %d request = %+v, want the original brief", i, r)
		}
	}
	if len(*offered) != 2 || (*offered)[0] != "Change the brief" {
		t.Errorf("offered = %q", *offered)
	}
}

func TestWriteCaptions_ChangeBrief(t *testing.T) {
	backend := &flakyBackend{fails: 1}
	a, _ := scriptedApp(backend, nil, recoverChange)
	var prefilled caption.Request
	a.brief = func(prev caption.Request) (caption.Request, error) {
		prefilled = prev
		prev.Tone = "bold"
		return prev, nil
	}

	_, used, err := a.writeCaptions(context.Background(), coffeeBrief)
	if err != nil {
		t.Fatalf("writeCaptions() error = %v", err)
	}
	if prefilled != coffeeBrief {
		t.Errorf("brief form prefilled with %+v, want %+v", prefilled, coffeeBrief)
	}
	if used.Tone != "bold" || backend.reqs[1].Tone != "bold" {
		t.Errorf("edited brief not used: %+v, %+v", used, backend.reqs[1])
	}
}

func TestWriteCaptions_GiveUp(t *testing.T) {
	backend := &flakyBackend{fails: 5}
	a, _ := scriptedApp(backend, nil, recoverRetry, recoverGiveUp)

	_, _, err := a.writeCaptions(context.Background(), coffeeBrief)
	if err == nil {
		t.Fatal("writeCaptions() should return the last error on give up")
	}
	if len(backend.reqs) != 2 {
		t.Errorf("backend calls = %d, want 2", len(backend.reqs))
	}
	if a.generator.LastRemaining() != -1 {
		t.Errorf("LastRemaining() = %d, want -1", a.generator.LastRemaining())
	}
}

func TestWriteCaptions_QuotaRetryMakesNoCall(t *testing.T) {
	backend := &flakyBackend{}
	a, _ := scriptedApp(backend, nil, recoverRetry)
	a.generator = caption.NewGenerator(backend, quota.Checker{Counter: quota.NewMemory(1), User: localUser})
	ctx := context.Background()

	if _, _, err := a.writeCaptions(ctx, coffeeBrief); err != nil {
		t.Fatalf("first writeCaptions() error = %v", err)
	}
	_, _, err := a.writeCaptions(ctx, coffeeBrief)
	if !caption.IsKind(err, caption.KindQuotaExceeded) {
		t.Fatalf("error = %v, want quota exceeded", err)
	}
	if len(backend.reqs) != 1 {
		t.Errorf("backend calls = %d, want 1", len(backend.reqs))
	}
}

func TestLoadMedia_RetryKeepsFile(t *testing.T) {
	prober := &flakyProber{fails: 1}
	a, offered := scriptedApp(&flakyBackend{}, prober, recoverRetry)

	media, err := a.loadMedia(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("loadMedia() error = %v", err)
	}
	if media.Kind != compose.KindVideo || media.Path != "clip.mp4" || media.Duration != 8*time.Second {
		t.Errorf("media = %+v", media)
	}
	if prober.calls != 2 {
		t.Errorf("probe calls = %d, want 2", prober.calls)
	}
	if len(*offered) != 1 || (*offered)[0] != "Choose another file" {
		t.Errorf("offered = %q", *offered)
	}
}

func TestLoadMedia_GiveUp(t *testing.T) {
	prober := &flakyProber{fails: 3}
	a, _ := scriptedApp(&flakyBackend{}, prober)

	if _, err := a.loadMedia(context.Background(), "clip.mp4"); !caption.IsKind(err, caption.KindSourceNotReady) {
		t.Errorf("loadMedia() error = %v, want source not ready", err)
	}
	if prober.calls != 1 {
		t.Errorf("probe calls = %d, want 1", prober.calls)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"version", []string{"-version"}, 0},
		{"short version", []string{"-v"}, 0},
		{"help", []string{"-h"}, 0},
		{"unknown flag", []string{"-bogus"}, 2},
		{"token without user", []string{"token"}, 2},
		{"token without secret", []string{"token", "user-1"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%q) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}
