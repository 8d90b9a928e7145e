package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/huh"

	"captionkit/config"
	"captionkit/tui"
)

// ShellType is the syntax a profile file expects.
type ShellType int

const (
	ShellBashZsh ShellType = iota
	ShellFish
	ShellPowerShell
	ShellDotEnv
)

// shellProfile is a file the setup can write to.
type shellProfile struct {
	name     string
	path     string
	detected bool
}

// setupSettings are the wizard-side settings the setup writes.
type setupSettings struct {
	Endpoint        string
	Token           string
	DownloadDir     string
	HandwrittenFont string
}

func (s setupSettings) vars() [][2]string {
	out := [][2]string{{"CAPTIONKIT_ENDPOINT", s.Endpoint}}
	for _, kv := range [][2]string{
		{"CAPTIONKIT_TOKEN", s.Token},
		{"CAPTIONKIT_DOWNLOAD_DIR", s.DownloadDir},
		{"CAPTIONKIT_HANDWRITTEN_FONT", s.HandwrittenFont},
	} {
		if kv[1] != "" {
			out = append(out, kv)
		}
	}
	return out
}

// generateEnvExports renders settings for appending to a shell profile.
func generateEnvExports(s setupSettings, shell ShellType) string {
	var sb strings.Builder
	sb.WriteString("\n# captionkit configuration\n")
	for _, kv := range s.vars() {
		switch shell {
		case ShellFish:
			sb.WriteString(fmt.Sprintf("set -gx %s %s\n", kv[0], kv[1]))
		case ShellPowerShell:
			sb.WriteString(fmt.Sprintf("$env:%s = \"%s\"\n", kv[0], kv[1]))
		default:
			sb.WriteString(fmt.Sprintf("export %s=%s\n", kv[0], kv[1]))
		}
	}
	return sb.String()
}

// generateDotEnv renders settings as a fresh .env file.
func generateDotEnv(s setupSettings) string {
	var sb strings.Builder
	sb.WriteString("# captionkit configuration\n")
	for _, kv := range s.vars() {
		sb.WriteString(kv[0] + "=" + kv[1] + "\n")
	}
	return sb.String()
}

// getShellType infers the syntax from a profile path.
func getShellType(path string) ShellType {
	lower := strings.ToLower(path)
	// Windows separators are not path separators on unix
	base := lower
	if i := strings.LastIndexAny(lower, `/\`); i >= 0 {
		base = lower[i+1:]
	}
	switch {
	case strings.HasSuffix(lower, ".ps1"):
		return ShellPowerShell
	case strings.HasSuffix(lower, ".fish"):
		return ShellFish
	case base == ".env":
		return ShellDotEnv
	default:
		return ShellBashZsh
	}
}

// detectShell returns the user's shell and the profiles setup can write to.
// A local .env is always offered last.
func detectShell() (string, []shellProfile) {
	shell := os.Getenv("SHELL")
	if shell == "" && runtime.GOOS == "windows" {
		shell = "powershell"
	}
	home, _ := os.UserHomeDir()

	candidates := []struct {
		name  string
		path  string
		shell string
	}{
		{"~/.zshrc", filepath.Join(home, ".zshrc"), "zsh"},
		{"~/.bashrc", filepath.Join(home, ".bashrc"), "bash"},
		{"~/.bash_profile", filepath.Join(home, ".bash_profile"), "bash"},
		{"~/.config/fish/config.fish", filepath.Join(home, ".config", "fish", "config.fish"), "fish"},
		{"PowerShell profile", filepath.Join(home, "Documents", "PowerShell", "Microsoft.PowerShell_profile.ps1"), "powershell"},
	}

	var profiles []shellProfile
	for _, c := range candidates {
		if !fileExists(c.path) && !strings.Contains(shell, c.shell) {
			continue
		}
		profiles = append(profiles, shellProfile{
			name:     c.name,
			path:     c.path,
			detected: strings.Contains(shell, c.shell),
		})
	}
	profiles = append(profiles, shellProfile{
		name: ".env in current directory",
		path: filepath.Join(".", ".env"),
	})
	return shell, profiles
}

// shortenPath replaces the home directory prefix with ~.
func shortenPath(path, home string) string {
	if home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if strings.HasPrefix(path, home+string(filepath.Separator)) || strings.HasPrefix(path, home+"/") {
		return "~" + path[len(home):]
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// runSetup asks for the service settings and writes them to a profile.
func runSetup(cfg *config.Config) error {
	fmt.Println(tui.Header())
	fmt.Println(tui.SubtitleStyle.Render("Let's connect captionkit to your caption service."))

	s := setupSettings{
		Endpoint:        cfg.Endpoint,
		Token:           cfg.Token,
		DownloadDir:     cfg.DownloadDir,
		HandwrittenFont: cfg.HandwrittenFont,
	}
	err := runForm(huh.NewGroup(
		huh.NewInput().
			Title("Caption service URL").
			Validate(required("service URL")).
			Value(&s.Endpoint),
		huh.NewInput().
			Title("Bearer token").
			Description("Leave blank if the service runs with AUTH_DISABLED").
			EchoMode(huh.EchoModePassword).
			Value(&s.Token),
		huh.NewInput().
			Title("Download folder").
			Value(&s.DownloadDir),
		huh.NewInput().
			Title("Handwritten font (TTF)").
			Description("Optional").
			Value(&s.HandwrittenFont),
	))
	if err != nil {
		return err
	}

	shell, profiles := detectShell()
	home, _ := os.UserHomeDir()
	opts := make([]huh.Option[string], 0, len(profiles))
	for _, p := range profiles {
		label := p.name + "  " + tui.MutedStyle.Render(shortenPath(p.path, home))
		if p.detected {
			label += "  " + tui.BadgeStyle.Render(filepath.Base(shell))
		}
		opts = append(opts, huh.NewOption(label, p.path))
	}

	var target string
	if err := runForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Where should the settings go?").
			Options(opts...).
			Value(&target),
	)); err != nil {
		return err
	}

	if getShellType(target) == ShellDotEnv {
		if err := os.WriteFile(target, []byte(generateDotEnv(s)), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", target, err)
		}
		_, werr := f.WriteString(generateEnvExports(s, getShellType(target)))
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("failed to write %s: %w", target, werr)
		}
	}

	fmt.Println(tui.SuccessStyle.Render("Saved to " + shortenPath(target, home)))
	if getShellType(target) != ShellDotEnv {
		fmt.Println(tui.MutedStyle.Render("Open a new terminal (or source the file) before running captionkit."))
	}
	return nil
}
