package share

import (
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
)

// Clipboard receives text for the user to paste.
type Clipboard interface {
	WriteText(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteText(text string) error {
	return clipboard.WriteAll(text)
}

// Opener opens a URL for the user.
type Opener interface {
	Open(url string) error
}

// BrowserOpener opens URLs in the default browser.
type BrowserOpener struct{}

// Open starts the platform URL handler without waiting for it.
func (BrowserOpener) Open(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}
