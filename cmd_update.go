package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/creativeprojects/go-selfupdate"

	"captionkit/tui"
)

// releaseSlug is the GitHub repository releases are published to.
const releaseSlug = "captionkit/captionkit"

const updateTimeout = 2 * time.Minute

// runUpdate replaces the running binary with the latest release.
func runUpdate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	var latest *selfupdate.Release
	var found bool
	var err error
	_ = spinner.New().
		Title("Checking for updates...").
		Action(func() {
			latest, found, err = selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(releaseSlug))
		}).
		Run()
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for this platform")
	}

	if version != "dev" && latest.LessOrEqual(version) {
		fmt.Println(tui.SuccessStyle.Render("captionkit " + version + " is up to date."))
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	_ = spinner.New().
		Title("Downloading captionkit " + latest.Version() + "...").
		Action(func() {
			err = selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe)
		}).
		Run()
	if err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	fmt.Println(tui.SuccessStyle.Render("Updated to captionkit " + latest.Version()))
	return nil
}
