package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/huh/spinner"
	"github.com/creativeprojects/go-selfupdate"
)

// updateRepo is the GitHub owner/name releases are fetched from - set via ldflags
var updateRepo = "ecovision/ecovision"

// runUpdate replaces the running binary with the latest release
func runUpdate(ctx context.Context) error {
	if version == "dev" {
		return fmt.Errorf("development builds cannot self-update")
	}

	repo := updateRepo
	if env := os.Getenv("ECOVISION_UPDATE_REPO"); env != "" {
		repo = env
	}

	var latest *selfupdate.Release
	var found bool
	var detectErr error
	err := spinner.New().
		Title("Checking for updates...").
		Action(func() {
			latest, found, detectErr = selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repo))
		}).
		Run()
	if err != nil {
		return err
	}
	if detectErr != nil {
		return fmt.Errorf("failed to check for updates: %w", detectErr)
	}
	if !found {
		return fmt.Errorf("no release found for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	if latest.LessOrEqual(version) {
		fmt.Println(successStyle.Render("Already up to date (" + version + ")"))
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	var updateErr error
	err = spinner.New().
		Title("Downloading " + latest.Version() + "...").
		Action(func() {
			updateErr = selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe)
		}).
		Run()
	if err != nil {
		return err
	}
	if updateErr != nil {
		return fmt.Errorf("failed to update: %w", updateErr)
	}

	fmt.Println(successStyle.Render("Updated to " + latest.Version()))
	return nil
}
