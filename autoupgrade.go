package main

import (
	"fmt"
	"log"
	"runtime/debug"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

// appVersion はビルド時に埋め込まれるバージョン情報である
var appVersion string

// getVersion は現在のアプリケーションバージョンを取得する
func getVersion() string {
	if appVersion != "" {
		return appVersion
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	return buildInfo.Main.Version
}

// selfUpdate はGitHubのリリースを確認し、新しい版があればバイナリを置き換える。
// 置き換えた場合は true を返すので、呼び出し側で再起動すること。
func selfUpdate(repo, token string) (bool, error) {
	currentVersion := getVersion()
	log.Println("Current version:", currentVersion)

	if currentVersion == "(devel)" || currentVersion == "unknown" {
		log.Println("NO VERSION INFO (DEV VERSION)")
		return false, nil
	}

	current, err := semver.ParseTolerant(currentVersion)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", currentVersion, err)
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{APIToken: token})
	if err != nil {
		return false, fmt.Errorf("create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(repo)
	if err != nil {
		return false, fmt.Errorf("detect latest release: %w", err)
	}
	if !found || !latest.Version.GT(current) {
		log.Println("Current version is the latest")
		return false, nil
	}

	log.Println("New version available:", latest.Version)
	if _, err := updater.UpdateSelf(current, repo); err != nil {
		return false, fmt.Errorf("update binary: %w", err)
	}

	log.Println("Successfully updated to version", latest.Version)
	return true, nil
}
