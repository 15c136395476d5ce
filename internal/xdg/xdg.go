// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package xdg locates AuthGate config files under the XDG base directories.
package xdg

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "authgate"

// ConfigFileName is the file name searched for in each config directory.
const ConfigFileName = "authgate.yaml"

// ConfigDir returns $XDG_CONFIG_HOME/authgate, falling back to ~/.config/authgate.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// SearchDirs returns the directories searched for a config file, most
// specific first: the user config dir, then each entry of $XDG_CONFIG_DIRS
// (default /etc/xdg), then /etc/authgate.
func SearchDirs() []string {
	dirs := []string{ConfigDir()}

	system := os.Getenv("XDG_CONFIG_DIRS")
	if system == "" {
		system = "/etc/xdg"
	}
	for _, d := range strings.Split(system, string(os.PathListSeparator)) {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, filepath.Join(d, appName))
		}
	}
	return append(dirs, filepath.Join("/etc", appName))
}

// FindConfig returns the first existing config file in SearchDirs, or ""
// when there is none.
func FindConfig() string {
	for _, dir := range SearchDirs() {
		path := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}
