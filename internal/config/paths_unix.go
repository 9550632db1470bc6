//go:build !windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		"cpumon.yaml",
		filepath.Join(home, ".cpumon", "config.yaml"),
		"/etc/cpumon/config.yaml",
	}
}
