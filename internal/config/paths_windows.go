//go:build windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	return []string{
		"cpumon.yaml",
		filepath.Join(os.Getenv("LOCALAPPDATA"), "cpumon", "config.yaml"),
	}
}
