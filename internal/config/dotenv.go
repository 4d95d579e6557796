package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the first .env file found in the working directory or up to
// two parents above it. It returns the absolute path loaded, or "" when none
// was found; a missing file is normal inside containers.
func LoadDotEnv() string {
	envPaths := []string{
		".env",       // Current working directory (works in pods/containers)
		"../../.env", // If running from bin/ subdirectory
	}

	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		grandParentDir := filepath.Dir(parentDir)

		envPaths = append(envPaths,
			filepath.Join(parentDir, ".env"),
			filepath.Join(grandParentDir, ".env"),
		)
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			absPath, _ := filepath.Abs(envPath)
			return absPath
		}
	}

	return ""
}
