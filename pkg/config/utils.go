package config

import (
	"os"
	"path/filepath"
)

// findUp returns the path of name in dir or the closest parent holding it.
func findUp(dir, name string) (string, error) {
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// findEnvFile locates name, .env when empty, from the working directory up.
func findEnvFile(name string) (string, error) {
	if name == "" {
		name = ".env"
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findUp(wd, name)
}
