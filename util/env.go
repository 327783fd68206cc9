package util

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the first .env file found among paths (default: ./.env, ../.env).
// Variables already present in the process environment win. Returns the loaded path, if any.
func LoadDotEnv(paths ...string) (string, error) {
	if len(paths) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		paths = []string{
			filepath.Join(wd, ".env"),
			filepath.Join(wd, "..", ".env"),
		}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", err
		}
		return p, nil
	}
	return "", nil
}
