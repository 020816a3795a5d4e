package face

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CascadeFile is the frontal face model shipped with OpenCV.
const CascadeFile = "haarcascade_frontalface_default.xml"

// ErrCascadeNotFound is returned when no cascade file can be located.
var ErrCascadeNotFound = errors.New("face cascade not found")

// SearchDirs are the usual OpenCV data directories.
var SearchDirs = []string{
	"/usr/share/opencv4/haarcascades",
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv/haarcascades",
	"/usr/local/share/opencv/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
}

// FindCascade returns configured when it names a readable file, otherwise
// the first CascadeFile found in dirs.
func FindCascade(configured string, dirs []string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("face cascade %s: %w", configured, err)
		}
		return configured, nil
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, CascadeFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", ErrCascadeNotFound
}
