package resources

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
)

const (
	logoDir          = "logo/"
	workerScriptPath = "worker/emotion_worker.py"
	defaultsPath     = "defaults/settings.yaml"
)

//go:embed logo/*.svg
var logoFS embed.FS

//go:embed worker/emotion_worker.py defaults/settings.yaml
var filesFS embed.FS

var logoCache sync.Map

// Logo returns a Fyne resource for the given logo file.
func Logo(fileName string) (fyne.Resource, error) {
	return loadResource(logoFS, logoDir+fileName, &logoCache)
}

// MustLogo returns a Fyne resource or panics on error.
func MustLogo(fileName string) fyne.Resource {
	resource, err := Logo(fileName)
	if err != nil {
		panic(err)
	}
	return resource
}

// DefaultSettings returns the commented default settings file.
func DefaultSettings() []byte {
	data, err := filesFS.ReadFile(defaultsPath)
	if err != nil {
		panic(fmt.Sprintf("embedded %s: %v", defaultsPath, err))
	}
	return data
}

// WorkerScript returns the bundled emotion worker source.
func WorkerScript() []byte {
	data, err := filesFS.ReadFile(workerScriptPath)
	if err != nil {
		panic(fmt.Sprintf("embedded %s: %v", workerScriptPath, err))
	}
	return data
}

// WriteWorkerScript materializes the bundled worker under dir and returns
// its path. An existing identical file is left untouched.
func WriteWorkerScript(dir string) (string, error) {
	path := filepath.Join(dir, filepath.Base(workerScriptPath))
	data := WorkerScript()
	if existing, err := os.ReadFile(path); err == nil && string(existing) == string(data) {
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create worker dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write worker script: %w", err)
	}
	return path, nil
}

func loadResource(fs embed.FS, path string, cache *sync.Map) (fyne.Resource, error) {
	if cached, ok := cache.Load(path); ok {
		return cached.(fyne.Resource), nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load resource %s: %w", path, err)
	}

	resource := fyne.NewStaticResource(path, data)
	cache.Store(path, resource)
	return resource, nil
}
