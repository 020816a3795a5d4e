package resources

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteWorkerScript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "worker")
	path, err := WriteWorkerScript(dir)
	if err != nil {
		t.Fatalf("WriteWorkerScript returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if !bytes.Equal(data, WorkerScript()) {
		t.Fatal("written script differs from the embedded one")
	}

	again, err := WriteWorkerScript(dir)
	if err != nil || again != path {
		t.Fatalf("second write = %q, %v", again, err)
	}
}

func TestLogoIsCached(t *testing.T) {
	first, err := Logo("icon.svg")
	if err != nil {
		t.Fatalf("Logo returned error: %v", err)
	}
	second := MustLogo("icon.svg")
	if first != second {
		t.Fatal("expected the cached resource")
	}
	if _, err := Logo("missing.svg"); err == nil {
		t.Fatal("expected error for a missing logo")
	}
}

func TestDefaultSettingsEmbedded(t *testing.T) {
	if !bytes.Contains(DefaultSettings(), []byte("camera0:")) {
		t.Fatal("default settings missing camera0")
	}
}
