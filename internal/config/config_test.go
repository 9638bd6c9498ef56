package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateRequiresURL(t *testing.T) {
	cfg := New()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingURL) {
		t.Errorf("Validate() = %v, want ErrMissingURL", err)
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := New()
	cfg.URL = "https://cdn.example/playlist.m3u8"
	cfg.TempDir = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.TempDir != cfg.OutputDir {
		t.Errorf("TempDir = %q, want fallback to OutputDir", cfg.TempDir)
	}
	if cfg.Headers == nil {
		t.Error("Headers not initialized")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagegrab.yaml")
	data := "url: https://cdn.example/p.m3u8\nmaxBandwidth: 1048576\nheaders:\n  Referer: https://page.example/\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := New()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.URL != "https://cdn.example/p.m3u8" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.MaxBandwidth != 1048576 {
		t.Errorf("MaxBandwidth = %d, want 1048576", cfg.MaxBandwidth)
	}
	if cfg.Headers["Referer"] != "https://page.example/" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	cfg := New()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("LoadFile(missing) = %v, want nil", err)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagegrab.yaml")
	if err := os.WriteFile(path, []byte("bogusKey: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := New()
	if err := cfg.LoadFile(path); err == nil {
		t.Error("LoadFile accepted an unknown key")
	}
}
