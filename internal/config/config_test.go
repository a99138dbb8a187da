package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090 got %d", cfg.Port)
	}
	if cfg.Profile.Name != "full" || cfg.Profile.MaxUploadBytes != 50<<20 {
		t.Fatalf("unexpected profile %+v", cfg.Profile)
	}
	if len(cfg.Profile.Formats) != 25 {
		t.Fatalf("expected 25 formats got %d", len(cfg.Profile.Formats))
	}
	if cfg.RetentionMaxAge != time.Hour {
		t.Fatalf("expected 1h retention got %s", cfg.RetentionMaxAge)
	}
	if cfg.Engine.Kind != "exec" || cfg.Engine.Command != "markitdown" || cfg.Engine.Timeout != 0 {
		t.Fatalf("unexpected engine %+v", cfg.Engine)
	}
	if cfg.StagingDir != "uploads" {
		t.Fatalf("unexpected staging dir %q", cfg.StagingDir)
	}
}

func TestLoadMinimalProfileWithOverrides(t *testing.T) {
	t.Setenv("PROFILE", "minimal")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("RETENTION_MAX_AGE", "30m")
	t.Setenv("ALLOW_ORIGINS", "https://a.example, *.example.org ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile.Name != "minimal" || cfg.Profile.MaxUploadBytes != 1024 {
		t.Fatalf("unexpected profile %+v", cfg.Profile)
	}
	if cfg.Profile.AllowSet().Allows("pdf") {
		t.Fatalf("minimal profile must not accept pdf")
	}
	if cfg.Engine.Kind != "builtin" {
		t.Fatalf("expected builtin engine for minimal profile got %q", cfg.Engine.Kind)
	}
	if cfg.RetentionMaxAge != 30*time.Minute {
		t.Fatalf("unexpected retention %s", cfg.RetentionMaxAge)
	}
	if len(cfg.AllowOrigins) != 2 {
		t.Fatalf("expected 2 origins got %v", cfg.AllowOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port", map[string]string{"PORT": "abc"}},
		{"profile", map[string]string{"PROFILE": "gigante"}},
		{"engine", map[string]string{"ENGINE": "magic"}},
		{"remote-sem-url", map[string]string{"ENGINE": "remote"}},
		{"builtin-perfil-full", map[string]string{"ENGINE": "builtin"}},
		{"timeout", map[string]string{"CONVERT_TIMEOUT": "depois"}},
		{"burst", map[string]string{"RATE_LIMIT_BURST": "0"}},
		{"log-format", map[string]string{"LOG_FORMAT": "xml"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadProfileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfil.yaml")
	content := "name: minimal\nmax_upload_bytes: 2048\nformats:\n  txt: text/plain\n  rst: text/x-rst\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	profile, err := LoadProfileFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.MaxUploadBytes != 2048 || profile.DefaultContentType != "text/plain" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	formats := profile.AllowSet()
	if !formats.Allows("rst") || formats.Allows("md") {
		t.Fatalf("unexpected formats %v", formats.Extensions())
	}
}

func TestLoadProfileFileRejectsEmptyCustomProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfil.yaml")
	if err := os.WriteFile(path, []byte("name: custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfileFile(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestBuiltinEngineFormatCoverage(t *testing.T) {
	full := FullProfile()
	gaps := full.BuiltinGaps()
	for _, ext := range []string{"pdf", "docx", "xlsx", "png", "mp3", "zip", "epub"} {
		found := false
		for _, gap := range gaps {
			if gap == ext {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %s among builtin gaps %v", ext, gaps)
		}
	}
	if err := CheckEngineFormats("builtin", full); err == nil {
		t.Fatal("expected builtin engine to be rejected for the full profile")
	}
	if err := CheckEngineFormats("exec", full); err != nil {
		t.Fatalf("unexpected error for exec: %v", err)
	}

	minimal := MinimalProfile()
	if gaps := minimal.BuiltinGaps(); len(gaps) != 0 {
		t.Fatalf("expected minimal profile fully served, gaps %v", gaps)
	}
	if got := DefaultEngineKind(minimal); got != "builtin" {
		t.Fatalf("expected builtin got %q", got)
	}
	if got := DefaultEngineKind(full); got != "exec" {
		t.Fatalf("expected exec got %q", got)
	}
}

func TestLoadBuiltinWithTextualProfileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfil.yaml")
	content := "name: textos\nmax_upload_bytes: 4096\nformats:\n  txt: text/plain\n  csv: text/csv\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROFILE_FILE", path)
	t.Setenv("ENGINE", "builtin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine.Kind != "builtin" || cfg.Profile.Name != "textos" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
