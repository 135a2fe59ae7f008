package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFinalizeDefaults(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	cfg := Default()
	if err := cfg.Finalize([]string{}, env(map[string]string{"COPILOT_LEXICAL_ROOT": root})); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.DistDir != filepath.Join(root, "dist") {
		t.Errorf("DistDir = %q", cfg.DistDir)
	}
	if cfg.DataDir != filepath.Join(root, "data") {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.BasePath != "/copilot-lexical/" {
		t.Errorf("BasePath = %q", cfg.BasePath)
	}
	if cfg.CopilotKey != "" {
		t.Errorf("CopilotKey = %q, want empty", cfg.CopilotKey)
	}
}

func TestFinalizePositionalArgs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	cfg := Default()
	getenv := env(map[string]string{"COPILOT_LEXICAL_PORT": "4000"})
	if err := cfg.Finalize([]string{"5182", root}, getenv); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 5182 {
		t.Errorf("Port = %d, want 5182 (positional wins over env)", cfg.Port)
	}
	if cfg.Root != root {
		t.Errorf("Root = %q, want %q", cfg.Root, root)
	}
}

func TestFinalizeEnvOverridesFlags(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"--port", "8080", "--log-level", "error", "--base-path", "/"}); err != nil {
		t.Fatal(err)
	}

	getenv := env(map[string]string{
		"COPILOT_LEXICAL_ROOT":      root,
		"COPILOT_LEXICAL_LOG_LEVEL": "debug",
		"VITE_COPILOT_KIT_API_KEY":  " ck_pub_123 ",
	})
	if err := cfg.Finalize(nil, getenv); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.BasePath != "" {
		t.Errorf("BasePath = %q, want empty for root base", cfg.BasePath)
	}
	if cfg.CopilotKey != "ck_pub_123" {
		t.Errorf("CopilotKey = %q", cfg.CopilotKey)
	}
}

func TestFinalizeRejectsBadPort(t *testing.T) {
	t.Parallel()

	for _, arg := range []string{"abc", "-1", "70000"} {
		cfg := Default()
		if err := cfg.Finalize([]string{arg}, env(nil)); err == nil {
			t.Errorf("Finalize(%q) succeeded, want error", arg)
		}
	}

	cfg := Default()
	if err := cfg.Finalize([]string{"1", "2", "3"}, env(nil)); err == nil {
		t.Error("expected error for three positional arguments")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
