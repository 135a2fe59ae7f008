package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const (
	DefaultPort     = 3000
	DefaultBasePath = "/copilot-lexical/"
	DefaultEntry    = "index.html"
)

type Config struct {
	Port       int
	Root       string // project root; holds dist/ and package.json
	DistDir    string // build root served by the static handler
	Entry      string // entry document, relative to DistDir
	BasePath   string // public base the frontend was built with
	DataDir    string
	LogLevel   slog.Level
	LogFile    string // optional JSON log file, in addition to stderr
	Watch      bool   // watch DistDir and push distChanged to clients
	Gzip       bool
	Pprof      bool
	JupyterURL string  // remote notebook server, empty when running without one
	CopilotKey string  // CopilotKit public API key; empty disables the sidebar
	ToolRate   float64 // tool executions per second per client
	ToolBurst  int

	logLevel string
}

// Default returns the configuration used when no flags, env vars or
// positional arguments are given.
func Default() *Config {
	return &Config{
		Port:      DefaultPort,
		Entry:     DefaultEntry,
		BasePath:  DefaultBasePath,
		LogLevel:  slog.LevelInfo,
		Watch:     true,
		Gzip:      true,
		ToolRate:  5,
		ToolBurst: 10,
		logLevel:  "info",
	}
}

// BindFlags registers the server flags on fs.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port (the first positional argument wins)")
	fs.StringVar(&c.DistDir, "dist", c.DistDir, "Build output directory (default <root>/dist)")
	fs.StringVar(&c.Entry, "entry", c.Entry, "Entry document served for unmatched paths")
	fs.StringVar(&c.BasePath, "base-path", c.BasePath, "Public base path stripped from request paths")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "Path to data directory (default <root>/data)")
	fs.StringVar(&c.logLevel, "log-level", c.logLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Also write JSON logs to this file")
	fs.BoolVar(&c.Watch, "watch", c.Watch, "Watch the build output and notify connected pages")
	fs.BoolVar(&c.Gzip, "gzip", c.Gzip, "Compress responses for clients that accept gzip")
	fs.BoolVar(&c.Pprof, "pprof", c.Pprof, "Serve pprof endpoints at /debug/pprof/")
	fs.StringVar(&c.JupyterURL, "jupyter-url", c.JupyterURL, "Jupyter server URL for the runtime mode")
	fs.Float64Var(&c.ToolRate, "tool-rate", c.ToolRate, "Tool executions per second per client")
	fs.IntVar(&c.ToolBurst, "tool-burst", c.ToolBurst, "Tool execution burst per client")
}

// Finalize applies environment overrides and the positional [port] [path]
// arguments, then fills in the paths derived from the project root.
// Precedence: defaults < flags < env < positional arguments.
func (c *Config) Finalize(args []string, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv("COPILOT_LEXICAL_PORT"); v != "" {
		p, err := parsePort(v)
		if err != nil {
			return fmt.Errorf("COPILOT_LEXICAL_PORT: %w", err)
		}
		c.Port = p
	}
	if v := getenv("COPILOT_LEXICAL_ROOT"); v != "" {
		c.Root = v
	}
	if v := getenv("COPILOT_LEXICAL_DIST"); v != "" {
		c.DistDir = v
	}
	if v := getenv("COPILOT_LEXICAL_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("COPILOT_LEXICAL_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := getenv("COPILOT_LEXICAL_LOG_LEVEL"); v != "" {
		c.logLevel = v
	}
	if v := getenv("COPILOT_LEXICAL_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := getenv("COPILOT_LEXICAL_JUPYTER_URL"); v != "" {
		c.JupyterURL = v
	}
	if v := getenv("COPILOT_LEXICAL_WATCH"); v != "" {
		c.Watch = v == "1" || v == "true"
	}
	if v := getenv("COPILOT_LEXICAL_PPROF"); v != "" {
		c.Pprof = v == "1" || v == "true"
	}
	c.CopilotKey = strings.TrimSpace(getenv("VITE_COPILOT_KIT_API_KEY"))

	if len(args) > 2 {
		return fmt.Errorf("expected at most 2 arguments [port] [path], got %d", len(args))
	}
	if len(args) > 0 {
		p, err := parsePort(args[0])
		if err != nil {
			return fmt.Errorf("port argument: %w", err)
		}
		c.Port = p
	}
	if len(args) > 1 {
		c.Root = args[1]
	}

	if c.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		c.Root = wd
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("resolve root %q: %w", c.Root, err)
	}
	c.Root = root

	if c.DistDir == "" {
		c.DistDir = filepath.Join(c.Root, "dist")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.Root, "data")
	}
	if c.Entry == "" {
		c.Entry = DefaultEntry
	}
	c.BasePath = normalizeBasePath(c.BasePath)
	c.LogLevel = ParseLogLevel(c.logLevel)

	return nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if p < 0 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return p, nil
}

// normalizeBasePath returns "" for the root base, otherwise "/x/".
func normalizeBasePath(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return ""
	}
	return "/" + s + "/"
}

func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
