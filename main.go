package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	netpprof "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/cfilipov/copilot-lexical/internal/config"
	"github.com/cfilipov/copilot-lexical/internal/db"
	"github.com/cfilipov/copilot-lexical/internal/handlers"
	"github.com/cfilipov/copilot-lexical/internal/models"
	"github.com/cfilipov/copilot-lexical/internal/static"
	"github.com/cfilipov/copilot-lexical/internal/tools"
	"github.com/cfilipov/copilot-lexical/internal/ws"
)

// version is set at build time via -ldflags="-X main.version=..."
var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "copilot-lexical [port] [path]",
		Short: "Serve the Lexical + CopilotKit demo",
		Long: "Serves the built frontend from <path>/dist on <port>, with the document, " +
			"runtime-toggle and copilot tool APIs alongside it.",
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Finalize(args, os.Getenv); err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			return run(cmd.Context(), cfg)
		},
	}
	root.Version = version
	cfg.BindFlags(root.Flags())

	root.AddCommand(newHealthcheckCmd(), newImportCmd())
	return root
}

// setupLogging installs the default logger: text on stderr and, when a log
// file is configured, JSON records in that file as well.
func setupLogging(cfg *config.Config) (func(), error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	stderr := slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFile == "" {
		slog.SetDefault(slog.New(stderr))
		return func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(slog.New(slogmulti.Fanout(stderr, slog.NewJSONHandler(f, opts))))
	return func() { f.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("starting copilot-lexical",
		"version", version,
		"port", cfg.Port,
		"root", cfg.Root,
		"dist", cfg.DistDir,
		"dataDir", cfg.DataDir,
		"basePath", cfg.BasePath,
		"copilot", cfg.CopilotKey != "",
		"jupyterUrl", cfg.JupyterURL,
		"logLevel", cfg.LogLevel,
	)

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer database.Close()

	wss := ws.NewServer(rate.Limit(cfg.ToolRate), cfg.ToolBurst)

	app := &handlers.App{
		Settings:    models.NewSettingStore(database),
		Documents:   models.NewDocumentStore(database),
		Tools:       tools.NewRegistry(),
		WS:          wss,
		Config:      cfg,
		Version:     version,
		ToolLimiter: rate.NewLimiter(rate.Limit(cfg.ToolRate), cfg.ToolBurst),
	}

	mux := http.NewServeMux()
	app.RegisterAll(mux)

	if cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", netpprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", netpprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", netpprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", netpprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", netpprof.Trace)
		slog.Info("pprof enabled at /debug/pprof/")
	}

	frontendFS, fromDisk, err := frontend(cfg.DistDir)
	if err != nil {
		return err
	}
	var site http.Handler = static.NewHandler(frontendFS, cfg.Entry, cfg.BasePath)
	if cfg.Gzip {
		site = static.Gzip(site)
	}
	mux.Handle("/", site)

	if fromDisk && cfg.Watch {
		err := static.StartWatcher(ctx, cfg.DistDir, func() {
			ws.Broadcast(wss, handlers.EventDistChanged, struct{}{})
		})
		if err != nil {
			slog.Warn("build output watcher failed to start", "err", err)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "url", fmt.Sprintf("http://localhost:%d%s", cfg.Port, cfg.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errc:
		return err
	case <-quit:
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	wss.CloseAll()
	return srv.Shutdown(shutdownCtx)
}

// frontend returns the build root: the on-disk directory when it exists,
// otherwise the copy embedded at build time.
func frontend(distDir string) (fs.FS, bool, error) {
	if info, err := os.Stat(distDir); err == nil && info.IsDir() {
		slog.Info("serving frontend from filesystem", "path", distDir)
		return os.DirFS(distDir), true, nil
	}
	sub, err := fs.Sub(staticFiles, "dist")
	if err != nil {
		return nil, false, fmt.Errorf("embedded frontend: %w", err)
	}
	slog.Info("serving embedded frontend", "missing", distDir)
	return sub, false, nil
}

// newHealthcheckCmd probes /healthz. It skips all server initialization so
// it can run as a container health check.
func newHealthcheckCmd() *cobra.Command {
	port := config.DefaultPort
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Exit 0 if the server on --port answers /healthz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				if v := os.Getenv("COPILOT_LEXICAL_PORT"); v != "" {
					p, err := strconv.Atoi(v)
					if err != nil {
						return fmt.Errorf("COPILOT_LEXICAL_PORT: %w", err)
					}
					port = p
				}
			}
			return healthcheck(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
		},
	}
	cmd.Flags().IntVar(&port, "port", port, "Port the server listens on")
	return cmd
}

func healthcheck(url string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz returned %d", resp.StatusCode)
	}
	return nil
}

// newImportCmd stores editor content from a file as a document. The content
// is not validated; content that does not parse loads as an empty paragraph.
func newImportCmd() *cobra.Command {
	cfg := config.Default()
	var id string
	cmd := &cobra.Command{
		Use:   "import <file> [path]",
		Short: "Store saved editor content as a document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			// Reuse the server's [port] [path] handling for the project root.
			if err := cfg.Finalize(append([]string{strconv.Itoa(cfg.Port)}, args[1:]...), os.Getenv); err != nil {
				return err
			}
			database, err := db.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := models.NewDocumentStore(database).PutRaw(id, content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %q\n", args[0], id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", tools.DefaultDocumentID, "Document id")
	cmd.Flags().StringVar(&cfg.DataDir, "data-dir", "", "Path to data directory (default <path>/data)")
	return cmd
}
