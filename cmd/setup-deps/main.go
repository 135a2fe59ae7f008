// setup-deps points the frontend's editor dependency at the published
// release under CI, or at a sibling local checkout otherwise. Run it before
// npm install.
//
// Usage: go run ./cmd/setup-deps [--manifest package.json] [--ci]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfilipov/copilot-lexical/internal/config"
	"github.com/cfilipov/copilot-lexical/internal/deps"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	opts := deps.Options{
		Manifest:  "package.json",
		Package:   deps.DefaultPackage,
		LocalPath: deps.DefaultLocalPath,
		Version:   deps.DefaultVersion,
	}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "setup-deps",
		Short:         "Switch the editor dependency between CI and local builds",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: config.ParseLogLevel(logLevel),
			})))

			if !cmd.Flags().Changed("ci") {
				opts.CI = deps.DetectCI(os.Getenv)
			}
			res, err := deps.Switch(opts)
			if err != nil {
				return err
			}
			if !res.Changed {
				slog.Debug("dependency already set", "package", opts.Package, "value", res.Target)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Manifest, "manifest", opts.Manifest, "Path to package.json")
	f.StringVar(&opts.Package, "package", opts.Package, "Dependency to switch")
	f.StringVar(&opts.LocalPath, "local", opts.LocalPath, "Dependency value for local builds")
	f.StringVar(&opts.Version, "version", opts.Version, "Dependency value for CI builds")
	f.BoolVar(&opts.CI, "ci", false, "Force the CI value (default: detected from CI or GITHUB_ACTIONS)")
	f.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}
