package main

import (
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/akshayaparida/react-component-editor-sub000/internal/devserver"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/config"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/logging"
)

var (
	serveConfigPath string
	serveAddr       string
	serveWatchPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the editor dev server",
	Long: `Serve starts the dev server: the playground page, the websocket
editor endpoint, the SSE mirror and, with --watch, reload-on-save for
on-disk component files.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "config file (default jsxedit.yaml if present)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides the config file")
	serveCmd.Flags().StringVar(&serveWatchPath, "watch", "", "JSX file or directory to reload on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// A .env file is optional; real environments set variables
	// directly.
	_ = godotenv.Load()

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveWatchPath != "" {
		cfg.Watch.Enabled = true
		cfg.Watch.Path = serveWatchPath
	}

	srv, err := devserver.New(cfg,
		devserver.WithLogger(buildLogger(cfg)),
		devserver.WithVersion(version),
	)
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}

func buildLogger(cfg *config.Config) logging.Logger {
	var opts []logging.LoggerOption
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		opts = append(opts, logging.WithLevel(slog.LevelDebug))
	case "warn":
		opts = append(opts, logging.WithLevel(slog.LevelWarn))
	case "error":
		opts = append(opts, logging.WithLevel(slog.LevelError))
	}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		opts = append(opts, logging.WithJSON())
	}
	return logging.NewSlogLogger(opts...)
}
