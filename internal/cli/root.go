package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"workerd/internal/config"
)

// Version is overridden at build time via -ldflags "-X workerd/internal/cli.Version=...".
var Version = "dev"

// Swappable entry points so command wiring can be tested without binding ports.
var (
	fnServe     = runServe
	fnTokenizer = runTokenizer
	fnCheck     = runCheck
)

// Execute runs the command tree with os.Args and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := buildRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "workerd:", err)
		stop()
		os.Exit(1)
	}
}

func buildRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string
	var cfg config.Config

	root := &cobra.Command{
		Use:           "workerd",
		Short:         "Supervise LLM and tokenizer worker processes behind HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	pf.String("descriptors", config.DefaultDescriptorsPath, "Model descriptor file")
	pf.String("log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error (defaults WORKERD_LOG_LEVEL)")
	pf.String("log-format", config.DefaultLogFormat, "Log format: json|console")
	pf.String("request-log", "info", "Per-request log level: off|error|info|debug")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = resolveConfig(configPath, cmd.Flags(), nil); err != nil {
			return err
		}
		if _, err := setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}
		return nil
	}

	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the LLM service",
		Example: "  workerd serve --addr :8000 --descriptors ./models/model-descriptors.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			withTok, _ := cmd.Flags().GetBool("with-tokenizer")
			reqLog, _ := cmd.Flags().GetString("request-log")
			return fnServe(cmd.Context(), cfg, serveOptions{withTokenizer: withTok, requestLog: reqLog})
		},
	}
	serveCmd.Flags().String("addr", config.DefaultAddr, "HTTP listen address of the LLM service")
	serveCmd.Flags().String("tokenizer-addr", config.DefaultTokenizerAddr, "Address of the tokenizer service")
	serveCmd.Flags().String("metrics-dir", config.DefaultMetricsDir, "Directory for per-model metrics textfiles")
	serveCmd.Flags().String("cors-origins", "", "Comma-separated CORS origins; enables CORS")
	serveCmd.Flags().Int64("max-body-bytes", config.DefaultMaxBodyBytes, "Maximum JSON request body size")
	serveCmd.Flags().Bool("with-tokenizer", false, "Also run the tokenizer service in this process")

	tokCmd := &cobra.Command{
		Use:     "tokenizer",
		Short:   "Run the tokenizer service",
		Example: "  workerd tokenizer --tokenizer-addr :8101",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqLog, _ := cmd.Flags().GetString("request-log")
			return fnTokenizer(cmd.Context(), cfg, serveOptions{requestLog: reqLog})
		},
	}
	tokCmd.Flags().String("tokenizer-addr", config.DefaultTokenizerAddr, "HTTP listen address of the tokenizer service")
	tokCmd.Flags().String("cors-origins", "", "Comma-separated CORS origins; enables CORS")
	tokCmd.Flags().Int64("max-body-bytes", config.DefaultMaxBodyBytes, "Maximum JSON request body size")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate descriptors and report whether every executable can be found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnCheck(cmd.OutOrStdout(), cfg)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skip config resolution.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "workerd", Version)
		},
	}

	root.AddCommand(serveCmd, tokCmd, checkCmd, versionCmd)
	return root
}
