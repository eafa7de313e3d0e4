// Package cmd はhdrcalcのコマンドラインインターフェースを提供する
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hdrcalc/internal/config"
)

// rootOptions は全コマンドで共有するオプション
type rootOptions struct {
	configPath string
	logLevel   string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

// Execute はルートコマンドを実行する
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand はサブコマンドを登録したルートコマンドを作成する
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "hdrcalc",
		Short: "Plan and shoot HDR exposure brackets",
		Long: `hdrcalc turns shadow and highlight meter readings into bracketed
exposure sets and drives a camera through them, verifying every shutter
speed before each capture.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "hdrcalc.yaml", "Path to YAML config file (ignored when missing)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Shorthand for --log-level=debug")

	rootCmd.AddCommand(
		newSpeedsCommand(),
		newPlanCommand(opts),
		newValidateCommand(),
		newShootCommand(opts),
		newServeCommand(opts),
	)

	return rootCmd
}

// load は設定（.env を含む）を読み込み、ロガーを用意する
func (o *rootOptions) load(logOut io.Writer) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	if o.verbose {
		cfg.LogLevel = "debug"
	} else if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if logOut == nil {
		logOut = os.Stderr
	}
	o.cfg = cfg
	o.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(o.logger)
	return nil
}
