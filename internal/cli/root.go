// Package cli implements shopctl, a terminal client for the cart and wishlist.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/erauner12/shopsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	APIBaseURL string
	DevSub     string
	LogLevel   string
	Format     string // "json" | "text"

	// Config is resolved by the root PersistentPreRunE
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for shopctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shopctl",
		Short: "Manage a shopsync cart and wishlist",
		Long: `shopctl edits the signed-in user's cart and wishlist against a shopsync server.

Every change is applied locally first, sent with retries, and rolled back
with a notification on stderr if the server refuses it.

Authentication, in order of precedence:
  --dev-sub / SHOPSYNC_DEV_SUB        dev-mode servers only, no token
  SHOPSYNC_TOKEN                      bearer token issued by your identity provider
  SHOPSYNC_JWT_SECRET + _JWT_SUBJECT  shopctl signs its own tokens; only for a
                                      trusted setup that shares the server's secret`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolveConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (json or yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIBaseURL, "api", "", "server base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.DevSub, "dev-sub", "", "act as this subject in dev mode")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error|off)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewWishlistCommand(opts))

	return cmd
}

// resolveConfig loads the config file and environment, then applies flags
func (o *RootOptions) resolveConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if o.APIBaseURL != "" {
		cfg.APIBaseURL = o.APIBaseURL
	}
	if o.DevSub != "" {
		cfg.DevMode = true
		cfg.DevSubject = o.DevSub
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	config.SetupLogging(cfg, cmd.ErrOrStderr())

	// Commands log through log.Ctx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(log.Logger.WithContext(ctx))

	o.Config = cfg
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
