package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sloganeer/internal/config"
)

// Version is stamped at build time with -ldflags "-X sloganeer/internal/cli.Version=...".
var Version = "dev"

type rootOptions struct {
	cfgFile string
	verbose bool
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "sloganeer",
		Short: "Sloganeer - swaps call-to-action labels for slogans",
		Long: `Sloganeer rewrites web pages so that their buy buttons, checkout links and
submit controls read like slogans instead, and keeps doing so as pages
change under it.

It can rewrite a saved page, serve pages through a rewriting proxy, or
follow a live page in Chrome.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: $HOME/.sloganeer/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(
		newRewriteCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sloganeer %s\n", Version)
		},
	}
}

// settings loads the configuration selected by --config.
func (o *rootOptions) settings() (config.Config, *viper.Viper, error) {
	v, err := config.NewViper(o.cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, v, nil
}

// logger is a production logger, or a development one with --verbose.
func (o *rootOptions) logger() (*zap.Logger, error) {
	if o.verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
