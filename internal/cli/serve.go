package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sloganeer/internal/browser"
	"sloganeer/internal/config"
	"sloganeer/internal/proxy"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	addr      string
	noBrowser bool
	chrome    string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the rewriting HTTP proxy",
		Long: `Serve starts an HTTP proxy. Pages requested through /fetch?url=... are
downloaded, relabeled and returned with their links pointing back at the
proxy. Sites configured with mode "js" are rendered in Chrome first.

Edits to the config file apply to new requests without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "serve js-mode sites over plain HTTP")
	cmd.Flags().StringVar(&opts.chrome, "chrome", "", "path to the Chrome executable")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, v, err := root.settings()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	logger, err := root.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pcfg := proxy.FromSettings(cfg, logger)
	if !opts.noBrowser {
		b := browser.New(browser.Options{
			Headless: cfg.Browser.Headless,
			Timeout:  cfg.Browser.Timeout,
			ExecPath: opts.chrome,
			Logger:   logger,
		})
		defer b.Close()
		pcfg.Browser = b
	}
	srv := proxy.New(pcfg)

	if file := v.ConfigFileUsed(); file != "" {
		config.Watch(v, func(c config.Config, err error) {
			if err != nil {
				logger.Warn("config reload rejected", zap.String("file", file), zap.Error(err))
				return
			}
			if err := pcfg.Rules.Set(proxy.RulesFromSettings(c)); err != nil {
				logger.Warn("config reload rejected", zap.String("file", file), zap.Error(err))
				return
			}
			logger.Info("config reloaded", zap.String("file", file), zap.Int("labels", len(c.Labels)))
		})
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	logger.Info("listening", zap.String("addr", ln.Addr().String()))
	return serveUntilDone(cmd.Context(), newHTTPServer(srv, logger), ln, logger)
}

func newHTTPServer(h http.Handler, logger *zap.Logger) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
}

// serveUntilDone serves on ln until ctx ends, then drains open requests.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
