package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sloganeer/internal/browser"
	"sloganeer/relabel"
)

type watchOptions struct {
	headful  bool
	duration time.Duration
	every    time.Duration
	chrome   string
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Relabel a live page in Chrome until interrupted",
		Long: `Watch opens a page in Chrome and keeps relabeling it as scripts change it.
Run with --headful to look at the result, and --verbose to log every
substitution.

Example:
  sloganeer watch https://www.amazon.com --headful -v`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.headful, "headful", false, "show the browser window")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().DurationVar(&opts.every, "stats-every", 10*time.Second, "how often to log substitution counts")
	cmd.Flags().StringVar(&opts.chrome, "chrome", "", "path to the Chrome executable")
	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, opts *watchOptions, target string) error {
	cfg, _, err := root.settings()
	if err != nil {
		return err
	}
	logger, err := root.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engine, err := relabel.New(cfg.Engine(logger))
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	b := browser.New(browser.Options{
		Headless: cfg.Browser.Headless && !opts.headful,
		Timeout:  cfg.Browser.Timeout,
		ExecPath: opts.chrome,
		Logger:   logger,
	})
	defer b.Close()
	page, err := b.Open(ctx, target)
	if err != nil {
		return err
	}
	defer page.Close()
	if cfg.Stylesheet != "" {
		if err := page.InjectStylesheet(ctx, cfg.Stylesheet); err != nil {
			return err
		}
	}
	if err := engine.Start(page); err != nil {
		return err
	}
	defer engine.Stop()

	if opts.every > 0 {
		reportStats(ctx, engine, opts.every, logger)
	} else {
		<-ctx.Done()
	}

	st := engine.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d texts, %d values relabeled\n", target, st.Texts, st.Values)
	return nil
}

func reportStats(ctx context.Context, engine *relabel.Engine, every time.Duration, logger *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	var last relabel.Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := engine.Stats()
			if st == last {
				continue
			}
			last = st
			logger.Info("relabeling",
				zap.Uint64("texts", st.Texts),
				zap.Uint64("values", st.Values),
				zap.String("watcher", engine.WatcherState().String()))
		}
	}
}
