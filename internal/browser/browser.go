// Package browser drives Chrome over the DevTools protocol and exposes an open
// tab as a relabel.Tree.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"sloganeer/relabel"
)

const defaultTimeout = 30 * time.Second

// Options configures the Chrome process.
type Options struct {
	Headless bool
	// Timeout bounds navigation in Open.
	Timeout  time.Duration
	ExecPath string
	Logger   *zap.Logger
}

// Browser owns one Chrome process; each Open is a new tab in it.
type Browser struct {
	allocator context.Context
	cancel    context.CancelFunc
	opts      Options
	logger    *zap.Logger
}

// New prepares the allocator. Chrome itself starts with the first Open.
func New(opts Options) *Browser {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-extensions", true),
	)
	if opts.ExecPath != "" {
		flags = append(flags, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), flags...)
	return &Browser{
		allocator: allocCtx,
		cancel:    cancel,
		opts:      opts,
		logger:    opts.Logger.Named("browser"),
	}
}

// Close shuts Chrome down, closing every page.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Open loads target in a new tab and starts tracking its DOM.
func (b *Browser) Open(ctx context.Context, target string) (*Page, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("browser: empty target url")
	}
	sugar := b.logger.Sugar()
	tabCtx, cancelTab := chromedp.NewContext(b.allocator,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf))
	// The first Run allocates the tab; later timeouts must not close it.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, fmt.Errorf("browser: start tab: %w", err)
	}

	page := newPage(tabCtx, cancelTab, cdpRemote{}, b.logger)
	chromedp.ListenTarget(tabCtx, page.enqueue)

	runCtx, cancelRun := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancelRun()
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()

	err := chromedp.Run(runCtx,
		cdpdom.Enable(),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		cancelTab()
		return nil, fmt.Errorf("browser: load %s: %w", target, err)
	}
	// Node ids from here on are ours; no selector queries may run on this tab.
	root, err := page.remote.Document(runCtx)
	if err != nil {
		cancelTab()
		return nil, err
	}
	page.start(root)
	b.logger.Info("page opened", zap.String("url", target))
	return page, nil
}

// Relabel opens target, injects css, runs an engine over the live page for
// settle, then snapshots the document.
func (b *Browser) Relabel(ctx context.Context, target, css string, cfg relabel.Config, settle time.Duration) (string, relabel.Stats, error) {
	engine, err := relabel.New(cfg)
	if err != nil {
		return "", relabel.Stats{}, err
	}
	page, err := b.Open(ctx, target)
	if err != nil {
		return "", relabel.Stats{}, err
	}
	defer page.Close()

	if css != "" {
		if err := page.InjectStylesheet(ctx, css); err != nil {
			return "", relabel.Stats{}, err
		}
	}
	if err := engine.Start(page); err != nil {
		return "", relabel.Stats{}, err
	}
	select {
	case <-ctx.Done():
	case <-time.After(settle):
	}
	engine.Stop()
	if err := ctx.Err(); err != nil {
		return "", engine.Stats(), err
	}
	out, err := page.OuterHTML(ctx)
	return out, engine.Stats(), err
}
