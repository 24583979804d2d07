package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sloganeer/dom"
	"sloganeer/relabel"
)

const maxInputBytes = 10 << 20

type rewriteOptions struct {
	out     string
	seed    uint64
	noStyle bool
}

func newRewriteCmd(root *rootOptions) *cobra.Command {
	opts := &rewriteOptions{}
	cmd := &cobra.Command{
		Use:   "rewrite [file|url|-]",
		Short: "Rewrite one HTML page and print the result",
		Long: `Rewrite parses an HTML page, injects the override stylesheet and replaces
every configured label with a slogan. With no argument, or "-", the page is
read from stdin.

Example:
  sloganeer rewrite page.html --out page.rewritten.html
  sloganeer rewrite https://example.com/cart
  curl -s https://example.com | sloganeer rewrite --seed 42`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 1 {
				src = args[0]
			}
			return runRewrite(cmd, root, opts, src)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output path (default: stdout)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed for slogan picks (overrides config)")
	cmd.Flags().BoolVar(&opts.noStyle, "no-style", false, "do not inject the override stylesheet")
	return cmd
}

func runRewrite(cmd *cobra.Command, root *rootOptions, opts *rewriteOptions, src string) error {
	cfg, _, err := root.settings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.seed
	}
	logger, err := root.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	body, contentType, err := readPage(cmd.Context(), cmd.InOrStdin(), src, cfg.Server.Timeout)
	if err != nil {
		return err
	}
	doc, err := dom.ParseWithContentType(bytes.NewReader(body), contentType)
	if err != nil {
		return err
	}
	if !opts.noStyle && cfg.Stylesheet != "" {
		doc.InjectStylesheet(cfg.Stylesheet)
	}
	stats, err := relabel.RelabelDocument(doc, cfg.Engine(logger))
	if err != nil && !errors.Is(err, dom.ErrFlushLimit) {
		return err
	}
	if err != nil {
		logger.Warn("mutation delivery did not settle", zap.String("source", src), zap.Error(err))
	}
	logger.Info("page rewritten",
		zap.String("source", src),
		zap.Uint64("texts", stats.Texts),
		zap.Uint64("values", stats.Values))

	w := cmd.OutOrStdout()
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := doc.Render(w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// readPage loads src from stdin, an http(s) URL or a file. The content type
// is only known for URLs; otherwise the charset is sniffed from the markup.
func readPage(ctx context.Context, stdin io.Reader, src string, timeout time.Duration) ([]byte, string, error) {
	switch {
	case src == "" || src == "-":
		b, err := io.ReadAll(io.LimitReader(stdin, maxInputBytes))
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return b, "", nil
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		return fetchPage(ctx, src, timeout)
	default:
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", src, err)
		}
		return b, "", nil
	}
}

func fetchPage(ctx context.Context, target string, timeout time.Duration) ([]byte, string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %s", target, resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxInputBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", target, err)
	}
	return b, resp.Header.Get("Content-Type"), nil
}
