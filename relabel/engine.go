// Package relabel rewrites purchase-style labels in a live content tree.
//
// Text fragments and submit-style input values whose trimmed, case-folded
// content equals a configured label are replaced by a random upper-case
// slogan, and the control carrying them is restyled flat gray, bold and
// borderless. An Engine makes one full pass over the tree and then follows
// the host's change notifications, re-checking only what changed.
//
// Rewrites are idempotent because a slogan can never be a label; New rejects
// configurations that would break that, since the engine's own writes come
// back to it as change notifications.
package relabel

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Config is the engine's construction input.
type Config struct {
	// Labels are matched verbatim, case-insensitively, ignoring surrounding
	// whitespace.
	Labels []string
	// Slogans are displayed upper-cased, chosen uniformly at random per match.
	Slogans []string
	// Rand drives slogan selection. When nil, a non-zero Seed seeds a PCG
	// source; otherwise the source is seeded randomly.
	Rand   *rand.Rand
	Seed   uint64
	Logger *zap.Logger
}

// Stats counts substitutions since construction.
type Stats struct {
	Texts  uint64
	Values uint64
}

// Engine wires the matchers, the scanner and the watcher for one tree.
type Engine struct {
	text    *TextMatcher
	value   *ValueMatcher
	scanner *Scanner
	watcher *Watcher
	logger  *zap.Logger

	mu      sync.Mutex
	started bool
}

// New validates cfg and builds an engine.
func New(cfg Config) (*Engine, error) {
	labels := NewLabelSet(cfg.Labels)
	if labels.Len() == 0 {
		return nil, ErrNoLabels
	}
	// Slogans are written upper-cased, and case mapping does not round-trip
	// ("ı" upper-cases to "I", which folds to "i"), so the written form is
	// what must never be a label.
	for _, s := range cfg.Slogans {
		if labels.Contains(s) || labels.Contains(strings.ToUpper(s)) {
			return nil, fmt.Errorf("relabel: slogan %q: %w", s, ErrSloganMatchesLabel)
		}
	}
	rng := cfg.Rand
	if rng == nil && cfg.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	}
	picker, err := NewPicker(cfg.Slogans, rng)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("relabel")

	text := NewTextMatcher(labels, picker, logger)
	value := NewValueMatcher(labels, picker, logger)
	scanner := NewScanner(text, value)
	return &Engine{
		text:    text,
		value:   value,
		scanner: scanner,
		watcher: NewWatcher(scanner, text, logger),
		logger:  logger,
	}, nil
}

// Start scans the whole tree once, then follows its changes. A tree without a
// root, or an engine that was stopped, leaves the tree untouched.
func (e *Engine) Start(tree Tree) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	if tree == nil {
		return ErrNoRoot
	}
	root := tree.Root()
	if root == nil {
		return ErrNoRoot
	}
	if st := e.watcher.State(); st != WatcherIdle {
		return fmt.Errorf("relabel: start %s engine: %w", st, ErrWatcherState)
	}
	res := e.scanner.Scan(root)
	if err := e.watcher.Start(tree, root); err != nil {
		return err
	}
	e.started = true
	e.logger.Info("engine started", zap.Int("texts", res.Texts), zap.Int("values", res.Values))
	return nil
}

// Stop ends watching. It is safe to call on an engine that never started.
func (e *Engine) Stop() {
	e.watcher.Stop()
	st := e.Stats()
	e.logger.Info("engine stopped", zap.Uint64("texts", st.Texts), zap.Uint64("values", st.Values))
}

// Stats reports substitution counters.
func (e *Engine) Stats() Stats {
	return Stats{Texts: e.text.Replaced(), Values: e.value.Replaced()}
}

// WatcherState exposes the watcher lifecycle.
func (e *Engine) WatcherState() WatcherState { return e.watcher.State() }
