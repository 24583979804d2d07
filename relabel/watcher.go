package relabel

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// WatcherState is the lifecycle of a Watcher.
type WatcherState int

const (
	WatcherIdle WatcherState = iota
	WatcherWatching
	WatcherStopped
)

func (s WatcherState) String() string {
	switch s {
	case WatcherIdle:
		return "idle"
	case WatcherWatching:
		return "watching"
	case WatcherStopped:
		return "stopped"
	default:
		return fmt.Sprintf("WatcherState(%d)", int(s))
	}
}

// Watcher re-applies the matchers to whatever a change batch touched:
// a scan of each inserted element, a single TryReplace per edited fragment.
type Watcher struct {
	scanner *Scanner
	text    *TextMatcher
	logger  *zap.Logger

	mu    sync.Mutex
	state WatcherState
	sub   Subscription
}

// NewWatcher returns an idle watcher.
func NewWatcher(scanner *Scanner, text *TextMatcher, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{scanner: scanner, text: text, logger: logger}
}

// Start subscribes to the subtree of root. Only an idle watcher can start.
func (w *Watcher) Start(tree Tree, root Node) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WatcherIdle {
		return fmt.Errorf("relabel: start %s watcher: %w", w.state, ErrWatcherState)
	}
	sub, err := tree.Subscribe(root, w.handle)
	if err != nil {
		return fmt.Errorf("relabel: subscribe: %w", err)
	}
	w.sub = sub
	w.state = WatcherWatching
	return nil
}

// Stop unsubscribes. No batch is handled after Stop returns. It must not be
// called from inside a batch.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WatcherWatching && w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}
	w.state = WatcherStopped
}

// State returns the current lifecycle state.
func (w *Watcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) handle(changes []Change) {
	for _, ch := range changes {
		switch ch.Kind {
		case ChangeStructural:
			for _, n := range ch.Added {
				if n == nil || n.Kind() != ElementNode {
					continue
				}
				if res := w.scanner.Scan(n); res.Texts+res.Values > 0 {
					w.logger.Debug("inserted subtree relabeled",
						zap.String("tag", n.Tag()),
						zap.Int("texts", res.Texts),
						zap.Int("values", res.Values))
				}
			}
		case ChangeContent:
			w.text.TryReplace(ch.Target)
		}
	}
}
