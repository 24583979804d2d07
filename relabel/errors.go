package relabel

import "errors"

var (
	// ErrNoLabels is returned by New when no non-blank label is configured.
	ErrNoLabels = errors.New("relabel: no labels configured")
	// ErrNoSlogans is returned when the substitute list is empty.
	ErrNoSlogans = errors.New("relabel: no slogans configured")
	// ErrSloganMatchesLabel rejects configurations where a rewritten fragment
	// would match again and re-trigger itself forever.
	ErrSloganMatchesLabel = errors.New("relabel: slogan matches a label")
	// ErrNoRoot is returned by Start when the tree has no root container.
	ErrNoRoot = errors.New("relabel: tree has no root")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("relabel: engine already started")
	// ErrWatcherState is returned when starting a watcher that is not idle.
	ErrWatcherState = errors.New("relabel: watcher is not idle")
	// ErrForeignNode is returned when a node from another tree is passed in.
	ErrForeignNode = errors.New("relabel: node does not belong to this tree")
)
