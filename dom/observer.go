package dom

import (
	"errors"

	"golang.org/x/net/html"
)

// ErrFlushLimit is returned by Flush when deliveries keep producing new
// records past maxFlushRounds.
var ErrFlushLimit = errors.New("dom: mutation delivery did not settle")

const maxFlushRounds = 1000

// RecordType classifies a mutation record.
type RecordType string

const (
	RecordChildList     RecordType = "childList"
	RecordCharacterData RecordType = "characterData"
	RecordAttributes    RecordType = "attributes"
)

// Record describes one mutation.
type Record struct {
	Type          RecordType
	Target        *html.Node // parent for childList, the node itself otherwise
	AddedNodes    []*html.Node
	RemovedNodes  []*html.Node
	AttributeName string
	OldValue      string
}

// ObserveOptions selects which mutations an Observer receives.
type ObserveOptions struct {
	ChildList     bool
	CharacterData bool
	Attributes    bool
	Subtree       bool
}

// Observer receives batches of records for a target node.
type Observer struct {
	doc       *Document
	target    *html.Node
	opts      ObserveOptions
	callback  func([]Record)
	records   []Record
	queued    bool
	connected bool
}

// Observe registers callback for mutations of target (and its descendants
// when opts.Subtree is set). Records are delivered by Flush.
func (d *Document) Observe(target *html.Node, opts ObserveOptions, callback func([]Record)) *Observer {
	o := &Observer{
		doc:       d,
		target:    target,
		opts:      opts,
		callback:  callback,
		connected: true,
	}
	d.observers = append(d.observers, o)
	return o
}

// Disconnect stops delivery. Pending records are dropped; the callback is not
// invoked again once Disconnect returns.
func (o *Observer) Disconnect() {
	if !o.connected {
		return
	}
	o.connected = false
	o.records = nil
	obs := o.doc.observers
	for i, cur := range obs {
		if cur == o {
			o.doc.observers = append(obs[:i:i], obs[i+1:]...)
			break
		}
	}
}

// TakeRecords empties and returns the pending queue.
func (o *Observer) TakeRecords() []Record {
	recs := o.records
	o.records = nil
	return recs
}

func (o *Observer) wants(rec Record) bool {
	switch rec.Type {
	case RecordChildList:
		if !o.opts.ChildList {
			return false
		}
	case RecordCharacterData:
		if !o.opts.CharacterData {
			return false
		}
	case RecordAttributes:
		if !o.opts.Attributes {
			return false
		}
	}
	if rec.Target == o.target {
		return true
	}
	return o.opts.Subtree && Contains(o.target, rec.Target)
}

func (d *Document) notify(rec Record) {
	for _, o := range d.observers {
		if !o.wants(rec) {
			continue
		}
		o.records = append(o.records, rec)
		if !o.queued {
			o.queued = true
			d.queue = append(d.queue, o)
		}
	}
}

// Pending reports whether records are waiting for delivery.
func (d *Document) Pending() bool { return len(d.queue) > 0 }

// Flush delivers queued records, one batch per observer per round, in the
// order observers first received a record. Records produced by callbacks are
// delivered in later rounds of the same call.
func (d *Document) Flush() error {
	for round := 0; len(d.queue) > 0; round++ {
		if round >= maxFlushRounds {
			return ErrFlushLimit
		}
		queue := d.queue
		d.queue = nil
		for _, o := range queue {
			o.queued = false
			recs := o.TakeRecords()
			if len(recs) == 0 || !o.connected {
				continue
			}
			o.callback(recs)
		}
	}
	return nil
}
