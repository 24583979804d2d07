package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// remote is the subset of the DevTools protocol a Page drives.
type remote interface {
	Document(ctx context.Context) (*cdp.Node, error)
	RequestChildNodes(ctx context.Context, id cdp.NodeID) error
	SetNodeValue(ctx context.Context, id cdp.NodeID, value string) error
	SetAttribute(ctx context.Context, id cdp.NodeID, name, value string) error
	SetInputValue(ctx context.Context, id cdp.NodeID, value string) error
	OuterHTML(ctx context.Context, id cdp.NodeID) (string, error)
	Evaluate(ctx context.Context, expr string) error
}

// cdpRemote runs each call on the tab bound to the context it is given.
type cdpRemote struct{}

func (cdpRemote) run(ctx context.Context, fn func(context.Context) error) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(fn))
}

func (r cdpRemote) Document(ctx context.Context) (*cdp.Node, error) {
	var root *cdp.Node
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		root, err = cdpdom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("browser: get document: %w", err)
	}
	return root, nil
}

func (r cdpRemote) RequestChildNodes(ctx context.Context, id cdp.NodeID) error {
	return r.run(ctx, func(ctx context.Context) error {
		return cdpdom.RequestChildNodes(id).WithDepth(-1).WithPierce(true).Do(ctx)
	})
}

func (r cdpRemote) SetNodeValue(ctx context.Context, id cdp.NodeID, value string) error {
	return r.run(ctx, func(ctx context.Context) error {
		return cdpdom.SetNodeValue(id, value).Do(ctx)
	})
}

func (r cdpRemote) SetAttribute(ctx context.Context, id cdp.NodeID, name, value string) error {
	return r.run(ctx, func(ctx context.Context) error {
		return cdpdom.SetAttributeValue(id, name, value).Do(ctx)
	})
}

// SetInputValue writes the live value property, which the value attribute
// stops tracking once the control is edited.
func (r cdpRemote) SetInputValue(ctx context.Context, id cdp.NodeID, value string) error {
	lit, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.run(ctx, func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithNodeID(id).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		_, exc, err := runtime.CallFunctionOn(fmt.Sprintf("function() { this.value = %s; }", lit)).
			WithObjectID(obj.ObjectID).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		return nil
	})
}

func (r cdpRemote) OuterHTML(ctx context.Context, id cdp.NodeID) (string, error) {
	var out string
	err := r.run(ctx, func(ctx context.Context) error {
		var err error
		out, err = cdpdom.GetOuterHTML().WithNodeID(id).Do(ctx)
		return err
	})
	return out, err
}

func (r cdpRemote) Evaluate(ctx context.Context, expr string) error {
	return chromedp.Run(ctx, chromedp.Evaluate(expr, nil))
}
