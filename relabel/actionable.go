package relabel

import "strings"

// ActionKind classifies interactive controls that receive the style override.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionButton
	ActionLink
	ActionSubmitControl
	// ActionCompositeWrapper is a storefront button drawn with spans
	// (span.a-button and its span.a-button-inner).
	ActionCompositeWrapper
)

func (k ActionKind) String() string {
	switch k {
	case ActionButton:
		return "button"
	case ActionLink:
		return "link"
	case ActionSubmitControl:
		return "submit-control"
	case ActionCompositeWrapper:
		return "composite-wrapper"
	default:
		return "none"
	}
}

// Classify reports which kind of interactive control n is.
func Classify(n Node) ActionKind {
	if n == nil || n.Kind() != ElementNode {
		return ActionNone
	}
	switch n.Tag() {
	case "button":
		return ActionButton
	case "a":
		return ActionLink
	case "input":
		if isValueInputType(n.Attr("type")) {
			return ActionSubmitControl
		}
	case "span":
		for _, c := range strings.Fields(n.Attr("class")) {
			if c == "a-button" || c == "a-button-inner" {
				return ActionCompositeWrapper
			}
		}
	}
	return ActionNone
}

// Resolve walks up from the fragment's parent element and returns the first
// interactive control, or nil when none encloses the fragment.
func Resolve(fragment Node) Node {
	if fragment == nil {
		return nil
	}
	for el := fragment.Parent(); el != nil; el = el.Parent() {
		if Classify(el) != ActionNone {
			return el
		}
	}
	return nil
}

func isValueInputType(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "submit", "button", "reset":
		return true
	}
	return false
}
