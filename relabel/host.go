package relabel

// NodeKind classifies host nodes. Only elements and text nodes take part in
// matching; everything else is traversed and skipped.
type NodeKind int

const (
	OtherNode NodeKind = iota
	ElementNode
	TextNode
)

// Node is the engine's view of one node of a host tree. Implementations must
// be comparable so that the same underlying node always yields equal values.
type Node interface {
	Kind() NodeKind
	// Tag is the lower-case element name, "" for non-elements.
	Tag() string
	// Attr returns the named attribute, "" when absent.
	Attr(name string) string
	// Parent returns the parent element, or nil at the top of the tree.
	Parent() Node
	Children() []Node
	// Text returns the character data of a text node.
	Text() string
	SetText(data string) error
	// Value returns the current value of a form control.
	Value() string
	SetValue(value string) error
	// SetStyle sets one declaration at override (!important) precedence.
	SetStyle(property, value string) error
}

// ChangeKind distinguishes change notifications.
type ChangeKind int

const (
	// ChangeStructural reports inserted nodes in Added.
	ChangeStructural ChangeKind = iota + 1
	// ChangeContent reports a text node whose data changed in Target.
	ChangeContent
)

// Change is one entry of a notification batch.
type Change struct {
	Kind   ChangeKind
	Added  []Node
	Target Node
}

// Subscription cancels a Subscribe registration.
type Subscription interface {
	// Unsubscribe guarantees no handler invocation starts after it returns.
	Unsubscribe()
}

// Tree is the host collaborator: a root container and a change feed covering
// node insertion and character data edits anywhere below a node.
type Tree interface {
	// Root returns the root container, or nil when the tree does not exist yet.
	Root() Node
	// Subscribe delivers change batches for the subtree of root to handle,
	// one batch at a time, in host order.
	Subscribe(root Node, handle func([]Change)) (Subscription, error)
}
