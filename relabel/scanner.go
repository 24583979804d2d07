package relabel

// ScanResult counts the substitutions made by one Scan.
type ScanResult struct {
	Texts  int
	Values int
}

// Scanner visits a subtree depth-first in document order.
type Scanner struct {
	text  *TextMatcher
	value *ValueMatcher
}

// NewScanner pairs the two matchers.
func NewScanner(text *TextMatcher, value *ValueMatcher) *Scanner {
	return &Scanner{text: text, value: value}
}

// Scan applies the text matcher to every text node and the value matcher to
// every value control under root, root included.
func (s *Scanner) Scan(root Node) ScanResult {
	var res ScanResult
	if root == nil {
		return res
	}
	var visit func(Node)
	visit = func(n Node) {
		switch n.Kind() {
		case TextNode:
			if s.text.TryReplace(n) {
				res.Texts++
			}
			return
		case ElementNode:
			if IsValueControl(n) && s.value.TryReplaceValue(n) {
				res.Values++
			}
		}
		for _, c := range n.Children() {
			visit(c)
		}
	}
	visit(root)
	return res
}
