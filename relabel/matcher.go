package relabel

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// TextMatcher rewrites text fragments whose trimmed content is a label.
type TextMatcher struct {
	labels   LabelSet
	picker   *Picker
	logger   *zap.Logger
	replaced atomic.Uint64
}

// NewTextMatcher builds a matcher over labels drawing from picker.
func NewTextMatcher(labels LabelSet, picker *Picker, logger *zap.Logger) *TextMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextMatcher{labels: labels, picker: picker, logger: logger}
}

// splitPadding separates the leading and trailing whitespace runs of s.
func splitPadding(s string) (lead, core, trail string) {
	rest := strings.TrimLeftFunc(s, isPadding)
	lead = s[:len(s)-len(rest)]
	core = strings.TrimRightFunc(rest, isPadding)
	trail = rest[len(core):]
	return lead, core, trail
}

// TryReplace rewrites fragment in place when it holds exactly a label,
// keeping its surrounding whitespace, then restyles the enclosing control
// (or the direct parent when there is none). It reports whether a
// substitution happened.
func (m *TextMatcher) TryReplace(fragment Node) bool {
	if fragment == nil || fragment.Kind() != TextNode {
		return false
	}
	lead, core, trail := splitPadding(fragment.Text())
	if !m.labels.Contains(core) {
		return false
	}
	sub := m.picker.Pick()
	if err := fragment.SetText(lead + sub + trail); err != nil {
		m.logger.Warn("rewrite text failed", zap.String("label", core), zap.Error(err))
		return false
	}
	m.replaced.Add(1)

	target := Resolve(fragment)
	kind := Classify(target)
	if target == nil {
		target = fragment.Parent()
	}
	if err := ApplyOverride(target); err != nil {
		m.logger.Warn("style override failed", zap.String("label", core), zap.Error(err))
	}
	m.logger.Debug("label replaced",
		zap.String("from", core),
		zap.String("to", sub),
		zap.Stringer("control", kind))
	return true
}

// Replaced counts successful substitutions.
func (m *TextMatcher) Replaced() uint64 { return m.replaced.Load() }

// ValueMatcher rewrites the value of submit, button and reset inputs.
type ValueMatcher struct {
	labels   LabelSet
	picker   *Picker
	logger   *zap.Logger
	replaced atomic.Uint64
}

// NewValueMatcher builds a matcher over labels drawing from picker.
func NewValueMatcher(labels LabelSet, picker *Picker, logger *zap.Logger) *ValueMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValueMatcher{labels: labels, picker: picker, logger: logger}
}

// IsValueControl reports whether n is an input whose label is its value.
func IsValueControl(n Node) bool {
	return n != nil && n.Kind() == ElementNode && n.Tag() == "input" && isValueInputType(n.Attr("type"))
}

// TryReplaceValue overwrites a matching control value with a substitute and
// restyles the control itself.
func (m *ValueMatcher) TryReplaceValue(control Node) bool {
	if !IsValueControl(control) {
		return false
	}
	val := control.Value()
	if !m.labels.Contains(val) {
		return false
	}
	sub := m.picker.Pick()
	if err := control.SetValue(sub); err != nil {
		m.logger.Warn("rewrite value failed", zap.String("label", val), zap.Error(err))
		return false
	}
	m.replaced.Add(1)
	if err := ApplyOverride(control); err != nil {
		m.logger.Warn("style override failed", zap.String("label", val), zap.Error(err))
	}
	m.logger.Debug("value replaced", zap.String("from", strings.TrimSpace(val)), zap.String("to", sub))
	return true
}

// Replaced counts successful substitutions.
func (m *ValueMatcher) Replaced() uint64 { return m.replaced.Load() }
