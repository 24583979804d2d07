package relabel

import (
	"math/rand/v2"
	"strings"
	"unicode"
)

// LabelSet is an immutable set of labels compared trimmed and lower-cased.
type LabelSet struct {
	set map[string]struct{}
}

// NewLabelSet normalises and deduplicates labels. Blank labels are dropped.
func NewLabelSet(labels []string) LabelSet {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		key := normalizeLabel(l)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return LabelSet{set: set}
}

// isPadding matches the characters a browser's String.trim removes: Unicode
// white space plus the byte order mark.
func isPadding(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimFunc(s, isPadding))
}

// Contains reports whether the trimmed, case-folded text is a label.
func (s LabelSet) Contains(text string) bool {
	_, ok := s.set[normalizeLabel(text)]
	return ok
}

// Len is the number of distinct labels.
func (s LabelSet) Len() int { return len(s.set) }

// Picker draws substitutes uniformly at random, with replacement.
// It is not safe for concurrent use.
type Picker struct {
	slogans []string
	rng     *rand.Rand
}

// NewPicker copies slogans. A nil rng gets a randomly seeded PCG source.
func NewPicker(slogans []string, rng *rand.Rand) (*Picker, error) {
	if len(slogans) == 0 {
		return nil, ErrNoSlogans
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Picker{
		slogans: append([]string(nil), slogans...),
		rng:     rng,
	}, nil
}

// Pick returns one slogan in upper case.
func (p *Picker) Pick() string {
	return strings.ToUpper(p.slogans[p.rng.IntN(len(p.slogans))])
}
