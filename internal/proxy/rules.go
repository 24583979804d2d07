package proxy

import (
	"sync"

	"go.uber.org/zap"

	"sloganeer/relabel"
)

// Rules is what the proxy substitutes and how it restyles pages.
type Rules struct {
	Labels     []string
	Slogans    []string
	Seed       uint64
	Stylesheet string
}

func (r Rules) engine(logger *zap.Logger) relabel.Config {
	return relabel.Config{
		Labels:  r.Labels,
		Slogans: r.Slogans,
		Seed:    r.Seed,
		Logger:  logger,
	}
}

// RuleStore holds the current Rules. Every Set bumps the generation, which
// keys the page cache so that pages rewritten under old rules are not served.
type RuleStore struct {
	mu    sync.RWMutex
	rules Rules
	gen   uint64
}

// NewRuleStore validates r and stores it as generation 1.
func NewRuleStore(r Rules) (*RuleStore, error) {
	s := &RuleStore{}
	if err := s.Set(r); err != nil {
		return nil, err
	}
	return s, nil
}

// Set replaces the rules. Rules an engine cannot be built from are rejected
// and the previous ones stay in effect.
func (s *RuleStore) Set(r Rules) error {
	if _, err := relabel.New(r.engine(nil)); err != nil {
		return err
	}
	r.Labels = append([]string(nil), r.Labels...)
	r.Slogans = append([]string(nil), r.Slogans...)
	s.mu.Lock()
	s.rules = r
	s.gen++
	s.mu.Unlock()
	return nil
}

// Get returns the current rules and their generation.
func (s *RuleStore) Get() (Rules, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules, s.gen
}
