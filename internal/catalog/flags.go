package catalog

import (
	"strings"
	"time"
)

// recencyWindow is how long after creation a product still counts as
// recently added when no stronger rule has an opinion.
const recencyWindow = 30 * 24 * time.Hour

// flagRule decides one merchandising flag for one product. The second
// return value reports whether the rule has an opinion at all; the
// first matching opinion commits and later rules are not consulted.
type flagRule func(p *Product, sig Signals, now time.Time) (value, opinion bool)

func signalListRule(pick func(Signals) []string) flagRule {
	return func(p *Product, sig Signals, now time.Time) (bool, bool) {
		for _, id := range pick(sig) {
			if id == p.ID {
				return true, true
			}
		}
		// Absence from a positive list is not an opinion.
		return false, false
	}
}

func hintRule(pick func(SourceHints) *bool) flagRule {
	return func(p *Product, sig Signals, now time.Time) (bool, bool) {
		if hint := pick(p.Hints); hint != nil {
			return *hint, true
		}
		return false, false
	}
}

func recencyRule(p *Product, sig Signals, now time.Time) (bool, bool) {
	if p.CreatedAt.IsZero() {
		return false, false
	}
	return now.Sub(p.CreatedAt) <= recencyWindow, true
}

func tagRule(wanted ...string) flagRule {
	return func(p *Product, sig Signals, now time.Time) (bool, bool) {
		for _, tag := range p.Tags {
			lower := strings.ToLower(tag)
			for _, w := range wanted {
				if lower == w {
					return true, true
				}
			}
		}
		return false, false
	}
}

// Rule order is the documented precedence: the editorial signal list
// overrides the source record's own flag, which overrides anything
// derived or guessed.
var (
	featuredRules = []flagRule{
		signalListRule(func(s Signals) []string { return s.Featured }),
		hintRule(func(h SourceHints) *bool { return h.Featured }),
		tagRule("featured"),
	}
	topSellingRules = []flagRule{
		signalListRule(func(s Signals) []string { return s.BestSelling }),
		hintRule(func(h SourceHints) *bool { return h.TopSelling }),
		tagRule("best seller", "best-seller", "bestseller"),
	}
	latestRules = []flagRule{
		signalListRule(func(s Signals) []string { return s.RecentlyAdded }),
		hintRule(func(h SourceHints) *bool { return h.Latest }),
		recencyRule,
	}
)

func resolveFlag(rules []flagRule, p *Product, sig Signals, now time.Time) bool {
	for _, rule := range rules {
		if value, opinion := rule(p, sig, now); opinion {
			return value
		}
	}
	return false
}

// ApplyFlags recomputes the merchandising flags of every product in
// place. Identity fields are never touched. Callers that share the
// slice should pass a copy (see CopyProducts).
func ApplyFlags(products []Product, sig Signals, now time.Time) {
	for i := range products {
		p := &products[i]
		p.Featured = resolveFlag(featuredRules, p, sig, now)
		p.TopSelling = resolveFlag(topSellingRules, p, sig, now)
		p.Latest = resolveFlag(latestRules, p, sig, now)
	}
}
