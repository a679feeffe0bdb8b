package funnel

import (
	"strings"

	"mkb/internal/intent"
)

// Stage is a phase of the guided-sales conversation.
type Stage string

const (
	// StageDiscovery profiles the buyer.
	StageDiscovery Stage = "discovery"
	// StageNarrowing pins down the category.
	StageNarrowing Stage = "narrowing"
	// StageRecommendation shortlists concrete products.
	StageRecommendation Stage = "recommendation"
	// StageConversion closes the purchase.
	StageConversion Stage = "conversion"
)

// Message-count boundaries between stages. Counts below narrowingFrom
// are always Discovery; counts at or past conversionLock are always
// Conversion.
const (
	narrowingFrom  = 3
	conversionHint = 8
	conversionLock = 12
)

// State is one classification outcome: the stage, how firmly it was
// chosen, and the playbook guide steering the prompt.
type State struct {
	Stage      Stage      `json:"stage"`
	Confidence float64    `json:"confidence"`
	Guide      StageGuide `json:"guide"`
}

// Tracker classifies conversations. It holds no per-conversation
// state: every call recomputes the stage from the history length, the
// current message, and the resolved intent.
type Tracker struct {
	playbook *Playbook
}

// NewTracker creates a tracker on the given playbook. A nil playbook
// means the built-in defaults.
func NewTracker(playbook *Playbook) *Tracker {
	if playbook == nil {
		playbook = DefaultPlaybook()
	}
	return &Tracker{playbook: playbook}
}

// Classify determines the conversation stage. historyLen counts the
// messages exchanged before the current one.
//
// Early conversations are Discovery regardless of content. Mid
// conversation, a resolved category moves from Narrowing to
// Recommendation. Late conversation, purchase keywords in the current
// message move to Conversion; very long conversations are Conversion
// unconditionally.
func (t *Tracker) Classify(historyLen int, message string, it intent.Intent) State {
	stage, confidence := t.classify(historyLen, message, it)
	return State{
		Stage:      stage,
		Confidence: confidence,
		Guide:      t.playbook.Guide(stage),
	}
}

func (t *Tracker) classify(historyLen int, message string, it intent.Intent) (Stage, float64) {
	switch {
	case historyLen < narrowingFrom:
		return StageDiscovery, 0.9

	case historyLen < conversionHint:
		if it.CategoryID != "" {
			return StageRecommendation, 0.8
		}
		return StageNarrowing, 0.7

	case historyLen < conversionLock:
		if t.hasPurchaseKeyword(message) {
			return StageConversion, 0.85
		}
		return StageRecommendation, 0.6

	default:
		return StageConversion, 0.95
	}
}

func (t *Tracker) hasPurchaseKeyword(message string) bool {
	msg := strings.ToLower(message)
	for _, kw := range t.playbook.PurchaseKeywords {
		if kw != "" && strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// Stages lists all stages in funnel order.
func Stages() []Stage {
	return []Stage{StageDiscovery, StageNarrowing, StageRecommendation, StageConversion}
}
