// Package funnel classifies conversation progress into the four sales
// stages and carries the playbook that steers each stage's prompting.
package funnel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// PlaybookFile is the default filename for playbook overrides
const PlaybookFile = "playbook.toml"

// StageGuide is the guidance attached to one stage: what the
// conversation should achieve, the suggested move, and the prompt
// instructions handed to the completion layer.
type StageGuide struct {
	Goal         string `toml:"goal" json:"goal"`
	NextAction   string `toml:"next_action" json:"nextAction"`
	Instructions string `toml:"instructions" json:"instructions,omitempty"`
}

// Playbook declares the purchase-intent keywords and the per-stage
// guides. A playbook.toml file overrides the built-in defaults; stages
// the file does not mention keep their defaults.
type Playbook struct {
	// Version is the schema version
	Version int `toml:"version"`

	// PurchaseKeywords trigger the Conversion stage when they appear
	// in the current message
	PurchaseKeywords []string `toml:"purchase_keywords"`

	// Stages maps stage name to its guide
	Stages map[string]StageGuide `toml:"stages"`
}

// DefaultPlaybook returns the built-in playbook.
func DefaultPlaybook() *Playbook {
	return &Playbook{
		Version: 1,
		PurchaseKeywords: []string{
			"buy", "purchase", "price", "cost", "how much",
			"checkout", "order", "payment", "subscribe",
		},
		Stages: map[string]StageGuide{
			string(StageDiscovery): {
				Goal:         "Understand who the buyer is and what problem they are solving",
				NextAction:   "Ask one open question about their team, industry, or current tooling",
				Instructions: "Do not recommend specific products yet. Build a profile of the buyer.",
			},
			string(StageNarrowing): {
				Goal:         "Identify the product category that fits the stated problem",
				NextAction:   "Offer two or three candidate categories and ask which fits best",
				Instructions: "Use the category outline to orient the buyer. Keep answers short.",
			},
			string(StageRecommendation): {
				Goal:         "Present one or two products that match the resolved category",
				NextAction:   "Compare the shortlisted products on price and fit",
				Instructions: "Recommend at most two products and justify each pick in one sentence.",
			},
			string(StageConversion): {
				Goal:         "Close the purchase",
				NextAction:   "Summarize the chosen product, its price, and the listing link",
				Instructions: "Answer pricing and checkout questions directly. Do not introduce new products.",
			},
		},
	}
}

// ParsePlaybookFile parses a playbook.toml file from the given path
func ParsePlaybookFile(filePath string) (*Playbook, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook: %w", err)
	}

	var pb Playbook
	if err := toml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("failed to parse playbook: %w", err)
	}

	if pb.Version < 1 {
		pb.Version = 1
	}

	return &pb, nil
}

// LoadPlaybook returns the effective playbook: defaults overlaid with
// the file at path when one exists. An empty path or a missing file
// means pure defaults; a file that exists but does not parse is an
// error, not a silent fallback.
func LoadPlaybook(path string) (*Playbook, error) {
	pb := DefaultPlaybook()
	if path == "" {
		return pb, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return pb, nil
	}

	file, err := ParsePlaybookFile(path)
	if err != nil {
		return nil, err
	}

	if len(file.PurchaseKeywords) > 0 {
		pb.PurchaseKeywords = normalizePurchaseKeywords(file.PurchaseKeywords)
	}
	for name, guide := range file.Stages {
		if _, known := pb.Stages[name]; !known {
			return nil, fmt.Errorf("playbook declares unknown stage %q", name)
		}
		pb.Stages[name] = guide
	}

	return pb, nil
}

// WritePlaybookFile writes a playbook to the given path, creating the
// directory when needed. Used by the config CLI to scaffold an
// override file.
func WritePlaybookFile(filePath string, pb *Playbook) error {
	data, err := toml.Marshal(pb)
	if err != nil {
		return fmt.Errorf("failed to marshal playbook: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write playbook: %w", err)
	}

	return nil
}

// Guide returns the stage's guide, falling back to the built-in
// default when a hand-edited playbook dropped one.
func (p *Playbook) Guide(stage Stage) StageGuide {
	if guide, ok := p.Stages[string(stage)]; ok {
		return guide
	}
	return DefaultPlaybook().Stages[string(stage)]
}

func normalizePurchaseKeywords(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
