// Package scrape fetches curated editorial pages and reduces them to
// plain text for the context assembler. Everything here is
// best-effort: a source that fails, times out, or parses badly
// degrades to an empty section.
package scrape

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultTTLMinutes = 30
	maxTTLMinutes     = 24 * 60
)

//go:embed sources.toml
var defaultSources []byte

// Source is one curated page in the registry.
type Source struct {
	// Name identifies the source in cache keys and section headers.
	Name string `toml:"name"`
	// URL is the absolute page address.
	URL string `toml:"url"`
	// TTLMinutes is how long extracted text stays fresh. Zero means
	// the 30 minute default; values above one day are capped.
	TTLMinutes int `toml:"ttl_minutes"`
	// MaxChars overrides the extraction cap for this source.
	MaxChars int `toml:"max_chars,omitempty"`
}

// TTL returns the source's cache lifetime.
func (s Source) TTL() time.Duration {
	minutes := s.TTLMinutes
	if minutes <= 0 {
		minutes = defaultTTLMinutes
	}
	if minutes > maxTTLMinutes {
		minutes = maxTTLMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Registry is the ordered list of sources. Order is significant: the
// assembler emits sections in registry order.
type Registry struct {
	Sources []Source `toml:"sources"`
}

// Empty reports whether the registry has no sources.
func (r Registry) Empty() bool { return len(r.Sources) == 0 }

// DefaultRegistry returns the registry embedded in the binary.
func DefaultRegistry() Registry {
	reg, err := parseRegistry(defaultSources)
	if err != nil {
		// The embedded file is validated by tests; failing to parse
		// it is a build defect.
		panic(fmt.Sprintf("embedded source registry invalid: %v", err))
	}
	return reg
}

// LoadRegistry reads a registry from path. An empty path returns the
// embedded defaults; a file replaces them entirely. A present but
// unreadable or invalid file is a loud error so a deployment never
// silently scrapes the wrong pages.
func LoadRegistry(path string) (Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("read source registry: %w", err)
	}
	reg, err := parseRegistry(data)
	if err != nil {
		return Registry{}, fmt.Errorf("source registry %s: %w", path, err)
	}
	return reg, nil
}

func parseRegistry(data []byte) (Registry, error) {
	var reg Registry
	if _, err := toml.Decode(string(data), &reg); err != nil {
		return Registry{}, fmt.Errorf("parse: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return Registry{}, err
	}
	return reg, nil
}

// Validate checks that every source is fetchable and addressable.
func (r Registry) Validate() error {
	seen := make(map[string]bool)
	for i, s := range r.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("sources[%d] (%s): url is required", i, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name: %s", s.Name)
		}
		seen[s.Name] = true
		if s.TTLMinutes < 0 {
			return fmt.Errorf("sources[%d] (%s): ttl_minutes must not be negative", i, s.Name)
		}
	}
	return nil
}
