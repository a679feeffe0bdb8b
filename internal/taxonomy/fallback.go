package taxonomy

import (
	_ "embed"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var fallbackYAML []byte

var (
	fallbackOnce sync.Once
	fallbackTree Tree
)

// Fallback returns the embedded static taxonomy. The document is part
// of the binary; a parse failure is a build defect and panics.
func Fallback() Tree {
	fallbackOnce.Do(func() {
		var t Tree
		if err := yaml.Unmarshal(fallbackYAML, &t); err != nil {
			panic("taxonomy: embedded fallback does not parse: " + err.Error())
		}
		t.FromFallback = true
		fallbackTree = t
	})
	return fallbackTree
}
