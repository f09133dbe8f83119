// Package knowledge loads the fixed FAQ set the index is built from.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/faqbot/engine/domain"
)

//go:embed faq.yaml
var defaultFAQ []byte

type file struct {
	Entries []domain.Entry `yaml:"entries"`
}

// Default returns the built-in FAQ set.
func Default() ([]domain.Entry, error) {
	return Parse(defaultFAQ)
}

// Load reads a FAQ set from path. An empty path yields the built-in set.
func Load(path string) ([]domain.Entry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge: %s: %w", path, err)
	}
	return entries, nil
}

// Parse decodes a YAML document of the form {entries: [{question, answer}]}.
// Positions follow list order.
func Parse(data []byte) ([]domain.Entry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("knowledge: decode: %w", err)
	}
	for i := range f.Entries {
		f.Entries[i].Position = i
		if err := domain.ValidateEntry(f.Entries[i]); err != nil {
			return nil, fmt.Errorf("knowledge: entry %d: %w", i, err)
		}
	}
	return f.Entries, nil
}
