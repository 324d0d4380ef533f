package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// LoadCache reads a catalog saved by a previous session. A missing or
// corrupt cache is an error; callers fall back to live enumeration.
func LoadCache(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var templates []Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("corrupt catalog cache %s: %w", path, err)
	}
	return templates, nil
}

// SaveCache writes the catalog for the next session. The write is
// atomic, so a crash mid-save leaves the previous cache intact.
func SaveCache(path string, templates []Template) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}
