package target

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads an ordered list of descriptors from a JSON or YAML file.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) ([]Descriptor, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var targets []Descriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &targets)
	default:
		err = json.Unmarshal(data, &targets)
	}
	if err != nil {
		return nil, fmt.Errorf("parse targets file %s: %w", path, err)
	}

	for i := range targets {
		if err := targets[i].Validate(); err != nil {
			return nil, fmt.Errorf("target %d (%s): %w", i, targets[i].DirName(), err)
		}
	}
	return targets, nil
}
