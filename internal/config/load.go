package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOverrides reads a threshold override file. Keys absent from the file
// stay nil and keep their defaults on merge.
func LoadOverrides(path string) (Overrides, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("read thresholds %s: %w", path, err)
	}
	var o Overrides
	if err := yaml.Unmarshal(b, &o); err != nil {
		return Overrides{}, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	return o, nil
}
