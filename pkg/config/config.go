// Package config reads seed files of saved-search drafts.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xPuncker/job-watcher/pkg/types"
	"gopkg.in/yaml.v3"
)

const DefaultSeedPath = "config/searches.yaml"

type Seeds struct {
	Searches []types.Draft `yaml:"searches"`
}

// LoadSeeds parses a YAML seed file. Entries without a count get the default.
func LoadSeeds(seedPath string) (*Seeds, error) {
	if seedPath == "" {
		seedPath = DefaultSeedPath
	}

	absPath, err := filepath.Abs(seedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds Seeds
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i := range seeds.Searches {
		if seeds.Searches[i].Count == 0 {
			seeds.Searches[i].Count = types.DefaultCount
		}
	}

	return &seeds, nil
}

func (s *Seeds) GetSearchByName(name string) *types.Draft {
	for i := range s.Searches {
		if s.Searches[i].Name == name {
			return &s.Searches[i]
		}
	}
	return nil
}
