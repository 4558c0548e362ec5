package commands

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadRecords reads a YAML file holding either a single record or a list.
func loadRecords[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var records []T
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%s is empty", path)
		}
		return records, nil
	case yaml.MappingNode:
		var record T
		if err := root.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return []T{record}, nil
	default:
		return nil, errors.New(path + " must hold a record or a list of records")
	}
}
