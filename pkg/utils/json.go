package utils

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSONFile writes data as indented JSON, atomically, with the given mode
func WriteJSONFile(filePath string, data interface{}, perm os.FileMode) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return AtomicWriteFile(filePath, jsonData, perm)
}

// ReadJSONFile reads a JSON file into target.
// A missing file is reported with an error wrapping os.ErrNotExist.
func ReadJSONFile(filePath string, target interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from %s: %w", filePath, err)
	}

	return nil
}
