// SPDX-License-Identifier: Apache-2.0

package format

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile reads and parses a file, trying YAML first, then JSON
func ParseFile(filePath string, v interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	return ParseData(data, v)
}

// ParseData parses data, trying YAML first, then JSON
func ParseData(data []byte, v interface{}) error {
	err := yaml.Unmarshal(data, v)
	if err == nil {
		return nil
	}

	jsonErr := json.Unmarshal(data, v)
	if jsonErr == nil {
		return nil
	}

	return fmt.Errorf("failed to parse as YAML (%v) or JSON (%v)", err, jsonErr)
}

// NormalizeYAML converts map[interface{}]interface{} values, which the YAML
// decoder produces for mappings with non-string keys, into
// map[string]interface{} so they can be JSON encoded
func NormalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = NormalizeYAML(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = NormalizeYAML(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = NormalizeYAML(item)
		}
		return out
	default:
		return v
	}
}

// WriteFile writes data to a file in the format implied by its extension.
// JSON is used for .json, YAML for everything else.
func WriteFile(filePath string, v interface{}) error {
	data, err := Marshal(v, !IsJSONFile(filePath))
	if err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0644)
}

// Marshal encodes v as YAML or indented JSON
func Marshal(v interface{}, useYAML bool) ([]byte, error) {
	var data []byte
	var err error

	if useYAML {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}

	if err != nil {
		return nil, fmt.Errorf("error marshaling data: %w", err)
	}

	return data, nil
}

// FormatData formats data as a YAML or JSON string
func FormatData(v interface{}, useYAML bool) (string, error) {
	data, err := Marshal(v, useYAML)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsJSONFile returns true if the file extension suggests it's a JSON file
func IsJSONFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".json"
}
