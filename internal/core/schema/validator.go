// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Validator holds a compiled JSON schema
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile compiles a JSON schema given as raw JSON
func Compile(schemaJSON []byte) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("schema compile error: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// CompileMap compiles a JSON schema given as a decoded map, as found in YAML config files
func CompileMap(schema map[string]interface{}) (*Validator, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("schema compile error: failed to serialize schema: %w", err)
	}
	return Compile(schemaBytes)
}

// ValidateBytes validates a raw JSON document
func (v *Validator) ValidateBytes(document []byte) error {
	return v.validate(gojsonschema.NewBytesLoader(document))
}

// ValidateValue validates an already decoded value
func (v *Validator) ValidateValue(value interface{}) error {
	document, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("schema validation error: failed to serialize document: %w", err)
	}
	return v.ValidateBytes(document)
}

func (v *Validator) validate(loader gojsonschema.JSONLoader) error {
	result, err := v.schema.Validate(loader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}
