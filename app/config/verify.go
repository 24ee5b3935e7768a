package config

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchemaData []byte

// GenerateSchema generates a JSON schema for the Config struct, used by the
// internal schema generator and by editors for completion
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}

// EmbeddedSchema returns the generated schema shipped with the binary
func EmbeddedSchema() (map[string]interface{}, error) {
	var schema map[string]interface{}
	if err := json.Unmarshal(embeddedSchemaData, &schema); err != nil {
		return nil, fmt.Errorf("parse embedded schema: %w", err)
	}
	return schema, nil
}
