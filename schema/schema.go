// Package schema validates node parameter blocks against the JSON Schema
// each handler declares.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateParameters checks parameters against a handler's declared schema.
// A nil schema accepts anything.
func ValidateParameters(schema map[string]interface{}, parameters map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if parameters == nil {
		parameters = map[string]interface{}{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(parameters)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			details = append(details, resultErr.String())
		}
		return fmt.Errorf("invalid parameters: %s", strings.Join(details, "; "))
	}

	return nil
}
