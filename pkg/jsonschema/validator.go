// Package jsonschema validates decoded JSON documents against a JSON Schema.
package jsonschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled JSON Schema.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Compile compiles schemaStr under the given resource name.
func Compile(name, schemaStr string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(name, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}

	return &Schema{name: name, compiled: compiled}, nil
}

// MustCompile is like Compile but panics on an invalid schema.
// Intended for schemas embedded in the binary.
func MustCompile(name, schemaStr string) *Schema {
	s, err := Compile(name, schemaStr)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON validates a raw JSON document.
func (s *Schema) ValidateJSON(data []byte) ValidationErrors {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}
	return s.ValidateValue(doc)
}

// ValidateValue validates an already decoded document.
//
// The value is normalised through a JSON round trip first, so documents
// decoded by other codecs (YAML, for instance) validate the same way.
func (s *Schema) ValidateValue(doc interface{}) ValidationErrors {
	data, err := json.Marshal(doc)
	if err != nil {
		return ValidationErrors{fmt.Errorf("document is not representable as JSON: %w", err)}
	}

	var normalised interface{}
	if err := json.Unmarshal(data, &normalised); err != nil {
		return ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}

	if err := s.compiled.Validate(normalised); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return extractValidationErrors(validationErr)
		}
		return ValidationErrors{err}
	}

	return nil
}

// ValidateWithErrors validates a JSON string against a JSON Schema string.
// Returns true if the JSON is valid, otherwise false and every violation.
func ValidateWithErrors(jsonStr, schemaStr string) (bool, ValidationErrors) {
	schema, err := Compile("schema.json", schemaStr)
	if err != nil {
		return false, ValidationErrors{err}
	}

	if errs := schema.ValidateJSON([]byte(jsonStr)); len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// extractValidationErrors flattens the leaf causes of a ValidationError.
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		return ValidationErrors{fmt.Errorf("%s: %s", location, err.Message)}
	}

	var errs ValidationErrors
	for _, cause := range err.Causes {
		errs = append(errs, extractValidationErrors(cause)...)
	}
	return errs
}
