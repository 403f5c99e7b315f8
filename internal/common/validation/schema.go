package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Tier2ResponseSchema accepts either a numeric score or the legacy categorical verdict.
const Tier2ResponseSchema = `{
  "type": "object",
  "properties": {
    "score": {"type": "integer", "minimum": 1, "maximum": 10},
    "verdict": {"type": "string", "enum": ["VALID", "INVALID", "UNCERTAIN"]},
    "reasoning": {"type": "string", "minLength": 1}
  },
  "required": ["reasoning"],
  "oneOf": [
    {"required": ["score"], "not": {"required": ["verdict"]}},
    {"required": ["verdict"], "not": {"required": ["score"]}}
  ]
}`

// Tier3ResponseSchema is the risk rubric response.
const Tier3ResponseSchema = `{
  "type": "object",
  "properties": {
    "risk_level": {"type": "string", "enum": ["LOW_RISK", "MODERATE_RISK", "NEEDS_ADDITIONAL_REVIEW"]},
    "reasoning": {"type": "string", "minLength": 1}
  },
  "required": ["risk_level", "reasoning"]
}`

var (
	tier2Schema = mustSchema(Tier2ResponseSchema)
	tier3Schema = mustSchema(Tier3ResponseSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return s
}

// ValidateTier2Response checks a raw Tier 2 agent response document.
func ValidateTier2Response(doc []byte) (*ValidationResult, error) {
	return validate(tier2Schema, doc)
}

// ValidateTier3Response checks a raw Tier 3 agent response document.
func ValidateTier3Response(doc []byte) (*ValidationResult, error) {
	return validate(tier3Schema, doc)
}

// ValidateDocument checks doc against an arbitrary JSON schema.
func ValidateDocument(schemaJSON string, doc []byte) (*ValidationResult, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return validate(s, doc)
}

func validate(s *gojsonschema.Schema, doc []byte) (*ValidationResult, error) {
	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
