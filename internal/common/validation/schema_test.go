package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTier2Response(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		valid bool
		field string
	}{
		{name: "scored", doc: `{"score": 8, "reasoning": "reporter and volume match"}`, valid: true},
		{name: "categorical", doc: `{"verdict": "INVALID", "reasoning": "no such case"}`, valid: true},
		{name: "score out of range", doc: `{"score": 11, "reasoning": "x"}`, valid: false, field: "score"},
		{name: "both variants", doc: `{"score": 5, "verdict": "VALID", "reasoning": "x"}`, valid: false},
		{name: "neither variant", doc: `{"reasoning": "x"}`, valid: false},
		{name: "missing reasoning", doc: `{"score": 5}`, valid: false},
		{name: "unknown verdict", doc: `{"verdict": "MAYBE", "reasoning": "x"}`, valid: false, field: "verdict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateTier2Response([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid, res.GetErrorMessages())
			if tt.field != "" {
				assert.True(t, res.HasErrors(tt.field), res.GetErrorMessages())
			}
		})
	}
}

func TestValidateTier3Response(t *testing.T) {
	res, err := ValidateTier3Response([]byte(`{"risk_level": "MODERATE_RISK", "reasoning": "pin cite off by one page"}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = ValidateTier3Response([]byte(`{"risk_level": "HIGH", "reasoning": "x"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("risk_level"))
}

func TestValidateDocument_MalformedJSON(t *testing.T) {
	_, err := ValidateTier3Response([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ValidateDocument(`{"type": 12}`, []byte(`{}`))
	assert.Error(t, err)
}
