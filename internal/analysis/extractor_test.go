package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "conversation-analyzer/internal/common/errors"
	"conversation-analyzer/internal/common/validation"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", "[1,2]"},
		{"surrounding whitespace", "  \n```json {\"a\":1} ```\t\n", `{"a":1}`},
		{"fences in the middle", "x```json y``` z", "x y z"},
		{"no fences", "  plain  ", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestStripFences_IdempotentWithoutFences(t *testing.T) {
	inputs := []string{"", "{}", `{"a":"b"}`, " \n [1, 2, 3] \n", "not json at all", "`single` and ``double``"}
	for _, in := range inputs {
		once := StripFences(in)
		assert.Equal(t, once, StripFences(once))
	}
}

func TestExtractJSONFromMarkdown_RoundTrip(t *testing.T) {
	payload := `{"response":1,"prompt_version":"v1","response_text":{"files":[{"filename":"a","contents":{"summary":"s","answers":[1.50,2],"others":{"big":12345678901234567890}}}]}}`

	var want interface{}
	require.NoError(t, json.Unmarshal([]byte(payload), &want))

	v, err := ExtractJSONFromMarkdown("```json\n" + payload + "\n```")
	require.NoError(t, err)
	assert.True(t, validation.IsValidGenAIFormat(v))

	encoded, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(encoded))

	others := v.(map[string]interface{})["response_text"].(map[string]interface{})["files"].([]interface{})[0].(map[string]interface{})["contents"].(map[string]interface{})["others"].(map[string]interface{})
	assert.Equal(t, json.Number("12345678901234567890"), others["big"])
}

func TestExtractJSONFromMarkdown_Scalars(t *testing.T) {
	v, err := ExtractJSONFromMarkdown("```json\n[1, \"a\", null]\n```")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{json.Number("1"), "a", nil}, v)

	v, err = ExtractJSONFromMarkdown("null")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestExtractJSONFromMarkdown_DecodeErrors(t *testing.T) {
	inputs := map[string]string{
		"prose":         "not json at all",
		"empty":         "",
		"only fences":   "```json\n```",
		"truncated":     `{"response": 1`,
		"trailing data": `{"a":1} {"b":2}`,
		"trailing text": `{"a":1} thanks!`,
		"single quotes": `{'a': 1}`,
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			v, err := ExtractJSONFromMarkdown(in)
			require.Error(t, err)
			assert.Nil(t, v)

			ae := apperrors.AsAnalysisError(err)
			assert.Equal(t, apperrors.KindDecode, ae.Kind)
			assert.Equal(t, 500, ae.StatusCode)
			assert.Regexp(t, `^extract_json_from_markdown: .+`, ae.Message)
		})
	}
}
