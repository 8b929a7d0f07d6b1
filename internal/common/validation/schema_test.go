package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validAnalysis() map[string]interface{} {
	return map[string]interface{}{
		"response":       1,
		"prompt_version": "v1",
		"response_text": map[string]interface{}{
			"files": []interface{}{
				map[string]interface{}{
					"filename": "a",
					"contents": map[string]interface{}{
						"summary": "s",
						"answers": []interface{}{},
						"others":  map[string]interface{}{},
					},
				},
			},
		},
	}
}

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestIsValidGenAIFormat_Valid(t *testing.T) {
	assert.True(t, IsValidGenAIFormat(validAnalysis()))

	// Leaf values are never type checked.
	v := decode(t, `{"response":null,"prompt_version":3,"response_text":{"files":[{"filename":[],"contents":{"summary":null,"answers":"x","others":0}}]}}`)
	assert.True(t, IsValidGenAIFormat(v))
}

func TestIsValidGenAIFormat_OnlyFirstFileChecked(t *testing.T) {
	v := validAnalysis()
	rt := v["response_text"].(map[string]interface{})
	rt["files"] = append(rt["files"].([]interface{}), "not a file", 42)

	assert.True(t, IsValidGenAIFormat(v))
}

func TestIsValidGenAIFormat_MissingKeys(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(v map[string]interface{})
	}{
		{"missing response", func(v map[string]interface{}) { delete(v, "response") }},
		{"missing prompt_version", func(v map[string]interface{}) { delete(v, "prompt_version") }},
		{"missing response_text", func(v map[string]interface{}) { delete(v, "response_text") }},
		{"missing files", func(v map[string]interface{}) {
			delete(v["response_text"].(map[string]interface{}), "files")
		}},
		{"empty files", func(v map[string]interface{}) {
			v["response_text"].(map[string]interface{})["files"] = []interface{}{}
		}},
		{"missing filename", func(v map[string]interface{}) {
			delete(firstFile(v), "filename")
		}},
		{"missing contents", func(v map[string]interface{}) {
			delete(firstFile(v), "contents")
		}},
		{"missing summary", func(v map[string]interface{}) {
			delete(firstFile(v)["contents"].(map[string]interface{}), "summary")
		}},
		{"missing answers", func(v map[string]interface{}) {
			delete(firstFile(v)["contents"].(map[string]interface{}), "answers")
		}},
		{"missing others", func(v map[string]interface{}) {
			delete(firstFile(v)["contents"].(map[string]interface{}), "others")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validAnalysis()
			tt.mutate(v)
			ok, errs := Check(v)
			assert.False(t, ok)
			assert.NotEmpty(t, errs)
		})
	}
}

func TestIsValidGenAIFormat_WrongTypes(t *testing.T) {
	inputs := []string{
		`null`,
		`42`,
		`"text"`,
		`true`,
		`[]`,
		`[{"response":1,"prompt_version":1,"response_text":{}}]`,
		`{"response":1,"prompt_version":1,"response_text":"files"}`,
		`{"response":1,"prompt_version":1,"response_text":["files"]}`,
		`{"response":1,"prompt_version":1,"response_text":{"files":{"0":{}}}}`,
		`{"response":1,"prompt_version":1,"response_text":{"files":"abc"}}`,
		`{"response":1,"prompt_version":1,"response_text":{"files":[null]}}`,
		`{"response":1,"prompt_version":1,"response_text":{"files":[["filename","contents"]]}}`,
		`{"response":1,"prompt_version":1,"response_text":{"files":[{"filename":"a","contents":"summary answers others"}]}}`,
		`{"response":1,"prompt_version":1,"response_text":{"files":[{"filename":"a","contents":["summary","answers","others"]}]}}`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			v := decode(t, in)
			assert.NotPanics(t, func() {
				assert.False(t, IsValidGenAIFormat(v))
			})
		})
	}
}

func TestIsValidGenAIFormat_UnencodableValue(t *testing.T) {
	v := validAnalysis()
	v["response"] = func() {}

	assert.NotPanics(t, func() {
		assert.False(t, IsValidGenAIFormat(v))
	})
	assert.False(t, IsValidGenAIFormat(nil))
}

func firstFile(v map[string]interface{}) map[string]interface{} {
	files := v["response_text"].(map[string]interface{})["files"].([]interface{})
	return files[0].(map[string]interface{})
}
