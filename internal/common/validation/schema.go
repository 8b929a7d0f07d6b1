// Package validation checks model output against the analysis contract.
package validation

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed analysis_schema.json
var analysisSchemaJSON []byte

var (
	schemaOnce     sync.Once
	analysisSchema *gojsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		analysisSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(analysisSchemaJSON))
	})
	return analysisSchema, schemaErr
}

// Check validates v against the analysis contract. Only the first entry of
// response_text.files is inspected, and leaf values are never type checked.
// The returned strings describe each violation and are meant for logs.
func Check(v interface{}) (bool, []string) {
	schema, err := compiledSchema()
	if err != nil {
		return false, []string{fmt.Sprintf("schema error: %v", err)}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return false, []string{fmt.Sprintf("validation error: %v", err)}
	}

	if result.Valid() {
		return true, nil
	}

	errs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = desc.String()
	}
	return false, errs
}

// IsValidGenAIFormat reports whether v satisfies the analysis contract.
// It never panics or returns an error; anything unexpected is simply invalid.
func IsValidGenAIFormat(v interface{}) bool {
	ok, _ := Check(v)
	return ok
}
