package analysis

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"
)

//go:embed prompts/analysis.tmpl
var analysisPromptRaw string

// analysisTemplate is parsed once and reused. Template data is inserted
// verbatim; text/template does not escape.
var analysisTemplate = template.Must(template.New("analysis").Parse(analysisPromptRaw))

type promptData struct {
	System       string
	OutputFormat string
	Content      string
}

// BuildPrompt lays out the #SYSTEM, #OUTPUT FORMAT and #USER sections.
// Inputs are not validated; empty strings are allowed.
func BuildPrompt(system, outputFormat, content string) (string, error) {
	var sb strings.Builder
	if err := analysisTemplate.Execute(&sb, promptData{
		System:       system,
		OutputFormat: outputFormat,
		Content:      content,
	}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ContentText renders the request's content value. Strings pass through;
// anything else becomes compact JSON.
func ContentText(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
