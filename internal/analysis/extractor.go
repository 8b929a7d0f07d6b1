package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "conversation-analyzer/internal/common/errors"
)

const (
	jsonFenceOpen = "```json"
	fence         = "```"
)

// StripFences removes every "```json" marker, then every "```" marker, and
// trims surrounding whitespace.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, jsonFenceOpen, "")
	text = strings.ReplaceAll(text, fence, "")
	return strings.TrimSpace(text)
}

// ExtractJSONFromMarkdown decodes model output after stripping code fences.
// Numbers are kept as json.Number so values survive a re-encode unchanged.
// Any decode failure is a DECODE_ERROR; there is no partial recovery.
func ExtractJSONFromMarkdown(text string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(StripFences(text)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("unexpected end of JSON input")
		}
		return nil, apperrors.NewDecodeError(err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperrors.NewDecodeError(fmt.Errorf("extra data after JSON value at offset %d", dec.InputOffset()))
	}

	return v, nil
}
