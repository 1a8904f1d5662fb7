package ai

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	factsSchema      = mustCompileSchema("schemas/facts.json")
	assessmentSchema = mustCompileSchema("schemas/assessment.json")
)

var numberPattern = regexp.MustCompile(`-?(?:\d+(?:,\d{3})*(?:\.\d+)?|\.\d+)`)

// absentMarkers are strings providers use instead of null.
var absentMarkers = map[string]struct{}{
	"":        {},
	"null":    {},
	"none":    {},
	"unknown": {},
	"n/a":     {},
	"na":      {},
}

func mustCompileSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("parse schema %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}

	return schema
}

// stripFences removes markdown code fences a provider may wrap around its answer.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		// drop the language tag on the opening fence line
		if idx := strings.IndexByte(raw, '\n'); idx != -1 && !strings.ContainsAny(raw[:idx], "{[") {
			raw = raw[idx+1:]
		} else {
			raw = strings.TrimPrefix(strings.TrimPrefix(raw, "json"), "JSON")
		}
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// decodeObject parses fence-stripped provider output into a JSON object.
func decodeObject(raw string) (map[string]any, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrMalformedResponse, value)
	}

	return obj, nil
}

func validate(schema *jsonschema.Schema, value any) error {
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// coerceNumbers rewrites numeric strings under the given keys into numbers.
// Values that cannot be read unambiguously are left for schema validation to reject.
func coerceNumbers(obj map[string]any, keys ...string) {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		obj[key] = coerceNumber(value)
	}
}

func coerceNumber(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	trimmed := strings.TrimSpace(s)
	if _, absent := absentMarkers[strings.ToLower(trimmed)]; absent {
		return nil
	}

	loc := numberPattern.FindAllStringIndex(trimmed, -1)
	if len(loc) != 1 {
		return v
	}
	// units and size suffixes change the value, only currency marks may surround it
	if !onlyCurrencyMarks(trimmed[:loc[0][0]]) || !onlyCurrencyMarks(trimmed[loc[0][1]:]) {
		return v
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(trimmed[loc[0][0]:loc[0][1]], ",", ""), 64)
	if err != nil {
		return v
	}
	return f
}

func onlyCurrencyMarks(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) && !unicode.Is(unicode.Sc, r) && r != ',' {
			return false
		}
	}
	return true
}
