// Package utils decodes hand-written or exported financial records that are
// not always strict JSON.
package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON fixes common defects in exported JSON using
// github.com/RealAlexandreAI/json-repair:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - Trailing commas
// - NaN placeholders left by spreadsheet exports
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson allows comments, unquoted keys and optional commas, which is how
// analysts tend to write records by hand.
func ParseHJSON(data string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(data), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(out), nil
}

// DecodeLenient decodes input into v, trying each strategy in order:
// 1. Standard JSON
// 2. Hjson, re-encoded as JSON
// 3. JSON repair
//
// Every strategy ends in encoding/json so custom UnmarshalJSON methods on
// the target (such as stream.Series) always run. It returns the name of the
// strategy that succeeded.
func DecodeLenient(input string, v interface{}) (string, error) {
	// 1. Standard JSON
	firstErr := json.Unmarshal([]byte(input), v)
	if firstErr == nil {
		return "json", nil
	}

	// 2. Hjson
	if converted, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), v); err == nil {
			return "hjson", nil
		}
	}

	// 3. Repair
	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return "repaired", nil
		}
	}

	return "", fmt.Errorf("DECODE_FAILED: all parsing strategies failed: %w", firstErr)
}
