// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject indicates a model response contained no JSON object.
var ErrNoJSONObject = errors.New("no JSON object in response")

// DecodeJSON extracts a JSON object from a model response into v.
// It strips markdown code fences, narrows to the outermost braces and
// repairs unquoted keys before unmarshaling.
func DecodeJSON(response string, v any) error {
	text := StripCodeFences(response)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ErrNoJSONObject
	}
	text = text[start : end+1]

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	return json.Unmarshal([]byte(RepairJSON(text)), v)
}

// StripCodeFences removes a surrounding markdown code fence, if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// RepairJSON attempts to fix common JSON formatting issues from LLM responses.
// It handles keys with a missing opening quote, bare keys, and trailing
// commas before a closing brace or bracket.
func RepairJSON(s string) string {
	// Pattern: after { or , followed by optional whitespace, then a word followed by ":
	// Example: `, type":` -> `, "type":`
	result := []rune(s)
	fixed := make([]rune, 0, len(result)+16)
	inString := false

	i := 0
	for i < len(result) {
		ch := result[i]

		if inString {
			fixed = append(fixed, ch)
			i++
			if ch == '\\' && i < len(result) {
				fixed = append(fixed, result[i])
				i++
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch {
		case ch == '"':
			inString = true
			fixed = append(fixed, ch)
			i++

		case ch == ',' && nextNonSpace(result, i+1) != 0 && strings.ContainsRune("}]", nextNonSpace(result, i+1)):
			// Trailing comma
			i++

		case ch == '{' || ch == ',':
			fixed = append(fixed, ch)
			i++

			for i < len(result) && isSpace(result[i]) {
				fixed = append(fixed, result[i])
				i++
			}

			if i < len(result) && result[i] != '"' && isLetter(result[i]) {
				keyStart := i
				for i < len(result) && (isLetter(result[i]) || result[i] == '_') {
					i++
				}
				key := result[keyStart:i]
				switch {
				case i+1 < len(result) && result[i] == '"' && result[i+1] == ':':
					// Missing opening quote
					fixed = append(fixed, '"')
					fixed = append(fixed, key...)
					fixed = append(fixed, '"')
					i++
				case nextNonSpace(result, i) == ':':
					// Bare key
					fixed = append(fixed, '"')
					fixed = append(fixed, key...)
					fixed = append(fixed, '"')
				default:
					fixed = append(fixed, key...)
				}
			}

		default:
			fixed = append(fixed, ch)
			i++
		}
	}

	return string(fixed)
}

func nextNonSpace(rs []rune, from int) rune {
	for j := from; j < len(rs); j++ {
		if !isSpace(rs[j]) {
			return rs[j]
		}
	}
	return 0
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
