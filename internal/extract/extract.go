// Package extract locates the first well-formed JSON object or array in
// free-form model output.
//
// Model replies often wrap the answer in prose, markdown fences, or both, and
// may contain unrelated brace-delimited fragments after the answer. Extract
// prefers fenced blocks, then scans for the first position where a complete
// value can be decoded. It never reports parse errors: a reply without a
// usable value is a normal outcome.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrNotFound is returned by Into when the text holds no JSON object or array.
var ErrNotFound = errors.New("no JSON object or array found")

// Result is a JSON value found in text.
type Result struct {
	// Value is the decoded value: map[string]any for objects, []any for arrays.
	Value any

	// Raw is the exact span of input the value was parsed from.
	Raw json.RawMessage

	// Start and End are the byte offsets of Raw within the input.
	Start int
	End   int

	// Fenced reports whether the value came from a code fence.
	Fenced bool
}

// Object returns the value as an object, if it is one.
func (r *Result) Object() (map[string]any, bool) {
	m, ok := r.Value.(map[string]any)
	return m, ok
}

// Array returns the value as an array, if it is one.
func (r *Result) Array() ([]any, bool) {
	a, ok := r.Value.([]any)
	return a, ok
}

// fencePattern matches ``` fences with an optional json tag. The lazy body
// pairs every opening fence with the nearest closing one.
var fencePattern = regexp.MustCompile("(?s)```(?i:json)?(.*?)```")

// Extract returns the first JSON object or array in text.
//
// Fenced blocks are tried first, in order of appearance, and must parse in
// full. Otherwise the text is scanned left to right from each '{' or '['; the
// first position that starts a complete value wins and anything after that
// value is ignored. Truncated values are never accepted, nor are unfenced
// values nested more than 512 levels deep.
func Extract(text string) (*Result, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	if r, ok := fromFences(text); ok {
		return r, true
	}
	return scan(text)
}

// Into decodes the first JSON object or array in text into target.
func Into(text string, target any) error {
	r, ok := Extract(text)
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(r.Raw, target); err != nil {
		return fmt.Errorf("decode extracted JSON: %w", err)
	}
	return nil
}

func fromFences(text string) (*Result, bool) {
	for _, loc := range fencePattern.FindAllStringSubmatchIndex(text, -1) {
		bodyStart, bodyEnd := loc[2], loc[3]
		body := text[bodyStart:bodyEnd]
		content := strings.TrimSpace(body)
		if !opensContainer(content) {
			continue
		}
		value, ok := decodeContainer([]byte(content))
		if !ok {
			continue
		}
		start := bodyStart + len(body) - len(strings.TrimLeftFunc(body, unicode.IsSpace))
		return &Result{
			Value:  value,
			Raw:    json.RawMessage(content),
			Start:  start,
			End:    start + len(content),
			Fenced: true,
		}, true
	}
	return nil, false
}

func scan(text string) (*Result, bool) {
	pos := 0
	for pos < len(text) {
		idx := strings.IndexAny(text[pos:], "{[")
		if idx < 0 {
			break
		}
		start := pos + idx
		end, closed := spanEnd(text[start:])
		if !closed {
			pos = start + 1
			continue
		}
		if raw, n, ok := decodePrefix(text[start : start+end]); ok {
			if value, ok := decodeContainer(raw); ok {
				return &Result{
					Value: value,
					Raw:   raw,
					Start: start,
					End:   start + n,
				}, true
			}
		}
		pos = start + 1
	}
	return nil, false
}

// maxDepth bounds the nesting of an unfenced candidate. Rejecting deeper
// candidates early keeps a scan over unbalanced input such as "[[[[..."
// linear in its length.
const maxDepth = 512

// spanEnd returns the length of the bracketed span opening at s[0], matching
// brackets outside string literals. It reports false when the span is never
// closed or nests deeper than maxDepth. Bracket kinds are not paired here;
// the decoder rejects mismatches.
func spanEnd(s string) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxDepth {
				return 0, false
			}
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// decodePrefix decodes the single value at the start of s and reports how
// many bytes it spans. Trailing input is not examined.
func decodePrefix(s string) (json.RawMessage, int, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, 0, false
	}
	return raw, int(dec.InputOffset()), true
}

// decodeContainer strictly decodes data and accepts only objects and arrays.
func decodeContainer(data []byte) (any, bool) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false
	}
	switch value.(type) {
	case map[string]any, []any:
		return value, true
	default:
		return nil, false
	}
}

func opensContainer(s string) bool {
	return s != "" && (s[0] == '{' || s[0] == '[')
}
