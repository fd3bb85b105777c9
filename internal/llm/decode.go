package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tbourn/don-confiado-backend/internal/domain"
)

// cleanJSON strips whitespace and a surrounding Markdown code fence, which
// some models add even in JSON mode.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func parseObject(raw string) (gjson.Result, error) {
	s := cleanJSON(raw)
	if s == "" {
		return gjson.Result{}, fmt.Errorf("%w: empty document", ErrSchemaViolation)
	}
	if !gjson.Valid(s) {
		return gjson.Result{}, fmt.Errorf("%w: not valid JSON", ErrSchemaViolation)
	}
	root := gjson.Parse(s)
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: expected a JSON object", ErrSchemaViolation)
	}
	return root, nil
}

// DecodeCompleteness validates a completeness-check answer. is_complete must
// be a boolean; missing_fields, when present, must be an array of names drawn
// from allowed. Duplicates are collapsed.
func DecodeCompleteness(raw string, allowed []string) (domain.Completeness, error) {
	root, err := parseObject(raw)
	if err != nil {
		return nil, err
	}

	ic := root.Get("is_complete")
	if ic.Type != gjson.True && ic.Type != gjson.False {
		return nil, fmt.Errorf("%w: is_complete must be a boolean", ErrSchemaViolation)
	}

	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	var missing []string
	seen := make(map[string]bool)
	mf := root.Get("missing_fields")
	if mf.Exists() && mf.Type != gjson.Null {
		if !mf.IsArray() {
			return nil, fmt.Errorf("%w: missing_fields must be an array", ErrSchemaViolation)
		}
		for _, item := range mf.Array() {
			if item.Type != gjson.String {
				return nil, fmt.Errorf("%w: missing_fields items must be strings", ErrSchemaViolation)
			}
			name := item.String()
			if !ok[name] {
				return nil, fmt.Errorf("%w: unknown field %q in missing_fields", ErrSchemaViolation, name)
			}
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}

	if ic.Bool() {
		return domain.Complete{}, nil
	}
	return domain.Incomplete{Missing: missing}, nil
}

// DecodeIntent returns the "intent" label of a classifier answer. The label
// is not checked against the closed set; domain.ParseIntent does that.
func DecodeIntent(raw string) (string, error) {
	root, err := parseObject(raw)
	if err != nil {
		return "", err
	}
	v := root.Get("intent")
	if v.Type != gjson.String {
		return "", fmt.Errorf("%w: intent must be a string", ErrSchemaViolation)
	}
	return v.String(), nil
}

// DecodeObject decodes an extraction answer into a generic mapping.
func DecodeObject(raw string) (map[string]any, error) {
	root, err := parseObject(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal([]byte(root.Raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return out, nil
}
