package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ErrInvalidRecord is returned when a sanitized record cannot be coerced to
// the column types of its table.
var ErrInvalidRecord = errors.New("invalid record")

// ValidValue reports whether v carries real data: it is non-nil, its text
// form is not blank, and it is not the literal "null" in any casing.
func ValidValue(v any) bool {
	if v == nil {
		return false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, "null")
}

// Sanitize returns a copy of e without the values rejected by ValidValue.
// The input is left untouched so callers can still report what the model
// extracted.
func Sanitize(e Extraction) map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		if ValidValue(v) {
			out[k] = v
		}
	}
	return out
}

// CoerceInts converts the named fields of record to int in place. Absent
// fields are skipped.
func CoerceInts(record map[string]any, keys ...string) error {
	for _, k := range keys {
		v, ok := record[k]
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr {
			// cast parses strings with base prefixes; "007" must stay decimal.
			s = strings.TrimLeft(strings.TrimSpace(s), "0")
			if s == "" {
				s = "0"
			}
			v = s
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, k, err)
		}
		record[k] = n
	}
	return nil
}
