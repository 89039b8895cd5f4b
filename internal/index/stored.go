package index

import (
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

// StoredFields is the stored field set of a search hit, as returned by Bleve.
// Repeated fields come back as slices.
type StoredFields map[string]interface{}

// First returns the first stored value of a field.
func (f StoredFields) First(name string) (interface{}, bool) {
	v, ok := f[name]
	if !ok || v == nil {
		return nil, false
	}
	if values, isSlice := v.([]interface{}); isSlice {
		if len(values) == 0 {
			return nil, false
		}
		return values[0], true
	}
	return v, true
}

// String returns the first stored value of a text field, or "" when absent.
func (f StoredFields) String(name string) string {
	v, ok := f.First(name)
	if !ok {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}

// Int64 returns the first stored value of a numeric field. The exact copy
// wins over the float64 numeric value when both are stored.
func (f StoredFields) Int64(name string) (int64, bool) {
	if s, ok := f.First(ExactField(name)); ok {
		if exact, isString := s.(string); isString {
			if n, err := ParseExactInt64(exact); err == nil {
				return n, true
			}
		}
	}

	v, ok := f.First(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n >= math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(n), true
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// OptionalInt64 returns the first stored value of a numeric field, or nil.
func (f StoredFields) OptionalInt64(name string) *int64 {
	n, ok := f.Int64(name)
	if !ok {
		return nil
	}
	return &n
}

// Bool parses the first stored value of a flag field. Absent is false.
func (f StoredFields) Bool(name string) bool {
	b, err := strconv.ParseBool(f.String(name))
	return err == nil && b
}

// ID parses the first stored value of an identifier field.
// An absent value yields uuid.Nil.
func (f StoredFields) ID(name string) (uuid.UUID, error) {
	s := f.String(name)
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := ParseID(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("field %s: %w", name, err)
	}
	return id, nil
}

// ParseID parses an identifier in either the hex-no-dashes or canonical form.
func ParseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
