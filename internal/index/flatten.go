package index

import (
	"strings"

	"github.com/tidwall/gjson"
)

// FlattenJSON turns a serialised JSON payload into one whitespace-separated
// string of its scalar values, so nested values become plain searchable tokens.
// Text that is not valid JSON is returned unchanged.
func FlattenJSON(payload string) string {
	if strings.TrimSpace(payload) == "" {
		return ""
	}
	if !gjson.Valid(payload) {
		return payload
	}

	var sb strings.Builder
	flattenValue(gjson.Parse(payload), &sb)
	return sb.String()
}

func flattenValue(value gjson.Result, sb *strings.Builder) {
	switch {
	case value.IsObject(), value.IsArray():
		value.ForEach(func(_, child gjson.Result) bool {
			flattenValue(child, sb)
			return true
		})
	case value.Type == gjson.Null:
		// nothing to index
	default:
		text := strings.TrimSpace(value.String())
		if text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
}
