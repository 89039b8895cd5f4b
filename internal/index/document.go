package index

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Document is the flat field bag written to the index for one entity.
// A field may hold several values; the index stores each one.
type Document struct {
	id     string
	fields map[string][]any
}

// NewDocument creates an empty document whose index key is id.
func NewDocument(id string) *Document {
	return &Document{
		id:     id,
		fields: make(map[string][]any),
	}
}

// ID returns the document's unique key.
func (d *Document) ID() string {
	return d.id
}

// FormatID serialises an identifier as 32 lowercase hex digits without dashes.
func FormatID(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}

// FormatBool serialises a flag as a lowercase term.
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}

// ExactSuffix names the keyword copy of an integer field. Bleve numeric
// fields are float64 and cannot hold every tick above 2^53 exactly.
const ExactSuffix = "_exact"

// ExactField returns the name of the keyword copy of an integer field.
func ExactField(name string) string {
	return name + ExactSuffix
}

// FormatExactInt64 serialises n as 20 decimal digits, offset so that
// lexical order matches numeric order for every int64.
func FormatExactInt64(n int64) string {
	return fmt.Sprintf("%020d", uint64(n)^(1<<63))
}

// ParseExactInt64 parses a value written by FormatExactInt64.
func ParseExactInt64(s string) (int64, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid exact integer %q: %w", s, err)
	}
	return int64(u ^ (1 << 63)), nil
}

// AddText adds a text value. Empty values are skipped.
func (d *Document) AddText(name, value string) {
	if value == "" {
		return
	}
	d.fields[name] = append(d.fields[name], value)
}

// AddID adds an identifier value. The zero uuid is skipped.
func (d *Document) AddID(name string, id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	d.AddText(name, FormatID(id))
}

// AddBool adds a flag as "true" or "false".
func (d *Document) AddBool(name string, value bool) {
	d.AddText(name, FormatBool(value))
}

// AddInt64 adds an integer value.
func (d *Document) AddInt64(name string, value int64) {
	d.fields[name] = append(d.fields[name], value)
}

// AddOptionalInt64 adds an integer value when it is present.
func (d *Document) AddOptionalInt64(name string, value *int64) {
	if value == nil {
		return
	}
	d.AddInt64(name, *value)
}

// AddChunkedText adds value split into chunks of at most MaxChunkLength
// characters, each as a repeated value of the same field.
func (d *Document) AddChunkedText(name, value string) {
	for _, chunk := range Chunk(value, MaxChunkLength) {
		d.AddText(name, chunk)
	}
}

// Values returns every value of a field in insertion order.
func (d *Document) Values(name string) []any {
	return d.fields[name]
}

// Has reports whether the field holds at least one value.
func (d *Document) Has(name string) bool {
	return len(d.fields[name]) > 0
}

// FieldNames returns the names of all populated fields.
func (d *Document) FieldNames() []string {
	names := make([]string, 0, len(d.fields))
	for name := range d.fields {
		names = append(names, name)
	}
	return names
}

// Data returns the document in the shape the index consumes: single values
// unwrapped, repeated values as slices, integers as float64. Every integer
// field also gets an exact keyword copy under ExactField.
func (d *Document) Data() map[string]interface{} {
	data := make(map[string]interface{}, len(d.fields))
	for name, values := range d.fields {
		converted := make([]interface{}, len(values))
		var exact []interface{}
		for i, v := range values {
			if n, ok := v.(int64); ok {
				converted[i] = float64(n)
				exact = append(exact, FormatExactInt64(n))
				continue
			}
			converted[i] = v
		}
		data[name] = unwrap(converted)
		if len(exact) > 0 {
			data[ExactField(name)] = unwrap(exact)
		}
	}
	return data
}

func unwrap(values []interface{}) interface{} {
	if len(values) == 1 {
		return values[0]
	}
	return values
}

// MarshalJSON serialises the document with its id, for diagnostics.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     string           `json:"id"`
		Fields map[string][]any `json:"fields"`
	}{
		ID:     d.id,
		Fields: d.fields,
	})
}
