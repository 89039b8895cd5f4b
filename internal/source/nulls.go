package source

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// nullID stores the zero uuid as NULL.
func nullID(id uuid.UUID) sql.NullString {
	if id == uuid.Nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullTicks(ticks *int64) sql.NullInt64 {
	if ticks == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *ticks, Valid: true}
}

func parseNullID(column string, v sql.NullString) (uuid.UUID, error) {
	if !v.Valid || v.String == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v.String)
	if err != nil {
		return uuid.Nil, fmt.Errorf("column %s: %w", column, err)
	}
	return id, nil
}

func ticksPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	t := v.Int64
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// idColumns collects nullable id columns for scanning and parses them afterwards.
type idColumns struct {
	names  []string
	values []sql.NullString
}

func newIDColumns(names ...string) *idColumns {
	return &idColumns{names: names, values: make([]sql.NullString, len(names))}
}

func (c *idColumns) targets() []any {
	out := make([]any, len(c.values))
	for i := range c.values {
		out[i] = &c.values[i]
	}
	return out
}

func (c *idColumns) parse(into ...*uuid.UUID) error {
	for i, target := range into {
		id, err := parseNullID(c.names[i], c.values[i])
		if err != nil {
			return err
		}
		*target = id
	}
	return nil
}
