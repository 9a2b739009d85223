package models

import (
	"strconv"

	"AfricaScraper/utils"

	"github.com/rs/zerolog/log"
)

// ColumnKind is the physical type a column is written with.
type ColumnKind int

const (
	StringColumn ColumnKind = iota
	DoubleColumn
)

func (k ColumnKind) String() string {
	if k == DoubleColumn {
		return "double"
	}
	return "string"
}

// Column is a resolved output column.
type Column struct {
	Name string
	Kind ColumnKind
}

// ResolveColumns fixes one physical type per column before anything is written.
// Only declared number columns become doubles, and only when every present value
// parses; otherwise they fall back to string. Inferred columns stay text so codes
// such as "007" are written as read.
func ResolveColumns(rs *ResultSet) []Column {
	fields := rs.Schema.Fields()
	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{Name: f.Name, Kind: StringColumn}
		if f.Type != Number {
			continue
		}
		seen, numeric := 0, true
		for _, r := range rs.records {
			v, ok := r.Get(f.Name)
			if !ok {
				continue
			}
			seen++
			if _, ok := utils.ParseNumber(v); !ok {
				numeric = false
				break
			}
		}
		switch {
		case numeric && seen > 0:
			cols[i].Kind = DoubleColumn
		case !numeric:
			log.Warn().Str("schema", rs.Schema.Name).Str("column", f.Name).
				Msg("number column has non-numeric values, writing as string")
		}
	}
	return cols
}

// Cell returns the typed value of a record for col: nil when absent,
// float64 for double columns, string otherwise.
func Cell(r Record, col Column) any {
	v, ok := r.Get(col.Name)
	if !ok {
		return nil
	}
	if col.Kind == DoubleColumn {
		if n, ok := utils.ParseNumber(v); ok {
			return n
		}
	}
	return v
}

// FormatCell renders a typed value back to text. Absent values become missing.
func FormatCell(v any, missing string) string {
	switch x := v.(type) {
	case nil:
		return missing
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return missing
	}
}
