package models

import "sort"

// RawRecord is one item as extracted from a page, before validation.
// A nil value means the field's selector resolved to nothing.
type RawRecord struct {
	Page     int
	Position int
	Values   map[string]*string
	// order keeps first-seen field order for open schemas.
	order []string
}

func NewRawRecord(page, position int) RawRecord {
	return RawRecord{Page: page, Position: position, Values: map[string]*string{}}
}

// Set stores a found value.
func (r *RawRecord) Set(name, value string) {
	r.touch(name)
	v := value
	r.Values[name] = &v
}

// SetMissing records that name was looked up and not found.
func (r *RawRecord) SetMissing(name string) {
	r.touch(name)
	r.Values[name] = nil
}

func (r *RawRecord) touch(name string) {
	if r.Values == nil {
		r.Values = map[string]*string{}
	}
	if _, ok := r.Values[name]; !ok {
		r.order = append(r.order, name)
	}
}

// Get returns the value for name and whether it was found.
func (r RawRecord) Get(name string) (string, bool) {
	v, ok := r.Values[name]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Names returns the field names in the order they were set.
func (r RawRecord) Names() []string {
	if len(r.order) == len(r.Values) {
		return append([]string(nil), r.order...)
	}
	names := make([]string, 0, len(r.Values))
	for n := range r.Values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Record is a validated item. Absent optional fields have no entry.
type Record struct {
	values map[string]string
}

func NewRecord(values map[string]string) Record {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Record{values: cp}
}

func (r Record) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Value returns the value for name, or "" when absent.
func (r Record) Value(name string) string {
	return r.values[name]
}

func (r Record) Len() int { return len(r.values) }

// Map returns a copy of the record's values.
func (r Record) Map() map[string]string {
	cp := make(map[string]string, len(r.values))
	for k, v := range r.values {
		cp[k] = v
	}
	return cp
}

// With returns a copy of r with name set to value.
func (r Record) With(name, value string) Record {
	cp := r.Map()
	cp[name] = value
	return Record{values: cp}
}

// ResultSet is an ordered collection of records sharing one schema.
type ResultSet struct {
	Schema  *Schema
	records []Record
}

// NewResultSet builds a result set from already validated records.
func NewResultSet(schema *Schema, records ...Record) *ResultSet {
	return &ResultSet{Schema: schema, records: append([]Record(nil), records...)}
}

func (rs *ResultSet) Len() int { return len(rs.records) }

func (rs *ResultSet) At(i int) Record { return rs.records[i] }

// Records returns the records in insertion order.
func (rs *ResultSet) Records() []Record {
	return append([]Record(nil), rs.records...)
}

// Accumulator collects validated records for one run. It only ever appends.
type Accumulator struct {
	rs        *ResultSet
	dedupeKey string
	seen      map[string]struct{}
}

// NewAccumulator returns an accumulator; a non-empty dedupeKey drops records
// whose value for that field was already accumulated.
func NewAccumulator(schema *Schema, dedupeKey string) *Accumulator {
	a := &Accumulator{rs: &ResultSet{Schema: schema}, dedupeKey: dedupeKey}
	if dedupeKey != "" {
		a.seen = map[string]struct{}{}
	}
	return a
}

// Append adds r and reports whether it was kept.
func (a *Accumulator) Append(r Record) bool {
	if a.seen != nil {
		if key, ok := r.Get(a.dedupeKey); ok {
			if _, dup := a.seen[key]; dup {
				return false
			}
			a.seen[key] = struct{}{}
		}
	}
	a.rs.records = append(a.rs.records, r)
	return true
}

func (a *Accumulator) Len() int { return len(a.rs.records) }

// Result returns a snapshot of the accumulated records.
func (a *Accumulator) Result() *ResultSet {
	return NewResultSet(a.rs.Schema, a.rs.records...)
}
