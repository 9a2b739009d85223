package models

import "sync"

// FieldType is the semantic type a field value is validated against.
type FieldType int

const (
	Text FieldType = iota
	URL
	Date
	Category
	Number
)

func (t FieldType) String() string {
	switch t {
	case URL:
		return "url"
	case Date:
		return "date"
	case Category:
		return "category"
	case Number:
		return "number"
	default:
		return "text"
	}
}

// Field describes one output column.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Values lists accepted values for Category fields.
	Values []string
	// Inferred marks fields discovered at run time by an open schema.
	Inferred bool
}

// Schema is the ordered field list of a dataset. An open schema grows as new
// columns appear, always appending, so earlier column positions never move.
type Schema struct {
	Name string
	Open bool

	mu     sync.RWMutex
	fields []Field
	index  map[string]int
}

// NewSchema builds a closed schema.
func NewSchema(name string, fields ...Field) *Schema {
	s := &Schema{Name: name, index: make(map[string]int, len(fields))}
	for _, f := range fields {
		s.add(f)
	}
	return s
}

// NewOpenSchema builds a schema that accepts columns beyond the declared ones.
func NewOpenSchema(name string, fields ...Field) *Schema {
	s := NewSchema(name, fields...)
	s.Open = true
	return s
}

func (s *Schema) add(f Field) bool {
	if _, ok := s.index[f.Name]; ok {
		return false
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
	return true
}

// Extend appends unknown names as optional inferred text fields, in the given order.
// It returns the number of fields added. Closed schemas are never extended.
func (s *Schema) Extend(names ...string) int {
	if !s.Open {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, n := range names {
		if n == "" {
			continue
		}
		if s.add(Field{Name: n, Type: Text, Inferred: true}) {
			added++
		}
	}
	return added
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether name is a field of the schema.
func (s *Schema) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Fields returns a copy of the fields in column order.
func (s *Schema) Fields() []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Clone returns an independent copy, so one source definition can serve many runs.
func (s *Schema) Clone() *Schema {
	c := NewSchema(s.Name, s.Fields()...)
	c.Open = s.Open
	return c
}

// FirstOf returns the first of candidates that is a field of the schema.
func (s *Schema) FirstOf(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if s.Has(c) {
			return c, true
		}
	}
	return "", false
}
