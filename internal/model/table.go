package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ColumnKind is a storage type from the fixed allow-list. DDL is generated
// from the kind, never from tenant-supplied text.
type ColumnKind string

const (
	KindText      ColumnKind = "TEXT"
	KindVarchar   ColumnKind = "VARCHAR"
	KindInteger   ColumnKind = "INTEGER"
	KindBigint    ColumnKind = "BIGINT"
	KindReal      ColumnKind = "REAL"
	KindDouble    ColumnKind = "DOUBLE"
	KindBoolean   ColumnKind = "BOOLEAN"
	KindTimestamp ColumnKind = "TIMESTAMP"
	KindDate      ColumnKind = "DATE"
	KindBlob      ColumnKind = "BLOB"
	KindJSON      ColumnKind = "JSON"
)

var kindAliases = map[string]ColumnKind{
	"TEXT":      KindText,
	"VARCHAR":   KindVarchar,
	"INTEGER":   KindInteger,
	"INT":       KindInteger,
	"BIGINT":    KindBigint,
	"REAL":      KindReal,
	"FLOAT":     KindReal,
	"DOUBLE":    KindDouble,
	"BOOLEAN":   KindBoolean,
	"BOOL":      KindBoolean,
	"TIMESTAMP": KindTimestamp,
	"DATE":      KindDate,
	"BLOB":      KindBlob,
	"JSON":      KindJSON,
}

func (k ColumnKind) String() string { return string(k) }

// Numeric reports whether values of this kind can be summed.
func (k ColumnKind) Numeric() bool {
	switch k {
	case KindInteger, KindBigint, KindReal, KindDouble:
		return true
	}
	return false
}

// Integral reports whether values of this kind are whole numbers.
func (k ColumnKind) Integral() bool {
	return k == KindInteger || k == KindBigint
}

// ColumnType is a parsed column type: an allow-listed kind plus nullability.
type ColumnType struct {
	Kind    ColumnKind
	NotNull bool
}

// ParseColumnType accepts "<KIND>" or "<KIND> NOT NULL", case-insensitively,
// where KIND is on the allow-list. Anything else is rejected.
func ParseColumnType(s string) (ColumnType, error) {
	fields := strings.Fields(strings.ToUpper(s))
	if len(fields) == 0 {
		return ColumnType{}, fmt.Errorf("empty column type")
	}
	kind, ok := kindAliases[fields[0]]
	if !ok {
		return ColumnType{}, fmt.Errorf("unsupported column type %q", fields[0])
	}
	switch {
	case len(fields) == 1:
		return ColumnType{Kind: kind}, nil
	case len(fields) == 3 && fields[1] == "NOT" && fields[2] == "NULL":
		return ColumnType{Kind: kind, NotNull: true}, nil
	}
	return ColumnType{}, fmt.Errorf("unsupported column type %q", s)
}

// String renders the canonical form accepted by ParseColumnType.
func (t ColumnType) String() string {
	if t.NotNull {
		return string(t.Kind) + " NOT NULL"
	}
	return string(t.Kind)
}

// Column is one named column of a tenant table. Type holds the raw text
// until the definition has been validated.
type Column struct {
	Name string
	Type string
}

// ColumnList is an ordered column mapping. It encodes as a JSON object whose
// key order is preserved in both directions.
type ColumnList []Column

func (l ColumnList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Type)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l *ColumnList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("columns must be an object of name to type")
	}
	out := ColumnList{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := kt.(string)
		var typ string
		if err := dec.Decode(&typ); err != nil {
			return fmt.Errorf("column %q: type must be a string", name)
		}
		out = append(out, Column{Name: name, Type: typ})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*l = out
	return nil
}

// Lookup returns the column with the given name.
func (l ColumnList) Lookup(name string) (Column, bool) {
	for _, c := range l {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// TableDefinition is a tenant table: a name and its ordered columns.
// The implicit "id" primary key is not part of Columns.
type TableDefinition struct {
	Name    string     `json:"table_name"`
	Columns ColumnList `json:"columns"`
}

// Kind returns the declared kind of a column, or "" when it is not declared.
// The implicit id column is always BIGINT.
func (d TableDefinition) Kind(column string) ColumnKind {
	if column == IDField {
		return KindBigint
	}
	c, ok := d.Columns.Lookup(column)
	if !ok {
		return ""
	}
	t, err := ParseColumnType(c.Type)
	if err != nil {
		return ""
	}
	return t.Kind
}

// SameColumns reports whether both definitions declare the same set of
// columns with the same types, regardless of order.
func (d TableDefinition) SameColumns(o TableDefinition) bool {
	if len(d.Columns) != len(o.Columns) {
		return false
	}
	for _, c := range d.Columns {
		oc, ok := o.Columns.Lookup(c.Name)
		if !ok || oc.Type != c.Type {
			return false
		}
	}
	return true
}
