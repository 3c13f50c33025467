package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Report column names.
const (
	ColFilename     = "Filename"
	ColID           = "id"
	ColTitle        = "Title"
	ColAuthors      = "Authors"
	ColAuthorCount  = "No of Authors"
	ColKeywords     = "Keywords"
	ColAffiliations = "Affiliations"
	ColPageCount    = "Page_Count"
	ColColumnFormat = "Column_Format"
)

// ListSeparator joins multi-valued fields when a record is flattened.
const ListSeparator = "; "

// PreferredColumns is the fixed leading column order of the report.
var PreferredColumns = []string{
	ColFilename,
	ColID,
	ColTitle,
	ColAuthors,
	ColAuthorCount,
	ColKeywords,
	ColAffiliations,
	ColPageCount,
	ColColumnFormat,
}

// IsReservedColumn reports whether name is owned by the pipeline rather than the
// enrichment service.
func IsReservedColumn(name string) bool {
	switch name {
	case ColFilename, ColID, ColPageCount, ColColumnFormat:
		return true
	}
	return false
}

// fieldSpec declares one column of DocumentMetadata and whether it is multi-valued.
type fieldSpec struct {
	column string
	multi  bool
	text   func(*DocumentMetadata) string
	list   func(*DocumentMetadata) []string
	number func(*DocumentMetadata) int
}

var metadataSchema = []fieldSpec{
	{column: ColFilename, text: func(m *DocumentMetadata) string { return m.Filename }},
	{column: ColID, text: func(m *DocumentMetadata) string { return m.ID }},
	{column: ColTitle, text: func(m *DocumentMetadata) string { return m.Title }},
	{column: ColAuthors, multi: true, list: func(m *DocumentMetadata) []string { return m.Authors }},
	{column: ColAuthorCount, text: func(m *DocumentMetadata) string { return m.AuthorCount }},
	{column: ColKeywords, multi: true, list: func(m *DocumentMetadata) []string { return m.Keywords }},
	{column: ColAffiliations, multi: true, list: func(m *DocumentMetadata) []string { return m.Affiliations }},
	{column: ColPageCount, number: func(m *DocumentMetadata) int { return m.PageCount }},
	{column: ColColumnFormat, text: func(m *DocumentMetadata) string { return string(m.ColumnFormat) }},
}

// Cell is one column of a flattened record. Value is a string, or an int for Page_Count.
type Cell struct {
	Column string
	Value  any
}

// Record is a finalized, flat report row in column order.
type Record []Cell

// JoinList flattens an ordered list of strings, preserving order and empty entries.
func JoinList(values []string) string {
	return strings.Join(values, ListSeparator)
}

// Flatten finalizes the metadata into a Record following the field schema,
// followed by any extra fields in discovery order.
func (m DocumentMetadata) Flatten() Record {
	rec := make(Record, 0, len(metadataSchema)+len(m.Extra))
	for _, spec := range metadataSchema {
		var v any
		switch {
		case spec.multi:
			v = JoinList(spec.list(&m))
		case spec.number != nil:
			v = spec.number(&m)
		default:
			v = spec.text(&m)
		}
		rec = append(rec, Cell{Column: spec.column, Value: v})
	}
	for _, extra := range m.Extra {
		v := extra.Text
		if extra.Multi {
			v = JoinList(extra.List)
		}
		rec = append(rec, Cell{Column: extra.Name, Value: v})
	}
	return rec
}

// Columns lists the record's column names in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r))
	for i, c := range r {
		cols[i] = c.Column
	}
	return cols
}

// Get returns the value of column and whether it is present.
func (r Record) Get(column string) (any, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return nil, false
}

// Text returns the value of column as text, or "" when absent.
func (r Record) Text(column string) string {
	v, ok := r.Get(column)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// MarshalJSON encodes the record as a JSON object, keeping column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Column)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
