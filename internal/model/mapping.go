package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Field names a column of the canonical job schema.
type Field string

const (
	FieldName        Field = "name"
	FieldServiceDate Field = "service_date"
	FieldPrice       Field = "price"
	FieldServiceType Field = "service_type"
	FieldLeadSource  Field = "lead_source"
	FieldStreet      Field = "street"
	FieldCity        Field = "city"
	FieldState       Field = "state"
	FieldZip         Field = "zip"
	FieldFullAddress Field = "full_address"
	FieldLat         Field = "lat"
	FieldLng         Field = "lng"
)

// Fields lists every schema field in display order.
var Fields = []Field{
	FieldName, FieldServiceDate, FieldPrice, FieldServiceType, FieldLeadSource,
	FieldStreet, FieldCity, FieldState, FieldZip, FieldFullAddress, FieldLat, FieldLng,
}

// RawRow is one decoded spreadsheet row keyed by source column header.
type RawRow map[string]string

// UnmarshalJSON accepts any scalar cell value. Numbers keep their literal
// text, booleans become "true"/"false" and null becomes "". Nested values
// are kept as compact JSON so row validation can report them.
func (r *RawRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var cells map[string]any
	if err := dec.Decode(&cells); err != nil {
		return err
	}
	if cells == nil {
		*r = nil
		return nil
	}
	out := make(RawRow, len(cells))
	for k, v := range cells {
		out[k] = cellString(v)
	}
	*r = out
	return nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ColumnMapping maps schema fields to source column headers. Unmapped fields
// fall back to a header with the field's own name.
type ColumnMapping map[Field]string

// Value returns the trimmed cell for field f. Header lookup is exact first,
// then case- and whitespace-insensitive.
func (m ColumnMapping) Value(row RawRow, f Field) string {
	header := string(f)
	if h, ok := m[f]; ok && strings.TrimSpace(h) != "" {
		header = h
	}
	if v, ok := row[header]; ok {
		return strings.TrimSpace(v)
	}
	want := foldHeader(header)
	for k, v := range row {
		if foldHeader(k) == want {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// foldHeader lowercases a header and treats spaces, dashes and underscores alike.
func foldHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}
