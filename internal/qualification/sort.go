package qualification

import (
	"sort"
	"strings"
)

// Field names a sortable column.
type Field string

const (
	FieldTaxpayerID        Field = "taxpayer_id"
	FieldInstrumentType    Field = "instrument_type"
	FieldQualificationType Field = "qualification_type"
	FieldMarket            Field = "market"
	FieldPeriod            Field = "period"
	FieldAmount            Field = "amount"
	FieldUpdatedAt         Field = "updated_at"
)

// Direction of a sort.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sort is the single active sort. The zero value means unsorted.
type Sort struct {
	Field     Field     `json:"field"`
	Direction Direction `json:"direction"`
}

// Touch returns the sort resulting from the operator requesting field:
// the same field again toggles direction, a different field resets to
// ascending.
func (s Sort) Touch(field Field) Sort {
	if s.Field == field {
		dir := Ascending
		if s.Direction == Ascending {
			dir = Descending
		}
		return Sort{Field: field, Direction: dir}
	}
	return Sort{Field: field, Direction: Ascending}
}

// ApplySort returns records ordered by s. The amount field compares by
// numeric value; every other field compares the natural order of its
// scalar representation. Ties keep whatever relative order the sort
// implementation leaves them in; stability is explicitly not guaranteed.
func ApplySort(records []Record, s Sort) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	if s.Field == "" {
		return out
	}

	less := lessFunc(s.Field)
	sort.Slice(out, func(i, j int) bool {
		if s.Direction == Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func lessFunc(field Field) func(a, b Record) bool {
	switch field {
	case FieldAmount:
		return func(a, b Record) bool { return a.Amount.Value < b.Amount.Value }
	case FieldUpdatedAt:
		return func(a, b Record) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		key := stringKey(field)
		return func(a, b Record) bool { return strings.Compare(key(a), key(b)) < 0 }
	}
}

func stringKey(field Field) func(Record) string {
	switch field {
	case FieldTaxpayerID:
		return func(r Record) string { return r.TaxpayerID }
	case FieldInstrumentType:
		return func(r Record) string { return r.InstrumentType }
	case FieldQualificationType:
		return func(r Record) string { return r.QualificationType }
	case FieldMarket:
		return func(r Record) string { return r.Market }
	case FieldPeriod:
		return func(r Record) string { return r.Period }
	default:
		return func(r Record) string { return "" }
	}
}
