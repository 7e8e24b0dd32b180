package qualification

import (
	"strconv"
	"strings"
)

// Status narrows records by their registration flag.
type Status string

const (
	StatusAny          Status = ""
	StatusOfficial     Status = "official"
	StatusUnregistered Status = "unregistered"
)

// Filter is the conjunction of its set predicates. Empty fields are
// no-ops, so the zero Filter is the identity. Amount bounds are kept as
// the raw operator input; a bound that does not parse as a number is an
// inactive filter, not an error.
type Filter struct {
	Text      string `json:"text"`
	Market    string `json:"market"`
	Period    string `json:"period"`
	Status    Status `json:"status"`
	MinAmount string `json:"min_amount"`
	MaxAmount string `json:"max_amount"`
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Matches reports whether r passes every active predicate.
func (f Filter) Matches(r Record) bool {
	if f.Text != "" && !matchesText(r, f.Text) {
		return false
	}
	if f.Market != "" && r.Market != f.Market {
		return false
	}
	if f.Period != "" && r.Period != f.Period {
		return false
	}
	switch f.Status {
	case StatusOfficial:
		if r.Unregistered {
			return false
		}
	case StatusUnregistered:
		if !r.Unregistered {
			return false
		}
	}
	if min, ok := parseAmount(f.MinAmount); ok && r.Amount.Value < min {
		return false
	}
	if max, ok := parseAmount(f.MaxAmount); ok && r.Amount.Value > max {
		return false
	}
	return true
}

// ApplyFilter returns the records passing f, preserving input order.
// With no active predicates the result equals the input.
func ApplyFilter(records []Record, f Filter) []Record {
	if f.IsZero() {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// matchesText is a case-insensitive substring match across the record's
// textual fields.
func matchesText(r Record, text string) bool {
	needle := strings.ToLower(text)
	for _, field := range []string{
		r.InstrumentType,
		r.Market,
		r.Period,
		r.QualificationType,
		r.TaxpayerID,
	} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func parseAmount(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
