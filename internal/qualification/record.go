// Package qualification holds the tax-qualification domain: the record
// model, the derived-view pipeline (filter, sort, paginate), per-operator
// selection state and the bulk deletion coordinator.
package qualification

import (
	"time"

	"github.com/google/uuid"
)

// Signals broadcast on the event bus after a mutation. They carry no
// payload; listeners refetch whatever they depend on.
const (
	SignalRecordsChanged = "qualifications.changed"
	SignalStatsChanged   = "stats.changed"
)

// Money is a monetary amount with its currency code.
type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Record is one tax-qualification entry as served by the remote store.
// The cache layer treats it as opaque; only the mutation coordinator may
// change remote state.
type Record struct {
	ID                uuid.UUID `json:"id"`
	TaxpayerID        string    `json:"taxpayer_id"` // RUT, kept as opaque text
	InstrumentType    string    `json:"instrument_type"`
	QualificationType string    `json:"qualification_type"`
	Market            string    `json:"market"`
	Period            string    `json:"period"`
	Amount            Money     `json:"amount"`
	Unregistered      bool      `json:"unregistered"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Actor identifies the operator performing a mutation, for audit entries.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
