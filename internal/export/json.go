package export

import (
	"encoding/json"
	"io"

	"github.com/rleiva/taxqual/internal/qualification"
)

// jsonEncoder is the built-in format. Rich formats (CSV, XLSX) stay
// external collaborators; JSON keeps the export endpoint serviceable
// when none of them is linked in.
type jsonEncoder struct{}

// JSON returns the built-in JSON encoder.
func JSON() Encoder { return jsonEncoder{} }

func (jsonEncoder) Name() string { return "json" }

func (jsonEncoder) ContentType() string { return "application/json; charset=utf-8" }

func (jsonEncoder) Encode(w io.Writer, rows []qualification.Record) error {
	return json.NewEncoder(w).Encode(rows)
}
