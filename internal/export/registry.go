// Package export dispatches the current derived view to pluggable
// encoders. Encoding itself (CSV, XLSX, ...) lives outside this module;
// an encoder is registered by whatever binary links one in.
package export

import (
	"io"

	"github.com/rleiva/taxqual/internal/qualification"
)

// Encoder writes a set of qualification rows in one output format.
type Encoder interface {
	// Name is the format key used in requests (e.g. "csv")
	Name() string

	// ContentType is the MIME type sent with the response
	ContentType() string

	// Encode writes rows to w
	Encode(w io.Writer, rows []qualification.Record) error
}

// Registry manages the available export encoders.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates an empty encoder registry.
func NewRegistry() *Registry {
	return &Registry{
		encoders: make(map[string]Encoder),
	}
}

// Register adds an encoder to the registry.
func (r *Registry) Register(enc Encoder) {
	r.encoders[enc.Name()] = enc
}

// Get retrieves an encoder by format name.
func (r *Registry) Get(name string) (Encoder, bool) {
	enc, exists := r.encoders[name]
	return enc, exists
}

// List returns all registered format names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.encoders))
	for name := range r.encoders {
		names = append(names, name)
	}
	return names
}
