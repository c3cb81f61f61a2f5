package entity

import (
	"strings"

	"github.com/joseph-ayodele/insurance-validator/constants"
)

// Fields maps a field to its value; a nil value is null.
type Fields map[constants.FieldName]*string

// NewFields returns a Fields with every name present and null.
func NewFields(names []constants.FieldName) Fields {
	f := make(Fields, len(names))
	for _, n := range names {
		f[n] = nil
	}
	return f
}

// Get returns the value of name or "" when null or missing.
func (f Fields) Get(name constants.FieldName) string {
	if v := f[name]; v != nil {
		return *v
	}
	return ""
}

// Set stores v; blank strings are stored as null.
func (f Fields) Set(name constants.FieldName, v string) {
	if strings.TrimSpace(v) == "" {
		f[name] = nil
		return
	}
	f[name] = &v
}

// HasAny reports whether at least one value is non-blank.
func (f Fields) HasAny() bool {
	for _, v := range f {
		if v != nil && strings.TrimSpace(*v) != "" {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if v == nil {
			out[k] = nil
			continue
		}
		s := *v
		out[k] = &s
	}
	return out
}

// StringPtr is a small helper for literals in tests and adapters.
func StringPtr(s string) *string { return &s }
