package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a JSON Schema kept both as a map (sent to the model inside the
// prompt) and compiled (used to check the reply).
type Schema struct {
	Name string
	Doc  map[string]any
	// Groups are the top-level objects of string-or-null members that
	// SanitizeReply normalizes before validation.
	Groups []string

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

func NewSchema(name string, doc map[string]any, groups ...string) *Schema {
	return &Schema{Name: name, Doc: doc, Groups: groups}
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		b, err := json.Marshal(s.Doc)
		if err != nil {
			s.err = fmt.Errorf("marshal schema %s: %w", s.Name, err)
			return
		}
		url := s.Name + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
			s.err = fmt.Errorf("add schema %s: %w", s.Name, err)
			return
		}
		s.compiled, s.err = compiler.Compile(url)
		if s.err != nil {
			s.err = fmt.Errorf("compile schema %s: %w", s.Name, s.err)
		}
	})
	return s.compiled, s.err
}

// Validate checks a decoded JSON value (maps, slices, float64, string, nil).
func (s *Schema) Validate(v any) error {
	compiled, err := s.compile()
	if err != nil {
		return err
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema %s: %w", s.Name, err)
	}
	return nil
}

// ValidateJSONAgainstSchema validates raw JSON data against an ad hoc schema map.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return NewSchema("schema", schemaMap).Validate(v)
}
