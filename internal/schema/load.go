package schema

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/leetstore/internal/apperr"
)

// Load reads a YAML descriptor file.
//
// Example:
//
//	version: "1"
//	tables:
//	  - name: questions
//	    columns:
//	      - {ordinal: 0, name: question_id, type: TEXT, primary_key: true}
//	      - {ordinal: 1, name: name, type: TEXT, not_null: true}
//	indexes:
//	  idx_questions_name: CREATE INDEX idx_questions_name ON questions (name)
func Load(path string) (Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return Descriptor{}, apperr.Wrap(apperr.ErrSchemaInvalid, err, "failed to open schema file").WithPath(path)
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		if e, ok := err.(*apperr.Error); ok {
			return Descriptor{}, e.WithPath(path)
		}
		return Descriptor{}, err
	}
	return d, nil
}

// Decode parses a YAML descriptor and validates it.
func Decode(r io.Reader) (Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Descriptor{}, apperr.Wrap(apperr.ErrSchemaInvalid, err, "failed to read schema")
	}

	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && err != io.EOF {
		return Descriptor{}, apperr.Wrap(apperr.ErrSchemaInvalid, err, "failed to parse schema")
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Marshal renders d as YAML, the inverse of Decode.
func Marshal(d Descriptor) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
