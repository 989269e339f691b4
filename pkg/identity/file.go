package identity

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Entry is one person in the identities file: an optional external username
// and every raw identity (name, email or "Name <email>") that belongs to them.
type Entry struct {
	Username string   `json:"username,omitempty" yaml:"username,omitempty"`
	Aliases  []string `json:"aliases"            yaml:"aliases"`
}

// File is the on-disk identities mapping.
type File struct {
	Identities []Entry `json:"identities" yaml:"identities"`
}

// ErrInvalidIdentities is returned when the identities file does not match its schema.
var ErrInvalidIdentities = errors.New("invalid identities file")

const identitiesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["identities"],
  "additionalProperties": false,
  "properties": {
    "identities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["aliases"],
        "additionalProperties": false,
        "properties": {
          "username": {"type": "string", "pattern": "^[A-Za-z0-9][A-Za-z0-9-]*(\\[bot\\])?$"},
          "aliases": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  }
}`

// LoadFile reads and validates an identities file. YAML is a superset of
// JSON, so both encodings are accepted.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identities %s: %w", path, err)
	}

	return ParseFile(data)
}

// ParseFile decodes and validates identities file content.
func ParseFile(data []byte) (*File, error) {
	var doc any

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentities, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(identitiesSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentities, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidIdentities, strings.Join(msgs, "; "))
	}

	var file File

	err = yaml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentities, err)
	}

	return &file, nil
}
