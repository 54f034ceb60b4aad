// Package schema checks travel documents against embedded JSON Schemas. The engine
// itself tolerates sloppy input; these checks are for linting data before it is loaded.
package schema

import (
	"embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var files embed.FS

// Kind names a document type with a schema.
type Kind string

const (
	Snapshot Kind = "snapshot"
	Catalog  Kind = "catalog"
)

// Kinds lists every known document kind.
var Kinds = []Kind{Snapshot, Catalog}

// ErrUnknownKind is returned for a kind without a schema.
var ErrUnknownKind = errors.New("unknown document kind")

// ValidationError lists every schema violation of one document.
type ValidationError struct {
	Kind       Kind
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s does not match schema: %s", e.Kind, strings.Join(e.Violations, "; "))
}

var (
	compileOnce sync.Once
	compiled    map[Kind]*gojsonschema.Schema
	compileErr  error
)

func load() (map[Kind]*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[Kind]*gojsonschema.Schema, len(Kinds))
		for _, k := range Kinds {
			raw, err := files.ReadFile("schemas/" + string(k) + ".json")
			if err != nil {
				compileErr = err
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", k, err)
				return
			}
			compiled[k] = s
		}
	})
	return compiled, compileErr
}

// Validate checks doc, any JSON-encodable value, against the schema for kind.
// It returns a *ValidationError when the document does not conform.
func Validate(kind Kind, doc any) error {
	schemas, err := load()
	if err != nil {
		return err
	}
	s, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate %s: %w", kind, err)
	}
	if res.Valid() {
		return nil
	}
	verr := &ValidationError{Kind: kind}
	for _, re := range res.Errors() {
		verr.Violations = append(verr.Violations, re.String())
	}
	return verr
}

// Raw returns the JSON Schema text for kind.
func Raw(kind Kind) ([]byte, error) {
	if !slices.Contains(Kinds, kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return files.ReadFile("schemas/" + string(kind) + ".json")
}
