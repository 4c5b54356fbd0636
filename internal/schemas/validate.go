// Package schemas checks the model's JSON answers against the embedded JSON Schemas
// before they are decoded into suggestion and revision types.
package schemas

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	files "github.com/textaudit/layered-audit/schemas"
)

const schemaSuffix = ".schema.json"

// ValidationError lists every place an answer departs from its schema.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is one violation. Field is "(root)" for the document itself.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("%s answer rejected (%s)", ve.Schema, strings.Join(msgs, "; "))
}

// SchemaLoadError means a schema is missing from the embedded set or does not compile.
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// compileAll compiles every embedded schema the first time one is needed.
var compileAll = sync.OnceValue(func() map[string]compiled {
	out := make(map[string]compiled)
	paths, _ := fs.Glob(files.Files, "*"+schemaSuffix)
	for _, path := range paths {
		name := strings.TrimSuffix(path, schemaSuffix)
		data, err := files.Files.ReadFile(path)
		if err != nil {
			out[name] = compiled{err: err}
			continue
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		out[name] = compiled{schema: s, err: err}
	}
	return out
})

type compiled struct {
	schema *gojsonschema.Schema
	err    error
}

func lookup(name string) (*gojsonschema.Schema, error) {
	c, ok := compileAll()[name]
	if !ok {
		return nil, &SchemaLoadError{Name: name, Cause: fs.ErrNotExist}
	}
	if c.err != nil {
		return nil, &SchemaLoadError{Name: name, Cause: c.err}
	}
	return c.schema, nil
}

// Validate checks raw against the named schema.
func Validate(name, raw string) error {
	schema, err := lookup(name)
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("%s answer is not JSON: %w", name, err)
	}
	if result.Valid() {
		return nil
	}
	ve := &ValidationError{Schema: name}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}

// Decode validates raw against the named schema and unmarshals it into out.
func Decode(name, raw string, out any) error {
	if err := Validate(name, raw); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode %s answer: %w", name, err)
	}
	return nil
}
