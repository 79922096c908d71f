package protocol

import (
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

var schemaFiles = map[string]string{
	TypeHello:    "hello.schema.json",
	TypeWelcome:  "welcome.schema.json",
	TypeGenerate: "generate.schema.json",
	TypeBatch:    "batch.schema.json",
	TypeDone:     "done.schema.json",
	TypeError:    "error.schema.json",
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range schemaFiles {
			f, err := schemaFS.Open("schemas/" + name)
			if err != nil {
				schemasErr = err
				return
			}
			err = c.AddResource(name, f)
			_ = f.Close()
			if err != nil {
				schemasErr = err
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(schemaFiles))
		for typ, name := range schemaFiles {
			s, err := c.Compile(name)
			if err != nil {
				schemasErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			out[typ] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

// Validate checks a decoded JSON value (as produced by json.Unmarshal into
// any) against the schema of message type typ.
func Validate(typ string, v any) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := all[typ]
	if !ok {
		return fmt.Errorf("no schema for message type %q", typ)
	}
	return s.Validate(v)
}
