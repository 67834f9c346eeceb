package config

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
)

const schemaID = "https://github.com/haasonsaas/pathfinder/config.schema.json"

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error
)

var durationType = reflect.TypeOf(time.Duration(0))

// JSONSchema returns the JSON Schema of the configuration file, keyed by
// YAML field names. Durations are described as Go duration strings.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			FieldNameTag: "yaml",
			Mapper: func(t reflect.Type) *jsonschema.Schema {
				if t == durationType {
					return &jsonschema.Schema{
						Type:        "string",
						Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
						Description: "Go duration, e.g. 30s or 1m30s",
					}
				}
				return nil
			},
		}
		schema := r.Reflect(&Config{})
		schema.ID = schemaID
		schema.Title = "Pathfinder configuration"
		schemaJSON, schemaErr = json.MarshalIndent(schema, "", "  ")
	})
	return schemaJSON, schemaErr
}
