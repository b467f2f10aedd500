package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// schemaFor derives a JSON-schema object from a typed argument struct.
// Field descriptions and required-ness come from jsonschema struct
// tags:
//
//	type searchArgs struct {
//	    Query string `json:"query" jsonschema:"required,description=Search query"`
//	}
func schemaFor[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}

	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")
	return schemaMap, nil
}

// mustSchemaFor panics on reflection failure; argument structs are
// compile-time fixtures so a failure is a programming error.
func mustSchemaFor[T any]() map[string]any {
	schema, err := schemaFor[T]()
	if err != nil {
		panic(err)
	}
	return schema
}

// decodeArgs unmarshals the argument map into a typed struct.
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode arguments: %w", err)
	}
	return out, nil
}
