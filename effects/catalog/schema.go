package catalog

import (
	"github.com/invopop/jsonschema"

	"boardfx/effects/contract"
)

// Schema describes catalog files for editor tooling. YAML catalogs validate
// against it after conversion to JSON.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(new(FileDocument))
	schema.Title = "boardfx effect catalog"
	schema.Description = "Effect types, default durations and payload handling"
	return schema
}

// DataSchema describes the effect batch stored in snapshots and sent to
// clients.
func DataSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(contract.Data))
	schema.Title = "boardfx effect batch"
	schema.Description = "Queue of timed effects recorded by one transition"
	return schema
}
