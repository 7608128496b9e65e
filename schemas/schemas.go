// Package schemas embeds the JSON Schemas that validate user-authored files.
package schemas

import _ "embed"

// BatchSchemaJSON is the JSON Schema for batch definition YAML files.
//
//go:embed batch.schema.json
var BatchSchemaJSON string
