package collector

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// reportSchema describes a flushed report as produced by the agent.
const reportSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["pageInfo", "flushed"],
	"properties": {
		"pageInfo": {
			"type": "object",
			"required": ["href"],
			"properties": {
				"href": {"type": "string"},
				"userAgent": {"type": "string"}
			}
		},
		"flushed": {
			"type": "object",
			"required": ["type"],
			"properties": {
				"type": {"enum": ["js", "resource", "unhandledrejection", "http", "cors", "performanceMetrics"]},
				"stacks": {
					"type": "array",
					"maxItems": 10,
					"items": {
						"type": "object",
						"required": ["filename", "functionName", "lineno", "colno"]
					}
				},
				"headers": {
					"type": "object",
					"additionalProperties": {"type": "string"}
				}
			}
		}
	}
}`

// envelopeSchema describes a queued report.
const envelopeSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["schemaVersion", "messageType", "messageVersion", "message"],
	"properties": {
		"schemaVersion": {"type": "string"},
		"messageType": {"const": "exceptionReport"},
		"messageVersion": {"type": "string"},
		"message": {"type": "object"},
		"metadata": {"type": "object"}
	}
}`

var (
	reportLoader   = gojsonschema.NewStringLoader(reportSchema)
	envelopeLoader = gojsonschema.NewStringLoader(envelopeSchema)
)

// formatSchemaError turns gojsonschema results into a single error.
func formatSchemaError(result *gojsonschema.Result, err error) error {
	if err != nil {
		return fmt.Errorf("schema validation system error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errMsg string
	for _, desc := range result.Errors() {
		errMsg += fmt.Sprintf("- %s; ", desc)
	}
	return fmt.Errorf("schema validation failed: %s", errMsg)
}

func validate(schema gojsonschema.JSONLoader, body []byte) error {
	return formatSchemaError(gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body)))
}
