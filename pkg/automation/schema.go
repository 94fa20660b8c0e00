package automation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/urmzd/zigman/pkg/device"
)

// Rule payloads are validated structurally against these schemas before the
// engine applies its semantic checks (device existence, per-source limits).

const createSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "source_ieee": {"type": "string", "minLength": 1},
    "target_ieee": {"type": "string", "minLength": 1},
    "command": {"enum": ["on", "off", "toggle", "brightness", "color_temp", "open", "close", "stop", "position"]},
    "command_value": {},
    "endpoint_id": {"type": "integer", "minimum": 0, "maximum": 255},
    "cooldown": {"type": "number", "minimum": 0},
    "enabled": {"type": "boolean"},
    "conditions": {"$ref": "#/$defs/conditions"},
    "attribute": {"type": "string", "minLength": 1},
    "operator": {"$ref": "#/$defs/operator"},
    "value": {}
  },
  "required": ["source_ieee", "target_ieee", "command"],
  "$defs": {
    "operator": {"enum": ["eq", "neq", "gt", "lt", "gte", "lte"]},
    "conditions": {
      "type": "array",
      "minItems": 1,
      "maxItems": 5,
      "items": {
        "type": "object",
        "properties": {
          "attribute": {"type": "string", "minLength": 1},
          "operator": {"$ref": "#/$defs/operator"},
          "value": {}
        },
        "required": ["attribute", "operator", "value"]
      }
    }
  }
}`

const updateSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "enabled": {"type": "boolean"},
    "conditions": {"$ref": "#/$defs/conditions"},
    "target_ieee": {"type": "string", "minLength": 1},
    "command": {"enum": ["on", "off", "toggle", "brightness", "color_temp", "open", "close", "stop", "position"]},
    "command_value": {},
    "endpoint_id": {"type": "integer", "minimum": 0, "maximum": 255},
    "cooldown": {"type": "number", "minimum": 0}
  },
  "$defs": {
    "operator": {"enum": ["eq", "neq", "gt", "lt", "gte", "lte"]},
    "conditions": {
      "type": "array",
      "minItems": 1,
      "maxItems": 5,
      "items": {
        "type": "object",
        "properties": {
          "attribute": {"type": "string", "minLength": 1},
          "operator": {"$ref": "#/$defs/operator"},
          "value": {}
        },
        "required": ["attribute", "operator", "value"]
      }
    }
  }
}`

var (
	schemaOnce   sync.Once
	createSchema *jsonschema.Schema
	updateSchema *jsonschema.Schema
)

func compileSchemas() {
	createSchema = mustCompile("automation-create.json", createSchemaDoc)
	updateSchema = mustCompile("automation-update.json", updateSchemaDoc)
}

func mustCompile(name, doc string) *jsonschema.Schema {
	var m any
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		panic(fmt.Sprintf("automation: bad embedded schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, m); err != nil {
		panic(fmt.Sprintf("automation: add schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("automation: compile schema %s: %v", name, err))
	}
	return s
}

// DecodeCreate validates a raw create payload against the rule schema and
// decodes it. Schema failures wrap ErrValidation so transport layers can map
// them to a client error.
func DecodeCreate(raw []byte) (CreateRequest, error) {
	schemaOnce.Do(compileSchemas)
	if err := validateRaw(createSchema, raw); err != nil {
		return CreateRequest{}, err
	}
	var req CreateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return CreateRequest{}, fmt.Errorf("decode rule: %w: %w", err, device.ErrValidation)
	}
	return req, nil
}

// DecodeUpdate validates a raw update payload and decodes it.
func DecodeUpdate(raw []byte) (UpdateRequest, error) {
	schemaOnce.Do(compileSchemas)
	if err := validateRaw(updateSchema, raw); err != nil {
		return UpdateRequest{}, err
	}
	var req UpdateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return UpdateRequest{}, fmt.Errorf("decode rule update: %w: %w", err, device.ErrValidation)
	}
	return req, nil
}

func validateRaw(schema *jsonschema.Schema, raw []byte) error {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("rule payload is not valid JSON: %w: %w", err, device.ErrValidation)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("rule payload: %w: %w", err, device.ErrValidation)
	}
	return nil
}
