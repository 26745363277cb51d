package api

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"sheetbridge.dev/internal/errs"
)

// Mutation payloads are schema-checked before anything touches the host, so
// malformed bodies fail with a 400 instead of a confusing host-side error.

const loginSchema = `{
  "type": "object",
  "required": ["username", "password"],
  "properties": {
    "username": {"type": "string", "minLength": 1},
    "password": {"type": "string"}
  },
  "additionalProperties": false
}`

const rollSchema = `{
  "type": "object",
  "required": ["type", "key"],
  "properties": {
    "type": {"enum": ["ability", "item"]},
    "key": {"type": "string", "minLength": 1},
    "options": {
      "type": "object",
      "properties": {
        "abilityBonus": {"type": "integer"},
        "itemBonus": {"type": "integer"},
        "talentBonus": {"type": "integer"},
        "advantageMode": {"enum": ["normal", "advantage", "disadvantage"]}
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`

const itemSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "data": {"type": "object"}
  },
  "additionalProperties": false
}`

const effectSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "data": {"type": "object"}
  },
  "additionalProperties": false
}`

const journalSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "content": {"type": "string"},
    "ownership": {"type": "object", "additionalProperties": {"type": "integer"}}
  },
  "additionalProperties": false
}`

// fieldUpdateSchema admits exactly one dotted-path key with a scalar value.
const fieldUpdateSchema = `{
  "type": "object",
  "minProperties": 1,
  "maxProperties": 1,
  "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
}`

type schemas struct {
	login       *jsonschema.Schema
	roll        *jsonschema.Schema
	item        *jsonschema.Schema
	effect      *jsonschema.Schema
	journal     *jsonschema.Schema
	fieldUpdate *jsonschema.Schema
}

func compileSchemas() *schemas {
	compile := func(name, src string) *jsonschema.Schema {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name, strings.NewReader(src)); err != nil {
			panic(err)
		}
		return c.MustCompile(name)
	}
	return &schemas{
		login:       compile("login.json", loginSchema),
		roll:        compile("roll.json", rollSchema),
		item:        compile("item.json", itemSchema),
		effect:      compile("effect.json", effectSchema),
		journal:     compile("journal.json", journalSchema),
		fieldUpdate: compile("field_update.json", fieldUpdateSchema),
	}
}

func validateBody(s *jsonschema.Schema, body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return errs.Wrap(errs.Validation, "body is not JSON", err)
	}
	if err := s.Validate(v); err != nil {
		return errs.Wrap(errs.Validation, "invalid payload", err)
	}
	return nil
}
