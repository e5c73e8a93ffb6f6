package orderhttp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// draftSchema gate-keeps submission payloads before they reach the typed
// decoder: enum membership and field shapes fail fast with a path-qualified
// message instead of a zero-valued struct.
const draftSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "draft.json",
  "type": "object",
  "required": ["portfolio_id", "symbol", "type", "side", "time_in_force", "quantity"],
  "properties": {
    "portfolio_id": {"type": "string", "minLength": 1},
    "symbol": {"type": "string", "minLength": 1},
    "type": {"enum": ["MARKET", "LIMIT", "STOP_LOSS", "STOP_LIMIT", "TRAILING_STOP", "OCO", "BRACKET", "IF_TOUCHED"]},
    "side": {"enum": ["BUY", "SELL"]},
    "time_in_force": {"enum": ["DAY", "GTC", "IOC", "FOK"]},
    "quantity": {"type": "number", "exclusiveMinimum": 0},
    "limit_price": {"type": "number", "exclusiveMinimum": 0},
    "stop_price": {"type": "number", "exclusiveMinimum": 0},
    "trigger_price": {"type": "number", "exclusiveMinimum": 0},
    "trail_amount": {"type": "number", "exclusiveMinimum": 0},
    "trail_percent": {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1},
    "take_profit_price": {"type": "number", "exclusiveMinimum": 0},
    "stop_loss_price": {"type": "number", "exclusiveMinimum": 0},
    "conditions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["field", "operator", "value"],
        "properties": {
          "field": {"type": "string", "minLength": 1},
          "operator": {"enum": ["GT", "GTE", "LT", "LTE", "EQ", "BETWEEN"]},
          "value": {"type": "number"},
          "value2": {"type": "number"},
          "logical_operator": {"enum": ["AND", "OR"]}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

const ocoSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "oco.json",
  "type": "object",
  "required": ["legs"],
  "properties": {
    "legs": {
      "type": "array",
      "minItems": 2,
      "items": {"$ref": "draft.json"}
    }
  },
  "additionalProperties": false
}`

var (
	compiledDraft = mustCompile("draft.json", draftSchema)
	compiledOCO   = mustCompile("oco.json", ocoSchema, draftSchema)
)

func mustCompile(entry string, schemas ...string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	for _, raw := range schemas {
		id := jsonIDOf(raw)
		if err := compiler.AddResource(id, strings.NewReader(raw)); err != nil {
			panic(err)
		}
	}
	schema, err := compiler.Compile(entry)
	if err != nil {
		panic(err)
	}
	return schema
}

func jsonIDOf(raw string) string {
	var head struct {
		ID string `json:"$id"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil || head.ID == "" {
		panic(fmt.Sprintf("schema missing $id: %v", err))
	}
	return head.ID
}

// validateJSON runs a raw body against a compiled schema.
func validateJSON(schema *jsonschema.Schema, body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	return schema.Validate(doc)
}
