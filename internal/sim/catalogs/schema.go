package catalogs

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const itemsSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "kind"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "name": {"type": "string"},
      "kind": {"enum": ["fish", "trash", "object"]},
      "fish": {
        "type": "object",
        "properties": {
          "difficulty": {"type": "integer", "minimum": 0},
          "time_ranges": {
            "type": "array",
            "items": {"type": "array", "items": {"type": "integer"}, "minItems": 2, "maxItems": 2}
          },
          "weather": {"enum": ["sunny", "rainy", "both"]},
          "max_depth": {"type": "integer", "minimum": 0},
          "spawn_multiplier": {"type": "number", "minimum": 0},
          "depth_multiplier": {"type": "number", "minimum": 0},
          "min_level": {"type": "integer", "minimum": 0},
          "tutorial_catch": {"type": "boolean"}
        }
      }
    }
  }
}`

const rectSchemaJSON = `{
  "type": "object",
  "required": ["x", "y", "w", "h"],
  "properties": {
    "x": {"type": "integer"},
    "y": {"type": "integer"},
    "w": {"type": "integer", "minimum": 0},
    "h": {"type": "integer", "minimum": 0}
  }
}`

var locationSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "water", "spawns"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "outdoors": {"type": "boolean"},
    "season": {"enum": ["spring", "summer", "fall", "winter"]},
    "inherit_default": {"type": "boolean"},
    "inherit_from": {"type": "string"},
    "areas": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "rect"],
        "properties": {"id": {"type": "string"}, "rect": ` + rectSchemaJSON + `}
      }
    },
    "water": {"type": "array", "items": {"type": "string"}},
    "spawns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "item_id": {"type": "string"},
          "random_item_ids": {"type": "array", "items": {"type": "string"}},
          "season": {"enum": ["spring", "summer", "fall", "winter"]},
          "fish_area_id": {"type": "string"},
          "can_be_inherited": {"type": "boolean"},
          "min_distance_from_shore": {"type": "integer", "minimum": 0},
          "max_distance_from_shore": {"type": "integer", "minimum": -1},
          "min_fishing_level": {"type": "integer", "minimum": 0},
          "catch_limit": {"type": "integer", "minimum": -1},
          "require_magic_bait": {"type": "boolean"},
          "condition": {"type": "string"},
          "chance": {"type": "number", "minimum": 0, "maximum": 1},
          "precedence": {"type": "integer"},
          "player_tile_rect": ` + rectSchemaJSON + `,
          "bobber_tile_rect": ` + rectSchemaJSON + `
        }
      }
    }
  }
}`

var (
	itemsSchema    = jsonschema.MustCompileString("items.schema.json", itemsSchemaJSON)
	locationSchema = jsonschema.MustCompileString("location.schema.json", locationSchemaJSON)
)

func validate(s *jsonschema.Schema, name string, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
