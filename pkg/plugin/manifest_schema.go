package plugin

// MetadataSchema is the JSON Schema for plugin metadata validation
const MetadataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "version", "main"],
  "properties": {
    "id": {
      "type": "string",
      "pattern": "^[a-z0-9-]+$",
      "description": "Unique tool identifier (user-facing slug)"
    },
    "name": {
      "type": "string",
      "minLength": 1,
      "description": "Human-readable tool name"
    },
    "version": {
      "type": "string",
      "pattern": "^\\d+\\.\\d+\\.\\d+$",
      "description": "Plugin semver version"
    },
    "description": {
      "type": "string",
      "description": "Tool description"
    },
    "author": {
      "type": "string",
      "description": "Plugin author"
    },
    "main": {
      "type": "string",
      "minLength": 1,
      "description": "Plugin binary, relative to the plugin directory"
    },
    "locator": {
      "type": "string",
      "description": "Where the plugin came from; absent for built-ins"
    },
    "exports": {
      "type": "array",
      "description": "Contract functions the plugin implements",
      "items": { "type": "string" }
    }
  }
}`
