package outbox

const importCompletedSchema = `{
  "type": "object",
  "title": "ActivityImportCompleted",
  "properties": {
    "import_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "source": {"type": "string"},
    "rows": {"type": "integer", "minimum": 0},
    "imported": {"type": "integer", "minimum": 0},
    "dropped": {"type": "integer", "minimum": 0},
    "imported_at": {"type": "string", "format": "date-time"}
  },
  "required": ["import_id", "tenant_id", "user_id", "rows", "imported", "dropped", "imported_at"],
  "additionalProperties": false
}`
