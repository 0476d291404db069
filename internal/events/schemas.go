package events

// ActivityRecordedSchema validates payloads of every activity event type.
const ActivityRecordedSchema = `{
  "type": "object",
  "title": "ActivityRecorded",
  "properties": {
    "tenant_id": {"type": "string", "minLength": 1},
    "user_id": {"type": "string", "minLength": 1},
    "record_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["tenant_id", "user_id"],
  "additionalProperties": true
}`

// ProfileRefreshedSchema is registered for the profile_events topic.
const ProfileRefreshedSchema = `{
  "type": "object",
  "title": "ProfileRefreshed",
  "properties": {
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "level": {"type": "integer", "minimum": 1},
    "total_points": {"type": "integer", "minimum": 0},
    "current_streak": {"type": "integer", "minimum": 0},
    "max_streak": {"type": "integer", "minimum": 0},
    "refreshed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["tenant_id", "user_id", "level", "total_points", "current_streak", "max_streak", "refreshed_at"],
  "additionalProperties": false
}`

// SchemaFor returns the JSON Schema for an event type.
func SchemaFor(eventType string) (string, bool) {
	switch eventType {
	case TypeWorkoutCompleted, TypeMealLogged, TypeCheckInRecorded:
		return ActivityRecordedSchema, true
	case TypeProfileRefreshed:
		return ProfileRefreshedSchema, true
	}
	return "", false
}
