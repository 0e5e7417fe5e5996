package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	if !strings.HasPrefix(subject, SubjectEvents+".") {
		return nil
	}

	var p EventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	var missing []string
	if p.ID == "" {
		missing = append(missing, "id")
	}
	if p.Type == "" {
		missing = append(missing, "type")
	}
	if p.TenantID == "" {
		missing = append(missing, "tenant_id")
	}
	if p.EntityID == "" {
		missing = append(missing, "entity_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema validation failed for %s: missing %s", subject, strings.Join(missing, ", "))
	}
	if EventSubject(p.Type) != subject {
		return fmt.Errorf("schema validation failed for %s: %w", subject, errSubjectMismatch)
	}
	return nil
}

var errSubjectMismatch = errors.New("event type does not match subject")
