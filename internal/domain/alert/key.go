package alert

import "strings"

// SemanticKey identifies "the same" alert across generations:
// type, subject entity and, for recurring subjects, the occurrence.
func SemanticKey(t Type, subjectID, occurrenceID string) string {
	parts := []string{string(t), subjectID}
	if occurrenceID != "" {
		parts = append(parts, occurrenceID)
	}
	return strings.Join(parts, ":")
}
