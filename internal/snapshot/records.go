package snapshot

import (
	"bytes"
	"encoding/json"

	apperrors "backup-compare/internal/errors"
)

// Record is one exported entity instance: a model discriminator, the primary
// key it carried at export time, and its field mapping. Field values stay as
// raw JSON so comparisons can be byte-faithful to what the export pipeline
// produced.
type Record struct {
	Model  string                     `json:"model"`
	PK     int64                      `json:"pk"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// Field returns the raw JSON value of a field and whether the field exists.
func (r Record) Field(name string) (json.RawMessage, bool) {
	value, ok := r.Fields[name]
	return value, ok
}

// FieldMissing reports whether a field is absent or JSON null. Both count as
// "not present" for comparator existence checks.
func (r Record) FieldMissing(name string) bool {
	value, ok := r.Fields[name]
	return !ok || IsNull(value)
}

// StringField returns a field decoded as a JSON string. The second result is
// false when the field is absent, null, or not a string.
func (r Record) StringField(name string) (string, bool) {
	value, ok := r.Fields[name]
	if !ok || IsNull(value) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", false
	}
	return s, true
}

// IntField returns a field decoded as a JSON integer. The second result is
// false when the field is absent, null, or not an integer.
func (r Record) IntField(name string) (int64, bool) {
	value, ok := r.Fields[name]
	if !ok || IsNull(value) {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(value, &n); err != nil {
		return 0, false
	}
	return n, true
}

// IsNull reports whether a raw JSON value is the null literal.
func IsNull(value json.RawMessage) bool {
	return len(value) == 0 || bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// Snapshot is an ordered sequence of exported records, preserving the order
// the export pipeline wrote them in.
type Snapshot []Record

// Parse decodes a snapshot document. The input must be a JSON array of record
// objects; anything else is a structural parse failure, reported as a hard
// error rather than a finding.
func Parse(data []byte) (Snapshot, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeParse,
			"snapshot is not a valid JSON record sequence", err)
	}

	for i, record := range records {
		if record.Model == "" {
			return nil, apperrors.NewAppError(apperrors.ErrorTypeParse,
				"snapshot record is missing its model discriminator", nil).
				WithContext("index", i)
		}
	}

	return Snapshot(records), nil
}
