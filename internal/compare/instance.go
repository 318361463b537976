package compare

import (
	"encoding/json"
	"fmt"
)

// InstanceID identifies a single record in a snapshot by its model name and
// the position at which it appeared within that model's sequence. Ordinals are
// assigned by order of appearance, not by primary key, so the same identity
// pairs corresponding records across two independently imported snapshots.
type InstanceID struct {
	Model string

	// Ordinal is only meaningful when HasOrdinal is set. Keeping the
	// discriminant separate makes "ordinal 0" and "no ordinal" distinct values,
	// and keeps the struct comparable for use as a map key.
	Ordinal    int
	HasOrdinal bool
}

// NewInstanceID returns an identity without an ordinal, used for model-level
// findings where no single record is being pointed at.
func NewInstanceID(model string) InstanceID {
	return InstanceID{Model: model}
}

// NewOrdinalInstanceID returns an identity for the record at the given
// position within its model's sequence.
func NewOrdinalInstanceID(model string, ordinal int) InstanceID {
	return InstanceID{Model: model, Ordinal: ordinal, HasOrdinal: true}
}

// Pretty renders the identity in the form used by the text report.
func (id InstanceID) Pretty() string {
	out := fmt.Sprintf("InstanceID(model: %q", id.Model)
	if id.HasOrdinal {
		out += fmt.Sprintf(", ordinal: %d", id.Ordinal)
	}
	return out + ")"
}

// MarshalJSON encodes the identity as its attribute mapping, with a null
// ordinal when none was assigned.
func (id InstanceID) MarshalJSON() ([]byte, error) {
	var ordinal *int
	if id.HasOrdinal {
		ordinal = &id.Ordinal
	}
	return json.Marshal(struct {
		Model   string `json:"model"`
		Ordinal *int   `json:"ordinal"`
	}{Model: id.Model, Ordinal: ordinal})
}

// UnmarshalJSON restores an identity from its attribute mapping.
func (id *InstanceID) UnmarshalJSON(data []byte) error {
	var raw struct {
		Model   string `json:"model"`
		Ordinal *int   `json:"ordinal"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id.Model = raw.Model
	if raw.Ordinal != nil {
		id.Ordinal = *raw.Ordinal
		id.HasOrdinal = true
	} else {
		id.Ordinal = 0
		id.HasOrdinal = false
	}
	return nil
}
