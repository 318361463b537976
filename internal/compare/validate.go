package compare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"backup-compare/internal/snapshot"
)

// groupedSide is one snapshot regrouped by model, with identities assigned by
// order of appearance.
type groupedSide struct {
	modelOrder []string
	groups     map[string][]snapshot.Record
	pks        PrimaryKeyMap
}

func groupSide(records snapshot.Snapshot) *groupedSide {
	side := &groupedSide{
		groups: make(map[string][]snapshot.Record),
		pks:    make(PrimaryKeyMap),
	}
	for _, record := range records {
		if _, seen := side.groups[record.Model]; !seen {
			side.modelOrder = append(side.modelOrder, record.Model)
		}
		ordinal := len(side.groups[record.Model])
		side.groups[record.Model] = append(side.groups[record.Model], record)
		side.pks.Insert(record.Model, record.PK, NewOrdinalInstanceID(record.Model, ordinal))
	}
	return side
}

// ordered reports whether a model's primary keys appear in strictly ascending
// order, which also rules out duplicates.
func ordered(records []snapshot.Record) bool {
	for i := 1; i < len(records); i++ {
		if records[i].PK <= records[i-1].PK {
			return false
		}
	}
	return true
}

// Validate walks two snapshots and reports every discrepancy between them
// under the registry's comparator policy. Models are processed in the order
// they first appear in the left snapshot, with right-only models afterwards;
// an empty report means the snapshots are equivalent.
//
// Data-shape anomalies are always downgraded to findings, never errors: a
// model with unordered or mismatched-count records contributes its structural
// finding and is skipped, while every other model is still fully compared.
func Validate(left, right snapshot.Snapshot, registry *Registry) *ComparatorFindings {
	findings := &ComparatorFindings{}

	leftSide := groupSide(left)
	rightSide := groupSide(right)

	for _, fk := range registry.ForeignKeyComparators() {
		fk.SetPrimaryKeyMaps(leftSide.pks, rightSide.pks)
	}

	modelOrder := make([]string, 0, len(leftSide.modelOrder))
	modelOrder = append(modelOrder, leftSide.modelOrder...)
	for _, model := range rightSide.modelOrder {
		if _, ok := leftSide.groups[model]; !ok {
			modelOrder = append(modelOrder, model)
		}
	}

	for _, model := range modelOrder {
		leftRecords := leftSide.groups[model]
		rightRecords := rightSide.groups[model]

		// No safe pairing exists for a model whose pks are out of order, so
		// record-level checks are skipped for it.
		unordered := false
		if !ordered(leftRecords) {
			findings.Append(ComparatorFinding{
				Kind: KindUnorderedInput,
				Finding: Finding{
					On:     NewInstanceID(model),
					Reason: fmt.Sprintf("the primary keys of model %q were not strictly ascending in the left snapshot", model),
				},
			})
			unordered = true
		}
		if !ordered(rightRecords) {
			findings.Append(ComparatorFinding{
				Kind: KindUnorderedInput,
				Finding: Finding{
					On:     NewInstanceID(model),
					Reason: fmt.Sprintf("the primary keys of model %q were not strictly ascending in the right snapshot", model),
				},
			})
			unordered = true
		}
		// The count check is model-level and needs no pairing, so it runs even
		// when the ordering check already failed.
		if len(leftRecords) != len(rightRecords) {
			findings.Append(ComparatorFinding{
				Kind: KindUnequalCounts,
				Finding: Finding{
					On: NewInstanceID(model),
					Reason: fmt.Sprintf("the left snapshot contains %d instances of model %q but the right snapshot contains %d",
						len(leftRecords), model, len(rightRecords)),
				},
			})
			continue
		}
		if unordered {
			continue
		}

		for i := range leftRecords {
			on := NewOrdinalInstanceID(model, i)
			findings.Extend(compareRecords(on, leftRecords[i], rightRecords[i], registry))
		}
	}

	return findings
}

// compareRecords applies the comparator policy to one paired set of records,
// walking the union of their field names in lexical order.
func compareRecords(on InstanceID, left, right snapshot.Record, registry *Registry) []ComparatorFinding {
	var findings []ComparatorFinding

	for _, field := range fieldUnion(left, right) {
		comparator, governed := registry.ForField(on.Model, field)
		if !governed {
			findings = append(findings, compareDefault(on, field, left, right)...)
			continue
		}

		// Shared existence check: both sides missing means the field is
		// trivially equal, exactly one side missing is the comparator's
		// existence-check finding, and the comparator's own logic only ever
		// sees two present, non-null values.
		leftMissing := left.FieldMissing(field)
		rightMissing := right.FieldMissing(field)
		switch {
		case leftMissing && rightMissing:
			continue
		case leftMissing || rightMissing:
			side := "left"
			if rightMissing {
				side = "right"
			}
			findings = append(findings, ComparatorFinding{
				Kind: comparator.Kind().ExistenceCheck(),
				Finding: Finding{
					On:      on,
					LeftPK:  PKRef(left.PK),
					RightPK: PKRef(right.PK),
					Reason:  fmt.Sprintf("the field `%s` was missing or null on the %s side", field, side),
				},
			})
		default:
			findings = append(findings, comparator.Compare(on, field, left, right)...)
		}
	}

	return findings
}

func fieldUnion(left, right snapshot.Record) []string {
	seen := make(map[string]struct{}, len(left.Fields)+len(right.Fields))
	for name := range left.Fields {
		seen[name] = struct{}{}
	}
	for name := range right.Fields {
		seen[name] = struct{}{}
	}
	fields := make([]string, 0, len(seen))
	for name := range seen {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// compareDefault is the equality-after-scrub fallback for fields no comparator
// governs: values must be byte-for-byte equivalent after canonicalization.
func compareDefault(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	leftValue, leftOK := left.Field(field)
	rightValue, rightOK := right.Field(field)

	fail := func(reason string) []ComparatorFinding {
		return []ComparatorFinding{{
			Kind: KindUnequalJSON,
			Finding: Finding{
				On:      on,
				LeftPK:  PKRef(left.PK),
				RightPK: PKRef(right.PK),
				Reason:  reason,
			},
		}}
	}

	if leftOK != rightOK {
		side := "left"
		if !rightOK {
			side = "right"
		}
		return fail(fmt.Sprintf("the field `%s` was absent on the %s side", field, side))
	}

	leftCanon, lerr := canonicalJSON(leftValue)
	rightCanon, rerr := canonicalJSON(rightValue)
	if lerr != nil || rerr != nil {
		return fail(fmt.Sprintf("the field `%s` could not be canonicalized on both sides", field))
	}
	if !bytes.Equal(leftCanon, rightCanon) {
		return fail(fmt.Sprintf("the left value (%s) of `%s` was not equal to the right value (%s)",
			leftCanon, field, rightCanon))
	}
	return nil
}

// canonicalJSON re-encodes a raw value into a stable form: object keys sorted,
// insignificant whitespace dropped, numbers kept verbatim.
func canonicalJSON(raw json.RawMessage) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
