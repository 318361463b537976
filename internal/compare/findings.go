package compare

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FindingKind is the closed set of discrepancy categories a comparison run can
// report. Each comparator has a main kind plus an existence-check kind emitted
// when exactly one side is missing the governed field.
type FindingKind int

const (
	KindUnknown FindingKind = iota

	// Primary keys for a model did not appear in strictly ascending order.
	KindUnorderedInput

	// The left and right snapshots contain different numbers of instances of a
	// model.
	KindUnequalCounts

	// Two field values with no registered comparator were not byte-for-byte
	// equivalent after canonicalization.
	KindUnequalJSON

	KindAutoSuffixComparator
	KindAutoSuffixComparatorExistenceCheck
	KindDatetimeEqualityComparator
	KindDatetimeEqualityComparatorExistenceCheck
	KindDateUpdatedComparator
	KindDateUpdatedComparatorExistenceCheck
	KindEmailObfuscatingComparator
	KindEmailObfuscatingComparatorExistenceCheck
	KindHashObfuscatingComparator
	KindHashObfuscatingComparatorExistenceCheck
	KindForeignKeyComparator
	KindForeignKeyComparatorExistenceCheck
	KindIgnoredComparator
	KindIgnoredComparatorExistenceCheck
	KindSecretHexComparator
	KindSecretHexComparatorExistenceCheck
	KindSubscriptionIDComparator
	KindSubscriptionIDComparatorExistenceCheck
	KindUUID4Comparator
	KindUUID4ComparatorExistenceCheck
	KindUserPasswordObfuscatingComparator
	KindUserPasswordObfuscatingComparatorExistenceCheck
)

var findingKindNames = map[FindingKind]string{
	KindUnknown:                              "Unknown",
	KindUnorderedInput:                       "UnorderedInput",
	KindUnequalCounts:                        "UnequalCounts",
	KindUnequalJSON:                          "UnequalJSON",
	KindAutoSuffixComparator:                 "AutoSuffixComparator",
	KindAutoSuffixComparatorExistenceCheck:   "AutoSuffixComparatorExistenceCheck",
	KindDatetimeEqualityComparator:           "DatetimeEqualityComparator",
	KindDatetimeEqualityComparatorExistenceCheck: "DatetimeEqualityComparatorExistenceCheck",
	KindDateUpdatedComparator:                    "DateUpdatedComparator",
	KindDateUpdatedComparatorExistenceCheck:      "DateUpdatedComparatorExistenceCheck",
	KindEmailObfuscatingComparator:               "EmailObfuscatingComparator",
	KindEmailObfuscatingComparatorExistenceCheck: "EmailObfuscatingComparatorExistenceCheck",
	KindHashObfuscatingComparator:                "HashObfuscatingComparator",
	KindHashObfuscatingComparatorExistenceCheck:  "HashObfuscatingComparatorExistenceCheck",
	KindForeignKeyComparator:                     "ForeignKeyComparator",
	KindForeignKeyComparatorExistenceCheck:       "ForeignKeyComparatorExistenceCheck",
	KindIgnoredComparator:                        "IgnoredComparator",
	KindIgnoredComparatorExistenceCheck:          "IgnoredComparatorExistenceCheck",
	KindSecretHexComparator:                      "SecretHexComparator",
	KindSecretHexComparatorExistenceCheck:        "SecretHexComparatorExistenceCheck",
	KindSubscriptionIDComparator:                 "SubscriptionIDComparator",
	KindSubscriptionIDComparatorExistenceCheck:   "SubscriptionIDComparatorExistenceCheck",
	KindUUID4Comparator:                          "UUID4Comparator",
	KindUUID4ComparatorExistenceCheck:            "UUID4ComparatorExistenceCheck",
	KindUserPasswordObfuscatingComparator:        "UserPasswordObfuscatingComparator",
	KindUserPasswordObfuscatingComparatorExistenceCheck: "UserPasswordObfuscatingComparatorExistenceCheck",
}

var findingKindValues = func() map[string]FindingKind {
	m := make(map[string]FindingKind, len(findingKindNames))
	for k, name := range findingKindNames {
		m[name] = k
	}
	return m
}()

// String returns the symbolic name of the kind.
func (k FindingKind) String() string {
	if name, ok := findingKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ExistenceCheck maps a comparator kind to its existence-check kind. Kinds
// without one (the structural kinds) map to themselves.
func (k FindingKind) ExistenceCheck() FindingKind {
	switch k {
	case KindAutoSuffixComparator,
		KindDatetimeEqualityComparator,
		KindDateUpdatedComparator,
		KindEmailObfuscatingComparator,
		KindHashObfuscatingComparator,
		KindForeignKeyComparator,
		KindIgnoredComparator,
		KindSecretHexComparator,
		KindSubscriptionIDComparator,
		KindUUID4Comparator,
		KindUserPasswordObfuscatingComparator:
		return k + 1
	default:
		return k
	}
}

// MarshalJSON encodes the kind as its symbolic name, never its numeric value.
func (k FindingKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its symbolic name.
func (k *FindingKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	kind, ok := findingKindValues[name]
	if !ok {
		return fmt.Errorf("unknown finding kind %q", name)
	}
	*k = kind
	return nil
}

// Finding is a single reportable discrepancy between two snapshots. Value
// semantics only; findings are never mutated after creation.
type Finding struct {
	On InstanceID `json:"on"`

	// Pre-import and post-import primary keys of the record in question, when a
	// single record is being pointed at. Nil when the finding targets a whole
	// model; encodes as null so every finding carries both keys.
	LeftPK  *int64 `json:"left_pk"`
	RightPK *int64 `json:"right_pk"`

	Reason string `json:"reason,omitempty"`
}

// PKRef copies a primary key into the nullable pk fields of a Finding.
func PKRef(pk int64) *int64 { return &pk }

// ComparatorFinding is a Finding tagged with the category of check that
// produced it.
type ComparatorFinding struct {
	Finding
	Kind FindingKind `json:"kind"`
}

// Pretty renders the finding as the multi-line block used in the text report.
func (f ComparatorFinding) Pretty() string {
	out := fmt.Sprintf("Finding(\n\tkind: %s,\n\ton: %s", f.Kind, f.On.Pretty())
	if f.LeftPK != nil {
		out += fmt.Sprintf(",\n\tleft_pk: %d", *f.LeftPK)
	}
	if f.RightPK != nil {
		out += fmt.Sprintf(",\n\tright_pk: %d", *f.RightPK)
	}
	if f.Reason != "" {
		out += fmt.Sprintf(",\n\treason: %s", f.Reason)
	}
	return out + "\n)"
}

// ComparatorFindings accumulates findings in the order the checks ran. It is
// owned by a single Validate invocation and is not safe for concurrent use.
type ComparatorFindings struct {
	findings []ComparatorFinding
}

// NewComparatorFindings wraps an existing slice of findings.
func NewComparatorFindings(findings []ComparatorFinding) *ComparatorFindings {
	return &ComparatorFindings{findings: findings}
}

// Append adds one finding to the report.
func (c *ComparatorFindings) Append(finding ComparatorFinding) {
	c.findings = append(c.findings, finding)
}

// Extend adds a batch of findings to the report.
func (c *ComparatorFindings) Extend(findings []ComparatorFinding) {
	c.findings = append(c.findings, findings...)
}

// Empty reports whether the compared snapshots were equivalent under the
// comparator policy.
func (c *ComparatorFindings) Empty() bool {
	return len(c.findings) == 0
}

// Len returns the number of collected findings.
func (c *ComparatorFindings) Len() int {
	return len(c.findings)
}

// Findings returns the collected findings in insertion order.
func (c *ComparatorFindings) Findings() []ComparatorFinding {
	return c.findings
}

// Pretty renders every finding as a text block, one per line group.
func (c *ComparatorFindings) Pretty() string {
	blocks := make([]string, 0, len(c.findings))
	for _, f := range c.findings {
		blocks = append(blocks, f.Pretty())
	}
	return strings.Join(blocks, "\n")
}

// JSON encodes the findings with kinds rendered as symbolic names and
// identities as their attribute mappings. The transform happens up front via
// the MarshalJSON hooks on FindingKind and InstanceID, so any downstream
// serializer sees only plain values.
func (c *ComparatorFindings) JSON() ([]byte, error) {
	if c.findings == nil {
		return json.MarshalIndent([]ComparatorFinding{}, "", "  ")
	}
	return json.MarshalIndent(c.findings, "", "  ")
}
