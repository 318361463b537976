package compare

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"backup-compare/internal/snapshot"
)

// Comparator is a per-field comparison policy for fields expected to
// legitimately change across an export/import round-trip. The validator runs
// the shared existence check before calling Compare, so implementations can
// assume both sides carry a non-null value for the field.
type Comparator interface {
	// Kind is the finding category emitted when the comparison fails. The
	// existence-check category is derived from it.
	Kind() FindingKind

	// Fields lists the field names this comparator governs.
	Fields() []string

	// Compare checks one governed field on a paired set of records and returns
	// any findings.
	Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding
}

// comparatorBase carries the kind and governed field list shared by every
// comparator.
type comparatorBase struct {
	kind   FindingKind
	fields []string
}

func (c comparatorBase) Kind() FindingKind { return c.kind }
func (c comparatorBase) Fields() []string  { return c.fields }

func (c comparatorBase) fail(on InstanceID, left, right snapshot.Record, reason string) []ComparatorFinding {
	return []ComparatorFinding{{
		Kind: c.kind,
		Finding: Finding{
			On:      on,
			LeftPK:  PKRef(left.PK),
			RightPK: PKRef(right.PK),
			Reason:  reason,
		},
	}}
}

// stringValues decodes the governed field as a string on both sides. A
// non-string value is itself a comparison failure.
func (c comparatorBase) stringValues(on InstanceID, field string, left, right snapshot.Record) (string, string, []ComparatorFinding) {
	lv, lok := left.StringField(field)
	rv, rok := right.StringField(field)
	if !lok || !rok {
		return "", "", c.fail(on, left, right,
			fmt.Sprintf("the field `%s` was not a string on both sides", field))
	}
	return lv, rv, nil
}

// autoSuffixPattern matches the disambiguating suffix an import appends when a
// unique value collides with an existing row.
var autoSuffixPattern = regexp.MustCompile(`^[-_][A-Za-z0-9]+$`)

// AutoSuffixComparator handles fields that may gain a trailing suffix on
// import collision (usernames, slugs). The right side matches when it is
// either equal to the left or equal to the left plus such a suffix.
type AutoSuffixComparator struct {
	comparatorBase
}

// NewAutoSuffixComparator creates a comparator for the named fields.
func NewAutoSuffixComparator(fields ...string) *AutoSuffixComparator {
	return &AutoSuffixComparator{comparatorBase{kind: KindAutoSuffixComparator, fields: fields}}
}

// Compare implements Comparator.
func (c *AutoSuffixComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	if lv == rv {
		return nil
	}
	if strings.HasPrefix(rv, lv) && autoSuffixPattern.MatchString(rv[len(lv):]) {
		return nil
	}
	return c.fail(on, left, right,
		fmt.Sprintf("the left value (%s) of `%s` was not equal to or a prefix of the right value (%s)", lv, field, rv))
}

// datetimeLayouts covers the timestamp representations the export pipeline is
// known to emit: RFC 3339 with and without fractional seconds, and naive
// timestamps which are taken as UTC.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func parseDatetime(value string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", value)
}

// DatetimeEqualityComparator requires both sides to parse to the same instant,
// ignoring cosmetic representation differences such as trailing zero
// fractional seconds or offset notation.
type DatetimeEqualityComparator struct {
	comparatorBase
}

// NewDatetimeEqualityComparator creates a comparator for the named fields.
func NewDatetimeEqualityComparator(fields ...string) *DatetimeEqualityComparator {
	return &DatetimeEqualityComparator{comparatorBase{kind: KindDatetimeEqualityComparator, fields: fields}}
}

// Compare implements Comparator.
func (c *DatetimeEqualityComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	lt, lerr := parseDatetime(lv)
	rt, rerr := parseDatetime(rv)
	if lerr != nil || rerr != nil {
		return c.fail(on, left, right,
			fmt.Sprintf("the field `%s` was not a parsable datetime on both sides (left: %s, right: %s)", field, lv, rv))
	}
	if !lt.Equal(rt) {
		return c.fail(on, left, right,
			fmt.Sprintf("the left value (%s) of `%s` was not equal to the right value (%s)", lv, field, rv))
	}
	return nil
}

// DateUpdatedComparator requires the right-side timestamp to be greater than
// or equal to the left side's: an import may refresh a timestamp but never
// regress it.
type DateUpdatedComparator struct {
	comparatorBase
}

// NewDateUpdatedComparator creates a comparator for the named fields.
func NewDateUpdatedComparator(fields ...string) *DateUpdatedComparator {
	return &DateUpdatedComparator{comparatorBase{kind: KindDateUpdatedComparator, fields: fields}}
}

// Compare implements Comparator.
func (c *DateUpdatedComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	lt, lerr := parseDatetime(lv)
	rt, rerr := parseDatetime(rv)
	if lerr != nil || rerr != nil {
		return c.fail(on, left, right,
			fmt.Sprintf("the field `%s` was not a parsable datetime on both sides (left: %s, right: %s)", field, lv, rv))
	}
	if rt.Before(lt) {
		return c.fail(on, left, right,
			fmt.Sprintf("the left value (%s) of `%s` was not less than or equal to the right value (%s)", lv, field, rv))
	}
	return nil
}

// obfuscateEmail redacts the local part of an email, leaving just enough of
// either end to identify the record in a report without leaking the address.
func obfuscateEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return obfuscateToken(email)
	}
	local, domain := email[:at], email[at+1:]
	suffix := domain
	if len(domain) > 6 {
		suffix = domain[len(domain)-6:]
	}
	return local[:1] + "...@..." + suffix
}

// obfuscateToken redacts an opaque secret down to a recognizable stub.
func obfuscateToken(value string) string {
	switch {
	case len(value) >= 16:
		return value[:3] + "..." + value[len(value)-3:]
	case len(value) >= 8:
		return value[:1] + "..." + value[len(value)-1:]
	default:
		return "..."
	}
}

// EmailObfuscatingComparator compares email fields by their obfuscated
// representation, so reports never carry the raw address.
type EmailObfuscatingComparator struct {
	comparatorBase
}

// NewEmailObfuscatingComparator creates a comparator for the named fields.
func NewEmailObfuscatingComparator(fields ...string) *EmailObfuscatingComparator {
	return &EmailObfuscatingComparator{comparatorBase{kind: KindEmailObfuscatingComparator, fields: fields}}
}

// Compare implements Comparator.
func (c *EmailObfuscatingComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	lo, ro := obfuscateEmail(lv), obfuscateEmail(rv)
	if lo != ro {
		return c.fail(on, left, right,
			fmt.Sprintf("the left value (%s) of `%s` was not equal to the right value (%s)", lo, field, ro))
	}
	return nil
}

// HashObfuscatingComparator compares opaque hash or token fields by a redacted
// canonical form rather than the raw secret.
type HashObfuscatingComparator struct {
	comparatorBase
}

// NewHashObfuscatingComparator creates a comparator for the named fields.
func NewHashObfuscatingComparator(fields ...string) *HashObfuscatingComparator {
	return &HashObfuscatingComparator{comparatorBase{kind: KindHashObfuscatingComparator, fields: fields}}
}

// Compare implements Comparator.
func (c *HashObfuscatingComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	lo, ro := obfuscateToken(lv), obfuscateToken(rv)
	if lo != ro {
		return c.fail(on, left, right,
			fmt.Sprintf("the left value (%s) of `%s` was not equal to the right value (%s)", lo, field, ro))
	}
	return nil
}

// passwordHashPattern matches the algorithm-prefixed password hash shape the
// exporting application stores (for example "pbkdf2_sha256$260000$...").
var passwordHashPattern = regexp.MustCompile(`^[a-z0-9_]+\$[^$]+\$.+$`)

// UserPasswordObfuscatingComparator handles stored password hashes. Identical
// hashes always match; otherwise both sides must at least conform to the
// stored-hash shape, since an import may rotate the hash without changing the
// logical credential state. Reasons carry obfuscated values only.
type UserPasswordObfuscatingComparator struct {
	comparatorBase
}

// NewUserPasswordObfuscatingComparator creates a comparator for the named fields.
func NewUserPasswordObfuscatingComparator(fields ...string) *UserPasswordObfuscatingComparator {
	return &UserPasswordObfuscatingComparator{comparatorBase{kind: KindUserPasswordObfuscatingComparator, fields: fields}}
}

// Compare implements Comparator.
func (c *UserPasswordObfuscatingComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	if lv == rv {
		return nil
	}
	if passwordHashPattern.MatchString(lv) && passwordHashPattern.MatchString(rv) {
		return nil
	}
	return c.fail(on, left, right,
		fmt.Sprintf("the left value (%s) of `%s` was not a valid password hash alongside the right value (%s)", obfuscateToken(lv), field, obfuscateToken(rv)))
}

// SecretHexComparator requires both sides to match a fixed hex shape of the
// configured byte length. Equality is not required, since secrets are
// regenerated on import.
type SecretHexComparator struct {
	comparatorBase
	pattern *regexp.Regexp
}

// NewSecretHexComparator creates a comparator expecting byteLen bytes of hex.
func NewSecretHexComparator(byteLen int, fields ...string) *SecretHexComparator {
	return &SecretHexComparator{
		comparatorBase: comparatorBase{kind: KindSecretHexComparator, fields: fields},
		pattern:        regexp.MustCompile(fmt.Sprintf(`^[0-9a-f]{%d}$`, byteLen*2)),
	}
}

// Compare implements Comparator.
func (c *SecretHexComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	var out []ComparatorFinding
	if !c.pattern.MatchString(lv) {
		out = append(out, c.fail(on, left, right,
			fmt.Sprintf("the left value (%s) of `%s` did not match the secret hex shape %s", obfuscateToken(lv), field, c.pattern.String()))...)
	}
	if !c.pattern.MatchString(rv) {
		out = append(out, c.fail(on, left, right,
			fmt.Sprintf("the right value (%s) of `%s` did not match the secret hex shape %s", obfuscateToken(rv), field, c.pattern.String()))...)
	}
	return out
}

// subscriptionIDPattern is the provider-assigned query subscription ID shape.
var subscriptionIDPattern = regexp.MustCompile(`^0/[0-9a-f]{32}$`)

// SubscriptionIDComparator requires both sides to match the provider's
// subscription ID shape, without requiring equality.
type SubscriptionIDComparator struct {
	comparatorBase
}

// NewSubscriptionIDComparator creates a comparator for the named fields.
func NewSubscriptionIDComparator(fields ...string) *SubscriptionIDComparator {
	return &SubscriptionIDComparator{comparatorBase{kind: KindSubscriptionIDComparator, fields: fields}}
}

// Compare implements Comparator.
func (c *SubscriptionIDComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	var out []ComparatorFinding
	if !subscriptionIDPattern.MatchString(lv) {
		out = append(out, c.fail(on, left, right,
			fmt.Sprintf("the left value (%s) of `%s` did not match the subscription ID shape", lv, field))...)
	}
	if !subscriptionIDPattern.MatchString(rv) {
		out = append(out, c.fail(on, left, right,
			fmt.Sprintf("the right value (%s) of `%s` did not match the subscription ID shape", rv, field))...)
	}
	return out
}

// UUID4Comparator requires both sides to be syntactically valid version 4
// UUIDs. Equality is not required, since identifiers may be reassigned on
// import.
type UUID4Comparator struct {
	comparatorBase
}

// NewUUID4Comparator creates a comparator for the named fields.
func NewUUID4Comparator(fields ...string) *UUID4Comparator {
	return &UUID4Comparator{comparatorBase{kind: KindUUID4Comparator, fields: fields}}
}

func isUUID4(value string) bool {
	id, err := uuid.Parse(value)
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// Compare implements Comparator.
func (c *UUID4Comparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	lv, rv, findings := c.stringValues(on, field, left, right)
	if findings != nil {
		return findings
	}
	var out []ComparatorFinding
	if !isUUID4(lv) {
		out = append(out, c.fail(on, left, right,
			fmt.Sprintf("the left value (%s) of `%s` was not a valid UUID4", lv, field))...)
	}
	if !isUUID4(rv) {
		out = append(out, c.fail(on, left, right,
			fmt.Sprintf("the right value (%s) of `%s` was not a valid UUID4", rv, field))...)
	}
	return out
}

// PrimaryKeyMap resolves a model's original primary keys to the identities
// assigned during grouping, one map per side of the comparison.
type PrimaryKeyMap map[string]map[int64]InstanceID

// Insert records a pk -> identity assignment for a model.
func (m PrimaryKeyMap) Insert(model string, pk int64, id InstanceID) {
	byPK, ok := m[model]
	if !ok {
		byPK = make(map[int64]InstanceID)
		m[model] = byPK
	}
	byPK[pk] = id
}

// Resolve looks up the identity a pk had within one side's snapshot.
func (m PrimaryKeyMap) Resolve(model string, pk int64) (InstanceID, bool) {
	id, ok := m[model][pk]
	return id, ok
}

// ForeignKeyComparator checks that both sides of a foreign key field point at
// a record of the target model that exists in their own snapshot, and that the
// two referenced records occupy the same ordinal, meaning they are the same
// logical record. Raw pk equality is never required; pks are reassigned on
// import.
type ForeignKeyComparator struct {
	comparatorBase
	targets map[string]string // field name -> target model

	leftPKs  PrimaryKeyMap
	rightPKs PrimaryKeyMap
}

// NewForeignKeyComparator creates a comparator from a field -> target model
// mapping.
func NewForeignKeyComparator(targets map[string]string) *ForeignKeyComparator {
	fields := make([]string, 0, len(targets))
	for field := range targets {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return &ForeignKeyComparator{
		comparatorBase: comparatorBase{kind: KindForeignKeyComparator, fields: fields},
		targets:        targets,
	}
}

// SetPrimaryKeyMaps injects the per-side pk -> identity maps built while
// grouping the snapshots. The validator calls this before any Compare.
func (c *ForeignKeyComparator) SetPrimaryKeyMaps(left, right PrimaryKeyMap) {
	c.leftPKs = left
	c.rightPKs = right
}

// Compare implements Comparator.
func (c *ForeignKeyComparator) Compare(on InstanceID, field string, left, right snapshot.Record) []ComparatorFinding {
	target, ok := c.targets[field]
	if !ok {
		return nil
	}

	lpk, lok := left.IntField(field)
	rpk, rok := right.IntField(field)
	if !lok || !rok {
		return c.fail(on, left, right,
			fmt.Sprintf("the foreign key field `%s` was not an integer on both sides", field))
	}

	leftID, lfound := c.leftPKs.Resolve(target, lpk)
	rightID, rfound := c.rightPKs.Resolve(target, rpk)
	if !lfound || !rfound {
		return c.fail(on, left, right,
			fmt.Sprintf("the foreign key `%s` pointing into model %q could not be resolved on both sides (left pk: %d, right pk: %d)", field, target, lpk, rpk))
	}
	if leftID != rightID {
		return c.fail(on, left, right,
			fmt.Sprintf("the foreign key `%s` resolved to different records of model %q (left: %s, right: %s)", field, target, leftID.Pretty(), rightID.Pretty()))
	}
	return nil
}

// IgnoredComparator claims fields that are known to always differ. Presence is
// still verified through the shared existence check, but values are never
// compared.
type IgnoredComparator struct {
	comparatorBase
}

// NewIgnoredComparator creates a comparator for the named fields.
func NewIgnoredComparator(fields ...string) *IgnoredComparator {
	return &IgnoredComparator{comparatorBase{kind: KindIgnoredComparator, fields: fields}}
}

// Compare implements Comparator.
func (c *IgnoredComparator) Compare(InstanceID, string, snapshot.Record, snapshot.Record) []ComparatorFinding {
	return nil
}
