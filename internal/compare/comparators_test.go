package compare

import (
	"encoding/json"
	"strings"
	"testing"

	"backup-compare/internal/snapshot"
)

// record builds a test record from raw JSON field values.
func record(model string, pk int64, fields map[string]string) snapshot.Record {
	raw := make(map[string]json.RawMessage, len(fields))
	for name, value := range fields {
		raw[name] = json.RawMessage(value)
	}
	return snapshot.Record{Model: model, PK: pk, Fields: raw}
}

func TestAutoSuffixComparator(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{"equal values", `"alice"`, `"alice"`, 0},
		{"underscore suffix", `"alice"`, `"alice_2"`, 0},
		{"hyphen suffix", `"alice"`, `"alice-4f2a"`, 0},
		{"unrelated value", `"alice"`, `"bob"`, 1},
		{"suffix without separator", `"alice"`, `"alice2"`, 1},
		{"separator without suffix", `"alice"`, `"alice_"`, 1},
		{"right is a prefix of left", `"alice_2"`, `"alice"`, 1},
		{"non-string value", `"alice"`, `7`, 1},
	}

	c := NewAutoSuffixComparator("username")
	on := NewOrdinalInstanceID("sentry.user", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.user", 1, map[string]string{"username": tt.left})
			right := record("sentry.user", 1, map[string]string{"username": tt.right})
			findings := c.Compare(on, "username", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
			for _, f := range findings {
				if f.Kind != KindAutoSuffixComparator {
					t.Errorf("finding kind = %v, want %v", f.Kind, KindAutoSuffixComparator)
				}
			}
		})
	}
}

func TestDatetimeEqualityComparator(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{"identical", `"2023-06-22T23:00:00.123Z"`, `"2023-06-22T23:00:00.123Z"`, 0},
		{"same instant different precision", `"2023-06-22T23:00:00Z"`, `"2023-06-22T23:00:00.000Z"`, 0},
		{"naive equals explicit utc", `"2023-06-22T23:00:00"`, `"2023-06-22T23:00:00Z"`, 0},
		{"offset notation", `"2023-06-23T01:00:00+02:00"`, `"2023-06-22T23:00:00Z"`, 0},
		{"different instants", `"2023-06-22T23:00:00Z"`, `"2023-06-22T23:00:01Z"`, 1},
		{"unparsable side", `"not-a-date"`, `"2023-06-22T23:00:00Z"`, 1},
	}

	c := NewDatetimeEqualityComparator("date_added")
	on := NewOrdinalInstanceID("sentry.project", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.project", 1, map[string]string{"date_added": tt.left})
			right := record("sentry.project", 1, map[string]string{"date_added": tt.right})
			findings := c.Compare(on, "date_added", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
		})
	}
}

func TestDateUpdatedComparator(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{"equal timestamps", `"2023-06-22T23:00:00Z"`, `"2023-06-22T23:00:00Z"`, 0},
		{"right is later", `"2023-06-22T23:00:00Z"`, `"2023-06-23T10:30:00Z"`, 0},
		{"right regressed", `"2023-06-23T10:30:00Z"`, `"2023-06-22T23:00:00Z"`, 1},
		{"unparsable side", `"soon"`, `"2023-06-22T23:00:00Z"`, 1},
	}

	c := NewDateUpdatedComparator("date_updated")
	on := NewOrdinalInstanceID("sentry.project", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.project", 1, map[string]string{"date_updated": tt.left})
			right := record("sentry.project", 1, map[string]string{"date_updated": tt.right})
			findings := c.Compare(on, "date_updated", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
		})
	}
}

func TestEmailObfuscatingComparator(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{"equal emails", `"alice@example.com"`, `"alice@example.com"`, 0},
		{"same obfuscated shape", `"alice@example.com"`, `"averie@sample.com"`, 0},
		{"different domain tail", `"alice@example.com"`, `"alice@example.org"`, 1},
		{"different first letter", `"alice@example.com"`, `"bob@example.com"`, 1},
	}

	c := NewEmailObfuscatingComparator("email")
	on := NewOrdinalInstanceID("sentry.email", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.email", 1, map[string]string{"email": tt.left})
			right := record("sentry.email", 1, map[string]string{"email": tt.right})
			findings := c.Compare(on, "email", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
		})
	}
}

func TestEmailObfuscatingComparatorRedactsReason(t *testing.T) {
	c := NewEmailObfuscatingComparator("email")
	on := NewOrdinalInstanceID("sentry.email", 0)
	left := record("sentry.email", 1, map[string]string{"email": `"alice@example.com"`})
	right := record("sentry.email", 1, map[string]string{"email": `"bob@other.net"`})

	findings := c.Compare(on, "email", left, right)
	if len(findings) != 1 {
		t.Fatalf("Compare() produced %d findings, want 1", len(findings))
	}
	reason := findings[0].Reason
	if strings.Contains(reason, "alice@example.com") || strings.Contains(reason, "bob@other.net") {
		t.Errorf("reason leaks raw email addresses: %s", reason)
	}
}

func TestObfuscateToken(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"0123456789abcdef", "012...def"},
		{"sessionno", "s...o"},
		{"short", "..."},
		{"", "..."},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := obfuscateToken(tt.value); got != tt.want {
				t.Errorf("obfuscateToken(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestHashObfuscatingComparator(t *testing.T) {
	c := NewHashObfuscatingComparator("session_nonce")
	on := NewOrdinalInstanceID("sentry.user", 0)

	left := record("sentry.user", 1, map[string]string{"session_nonce": `"abcdefghijklmnop"`})
	if findings := c.Compare(on, "session_nonce", left, left); len(findings) != 0 {
		t.Errorf("identical hashes should match, got %+v", findings)
	}

	// Same redacted stub, different middle: matches under obfuscation.
	sameStub := record("sentry.user", 1, map[string]string{"session_nonce": `"abc999999999znop"`})
	if findings := c.Compare(on, "session_nonce", left, sameStub); len(findings) != 0 {
		t.Errorf("hashes with the same redacted stub should match, got %+v", findings)
	}

	different := record("sentry.user", 1, map[string]string{"session_nonce": `"zzzzzzzzzzzzzzzz"`})
	findings := c.Compare(on, "session_nonce", left, different)
	if len(findings) != 1 {
		t.Fatalf("Compare() produced %d findings, want 1", len(findings))
	}
	if strings.Contains(findings[0].Reason, "abcdefghijklmnop") {
		t.Errorf("reason leaks the raw hash: %s", findings[0].Reason)
	}
}

func TestUserPasswordObfuscatingComparator(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{
			"identical hashes",
			`"pbkdf2_sha256$260000$abc$def"`,
			`"pbkdf2_sha256$260000$abc$def"`,
			0,
		},
		{
			"rotated but both valid",
			`"pbkdf2_sha256$260000$abc$def"`,
			`"pbkdf2_sha256$260000$xyz$uvw"`,
			0,
		},
		{
			"right side not a hash",
			`"pbkdf2_sha256$260000$abc$def"`,
			`"hunter2"`,
			1,
		},
		{
			"neither side a hash",
			`"plaintext"`,
			`"other"`,
			1,
		},
	}

	c := NewUserPasswordObfuscatingComparator("password")
	on := NewOrdinalInstanceID("sentry.user", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.user", 1, map[string]string{"password": tt.left})
			right := record("sentry.user", 1, map[string]string{"password": tt.right})
			findings := c.Compare(on, "password", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
			for _, f := range findings {
				if strings.Contains(f.Reason, "hunter2") || strings.Contains(f.Reason, "plaintext") {
					t.Errorf("reason leaks the raw value: %s", f.Reason)
				}
			}
		})
	}
}

func TestSecretHexComparator(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{
			"both valid and different",
			`"0123456789abcdef0123456789abcdef"`,
			`"fedcba9876543210fedcba9876543210"`,
			0,
		},
		{
			"left wrong length",
			`"0123456789abcdef"`,
			`"fedcba9876543210fedcba9876543210"`,
			1,
		},
		{
			"right has uppercase",
			`"0123456789abcdef0123456789abcdef"`,
			`"0123456789ABCDEF0123456789ABCDEF"`,
			1,
		},
		{
			"both invalid",
			`"nope"`,
			`"also nope"`,
			2,
		},
	}

	c := NewSecretHexComparator(16, "public_key")
	on := NewOrdinalInstanceID("sentry.projectkey", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.projectkey", 1, map[string]string{"public_key": tt.left})
			right := record("sentry.projectkey", 1, map[string]string{"public_key": tt.right})
			findings := c.Compare(on, "public_key", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
		})
	}
}

func TestSecretHexComparatorFindingOrder(t *testing.T) {
	c := NewSecretHexComparator(16, "public_key")
	on := NewOrdinalInstanceID("sentry.projectkey", 0)
	left := record("sentry.projectkey", 1, map[string]string{"public_key": `"bad-left"`})
	right := record("sentry.projectkey", 1, map[string]string{"public_key": `"bad-right"`})

	findings := c.Compare(on, "public_key", left, right)
	if len(findings) != 2 {
		t.Fatalf("Compare() produced %d findings, want 2", len(findings))
	}
	if !strings.Contains(findings[0].Reason, "left value") {
		t.Errorf("first finding should report the left side: %s", findings[0].Reason)
	}
	if !strings.Contains(findings[1].Reason, "right value") {
		t.Errorf("second finding should report the right side: %s", findings[1].Reason)
	}
}

func TestSubscriptionIDComparator(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{
			"both valid and different",
			`"0/0123456789abcdef0123456789abcdef"`,
			`"0/fedcba9876543210fedcba9876543210"`,
			0,
		},
		{
			"missing prefix",
			`"0123456789abcdef0123456789abcdef"`,
			`"0/fedcba9876543210fedcba9876543210"`,
			1,
		},
		{
			"both malformed",
			`"1/short"`,
			`"wat"`,
			2,
		},
	}

	c := NewSubscriptionIDComparator("subscription_id")
	on := NewOrdinalInstanceID("sentry.querysubscription", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.querysubscription", 1, map[string]string{"subscription_id": tt.left})
			right := record("sentry.querysubscription", 1, map[string]string{"subscription_id": tt.right})
			findings := c.Compare(on, "subscription_id", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
		})
	}
}

func TestUUID4Comparator(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{
			"both valid v4 and different",
			`"9f2725da-4731-4bd6-8efb-f41aa6f4f2b8"`,
			`"16f1f251-5bb5-44b4-9a69-6a05fcb74bd9"`,
			0,
		},
		{
			"left is a v1 uuid",
			`"e2b714c6-85fa-11ee-b9d1-0242ac120002"`,
			`"16f1f251-5bb5-44b4-9a69-6a05fcb74bd9"`,
			1,
		},
		{
			"both malformed",
			`"not-a-uuid"`,
			`"also-not"`,
			2,
		},
	}

	c := NewUUID4Comparator("uuid")
	on := NewOrdinalInstanceID("sentry.sentryapp", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.sentryapp", 1, map[string]string{"uuid": tt.left})
			right := record("sentry.sentryapp", 1, map[string]string{"uuid": tt.right})
			findings := c.Compare(on, "uuid", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
		})
	}
}

func TestIgnoredComparator(t *testing.T) {
	c := NewIgnoredComparator("last_login")
	on := NewOrdinalInstanceID("sentry.user", 0)
	left := record("sentry.user", 1, map[string]string{"last_login": `"2023-06-22T23:00:00Z"`})
	right := record("sentry.user", 1, map[string]string{"last_login": `"completely different"`})

	if findings := c.Compare(on, "last_login", left, right); len(findings) != 0 {
		t.Errorf("ignored field should never produce findings, got %+v", findings)
	}
}

func TestForeignKeyComparator(t *testing.T) {
	leftPKs := make(PrimaryKeyMap)
	leftPKs.Insert("sentry.organization", 10, NewOrdinalInstanceID("sentry.organization", 0))
	leftPKs.Insert("sentry.organization", 11, NewOrdinalInstanceID("sentry.organization", 1))
	rightPKs := make(PrimaryKeyMap)
	rightPKs.Insert("sentry.organization", 20, NewOrdinalInstanceID("sentry.organization", 0))
	rightPKs.Insert("sentry.organization", 21, NewOrdinalInstanceID("sentry.organization", 1))

	c := NewForeignKeyComparator(map[string]string{"organization": "sentry.organization"})
	c.SetPrimaryKeyMaps(leftPKs, rightPKs)
	on := NewOrdinalInstanceID("sentry.project", 0)

	tests := []struct {
		name         string
		left, right  string
		wantFindings int
	}{
		{"same logical record despite pk reassignment", `10`, `20`, 0},
		{"different logical records", `10`, `21`, 1},
		{"dangling reference", `10`, `99`, 1},
		{"non-integer value", `"ten"`, `20`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := record("sentry.project", 1, map[string]string{"organization": tt.left})
			right := record("sentry.project", 1, map[string]string{"organization": tt.right})
			findings := c.Compare(on, "organization", left, right)
			if len(findings) != tt.wantFindings {
				t.Errorf("Compare() produced %d findings, want %d: %+v", len(findings), tt.wantFindings, findings)
			}
		})
	}
}

func TestForeignKeyComparatorFields(t *testing.T) {
	c := NewForeignKeyComparator(map[string]string{
		"user":         "sentry.user",
		"organization": "sentry.organization",
	})

	fields := c.Fields()
	if len(fields) != 2 || fields[0] != "organization" || fields[1] != "user" {
		t.Errorf("Fields() = %v, want sorted [organization user]", fields)
	}
}

func TestPrimaryKeyMap(t *testing.T) {
	m := make(PrimaryKeyMap)
	m.Insert("sentry.user", 5, NewOrdinalInstanceID("sentry.user", 0))

	id, ok := m.Resolve("sentry.user", 5)
	if !ok || id != NewOrdinalInstanceID("sentry.user", 0) {
		t.Errorf("Resolve() = %+v, %v; want ordinal 0 identity", id, ok)
	}

	if _, ok := m.Resolve("sentry.user", 6); ok {
		t.Error("Resolve() should miss for an unknown pk")
	}
	if _, ok := m.Resolve("sentry.project", 5); ok {
		t.Error("Resolve() should miss for an unknown model")
	}
}
