package application

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backup-compare/internal/compare"
)

func writeSnapshot(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func baseConfig(left, right string) Config {
	return Config{
		Left:    left,
		Right:   right,
		Format:  "pretty",
		Quiet:   true,
		Timeout: 10 * time.Second,
	}
}

func TestNewApplicationRejectsBadFormat(t *testing.T) {
	config := baseConfig("l.json", "r.json")
	config.Format = "xml"
	_, err := NewApplication(config)
	assert.Error(t, err, "unknown formats should be rejected")
}

func TestRunIdenticalSnapshots(t *testing.T) {
	dir := t.TempDir()
	doc := `[{"model": "sentry.user", "pk": 1, "fields": {"username": "alice"}}]`
	left := writeSnapshot(t, dir, "left.json", doc)
	right := writeSnapshot(t, dir, "right.json", doc)

	app, err := NewApplication(baseConfig(left, right))
	require.NoError(t, err)
	assert.NoError(t, app.Run(context.Background()))
}

func TestRunFindingsAreNotAnError(t *testing.T) {
	dir := t.TempDir()
	left := writeSnapshot(t, dir, "left.json",
		`[{"model": "sentry.widget", "pk": 1, "fields": {"size": 1}}]`)
	right := writeSnapshot(t, dir, "right.json",
		`[{"model": "sentry.widget", "pk": 1, "fields": {"size": 2}}]`)

	app, err := NewApplication(baseConfig(left, right))
	require.NoError(t, err)
	assert.NoError(t, app.Run(context.Background()), "differences must not fail the run")
}

func TestRunWritesFindingsFile(t *testing.T) {
	dir := t.TempDir()
	left := writeSnapshot(t, dir, "left.json",
		`[{"model": "sentry.widget", "pk": 1, "fields": {"size": 1}}]`)
	right := writeSnapshot(t, dir, "right.json",
		`[{"model": "sentry.widget", "pk": 1, "fields": {"size": 2}}]`)

	config := baseConfig(left, right)
	config.FindingsFile = filepath.Join(dir, "findings.json")

	app, err := NewApplication(config)
	require.NoError(t, err)
	require.NoError(t, app.Run(context.Background()))

	data, err := os.ReadFile(config.FindingsFile)
	require.NoError(t, err, "findings file should be written")

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "UnequalJSON", decoded[0]["kind"])
}

func TestRunSkipsFindingsFileWhenClean(t *testing.T) {
	dir := t.TempDir()
	doc := `[{"model": "sentry.user", "pk": 1, "fields": {}}]`
	left := writeSnapshot(t, dir, "left.json", doc)
	right := writeSnapshot(t, dir, "right.json", doc)

	config := baseConfig(left, right)
	config.FindingsFile = filepath.Join(dir, "findings.json")

	app, err := NewApplication(config)
	require.NoError(t, err)
	require.NoError(t, app.Run(context.Background()))

	_, err = os.Stat(config.FindingsFile)
	assert.True(t, os.IsNotExist(err), "no findings file for a clean run")
}

func TestRunInvalidJSONFails(t *testing.T) {
	dir := t.TempDir()
	left := writeSnapshot(t, dir, "left.json", `{not json`)
	right := writeSnapshot(t, dir, "right.json", `[]`)

	app, err := NewApplication(baseConfig(left, right))
	require.NoError(t, err)
	assert.Error(t, app.Run(context.Background()), "unparsable snapshots are hard failures")
}

func TestRunMissingSnapshotFails(t *testing.T) {
	dir := t.TempDir()
	right := writeSnapshot(t, dir, "right.json", `[]`)

	app, err := NewApplication(baseConfig(filepath.Join(dir, "missing.json"), right))
	require.NoError(t, err)
	assert.Error(t, app.Run(context.Background()))
}

func TestRunAppliesComparatorConfig(t *testing.T) {
	dir := t.TempDir()
	left := writeSnapshot(t, dir, "left.json",
		`[{"model": "sentry.widget", "pk": 1, "fields": {"cache_key": "a"}}]`)
	right := writeSnapshot(t, dir, "right.json",
		`[{"model": "sentry.widget", "pk": 1, "fields": {"cache_key": "b"}}]`)

	config := baseConfig(left, right)
	config.FindingsFile = filepath.Join(dir, "findings.json")
	config.Comparators = compare.RegistryConfig{
		"sentry.widget": {Ignored: []string{"cache_key"}},
	}

	app, err := NewApplication(config)
	require.NoError(t, err)
	require.NoError(t, app.Run(context.Background()))

	// The configured ignore rule accepts the differing field, so nothing is
	// reported.
	_, err = os.Stat(config.FindingsFile)
	assert.True(t, os.IsNotExist(err), "configured ignore rule should suppress the finding")
}

func TestRunRejectsBadComparatorConfig(t *testing.T) {
	dir := t.TempDir()
	doc := `[{"model": "sentry.user", "pk": 1, "fields": {}}]`
	left := writeSnapshot(t, dir, "left.json", doc)
	right := writeSnapshot(t, dir, "right.json", doc)

	config := baseConfig(left, right)
	config.Comparators = compare.RegistryConfig{
		"sentry.widget": {SecretHex: []compare.SecretHexConfig{{Bytes: 0, Fields: []string{"token"}}}},
	}

	app, err := NewApplication(config)
	require.NoError(t, err)
	assert.Error(t, app.Run(context.Background()), "invalid comparator configuration must fail")
}
