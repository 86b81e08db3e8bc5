package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		databaseURL = ""
		seedFile = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSeedIsIdempotent(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "novel.db")

	out, err := execute(t, "seed", "--database-url", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "genres")
	assert.Contains(t, out, "movie-formats")

	out, err = execute(t, "seed", "--database-url", dsn)
	require.NoError(t, err)
	assert.NotRegexp(t, `created [1-9]`, out)
	assert.Regexp(t, `genres\s+created 0, skipped [1-9]`, out)
}

func TestSeedRejectsMissingFile(t *testing.T) {
	_, err := execute(t, "seed", "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "keygen")
	require.NoError(t, err)
	assert.Len(t, bytes.TrimSpace([]byte(out)), 64)
}
