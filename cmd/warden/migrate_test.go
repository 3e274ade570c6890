// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/pkg/errutil"
)

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErrCode string
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "non-numeric returns error", input: "abc", wantErrCode: "INVALID_VERSION"},
		{name: "parsing stops at dot", input: "1.5", wantVersion: 1},
		{name: "trailing chars are ignored", input: "3abc", wantVersion: 3},
		{name: "negative parses", input: "-1", wantVersion: -1},
		{name: "empty string returns error", input: "", wantErrCode: "INVALID_VERSION"},
		{name: "whitespace only returns error", input: "   ", wantErrCode: "INVALID_VERSION"},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErrCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantErrCode)
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	env := func(url string) func(string) string {
		return func(string) string { return url }
	}

	t.Run("missing everywhere", func(t *testing.T) {
		configFile = ""
		url, err := databaseURL("", env(""))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		assert.Empty(t, url)
	})

	t.Run("environment", func(t *testing.T) {
		configFile = ""
		url, err := databaseURL("", env("postgres://env/warden"))
		require.NoError(t, err)
		assert.Equal(t, "postgres://env/warden", url)
	})

	t.Run("flag wins over environment", func(t *testing.T) {
		configFile = ""
		url, err := databaseURL("postgres://flag/warden", env("postgres://env/warden"))
		require.NoError(t, err)
		assert.Equal(t, "postgres://flag/warden", url)
	})

	t.Run("config file wins over environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "warden.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database:\n  url: postgres://file/warden\n"), 0o600))
		configFile = path
		t.Cleanup(func() { configFile = "" })

		url, err := databaseURL("", env("postgres://env/warden"))
		require.NoError(t, err)
		assert.Equal(t, "postgres://file/warden", url)
	})
}

func runMigrateCmd(t *testing.T, m *mockMigrator, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	var gotURL string
	cmd := newMigrateCmd(&MigrateDeps{
		MigratorFactory: func(url string) (Migrator, error) {
			gotURL = url
			return m, nil
		},
		Getenv: func(string) string { return "postgres://env/warden" },
	})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		assert.Equal(t, "postgres://env/warden", gotURL)
	}
	return buf.String(), err
}

func TestMigrateCmd_DefaultRunsUp(t *testing.T) {
	m := &mockMigrator{}
	out, err := runMigrateCmd(t, m)
	require.NoError(t, err)
	assert.True(t, m.upCalled)
	assert.True(t, m.closeCalled)
	assert.Contains(t, out, "Migrations completed successfully")
}

func TestMigrateCmd_Up(t *testing.T) {
	m := &mockMigrator{}
	_, err := runMigrateCmd(t, m, "up")
	require.NoError(t, err)
	assert.True(t, m.upCalled)
}

func TestMigrateCmd_UpFailure(t *testing.T) {
	m := &mockMigrator{upErr: errors.New("syntax error")}
	_, err := runMigrateCmd(t, m, "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
	assert.True(t, m.closeCalled)
}

func TestMigrateCmd_Down(t *testing.T) {
	m := &mockMigrator{}
	_, err := runMigrateCmd(t, m, "down")
	require.NoError(t, err)
	assert.Equal(t, []int{-1}, m.steps)
	assert.False(t, m.downCalled)

	m = &mockMigrator{}
	_, err = runMigrateCmd(t, m, "down", "--all")
	require.NoError(t, err)
	assert.True(t, m.downCalled)
	assert.Empty(t, m.steps)
}

func TestMigrateCmd_Status(t *testing.T) {
	m := &mockMigrator{version: 1, applied: []uint{1}, pending: []uint{2}}
	out, err := runMigrateCmd(t, m, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1")
	assert.Contains(t, out, "000001_users")
	assert.Contains(t, out, "000002_user_sessions")
}

func TestMigrateCmd_Version(t *testing.T) {
	m := &mockMigrator{version: 2, dirty: true}
	out, err := runMigrateCmd(t, m, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "2 (dirty)")
}

func TestMigrateCmd_Force(t *testing.T) {
	m := &mockMigrator{}
	_, err := runMigrateCmd(t, m, "force", "1")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, m.forced)

	m = &mockMigrator{}
	_, err = runMigrateCmd(t, m, "force", "abc")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Empty(t, m.forced)
	assert.False(t, m.closeCalled, "migrator not opened for a bad version")
}

func TestMigrateCmd_CloseErrorSurfaced(t *testing.T) {
	m := &mockMigrator{closeErr: errors.New("close failed")}
	_, err := runMigrateCmd(t, m, "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
}
