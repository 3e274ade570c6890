// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/pkg/errutil"
)

func hashPassword(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewHashPasswordCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestHashPassword_Argument(t *testing.T) {
	hash, err := hashPassword(t, "", "hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, auth.NewArgon2idHasher().Verify("hunter2", hash))
}

func TestHashPassword_Stdin(t *testing.T) {
	hash, err := hashPassword(t, "from stdin\nignored\n")
	require.NoError(t, err)
	assert.True(t, auth.NewArgon2idHasher().Verify("from stdin", hash))
}

func TestHashPassword_StdinWithoutNewline(t *testing.T) {
	hash, err := hashPassword(t, "last-line")
	require.NoError(t, err)
	assert.True(t, auth.NewArgon2idHasher().Verify("last-line", hash))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := hashPassword(t, "\n")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")

	_, err = hashPassword(t, "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "PASSWORD_READ_FAILED")
}
