// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/warden-auth/warden/internal/auth"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [PASSWORD]",
		Short: "Print the argon2id hash of a password",
		Long: `Print the argon2id hash Warden stores for PASSWORD. Without an
argument the first line of standard input is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHashPassword,
	}
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return oops.Code("PASSWORD_READ_FAILED").With("operation", "read password").Wrap(err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hash, err := auth.NewArgon2idHasher().Hash(password)
	if err != nil {
		return err
	}
	cmd.Println(hash)
	return nil
}
