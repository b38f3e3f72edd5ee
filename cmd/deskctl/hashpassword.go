package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"indor_desk/internal/auth/password"

	"github.com/spf13/cobra"
)

const minPasswordLength = 8

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for seeding users.password_hash",
		Long:  "Hashes the argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHashPassword(cmd.InOrStdin(), cmd.OutOrStdout(), args)
		},
	}
}

func runHashPassword(in io.Reader, out io.Writer, args []string) error {
	var plain string
	if len(args) == 1 {
		plain = args[0]
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		plain = strings.TrimRight(line, "\r\n")
	}

	if len(plain) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hash)
	return nil
}
