package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/db"
	"github.com/zulandar/puddle/internal/identity"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User account commands",
	}

	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		configPath string
		username   string
		email      string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Long:  "Creates a user account. Without --password the password is read from the terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := readPassword(cmd)
				if err != nil {
					return err
				}
				password = p
			}
			return runUserCreate(cmd, configPath, identity.SignupForm{
				Username:  username,
				Email:     email,
				Password1: password,
				Password2: password,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&username, "username", "", "account username (required)")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	cmd.MarkFlagRequired("username")
	return cmd
}

func runUserCreate(cmd *cobra.Command, configPath string, form identity.SignupForm) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	u, err := identity.Signup(cmd.Context(), gormDB, form)
	if err != nil {
		return describeValidation(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", u.Username, u.ID)
	return nil
}

// readPassword prompts without echo when stdin is a terminal and otherwise
// reads one line from the command's input.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describeValidation flattens field errors into a one-line CLI message.
func describeValidation(err error) error {
	fields := apperr.FieldErrors(err)
	if fields == nil {
		return err
	}
	parts := make([]string, 0, len(fields))
	for name, msgs := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(msgs, " ")))
	}
	return fmt.Errorf("invalid input: %s", strings.Join(sortedCopy(parts), "; "))
}
