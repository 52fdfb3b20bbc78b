package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/spf13/cobra"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

type sessionFunc func(ctx context.Context, email, password string) (string, error)

// credentials prompts for the email (unless given) and the password.
func (a *App) credentials(email string) (string, []byte, error) {
	if email == "" {
		var err error
		email, err = getSimpleText(a.reader, "Enter email", a.out)
		if err != nil {
			return "", nil, err
		}
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

// startSession runs fn with prompted credentials and saves the token.
// The password byte slice is wiped before returning.
func (a *App) startSession(ctx context.Context, email string, fn sessionFunc) error {
	email, password, err := a.credentials(email)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	token, err := fn(ctx, email, string(password))
	if err != nil {
		return err
	}
	if err := a.tokens.Save(token); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", email)
	return nil
}

func registerCmd(app func() *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			return a.startSession(cmd.Context(), email, a.api.Register)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func loginCmd(app func() *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			return a.startSession(cmd.Context(), email, a.api.Login)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func logoutCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.tokens.Clear(); err != nil {
				return err
			}
			a.api.SetToken("")
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func deleteAccountCmd(app func() *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete your account, every report and every archived document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if !yes {
				ok, err := Confirm(a.reader, "This permanently deletes your account and all reports. Continue?", a.out)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, "Aborted")
					return nil
				}
			}
			if err := a.api.DeleteAccount(cmd.Context()); err != nil {
				return err
			}
			if err := a.tokens.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Account deleted")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
