package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msmeflow/quoteflow/internal/identity"
)

func newLoginCmd() *cobra.Command {
	var (
		email  string
		google bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password, or print the Google sign-in URL",
		Long: `Sign in against the identity service and store the session for the API,
the MCP server and the other commands.

The password is read from QUOTEFLOW_PASSWORD or, when unset, from the first
line of stdin. With --google the command prints the URL to open instead; the
session is stored once the browser comes back to a running 'quoteflow serve'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			out := cmd.OutOrStdout()
			if google {
				fmt.Fprintln(out, "Open this URL in your browser to sign in with Google:")
				fmt.Fprintln(out, a.sc.Auth().GoogleSignInURL())
				return nil
			}

			if email == "" {
				return fmt.Errorf("--email is required")
			}
			password := os.Getenv("QUOTEFLOW_PASSWORD")
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				password, err = readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			sess, err := a.sc.Auth().Login(ctx, email, password)
			if err != nil {
				return fmt.Errorf("%s", identity.Message(err))
			}
			fmt.Fprintf(out, "Signed in as %s\n", sess.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().BoolVar(&google, "google", false, "Print the Google sign-in URL instead of signing in with a password")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and delete the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if err := a.sc.Auth().SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("failed to sign out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
