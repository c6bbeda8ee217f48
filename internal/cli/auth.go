package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfej94/authkit"
)

func newLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Authenticate and store credentials",
		Long:  "Log in with the configured method and persist the resulting credentials. With --method basic no network call is made; the credentials are attached to outgoing requests instead.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			email := args[0]

			if password == "" {
				var err error
				password, err = readPassword()
				if err != nil {
					return err
				}
			}

			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.Authenticate(cmd.Context(), email, password); err != nil {
				return err
			}

			fmt.Printf("Logged in as %s (%s)\n", email, sess.Method().Name())
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove all stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.Deauthenticate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Endpoint: %s\n", a.cfg.Endpoint)
			fmt.Printf("Method:   %s\n", sess.Method().Name())
			if a.cfg.Token != "" {
				fmt.Println("Status:   authenticated (AUTHKIT_TOKEN override)")
				return nil
			}
			if sess.IsAuthenticated(cmd.Context()) {
				fmt.Println("Status:   authenticated")
				return nil
			}
			fmt.Println("Status:   not authenticated")
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.Reauthenticate(cmd.Context()); err != nil {
				return err
			}
			if sess.State() != authkit.StateAuthenticated {
				return &authkit.Error{
					Code:    authkit.CodeAuthenticationFailed,
					Message: "refresh token is no longer valid",
				}
			}
			fmt.Println("Token refreshed")
			return nil
		},
	}
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("a password is required")
	}
	return password, nil
}
