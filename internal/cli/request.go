package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/wolfej94/authkit/authorize"
	"github.com/wolfej94/authkit/internal/hostutil"
)

func newRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <url>",
		Short: "Send an authorized GET request",
		Long:  "Send a GET request through the authorization pipeline. Requests to the configured endpoint's host carry the stored credentials; requests to other hosts go out bare. AUTHKIT_TOKEN overrides the stored bearer token for the target host.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			target := args[0]

			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if a.cfg.Token != "" {
				sess.Authorizer().Install(authorize.BearerRule{
					ScopeHost: hostutil.Host(target),
					Token:     a.cfg.Token,
				})
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target, nil)
			if err != nil {
				return err
			}
			resp, err := sess.Client().Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			fmt.Fprintf(os.Stderr, "%s %s\n", resp.Proto, resp.Status)
			if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
				return fmt.Errorf("reading response body: %w", err)
			}
			return nil
		},
	}
}
