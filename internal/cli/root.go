// Package cli implements the authkit command tree.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfej94/authkit"
	"github.com/wolfej94/authkit/internal/config"
	"github.com/wolfej94/authkit/internal/logging"
	"github.com/wolfej94/authkit/internal/output"
	"github.com/wolfej94/authkit/store"
)

// flagOverrides collects persistent flags applied on top of the file and
// environment configuration layers.
type flagOverrides struct {
	Endpoint     string
	Method       string
	ClientID     string
	ClientSecret string
	Service      string
	Dir          string
	NoKeyring    bool
	Yes          bool
	Verbose      bool
}

// app carries the resolved configuration and lazily built collaborators
// through the command context.
type app struct {
	cfg    *config.Config
	flags  flagOverrides
	logger *slog.Logger

	store   *store.Dual
	session *authkit.Session
}

type appKey struct{}

func fromContext(ctx context.Context) *app {
	a, _ := ctx.Value(appKey{}).(*app)
	return a
}

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags flagOverrides

	cmd := &cobra.Command{
		Use:           "authkit",
		Short:         "Manage client credentials for an authentication service",
		Long:          "authkit logs in against a configured authentication service, keeps credentials in the OS credential store, and signs proof-of-possession challenges.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cfg, flags)

			a := &app{
				cfg:    cfg,
				flags:  flags,
				logger: logging.New(os.Stderr, cfg.Verbose),
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a := fromContext(cmd.Context()); a != nil && a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.Endpoint, "endpoint", "", "Base URL of the authentication service")
	cmd.PersistentFlags().StringVar(&flags.Method, "method", "", "Authentication method: oauth, lightweight, legacy, basic")
	cmd.PersistentFlags().StringVar(&flags.ClientID, "client-id", "", "OAuth client ID")
	cmd.PersistentFlags().StringVar(&flags.ClientSecret, "client-secret", "", "OAuth client secret")
	cmd.PersistentFlags().StringVar(&flags.Service, "service", "", "Credential store service name")
	cmd.PersistentFlags().StringVar(&flags.Dir, "dir", "", "State directory for the credential vault")
	cmd.PersistentFlags().BoolVar(&flags.NoKeyring, "no-keyring", false, "Use the file store instead of the OS keyring")
	cmd.PersistentFlags().BoolVarP(&flags.Yes, "yes", "y", false, "Approve presence checks without prompting")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newRefreshCmd(),
		newKeyCmd(),
		newRequestCmd(),
	)

	return cmd
}

func applyFlags(cfg *config.Config, flags flagOverrides) {
	if flags.Endpoint != "" {
		cfg.Endpoint = flags.Endpoint
	}
	if flags.Method != "" {
		cfg.Method = flags.Method
	}
	if flags.ClientID != "" {
		cfg.ClientID = flags.ClientID
	}
	if flags.ClientSecret != "" {
		cfg.ClientSecret = flags.ClientSecret
	}
	if flags.Service != "" {
		cfg.Service = flags.Service
	}
	if flags.Dir != "" {
		cfg.Dir = flags.Dir
	}
	if flags.NoKeyring {
		cfg.NoKeyring = true
	}
	if flags.Verbose {
		cfg.Verbose = true
	}
}

// openStore builds the two-tier store, prompting on the terminal for
// protected-tier access unless --yes was given.
func (a *app) openStore(ctx context.Context) (*store.Dual, error) {
	if a.store != nil {
		return a.store, nil
	}

	prompter := store.Prompter(terminalPrompter{})
	if a.flags.Yes {
		prompter = store.AllowAll()
	}

	st, err := store.Open(ctx, store.Options{
		Service:   a.cfg.Service,
		Dir:       a.cfg.Dir,
		Prompt:    a.cfg.Prompt,
		Prompter:  prompter,
		NoKeyring: a.cfg.NoKeyring,
	})
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// openSession builds the session for the configured method.
func (a *app) openSession(ctx context.Context) (*authkit.Session, error) {
	if a.session != nil {
		return a.session, nil
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	method, err := methodFor(a.cfg)
	if err != nil {
		return nil, err
	}

	sess, err := authkit.New(authkit.Config{
		Endpoint:    a.cfg.Endpoint,
		Method:      method,
		Store:       st,
		LoginPath:   a.cfg.LoginPath,
		RefreshPath: a.cfg.RefreshPath,
	}, authkit.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.session = sess
	return sess, nil
}

func methodFor(cfg *config.Config) (authkit.Method, error) {
	switch cfg.Method {
	case "oauth":
		return authkit.OAuth{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret}, nil
	case "lightweight":
		return authkit.LightweightToken{}, nil
	case "legacy":
		return authkit.LegacyToken{}, nil
	case "basic":
		return authkit.Basic{}, nil
	default:
		return nil, fmt.Errorf("unknown method %q (want oauth, lightweight, legacy, or basic)", cfg.Method)
	}
}

// terminalPrompter asks for presence confirmation on the controlling
// terminal.
type terminalPrompter struct{}

func (terminalPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Execute runs the root command and exits with a code describing the error
// class.
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		output.Render(os.Stderr, err)
		os.Exit(output.ExitCodeFor(err))
	}
}
