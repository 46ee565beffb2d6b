package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/recap-cli/credentials"
)

// NewSecretsCommand creates the secrets command group.
func NewSecretsCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage stored passwords",
		Long: `Manage the passwords recap uses to reach Redis and PostgreSQL.

Secrets are stored encrypted in ~/.recap/credentials.yaml. The encryption
key comes from RECAP_ENCRYPTION_KEY, a passphrase in RECAP_PASSPHRASE, or the
system keyring, in that order.

Known secrets: ` + strings.Join(credentials.KnownSecrets, ", ") + `

Environment variables such as RECAP_REDIS_PASSWORD take precedence over
stored values.`,
	}

	cmd.AddCommand(newSecretsSetCommand(deps))
	cmd.AddCommand(newSecretsShowCommand(deps))
	cmd.AddCommand(newSecretsDeleteCommand(deps))
	cmd.AddCommand(newSecretsListCommand(deps))

	return cmd
}

func newSecretsSetCommand(deps *Deps) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret",
		Long: `Store a secret. Without --value the secret is read from the terminal
with echo disabled, or from the first line of stdin when it is not a terminal.

Examples:
  recap secrets set redis
  echo "$PGPASSWORD" | recap secrets set database`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := credentials.ValidateName(name); err != nil {
				return err
			}

			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}

			if value == "" {
				value, err = promptSecret(cmd, name)
				if err != nil {
					return err
				}
			}
			if value == "" {
				return fmt.Errorf("no value provided for %s", name)
			}

			if err := store.Set(name, value); err != nil {
				return fmt.Errorf("saving secret: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%s) in %s\n", name, credentials.Mask(value), store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Secret value (prompted for when omitted)")
	return cmd
}

func newSecretsShowCommand(deps *Deps) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a secret, masked unless --reveal is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}

			value, err := store.Get(name)
			source := "stored"
			if env := os.Getenv(credentials.EnvVar(name)); env != "" {
				value, err, source = env, nil, credentials.EnvVar(name)
			}
			if errors.Is(err, credentials.ErrNoSecret) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not set\n", name)
				return nil
			}
			if err != nil {
				return err
			}

			shown := credentials.Mask(value)
			if reveal {
				shown = value
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", name, shown, source)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the secret in clear text")
	return cmd
}

func newSecretsDeleteCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newSecretsListCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			secrets, err := store.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(secrets) == 0 {
				fmt.Fprintln(out, "No stored secrets.")
			}
			for _, s := range secrets {
				fmt.Fprintf(out, "%-10s updated %s\n", s.Name, s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(out, "\nFile: %s\nKey:  %s\n", store.Path(), store.KeyDescription())
			return nil
		},
	}
}

// promptSecret reads a value with echo disabled when stdin is a terminal.
func promptSecret(cmd *cobra.Command, name string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s password: ", name)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
