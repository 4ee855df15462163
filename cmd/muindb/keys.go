package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dnhngynops/muindb/internal/provider"
	"github.com/dnhngynops/muindb/internal/provider/chartmetric"
	"github.com/dnhngynops/muindb/internal/provider/genius"
	"github.com/dnhngynops/muindb/internal/provider/spotify"
)

// credentialFields lists the stored secrets of each remote source. The
// empty field is the source's API key.
var credentialFields = map[provider.Name][]string{
	provider.NameSpotify:     {spotify.FieldClientID, spotify.FieldClientSecret},
	provider.NameLastFM:      {""},
	provider.NameChartmetric: {chartmetric.FieldRefreshToken},
	provider.NameGenius:      {genius.FieldAccessToken},
}

func parseSource(s string) (provider.Name, error) {
	name := provider.Name(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := credentialFields[name]; !ok {
		return "", fmt.Errorf("unknown source %q: want spotify, lastfm, chartmetric or genius", s)
	}
	return name, nil
}

func fieldLabel(field string) string {
	if field == "" {
		return "api_key"
	}
	return field
}

func newKeysCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage encrypted source credentials",
	}
	cmd.AddCommand(newKeysSetCmd(opts), newKeysListCmd(opts), newKeysDeleteCmd(opts))
	return cmd
}

func newKeysSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <source>",
		Short: "Store credentials for a source",
		Long: `Prompt for each credential of a source and store it encrypted.
Values are read without echo from a terminal, or one per line from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseSource(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				if a.settings == nil {
					return errNoEncryptionKey
				}
				in := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
				for _, field := range credentialFields[name] {
					value, err := in.secret(fmt.Sprintf("%s %s: ", name.DisplayName(), fieldLabel(field)))
					if err != nil {
						return err
					}
					if value == "" {
						return fmt.Errorf("%s %s must not be empty", name, fieldLabel(field))
					}
					if err := a.settings.SetSecret(cmd.Context(), name, field, value); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored credentials for %s\n", name)
				return nil
			})
		},
	}
}

func newKeysListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show which sources have stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if a.settings == nil {
					return errNoEncryptionKey
				}
				statuses, err := a.settings.ListKeyStatuses(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SOURCE\tTIER\tSTORED\tHELP")
				for _, s := range statuses {
					stored := "-"
					if len(s.Fields) > 0 {
						stored = strings.Join(s.Fields, ",")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Tier, stored, s.HelpURL)
				}
				return tw.Flush()
			})
		},
	}
}

func newKeysDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <source>",
		Short: "Remove every stored credential of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseSource(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				if a.settings == nil {
					return errNoEncryptionKey
				}
				if err := a.settings.DeleteSecrets(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted credentials for %s\n", name)
				return nil
			})
		},
	}
}

// prompter reads secrets without echo when stdin is a terminal.
type prompter struct {
	out    io.Writer
	lines  *bufio.Reader
	termFD int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{out: out, termFD: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.termFD = int(f.Fd())
	} else {
		p.lines = bufio.NewReader(in)
	}
	return p
}

func (p *prompter) secret(label string) (string, error) {
	if p.termFD >= 0 {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(p.termFD)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(label, ": "), err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimSpace(line), nil
}
