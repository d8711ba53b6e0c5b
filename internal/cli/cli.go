// Package cli implements zpass's command line: the popup by default plus
// scriptable subcommands over the same store.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/zarlcorp/core/pkg/zcrypto"
	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/zpass/internal/config"
	"github.com/zarlcorp/zpass/internal/credential"
	"github.com/zarlcorp/zpass/internal/generator"
	"github.com/zarlcorp/zpass/internal/store"
	"github.com/zarlcorp/zpass/internal/tab"
	"github.com/zarlcorp/zpass/internal/tui"
	"golang.org/x/term"
)

// app carries resolved settings from the root command to subcommands.
type app struct {
	version string
	cfg     config.Config
	log     io.Closer
}

// NewRootCmd builds the zpass command tree.
func NewRootCmd(version string) *cobra.Command {
	root, _ := newRoot(version)
	return root
}

func newRoot(version string) (*cobra.Command, *app) {
	a := &app{version: version}

	root := &cobra.Command{
		Use:           "zpass",
		Short:         "Generate passwords and keep site logins",
		Long:          "zpass generates random passwords from selected character classes and keeps\nsite, username and password entries in a local store.\n\nPasswords come from a non-cryptographic random source unless --secure is set.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
		RunE: a.runPopup,
	}

	pf := root.PersistentFlags()
	pf.String("data-dir", "", "Directory holding the store (default $XDG_DATA_HOME/zpass)")
	pf.Bool("encrypted", false, "Keep credentials in the encrypted store (asks for a master password)")
	pf.Bool("secure", false, "Draw passwords from a cryptographically seeded stream")
	pf.String("url", "", "URL of the page the credential is for, used to prefill the site")
	pf.Bool("debug", false, "Write debug logs to zpass.log in the data directory")

	root.AddCommand(
		a.generateCmd(),
		a.listCmd(),
		a.addCmd(),
		a.deleteCmd(),
		a.clearCmd(),
		a.versionCmd(),
	)

	return root, a
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, version string) error {
	root, a := newRoot(version)
	return a.execute(ctx, root)
}

// execute runs root and closes the log file whether or not the command
// succeeded.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if cerr := a.closeLog(); cerr != nil && err == nil {
		err = fmt.Errorf("close log: %w", cerr)
	}
	return err
}

func (a *app) closeLog() error {
	if a.log == nil {
		return nil
	}
	err := a.log.Close()
	a.log = nil
	return err
}

// resolve layers flags over the environment and starts logging.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg := config.Load()
	flags := cmd.Flags()

	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("encrypted") {
		cfg.Encrypted, _ = flags.GetBool("encrypted")
	}
	if flags.Changed("secure") {
		cfg.Secure, _ = flags.GetBool("secure")
	}
	if flags.Changed("url") {
		cfg.URL, _ = flags.GetString("url")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}

	closer, err := cfg.SetupLogging()
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	a.cfg = cfg
	a.log = closer
	return nil
}

func (a *app) newGenerator() (*generator.Generator, error) {
	if a.cfg.Secure {
		return generator.NewSecure()
	}
	return generator.New(), nil
}

func (a *app) dataFS() (zfilesystem.ReadWriteFileFS, error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return zfilesystem.NewOSFileSystem(a.cfg.DataDir), nil
}

// openSealed opens the encrypted store with password.
func (a *app) openSealed(password string) (*store.Store, io.Closer, error) {
	fsys, err := a.dataFS()
	if err != nil {
		return nil, nil, err
	}

	pw := []byte(password)
	defer zcrypto.Erase(pw)

	b, zs, err := store.OpenSealed(fsys, pw)
	if err != nil {
		return nil, nil, err
	}
	return store.New(b), zs, nil
}

// openStore opens the configured store, prompting on stderr for the master
// password when the encrypted store is in use.
func (a *app) openStore() (*store.Store, io.Closer, error) {
	if !a.cfg.Encrypted {
		fsys, err := a.dataFS()
		if err != nil {
			return nil, nil, err
		}
		return store.New(store.NewFileBackend(fsys)), io.NopCloser(nil), nil
	}

	var pass string
	var err error
	if a.cfg.IsFirstRun() {
		pass, err = ReadNewPassword(os.Stderr)
	} else {
		pass, err = ReadPassword("master password: ", os.Stderr)
	}
	if err != nil {
		return nil, nil, err
	}

	return a.openSealed(pass)
}

func (a *app) tabSource() tab.Source {
	return tab.Chain{tab.Static(a.cfg.URL), tab.Clipboard{}}
}

func (a *app) runPopup(cmd *cobra.Command, _ []string) error {
	gen, err := a.newGenerator()
	if err != nil {
		return err
	}

	opts := tui.Options{
		Version:   a.version,
		Generator: gen,
		Tab:       a.tabSource(),
		Context:   cmd.Context(),
	}

	if a.cfg.Encrypted {
		opts.Open = a.openSealed
		opts.FirstRun = a.cfg.IsFirstRun()
	} else {
		fsys, err := a.dataFS()
		if err != nil {
			return err
		}
		opts.Store = store.New(store.NewFileBackend(fsys))
	}

	p := tea.NewProgram(tui.New(opts), tea.WithContext(cmd.Context()))
	final, err := p.Run()
	if err != nil {
		return err
	}

	if fm, ok := final.(tui.Model); ok {
		return fm.Close()
	}
	return nil
}

func (a *app) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := generatorOptions(cmd)
			if err != nil {
				return err
			}
			gen, err := a.newGenerator()
			if err != nil {
				return err
			}
			pw, err := gen.Generate(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pw)
			return nil
		},
	}
	addGeneratorFlags(cmd)
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved passwords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, _ := cmd.Flags().GetString("search")
			asJSON, _ := cmd.Flags().GetBool("json")
			reveal, _ := cmd.Flags().GetBool("reveal")

			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer.Close()

			col, err := s.Load(cmd.Context())
			if err != nil {
				return err
			}
			col = col.Filter(query)

			if asJSON {
				return printJSON(cmd.OutOrStdout(), col)
			}

			if len(col) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved passwords")
				return nil
			}

			rows := pterm.TableData{{"ID", "Site", "Username", "Password"}}
			for _, c := range col {
				pw := mask(c.Password)
				if reveal {
					pw = c.Password
				}
				rows = append(rows, []string{c.ID, c.Site, c.Username, pw})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).WithWriter(cmd.OutOrStdout()).Render()
		},
	}
	cmd.Flags().String("search", "", "Only show entries whose site or username contains this text")
	cmd.Flags().Bool("json", false, "Print entries as JSON")
	cmd.Flags().Bool("reveal", false, "Show passwords in the table")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a site login, generating the password unless one is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			site, _ := cmd.Flags().GetString("site")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")

			if site == "" {
				if d, ok := tab.CurrentDomain(cmd.Context(), tab.Static(a.cfg.URL)); ok {
					site = d
				}
			}

			if password == "" {
				opts, err := generatorOptions(cmd)
				if err != nil {
					return err
				}
				gen, err := a.newGenerator()
				if err != nil {
					return err
				}
				if password, err = gen.Generate(opts); err != nil {
					return err
				}
			}

			c, err := credential.New(site, username, password, time.Now().UTC())
			if err != nil {
				return err
			}

			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer.Close()

			if _, err := s.Add(cmd.Context(), c); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", c.Site, c.ID)
			return nil
		},
	}
	cmd.Flags().String("site", "", "Site the login is for (defaults to the --url domain)")
	cmd.Flags().String("username", "", "Username or email (required)")
	cmd.Flags().String("password", "", "Password to store instead of a generated one")
	addGeneratorFlags(cmd)
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved password by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer.Close()

			if _, err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "delete all saved passwords? (y/n) ") {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}

			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := s.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the zpass version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "zpass %s\n", a.version)
			return nil
		},
	}
}

func addGeneratorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("length", generator.DefaultLength, fmt.Sprintf("Password length (%d-%d)", generator.MinLength, generator.MaxLength))
	f.Bool("no-lower", false, "Leave out lowercase letters")
	f.Bool("no-upper", false, "Leave out uppercase letters")
	f.Bool("no-digits", false, "Leave out digits")
	f.Bool("no-symbols", false, "Leave out symbols")
}

func generatorOptions(cmd *cobra.Command) (generator.Options, error) {
	f := cmd.Flags()
	length, _ := f.GetInt("length")
	if length < generator.MinLength || length > generator.MaxLength {
		return generator.Options{}, fmt.Errorf("length must be between %d and %d", generator.MinLength, generator.MaxLength)
	}

	noLower, _ := f.GetBool("no-lower")
	noUpper, _ := f.GetBool("no-upper")
	noDigits, _ := f.GetBool("no-digits")
	noSymbols, _ := f.GetBool("no-symbols")

	return generator.Options{
		Length: length,
		Lower:  !noLower,
		Upper:  !noUpper,
		Digit:  !noDigits,
		Symbol: !noSymbols,
	}, nil
}

// ReadPassword prompts for a password on w and reads it without echo.
func ReadPassword(prompt string, w io.Writer) (string, error) {
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// ReadNewPassword prompts for a new password with confirmation.
func ReadNewPassword(w io.Writer) (string, error) {
	pass, err := ReadPassword("create master password: ", w)
	if err != nil {
		return "", err
	}
	confirm, err := ReadPassword("confirm password: ", w)
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", errors.New("passwords do not match")
	}
	return pass, nil
}

func confirm(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprint(w, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func mask(pw string) string {
	return strings.Repeat("•", min(len(pw), 12))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
