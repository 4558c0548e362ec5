package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/funnelhq/funnel360/cmd/funnelctl/internal/credentials"
	"github.com/funnelhq/funnel360/internal/client"
)

// LoginCmd stores a profile. Tokens come from POST /auth/token on the server
// while signed in through the browser.
type LoginCmd struct {
	Name      string `arg:"" optional:"" help:"Profile name" default:"default"`
	ConfigDir string `help:"Directory holding stored profiles" env:"FUNNEL_CONFIG_DIR"`
	Server    string `help:"Server URL" default:"http://localhost:8080" env:"FUNNEL_SERVER"`
	Token     string `help:"Bearer token" env:"FUNNEL_TOKEN" xor:"caller"`
	UserID    string `help:"Caller id for servers running with --no-auth" env:"FUNNEL_USER_ID" xor:"caller"`
	Org       string `help:"Organization id to act in" env:"FUNNEL_ORG"`
	Default   bool   `help:"Make this the default profile"`

	out io.Writer `kong:"-"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	if err := (client.Config{ServerURL: l.Server}).Validate(); err != nil {
		return err
	}

	store, err := credentials.NewStore(l.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	cred, err := store.Save(credentials.Credential{
		Name:           l.Name,
		Server:         l.Server,
		Token:          l.Token,
		UserID:         l.UserID,
		OrganizationID: l.Org,
	})
	if err != nil {
		return err
	}

	if l.Default {
		if err := store.SetDefault(cred.Name); err != nil {
			return err
		}
	}

	out := l.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Saved profile %q for %s\n", cred.Name, cred.Server)
	if exp, ok := cred.TokenExpiry(); ok {
		fmt.Fprintf(out, "Token expires at %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

// LogoutCmd removes a stored profile.
type LogoutCmd struct {
	Name      string `arg:"" optional:"" help:"Profile name" default:"default"`
	ConfigDir string `help:"Directory holding stored profiles" env:"FUNNEL_CONFIG_DIR"`
}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(l.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}
	return store.Delete(l.Name)
}

// ProfilesCmd inspects stored profiles.
type ProfilesCmd struct {
	List ProfilesListCmd `cmd:"" default:"1" help:"List stored profiles"`
	Use  ProfilesUseCmd  `cmd:"" help:"Set the default profile"`
}

type ProfilesListCmd struct {
	ConfigDir string `help:"Directory holding stored profiles" env:"FUNNEL_CONFIG_DIR"`

	out io.Writer `kong:"-"`
}

func (p *ProfilesListCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(p.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	creds, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	out := p.out
	if out == nil {
		out = os.Stdout
	}

	if len(creds) == 0 {
		fmt.Fprintln(out, "No profiles found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To add one:")
		fmt.Fprintln(out, "  funnelctl login --server <url> --token <token>")
		return nil
	}

	defaultName, err := store.DefaultName()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSERVER\tCALLER\tORGANIZATION\tDEFAULT")
	for _, cred := range creds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			cred.Name, cred.Server, describeCaller(&cred), cred.OrganizationID, marker(cred.Name == defaultName))
	}
	return w.Flush()
}

func describeCaller(cred *credentials.Credential) string {
	switch {
	case cred.Token != "":
		exp, ok := cred.TokenExpiry()
		if !ok {
			return "token"
		}
		if time.Now().After(exp) {
			return "token (expired)"
		}
		return "token (expires " + exp.Local().Format("2006-01-02 15:04") + ")"
	case cred.UserID != "":
		return "dev user " + cred.UserID
	default:
		return "anonymous"
	}
}

func marker(ok bool) string {
	if ok {
		return "*"
	}
	return ""
}

type ProfilesUseCmd struct {
	Name      string `arg:"" help:"Profile name"`
	ConfigDir string `help:"Directory holding stored profiles" env:"FUNNEL_CONFIG_DIR"`
}

func (p *ProfilesUseCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(p.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}
	return store.SetDefault(p.Name)
}
