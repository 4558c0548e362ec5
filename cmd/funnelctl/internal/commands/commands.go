package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/funnelhq/funnel360/cmd/funnelctl/internal/credentials"
	"github.com/funnelhq/funnel360/internal/client"
	"github.com/funnelhq/funnel360/internal/logger"
)

type Globals struct {
	Debug   bool
	Version string
}

// Connection selects the server and caller for a command. Flags win over
// the stored profile.
type Connection struct {
	Profile   string        `help:"Stored profile to use, the default profile when empty" env:"FUNNEL_PROFILE"`
	ConfigDir string        `help:"Directory holding stored profiles" env:"FUNNEL_CONFIG_DIR"`
	Server    string        `help:"Server URL" env:"FUNNEL_SERVER"`
	Token     string        `help:"Bearer token from /auth/token" env:"FUNNEL_TOKEN"`
	UserID    string        `help:"Caller id for servers running with --no-auth" env:"FUNNEL_USER_ID"`
	Org       string        `help:"Organization id to act in" env:"FUNNEL_ORG"`
	Timeout   time.Duration `help:"Request timeout" default:"30s"`
	JSON      bool          `help:"Print raw JSON instead of a table"`

	out io.Writer `kong:"-"`
}

// resolve fills unset fields from the stored profile.
func (c *Connection) resolve() error {
	store, err := credentials.NewStore(c.ConfigDir)
	if err != nil {
		return err
	}

	cred, err := store.Resolve(c.Profile)
	switch {
	case err == nil:
		if c.Server == "" {
			c.Server = cred.Server
		}
		if c.Token == "" && c.UserID == "" {
			c.Token = cred.Token
			c.UserID = cred.UserID
		}
		if c.Org == "" {
			c.Org = cred.OrganizationID
		}
	case errors.Is(err, credentials.ErrNoDefaultCredential) && c.Profile == "":
	default:
		return fmt.Errorf("failed to load profile: %w", err)
	}

	if c.Server == "" {
		c.Server = client.DefaultConfig().ServerURL
	}
	if c.Token != "" {
		if exp, ok := (&credentials.Credential{Token: c.Token}).TokenExpiry(); ok && time.Now().After(exp) {
			return fmt.Errorf("bearer token expired at %s, request a new one from %s/auth/token",
				exp.Format(time.RFC3339), c.Server)
		}
	}
	return nil
}

func (c *Connection) clients(globals *Globals) (*client.Clients, error) {
	if err := c.resolve(); err != nil {
		return nil, err
	}

	log := logger.Setup(globals.Debug)
	interceptors := []connect.Interceptor{
		&client.AuthInterceptor{Token: c.Token, UserID: c.UserID, OrganizationID: c.Org},
	}
	if globals.Debug {
		interceptors = append(interceptors, logger.NewConnectRequests(log))
	}

	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}
	interceptors = append(interceptors, otelInterceptor)

	clients, err := client.NewClients(client.Config{
		ServerURL: c.Server,
		Timeout:   c.Timeout,
		Debug:     globals.Debug,
	}, connect.WithInterceptors(interceptors...))
	if err != nil {
		return nil, fmt.Errorf("failed to create clients: %w", err)
	}
	return clients, nil
}

func (c *Connection) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

func (c *Connection) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// rpcError turns Connect errors into messages naming the failing fields.
func rpcError(action string, err error) error {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return fmt.Errorf("failed to %s: %w", action, err)
	}

	msg := fmt.Sprintf("failed to %s: %s", action, connectErr.Message())
	for _, field := range connectErr.Meta().Values("Funnel-Field-Error") {
		msg += "\n  " + field
	}
	return errors.New(msg)
}
