package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"connectrpc.com/connect"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/rpc"
	"github.com/funnelhq/funnel360/internal/validation"
)

// ClientsCmd manages clients.
type ClientsCmd struct {
	Create ClientsCreateCmd `cmd:"" help:"Create clients"`
	List   ClientsListCmd   `cmd:"" help:"List clients"`
}

// clientFile is the YAML form of a client.
type clientFile struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Notes string `yaml:"notes"`
}

type ClientsCreateCmd struct {
	Connection `embed:""`

	Name  string `help:"Client name"`
	Email string `help:"Client email"`
	Notes string `help:"Free-form notes"`
	File  string `help:"YAML file with one client or a list of clients" type:"path" short:"f"`
}

func (c *ClientsCreateCmd) requests() ([]validation.CreateClientRequest, error) {
	if c.File == "" {
		return []validation.CreateClientRequest{{Name: c.Name, Email: c.Email, Notes: c.Notes}}, nil
	}

	records, err := loadRecords[clientFile](c.File)
	if err != nil {
		return nil, err
	}

	reqs := make([]validation.CreateClientRequest, 0, len(records))
	for _, r := range records {
		reqs = append(reqs, validation.CreateClientRequest{Name: r.Name, Email: r.Email, Notes: r.Notes})
	}
	return reqs, nil
}

func (c *ClientsCreateCmd) Run(ctx context.Context, globals *Globals) error {
	reqs, err := c.requests()
	if err != nil {
		return err
	}

	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	created := make([]*models.Client, 0, len(reqs))
	for _, req := range reqs {
		resp, err := clients.CreateClient.CallUnary(ctx, connect.NewRequest(&rpc.CreateClientRequest{
			OrganizationID:      c.Org,
			CreateClientRequest: req,
		}))
		if err != nil {
			return rpcError(fmt.Sprintf("create client %q", req.Name), err)
		}
		created = append(created, resp.Msg.Client)
	}

	return c.printClients(created)
}

type ClientsListCmd struct {
	Connection `embed:""`

	Limit int `help:"Maximum number of clients" default:"50"`
}

func (c *ClientsListCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.ListClients.CallUnary(ctx, connect.NewRequest(&rpc.ListClientsRequest{
		OrganizationID: c.Org,
		Limit:          c.Limit,
	}))
	if err != nil {
		return rpcError("list clients", err)
	}

	return c.printClients(resp.Msg.Clients)
}

func (c *Connection) printClients(clients []*models.Client) error {
	if c.JSON {
		return c.printJSON(clients)
	}

	if len(clients) == 0 {
		fmt.Fprintln(c.stdout(), "No clients found.")
		return nil
	}

	w := tabwriter.NewWriter(c.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCREATED")
	for _, cl := range clients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cl.ClientID, cl.Name, cl.Email, cl.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
