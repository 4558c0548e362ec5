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

// ProjectsCmd manages projects.
type ProjectsCmd struct {
	Create ProjectsCreateCmd `cmd:"" help:"Create projects"`
	List   ProjectsListCmd   `cmd:"" help:"List projects"`
}

// projectFile is the YAML form of a project. Budget keeps its literal text
// so 1000.10 is not rounded through a float.
type projectFile struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	ClientID    string `yaml:"clientId"`
	OwnerID     string `yaml:"ownerId"`
	Budget      string `yaml:"budget"`
	Priority    string `yaml:"priority"`
}

func (p projectFile) request() validation.CreateProjectRequest {
	return validation.CreateProjectRequest{
		Title:       p.Title,
		Description: p.Description,
		ClientID:    p.ClientID,
		OwnerID:     p.OwnerID,
		Budget:      validation.Amount(p.Budget),
		Priority:    p.Priority,
	}
}

type ProjectsCreateCmd struct {
	Connection `embed:""`

	Title       string `help:"Project title"`
	Description string `help:"Project description"`
	ClientID    string `help:"Client the project belongs to" name:"client-id"`
	OwnerID     string `help:"Owner principal id, the caller when empty" name:"owner-id"`
	Budget      string `help:"Budget, at most two decimal places"`
	Priority    string `help:"Priority (low, medium, high)" default:"medium"`
	File        string `help:"YAML file with one project or a list of projects" type:"path" short:"f"`
}

func (c *ProjectsCreateCmd) requests() ([]validation.CreateProjectRequest, error) {
	if c.File == "" {
		return []validation.CreateProjectRequest{projectFile{
			Title:       c.Title,
			Description: c.Description,
			ClientID:    c.ClientID,
			OwnerID:     c.OwnerID,
			Budget:      c.Budget,
			Priority:    c.Priority,
		}.request()}, nil
	}

	records, err := loadRecords[projectFile](c.File)
	if err != nil {
		return nil, err
	}

	reqs := make([]validation.CreateProjectRequest, 0, len(records))
	for _, r := range records {
		reqs = append(reqs, r.request())
	}
	return reqs, nil
}

func (c *ProjectsCreateCmd) Run(ctx context.Context, globals *Globals) error {
	reqs, err := c.requests()
	if err != nil {
		return err
	}

	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	created := make([]*models.Project, 0, len(reqs))
	for _, req := range reqs {
		resp, err := clients.CreateProject.CallUnary(ctx, connect.NewRequest(&rpc.CreateProjectRequest{
			OrganizationID:       c.Org,
			CreateProjectRequest: req,
		}))
		if err != nil {
			return rpcError(fmt.Sprintf("create project %q", req.Title), err)
		}
		created = append(created, resp.Msg.Project)
	}

	return c.printProjects(created)
}

type ProjectsListCmd struct {
	Connection `embed:""`

	ClientID string `help:"Only projects of this client" name:"client-id"`
	Limit    int    `help:"Maximum number of projects" default:"50"`
}

func (c *ProjectsListCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.ListProjects.CallUnary(ctx, connect.NewRequest(&rpc.ListProjectsRequest{
		OrganizationID: c.Org,
		ClientID:       c.ClientID,
		Limit:          c.Limit,
	}))
	if err != nil {
		return rpcError("list projects", err)
	}

	return c.printProjects(resp.Msg.Projects)
}

func (c *Connection) printProjects(projects []*models.Project) error {
	if c.JSON {
		return c.printJSON(projects)
	}

	if len(projects) == 0 {
		fmt.Fprintln(c.stdout(), "No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(c.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCLIENT\tBUDGET\tPRIORITY")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ProjectID, p.Title, p.ClientID, p.Budget.StringFixed(2), p.Priority)
	}
	return w.Flush()
}
